package framed

import (
	"errors"
	"fmt"
	"syscall"
)

type (
	// ListenError reports a bind/listen/accept failure. It is fatal to the
	// listener instance until a fresh Start is attempted, never to the process.
	ListenError struct {
		Action  string
		Code    int
		Message string
	}

	// SocketError reports a per-connection transport failure. It always
	// results in that connection's removal and never aborts other
	// connections or the listener.
	SocketError struct {
		Action  string
		Code    int
		Message string
		ID      ConnID
	}
)

var (
	ErrServerClosed   = errors.New("framed: server closed")
	ErrAlreadyStarted = errors.New("framed: server already started")
	// ErrConnNotFound is returned synchronously to callers referencing a
	// connection id no longer present in the registry. It is never delivered
	// through the EventSink.
	ErrConnNotFound = errors.New("framed: connection not found")
)

func (e *ListenError) Error() string {
	return fmt.Sprintf("framed: %s failed: %s (errno %d)", e.Action, e.Message, e.Code)
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("framed: %s failed on conn %d: %s (errno %d)", e.Action, e.ID, e.Message, e.Code)
}

func newListenError(action string, err error) *ListenError {
	return &ListenError{Action: action, Code: errnoOf(err), Message: err.Error()}
}

func newSocketError(action string, id ConnID, err error) *SocketError {
	return &SocketError{Action: action, Code: errnoOf(err), Message: err.Error(), ID: id}
}

// errnoOf digs the raw errno out of wrapped net.OpError/os.SyscallError
// chains. 0 when the failure has no errno (e.g. remote close).
func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
