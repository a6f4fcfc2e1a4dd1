package framed

import (
	"net"
	"sync"
)

type (
	// EventSink is the consumer callback contract. The core invokes it for
	// every lifecycle event; OnInboundFrame is the one method a consumer
	// must implement itself, the rest have BaseSink defaults.
	//
	// All callbacks for one server instance are delivered serialized: no two
	// of them ever execute concurrently. Callbacks must not block; hand
	// long-running work off elsewhere.
	EventSink interface {
		// OnInboundFrame is called exactly once per decoded frame, in the
		// order the bytes arrived on that connection.
		OnInboundFrame(frame []byte, id ConnID)
		// OnConnect is called after the accepted connection has been
		// registered, so id is already addressable through the registry.
		OnConnect(conn net.Conn, peerAddr string, peerPort int, id ConnID)
		// OnListenError reports a bind/listen/accept failure. It carries no
		// connection id: a failed listen precedes any connection.
		OnListenError(action string, code int, message string)
		// OnSocketError reports a per-connection transport failure. By the
		// time it is delivered the connection has already been removed from
		// the registry and its socket released.
		OnSocketError(action string, code int, message string, id ConnID)
		// OnFlushed is called when every byte queued for id so far has been
		// handed to the transport. It is never delivered after id has
		// received OnSocketError.
		OnFlushed(id ConnID)
	}

	// BaseSink provides default implementations for the optional EventSink
	// callbacks. Embed it and implement OnInboundFrame. Error callbacks log
	// through Logger at debug level; the rest are no-ops.
	BaseSink struct {
		Logger Logger
	}

	// dispatcher serializes sink callbacks for one server instance and
	// enforces the SocketError/Flushed exclusion per connection.
	dispatcher struct {
		mu   sync.Mutex
		sink EventSink
	}
)

func (b BaseSink) OnConnect(net.Conn, string, int, ConnID) {}

func (b BaseSink) OnFlushed(ConnID) {}

func (b BaseSink) OnListenError(action string, code int, message string) {
	b.logger().Debugf("framed: listen error: %s: %s (errno %d)", action, message, code)
}

func (b BaseSink) OnSocketError(action string, code int, message string, id ConnID) {
	b.logger().Debugf("framed: socket error on conn %d: %s: %s (errno %d)", id, action, message, code)
}

func (b BaseSink) logger() Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return DefaultLogger
}

func (d *dispatcher) inboundFrame(frame []byte, id ConnID) {
	d.mu.Lock()
	d.sink.OnInboundFrame(frame, id)
	d.mu.Unlock()
}

func (d *dispatcher) connect(conn net.Conn, addr string, port int, id ConnID) {
	d.mu.Lock()
	d.sink.OnConnect(conn, addr, port, id)
	d.mu.Unlock()
}

func (d *dispatcher) listenError(e *ListenError) {
	d.mu.Lock()
	d.sink.OnListenError(e.Action, e.Code, e.Message)
	d.mu.Unlock()
}

// socketError delivers at most one SocketError per connection.
func (d *dispatcher) socketError(c *Conn, e *SocketError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.failed {
		return
	}
	c.failed = true
	d.sink.OnSocketError(e.Action, e.Code, e.Message, e.ID)
}

// flushed is suppressed once the connection failed or left the Active state,
// so a flush racing a teardown never reaches the sink afterwards.
func (d *dispatcher) flushed(c *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.failed || c.State() != StateActive {
		return
	}
	d.sink.OnFlushed(c.id)
}
