package framed

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

type (
	// ConnID identifies one accepted connection. Ids are unique for the
	// lifetime of the server instance and are the registry key.
	ConnID uint64

	// Conn wraps one accepted socket together with its private input/output
	// codec clones, the pending-output queue and the lifecycle state.
	// The registry is the owning reference; consumers interact through
	// Server.Write/CloseConn or the registry accessors.
	Conn struct {
		id  ConnID
		rwc net.Conn
		in  Codec
		out Codec
		srv *Server

		mu      sync.Mutex
		pending *queue.Queue // encoded []byte chunks awaiting the writer

		kick chan struct{}
		done chan struct{}

		state  int32 // atomic; one of State*
		failed bool  // guarded by the dispatcher mutex

		inBytes  int64 // accessed atomically
		outBytes int64 // accessed atomically
	}
)

// Connection lifecycle states.
const (
	StateActive int32 = iota
	StateClosing
	StateClosed
)

const readBufferSize = 4 << 10

// errRemoteClosed stands in for the zero errno a remote close carries.
var errRemoteClosed = errors.New("remote closed connection")

func newConn(id ConnID, rwc net.Conn, in, out Codec, srv *Server) *Conn {
	return &Conn{
		id:      id,
		rwc:     rwc,
		in:      in,
		out:     out,
		srv:     srv,
		pending: queue.New(),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID returns the registry key of this connection.
func (c *Conn) ID() ConnID {
	return c.id
}

// RemoteAddr returns the peer address of the underlying socket.
func (c *Conn) RemoteAddr() net.Addr {
	return c.rwc.RemoteAddr()
}

// State returns the current lifecycle state.
func (c *Conn) State() int32 {
	return atomic.LoadInt32(&c.state)
}

// Stats returns the bytes read from and written to the transport so far.
func (c *Conn) Stats() (int64, int64) {
	return atomic.LoadInt64(&c.inBytes), atomic.LoadInt64(&c.outBytes)
}

// Write encodes frame through the output codec and queues the bytes for the
// writer goroutine. A later OnFlushed reports when everything queued so far
// has been handed to the transport.
func (c *Conn) Write(frame []byte) error {
	if c.State() != StateActive {
		return ErrConnNotFound
	}
	c.mu.Lock()
	c.pending.Add(c.out.Encode(frame))
	c.mu.Unlock()
	recordFrameOut()
	select {
	case c.kick <- struct{}{}:
	default:
		// writer already signalled
	}
	return nil
}

// Close tears the connection down without emitting a SocketError.
// Closing an already-closed connection is a no-op.
func (c *Conn) Close() error {
	c.teardown("close", nil, false)
	return nil
}

// serve runs the read/write pipeline until the connection dies.
func (c *Conn) serve() {
	go c.writeLoop()
	go c.readLoop()
}

// readLoop pushes raw reads through the input codec and delivers every
// complete frame through the serialized dispatcher.
func (c *Conn) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.rwc.Read(buf)
		if n > 0 {
			atomic.AddInt64(&c.inBytes, int64(n))
			recordBytesIn(n)
			for _, frame := range c.in.Decode(buf[:n]) {
				recordFrameIn()
				c.srv.events.inboundFrame(frame, c.id)
			}
		}
		if err != nil {
			if err == io.EOF {
				err = errRemoteClosed
			}
			c.teardown("read", err, true)
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.kick:
			if err := c.flushPass(); err != nil {
				c.teardown("write", err, true)
				return
			}
		}
	}
}

func (c *Conn) flushPass() error {
	if err := c.drainPending(); err != nil {
		return err
	}
	c.emitFlush()
	return nil
}

// emitFlush reports a flush only while the queue is still empty. A write
// landing between the drain and this point re-kicks the writer, so its own
// flush arrives with the next pass instead of a premature one here.
func (c *Conn) emitFlush() {
	c.mu.Lock()
	empty := c.pending.Length() == 0
	c.mu.Unlock()
	if empty {
		c.srv.events.flushed(c)
	}
}

func (c *Conn) drainPending() error {
	for {
		c.mu.Lock()
		if c.pending.Length() == 0 {
			c.mu.Unlock()
			return nil
		}
		buf := c.pending.Remove().([]byte)
		c.mu.Unlock()
		n, err := c.rwc.Write(buf)
		if n > 0 {
			atomic.AddInt64(&c.outBytes, int64(n))
			recordBytesOut(n)
		}
		if err != nil {
			return err
		}
	}
}

// teardown is the single cleanup path: first caller wins, everyone else is a
// no-op. It deregisters the connection before any event reaches the sink, so
// by the time a consumer observes OnSocketError the id is already gone.
func (c *Conn) teardown(action string, err error, notify bool) {
	if !atomic.CompareAndSwapInt32(&c.state, StateActive, StateClosing) {
		return
	}
	c.srv.conns.Delete(c.id)
	close(c.done)
	c.rwc.Close()
	c.srv.stats().AddConnStats(c)
	recordConnClosed(action, notify)
	if notify {
		c.srv.events.socketError(c, newSocketError(action, c.id, err))
	}
	atomic.StoreInt32(&c.state, StateClosed)
}
