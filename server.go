package framed

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Server owns a listening socket, accepts inbound connections and runs
	// the codec-driven read/write pipeline for each of them. Only Sink is
	// mandatory; every other component gets a reasonable default at Start.
	Server struct {
		// Addr is the address to listen on. Empty means all interfaces.
		Addr string
		// Port is the port to listen on. 0 picks an ephemeral port.
		Port int

		// Sink receives all lifecycle events. Required.
		Sink EventSink

		// Codec is the prototype cloned into both directions of every
		// accepted connection when InputCodec/OutputCodec are nil.
		// Nil means LineCodec.
		Codec Codec
		// InputCodec, when set, overrides Codec for the decode direction.
		InputCodec Codec
		// OutputCodec, when set, overrides Codec for the encode direction.
		OutputCodec Codec

		// ReuseAddr sets SO_REUSEADDR on the listening socket before bind.
		ReuseAddr bool

		// Name is registered with Names at Start and released at Shutdown.
		Name string
		// Names is an optional external name registration handle.
		Names NameRegistry

		// Configurable components
		Logger     Logger
		Retry      Retry
		Statistics Statistics

		events dispatcher
		conns  *Registry
		nextID uint64

		mu       sync.Mutex
		lnState  int32
		listener net.Listener
		doneChan chan struct{}
		nameHeld bool

		runState int32 // atomic
	}
)

// Listener states.
const (
	listenerUnbound int32 = iota
	listenerListening
	listenerClosed
)

// Shutdown state machine. The zero value is running so a zero Server works.
const (
	stateRunning int32 = iota
	stateShuttingDown
	stateStopped
)

func (s *Server) getDoneChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDoneChanLocked()
}

func (s *Server) getDoneChanLocked() chan struct{} {
	if s.doneChan == nil {
		s.doneChan = make(chan struct{})
	}
	return s.doneChan
}

func (s *Server) closeDoneChanLocked() {
	ch := s.getDoneChanLocked()
	select {
	case <-ch:
		// Already closed. Don't close again.
	default:
		// Safe to close here. We're the only closer, guarded
		// by s.mu.
		close(ch)
	}
}

// Start binds and listens on Addr:Port and begins accepting. On failure it
// returns a *ListenError and the listener stays unbound; a fresh Start may be
// attempted. Starting an already-listening server returns ErrAlreadyStarted.
func (s *Server) Start() error {
	if s.Sink == nil {
		panic("framed: nil sink")
	}
	if atomic.LoadInt32(&s.runState) != stateRunning {
		return ErrServerClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lnState == listenerListening {
		return ErrAlreadyStarted
	}

	// set reasonable default to each component
	if s.Logger == nil {
		s.Logger = DefaultLogger
	}
	if s.Retry == nil {
		s.Retry = DefaultRetry
	}
	if s.Statistics == nil {
		s.Statistics = &TrafficStatistics{}
	}
	if s.Codec == nil {
		s.Codec = NewLineCodec()
	}
	if s.conns == nil {
		s.conns = NewRegistry()
	}
	s.events.sink = s.Sink
	RegisterMetrics()

	lc := net.ListenConfig{}
	if s.ReuseAddr {
		lc.Control = reuseAddrControl
	}
	ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(s.Addr, strconv.Itoa(s.Port)))
	if err != nil {
		return newListenError("listen", err)
	}
	if s.Names != nil && s.Name != "" && !s.nameHeld {
		if rerr := s.Names.Register(s.Name); rerr != nil {
			ln.Close()
			return fmt.Errorf("framed: register name %q: %w", s.Name, rerr)
		}
		s.nameHeld = true
	}
	s.listener = ln
	s.lnState = listenerListening
	go s.acceptLoop(ln)
	return nil
}

// ListenAddr returns the bound address, useful when Port is 0.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	var retry uint64
	for {
		rwc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.getDoneChan():
				return
			default:
			}
			s.mu.Lock()
			closed := s.lnState != listenerListening
			s.mu.Unlock()
			if closed {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				delay := s.Retry.Backoff(retry)
				s.Logger.Errorf("framed: accept error: %v; retrying in %v", err, delay)
				time.Sleep(delay)
				retry++
				continue
			}
			// fatal to this listener: release the socket and leave the
			// closed state behind so a fresh Start can rebind
			s.mu.Lock()
			if s.lnState == listenerListening {
				s.lnState = listenerClosed
				s.listener.Close()
			}
			s.mu.Unlock()
			s.events.listenError(newListenError("accept", err))
			return
		}
		retry = 0
		s.register(rwc)
	}
}

// register clones the codecs, inserts the connection into the registry and
// only then announces it, so the id is addressable by the time OnConnect runs.
func (s *Server) register(rwc net.Conn) {
	in, out := s.cloneCodecs()
	id := ConnID(atomic.AddUint64(&s.nextID, 1))
	c := newConn(id, rwc, in, out, s)
	s.conns.Set(id, c)
	recordConnAccepted()
	// a Shutdown racing this insert may have drained the registry already;
	// re-check so the terminal state keeps its count()==0 promise
	if atomic.LoadInt32(&s.runState) != stateRunning {
		c.teardown("shutdown", nil, false)
		return
	}
	peerAddr, peerPort := splitPeer(rwc.RemoteAddr())
	s.events.connect(rwc, peerAddr, peerPort, id)
	c.serve()
}

func (s *Server) cloneCodecs() (Codec, Codec) {
	in, out := s.InputCodec, s.OutputCodec
	if in == nil {
		in = s.Codec
	}
	if out == nil {
		out = s.Codec
	}
	return in.Clone(), out.Clone()
}

// Write encodes frame through the connection's output codec and queues it.
// ErrConnNotFound signals that the connection is already gone; the frame is
// never silently dropped.
func (s *Server) Write(id ConnID, frame []byte) error {
	c, ok := s.registry().Get(id)
	if !ok {
		return ErrConnNotFound
	}
	return c.Write(frame)
}

// CloseConn closes the connection locally without emitting a SocketError.
func (s *Server) CloseConn(id ConnID) error {
	c, ok := s.registry().Get(id)
	if !ok {
		return ErrConnNotFound
	}
	return c.Close()
}

// GetConn looks up a live connection by id.
func (s *Server) GetConn(id ConnID) (*Conn, bool) {
	return s.registry().Get(id)
}

// SetConn registers conn under id. Advanced use only.
func (s *Server) SetConn(id ConnID, conn *Conn) {
	s.registry().Set(id, conn)
}

// DeleteConn removes id from the registry. Advanced use only; it does not
// close the connection.
func (s *Server) DeleteConn(id ConnID) {
	s.registry().Delete(id)
}

// Count returns the number of live connections.
func (s *Server) Count() int {
	return s.registry().Count()
}

// Exists reports whether id refers to a live connection.
func (s *Server) Exists(id ConnID) bool {
	return s.registry().Exists(id)
}

// Stop closes the listening socket. No further connections are accepted;
// established connections keep running. Idempotent.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lnState != listenerListening {
		return nil
	}
	s.lnState = listenerClosed
	return s.listener.Close()
}

// Shutdown stops the listener, force-closes every registered connection
// without per-connection error events, releases the name registration and
// transitions to the terminal state. Idempotent: later calls return
// immediately.
func (s *Server) Shutdown() {
	if !atomic.CompareAndSwapInt32(&s.runState, stateRunning, stateShuttingDown) {
		return
	}
	s.Stop()
	for _, c := range s.registry().drain() {
		c.teardown("shutdown", nil, false)
	}
	s.mu.Lock()
	if s.Names != nil && s.nameHeld {
		s.Names.Release(s.Name)
		s.nameHeld = false
	}
	s.closeDoneChanLocked()
	s.mu.Unlock()
	atomic.StoreInt32(&s.runState, stateStopped)
}

// Wait blocks until Shutdown has completed.
func (s *Server) Wait() {
	<-s.getDoneChan()
}

func (s *Server) registry() *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = NewRegistry()
	}
	return s.conns
}

func (s *Server) stats() Statistics {
	if s.Statistics != nil {
		return s.Statistics
	}
	return nopStats{}
}

func splitPeer(addr net.Addr) (string, int) {
	if ta, ok := addr.(*net.TCPAddr); ok {
		return ta.IP.String(), ta.Port
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
