package framed_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/framed-io/framed"
)

type (
	frameEvt struct {
		payload string
		id      framed.ConnID
	}
	connectEvt struct {
		addr string
		port int
		id   framed.ConnID
	}
	sockEvt struct {
		action string
		code   int
		id     framed.ConnID
	}
	listenEvt struct {
		action string
		code   int
	}

	testSink struct {
		frames    chan frameEvt
		connects  chan connectEvt
		sockErrs  chan sockEvt
		listenErr chan listenEvt
		flushes   chan framed.ConnID
	}
)

func newTestSink() *testSink {
	return &testSink{
		frames:    make(chan frameEvt, 64),
		connects:  make(chan connectEvt, 64),
		sockErrs:  make(chan sockEvt, 64),
		listenErr: make(chan listenEvt, 64),
		flushes:   make(chan framed.ConnID, 64),
	}
}

func (s *testSink) OnInboundFrame(frame []byte, id framed.ConnID) {
	s.frames <- frameEvt{payload: string(frame), id: id}
}

func (s *testSink) OnConnect(conn net.Conn, peerAddr string, peerPort int, id framed.ConnID) {
	s.connects <- connectEvt{addr: peerAddr, port: peerPort, id: id}
}

func (s *testSink) OnListenError(action string, code int, message string) {
	s.listenErr <- listenEvt{action: action, code: code}
}

func (s *testSink) OnSocketError(action string, code int, message string, id framed.ConnID) {
	s.sockErrs <- sockEvt{action: action, code: code, id: id}
}

func (s *testSink) OnFlushed(id framed.ConnID) {
	s.flushes <- id
}

func startServer(t testing.TB, sink framed.EventSink) *framed.Server {
	t.Helper()
	srv := &framed.Server{Addr: "127.0.0.1", Port: 0, Sink: sink}
	if err := srv.Start(); err != nil {
		t.Fatalf("framed_test: Start err: %+v\n", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func dial(t testing.TB, srv *framed.Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.ListenAddr().String())
	if err != nil {
		t.Fatalf("framed_test: Dial err: %+v\n", err)
	}
	return conn
}

func recvConnect(t testing.TB, sink *testSink) connectEvt {
	t.Helper()
	select {
	case ev := <-sink.connects:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("framed_test: timed out waiting for OnConnect\n")
		return connectEvt{}
	}
}

func recvFrame(t testing.TB, sink *testSink) frameEvt {
	t.Helper()
	select {
	case ev := <-sink.frames:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("framed_test: timed out waiting for OnInboundFrame\n")
		return frameEvt{}
	}
}

func expectNoFrame(t testing.TB, sink *testSink) {
	t.Helper()
	select {
	case ev := <-sink.frames:
		t.Errorf("framed_test: unexpected frame: %+v\n", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServerEndToEnd(t *testing.T) {
	t.Parallel()
	sink := newTestSink()
	srv := startServer(t, sink)

	client := dial(t, srv)
	defer client.Close()
	ev := recvConnect(t, sink)
	if !srv.Exists(ev.id) {
		t.Errorf("framed_test: Exists(%d) after OnConnect expected: true actual: false\n", ev.id)
	}
	if ev.addr != "127.0.0.1" {
		t.Errorf("framed_test: OnConnect peer expected: 127.0.0.1 actual: %s\n", ev.addr)
	}

	// one write, one frame
	if _, err := client.Write([]byte("hello\n")); err != nil {
		t.Fatalf("framed_test: client write err: %+v\n", err)
	}
	fr := recvFrame(t, sink)
	if fr.payload != "hello" || fr.id != ev.id {
		t.Errorf("framed_test: OnInboundFrame expected: hello, %d actual: %s, %d\n",
			ev.id, fr.payload, fr.id)
	}

	// a frame split across two writes is still exactly one frame
	client.Write([]byte("wo"))
	time.Sleep(10 * time.Millisecond)
	client.Write([]byte("rld\n"))
	fr = recvFrame(t, sink)
	if fr.payload != "world" || fr.id != ev.id {
		t.Errorf("framed_test: OnInboundFrame expected: world, %d actual: %s, %d\n",
			ev.id, fr.payload, fr.id)
	}
	expectNoFrame(t, sink)

	// server-side write reaches the client with the codec terminator and
	// reports a flush once the bytes left the queue
	if err := srv.Write(ev.id, []byte("pong")); err != nil {
		t.Fatalf("framed_test: Write err: %+v\n", err)
	}
	buf := make([]byte, 16)
	n, err := client.Read(buf)
	if err != nil || string(buf[:n]) != "pong\n" {
		t.Errorf("framed_test: client read expected: %q, nil actual: %q, %+v\n",
			"pong\n", buf[:n], err)
	}
	select {
	case id := <-sink.flushes:
		if id != ev.id {
			t.Errorf("framed_test: OnFlushed expected: %d actual: %d\n", ev.id, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("framed_test: timed out waiting for OnFlushed\n")
	}
}

func TestServerPartialFrameIsolation(t *testing.T) {
	t.Parallel()
	sink := newTestSink()
	srv := startServer(t, sink)

	a := dial(t, srv)
	defer a.Close()
	evA := recvConnect(t, sink)
	b := dial(t, srv)
	defer b.Close()
	evB := recvConnect(t, sink)

	// half a frame on A, a full frame on B: exactly one frame, tagged B
	a.Write([]byte("half a fra"))
	time.Sleep(10 * time.Millisecond)
	b.Write([]byte("whole\n"))
	fr := recvFrame(t, sink)
	if fr.payload != "whole" || fr.id != evB.id {
		t.Errorf("framed_test: OnInboundFrame expected: whole, %d actual: %s, %d\n",
			evB.id, fr.payload, fr.id)
	}
	expectNoFrame(t, sink)

	// completing A's partial later yields A's frame intact
	a.Write([]byte("me\n"))
	fr = recvFrame(t, sink)
	if fr.payload != "half a frame" || fr.id != evA.id {
		t.Errorf("framed_test: OnInboundFrame expected: half a frame, %d actual: %s, %d\n",
			evA.id, fr.payload, fr.id)
	}
}

func TestServerAcceptMany(t *testing.T) {
	t.Parallel()
	sink := newTestSink()
	srv := startServer(t, sink)

	const n = 8
	clients := make([]net.Conn, 0, n)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	ids := make([]framed.ConnID, 0, n)
	for i := 0; i < n; i++ {
		clients = append(clients, dial(t, srv))
		ids = append(ids, recvConnect(t, sink).id)
	}
	if srv.Count() != n {
		t.Errorf("framed_test: Count after %d accepts expected: %d actual: %d\n",
			n, n, srv.Count())
	}
	seen := make(map[framed.ConnID]struct{}, n)
	for _, id := range ids {
		if !srv.Exists(id) {
			t.Errorf("framed_test: Exists(%d) expected: true actual: false\n", id)
		}
		if _, dup := seen[id]; dup {
			t.Errorf("framed_test: duplicate ConnID %d\n", id)
		}
		seen[id] = struct{}{}
	}
}

func TestServerWriteUnknownConn(t *testing.T) {
	t.Parallel()
	sink := newTestSink()
	srv := startServer(t, sink)

	if err := srv.Write(9999, []byte("nobody home")); err != framed.ErrConnNotFound {
		t.Errorf("framed_test: Write expected: %+v actual: %+v\n", framed.ErrConnNotFound, err)
	}
	if err := srv.CloseConn(9999); err != framed.ErrConnNotFound {
		t.Errorf("framed_test: CloseConn expected: %+v actual: %+v\n", framed.ErrConnNotFound, err)
	}
	select {
	case ev := <-sink.sockErrs:
		t.Errorf("framed_test: unexpected SocketError: %+v\n", ev)
	case id := <-sink.flushes:
		t.Errorf("framed_test: unexpected OnFlushed: %d\n", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServerShutdown(t *testing.T) {
	t.Parallel()
	sink := newTestSink()
	names := framed.NewMapNameRegistry()
	srv := &framed.Server{
		Addr:  "127.0.0.1",
		Port:  0,
		Sink:  sink,
		Name:  "shutdown-test",
		Names: names,
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("framed_test: Start err: %+v\n", err)
	}
	if !names.Held("shutdown-test") {
		t.Errorf("framed_test: NameRegistry.Held expected: true actual: false\n")
	}

	client := dial(t, srv)
	defer client.Close()
	recvConnect(t, sink)

	srv.Shutdown()
	if srv.Count() != 0 {
		t.Errorf("framed_test: Count after Shutdown expected: 0 actual: %d\n", srv.Count())
	}
	if names.Held("shutdown-test") {
		t.Errorf("framed_test: NameRegistry.Held after Shutdown expected: false actual: true\n")
	}
	// shutdown is deliberate termination: no per-connection error events
	select {
	case ev := <-sink.sockErrs:
		t.Errorf("framed_test: unexpected SocketError during Shutdown: %+v\n", ev)
	case <-time.After(100 * time.Millisecond):
	}
	// idempotent: a second call has nothing left to do
	srv.Shutdown()
	if srv.Count() != 0 {
		t.Errorf("framed_test: Count after double Shutdown expected: 0 actual: %d\n", srv.Count())
	}
	if err := srv.Start(); err != framed.ErrServerClosed {
		t.Errorf("framed_test: Start after Shutdown expected: %+v actual: %+v\n",
			framed.ErrServerClosed, err)
	}
	// Wait must return (not block) once shut down
	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Errorf("framed_test: Wait did not return after Shutdown\n")
	}
}

func TestServerStartErrors(t *testing.T) {
	t.Parallel()
	sink := newTestSink()
	srv := startServer(t, sink)
	if err := srv.Start(); err != framed.ErrAlreadyStarted {
		t.Errorf("framed_test: second Start expected: %+v actual: %+v\n",
			framed.ErrAlreadyStarted, err)
	}

	// binding a taken port fails with a ListenError and leaves the second
	// server unbound
	taken := srv.ListenAddr().(*net.TCPAddr)
	dup := &framed.Server{Addr: "127.0.0.1", Port: taken.Port, Sink: newTestSink()}
	err := dup.Start()
	var le *framed.ListenError
	if !errors.As(err, &le) {
		t.Fatalf("framed_test: Start expected: *ListenError actual: %+v\n", err)
	}
	if le.Action != "listen" || le.Code == 0 {
		t.Errorf("framed_test: ListenError expected: listen, errno != 0 actual: %s, %d\n",
			le.Action, le.Code)
	}
	if dup.ListenAddr() != nil {
		t.Errorf("framed_test: ListenAddr after failed Start expected: nil actual: %v\n",
			dup.ListenAddr())
	}

	// Stop only closes the listener and is idempotent
	if err := srv.Stop(); err != nil {
		t.Errorf("framed_test: Stop expected: nil actual: %+v\n", err)
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("framed_test: second Stop expected: nil actual: %+v\n", err)
	}
}

func TestServerNilSinkPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Errorf("framed_test: Start with nil Sink expected: panic\n")
		}
	}()
	srv := &framed.Server{Addr: "127.0.0.1"}
	srv.Start()
}
