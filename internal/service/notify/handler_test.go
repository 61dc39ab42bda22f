package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	model "github.com/zhouzirui/wsnotify/internal/model/notify"
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []string
	types   []int
	readErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.frames:
		if !ok {
			c.mu.Lock()
			err := c.readErr
			c.mu.Unlock()
			if err == nil {
				err = &websocket.CloseError{Code: websocket.CloseNormalClosure}
			}
			return 0, nil, err
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, messageType)
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) textFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for i, typ := range c.types {
		if typ == websocket.TextMessage {
			out = append(out, c.written[i])
		}
	}
	return out
}

func connectFake(t *testing.T) (*Handler, *fakeConn, *MemoryLog) {
	t.Helper()
	conn := newFakeConn()
	sink := NewMemoryLog()
	dial := func(context.Context, string) (Conn, error) { return conn, nil }

	h := NewHandler(sink, dial, nil)
	if err := h.Connect(context.Background(), "ws://example.test/connect"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	return h, conn, sink
}

// runUntilClosed feeds frames, closes the peer side and waits for Run.
func runUntilClosed(t *testing.T, h *Handler, conn *fakeConn, frames ...string) {
	t.Helper()
	for _, f := range frames {
		conn.frames <- []byte(f)
	}
	close(conn.frames)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run err: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestConnectLogsEndpoint(t *testing.T) {
	h, _, sink := connectFake(t)

	if h.State() != StateOpen {
		t.Fatalf("expected open, got %s", h.State())
	}
	lines := sink.Lines()
	if len(lines) != 1 || lines[0] != "Connected to ws://example.test/connect" {
		t.Fatalf("unexpected log: %q", lines)
	}
}

func TestDispatchScenarios(t *testing.T) {
	h, conn, sink := connectFake(t)

	runUntilClosed(t, h, conn,
		`{"type":"welcome","content":"hi"}`,
		`not json`,
		`{"type":"ping"}`,
	)

	want := []string{
		"Connected to ws://example.test/connect",
		"Server says: hi",
		"Failed to parse message: not json",
		`Unknown message: {"type":"ping"}`,
		"Connection closed",
	}
	got := sink.Lines()
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, got[i], want[i])
		}
	}
	if h.State() != StateClosed {
		t.Fatalf("expected closed, got %s", h.State())
	}
}

func TestWelcomeContentAppearsOnce(t *testing.T) {
	contents := []string{"", "hello world", "Server says", `quoted "text"`, "多语言"}
	for _, content := range contents {
		h, conn, sink := connectFake(t)
		frame, _ := model.Message{Type: model.TypeWelcome, Content: content}.Encode()
		runUntilClosed(t, h, conn, string(frame))

		lines := sink.Lines()
		if len(lines) != 3 {
			t.Fatalf("content %q: unexpected log %q", content, lines)
		}
		if lines[1] != "Server says: "+content {
			t.Fatalf("content %q: got %q", content, lines[1])
		}
	}
}

func TestUnknownWellFormedFrames(t *testing.T) {
	frames := []string{`{"type":"broadcast","content":"x"}`, `{}`, `[1,2,3]`, `42`, `{"type":7}`}
	for _, frame := range frames {
		h, conn, sink := connectFake(t)
		runUntilClosed(t, h, conn, frame)

		lines := sink.Lines()
		if len(lines) != 3 || lines[1] != "Unknown message: "+frame {
			t.Fatalf("frame %s: unexpected log %q", frame, lines)
		}
	}
}

func TestMalformedFramesKeepConnectionOpen(t *testing.T) {
	h, conn, sink := connectFake(t)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(context.Background()) }()

	conn.frames <- []byte("{broken")
	deadline := time.Now().Add(2 * time.Second)
	for len(sink.Lines()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("frame was not dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if h.State() != StateOpen {
		t.Fatalf("expected open after malformed frame, got %s", h.State())
	}
	if got := sink.Lines()[1]; got != "Failed to parse message: {broken" {
		t.Fatalf("unexpected line %q", got)
	}

	close(conn.frames)
	if err := <-errCh; err != nil {
		t.Fatalf("Run err: %v", err)
	}
}

func TestSendBroadcast(t *testing.T) {
	h, conn, sink := connectFake(t)

	if err := h.SendBroadcast(); err != nil {
		t.Fatalf("SendBroadcast err: %v", err)
	}

	frames := conn.textFrames()
	want := `{"type":"broadcast","content":"Hello, everyone!"}`
	if len(frames) != 1 || frames[0] != want {
		t.Fatalf("unexpected frames: %q", frames)
	}
	lines := sink.Lines()
	if len(lines) != 2 || lines[1] != "Sent broadcast message: "+want {
		t.Fatalf("unexpected log: %q", lines)
	}
}

func TestSendBroadcastNotConnected(t *testing.T) {
	sink := NewMemoryLog()
	h := NewHandler(sink, func(context.Context, string) (Conn, error) { return nil, nil }, nil)

	if err := h.SendBroadcast(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(sink.Lines()) != 0 {
		t.Fatalf("expected empty log, got %q", sink.Lines())
	}
}

func TestSendBroadcastAfterClose(t *testing.T) {
	h, conn, _ := connectFake(t)
	runUntilClosed(t, h, conn)

	if err := h.SendBroadcast(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	sink := NewMemoryLog()
	dialErr := errors.New("connection refused")
	h := NewHandler(sink, func(context.Context, string) (Conn, error) { return nil, dialErr }, nil)

	err := h.Connect(context.Background(), "ws://down.test/connect")
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
	if h.State() != StateFailed {
		t.Fatalf("expected failed, got %s", h.State())
	}
	lines := sink.Lines()
	if len(lines) != 1 || lines[0] != "Error: connection refused" {
		t.Fatalf("unexpected log: %q", lines)
	}
	if err := h.Connect(context.Background(), "ws://down.test/connect"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
	if err := h.Run(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected from Run, got %v", err)
	}
}

func TestTransportErrorLoggedBeforeClose(t *testing.T) {
	h, conn, sink := connectFake(t)
	conn.mu.Lock()
	conn.readErr = errors.New("connection reset by peer")
	conn.mu.Unlock()

	runUntilClosed(t, h, conn)

	lines := sink.Lines()
	if len(lines) != 3 {
		t.Fatalf("unexpected log: %q", lines)
	}
	if !strings.HasPrefix(lines[1], "Error: ") || !strings.Contains(lines[1], "connection reset") {
		t.Fatalf("expected error line, got %q", lines[1])
	}
	if lines[2] != "Connection closed" {
		t.Fatalf("expected close notice, got %q", lines[2])
	}
}

func TestRunCancelClosesConnection(t *testing.T) {
	h, conn, sink := connectFake(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run err: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	lines := sink.Lines()
	if lines[len(lines)-1] != "Connection closed" {
		t.Fatalf("expected close notice, got %q", lines)
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "Error:") {
			t.Fatalf("local shutdown should not log an error: %q", lines)
		}
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.types) == 0 || conn.types[0] != websocket.CloseMessage {
		t.Fatalf("expected close frame, got types %v", conn.types)
	}
}

func TestEndpointURL(t *testing.T) {
	if got := EndpointURL("localhost:8080", false); got != "ws://localhost:8080/connect" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := EndpointURL("example.com", true); got != "wss://example.com/connect" {
		t.Fatalf("unexpected url %s", got)
	}
}
