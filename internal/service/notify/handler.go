package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	model "github.com/zhouzirui/wsnotify/internal/model/notify"
)

var (
	ErrNotConnected     = errors.New("connection is not open")
	ErrAlreadyConnected = errors.New("connection already attempted")
)

type eventKind int

const (
	eventFrame eventKind = iota
	eventError
	eventClose
)

type event struct {
	kind eventKind
	data []byte
	err  error
}

// Handler owns a single connection to a notification endpoint and
// reports its lifecycle to a Log.
type Handler struct {
	log     Log
	dial    DialFunc
	options *Options

	mu      sync.RWMutex
	state   State
	conn    Conn
	url     string
	closing bool

	writeMu sync.Mutex
	events  chan event
	done    chan struct{}
}

// NewHandler creates a handler writing to sink. A nil dial uses the
// gorilla dialer configured from options.
func NewHandler(sink Log, dial DialFunc, options *Options) *Handler {
	if options == nil {
		options = DefaultOptions()
	}
	if dial == nil {
		dial = WebSocketDialer(options)
	}
	buffer := options.EventBuffer
	if buffer < 1 {
		buffer = 1
	}

	return &Handler{
		log:     sink,
		dial:    dial,
		options: options,
		state:   StateConnecting,
		events:  make(chan event, buffer),
		done:    make(chan struct{}),
	}
}

// State reports the current connection state.
func (h *Handler) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// URL returns the endpoint passed to Connect.
func (h *Handler) URL() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.url
}

// Connect dials url. A handler connects at most once.
func (h *Handler) Connect(ctx context.Context, url string) error {
	h.mu.Lock()
	if h.state != StateConnecting || h.url != "" {
		h.mu.Unlock()
		return ErrAlreadyConnected
	}
	h.url = url
	h.mu.Unlock()

	conn, err := h.dial(ctx, url)
	if err != nil {
		h.setState(StateFailed)
		h.onError(err)
		return fmt.Errorf("connect %s: %w", url, err)
	}

	h.mu.Lock()
	h.conn = conn
	h.state = StateOpen
	h.mu.Unlock()

	h.onOpen(url)
	go h.readPump(conn)
	return nil
}

// Run dispatches inbound events until the connection closes. Cancelling
// ctx closes the connection; Run still returns only after the close
// notice has been logged.
func (h *Handler) Run(ctx context.Context) error {
	if h.State() != StateOpen {
		return ErrNotConnected
	}

	cancelled := ctx.Done()
	for {
		select {
		case <-cancelled:
			cancelled = nil
			h.shutdown()
		case ev := <-h.events:
			switch ev.kind {
			case eventFrame:
				h.onMessage(ev.data)
			case eventError:
				h.onError(ev.err)
			case eventClose:
				h.onClose()
				close(h.done)
				return nil
			}
		}
	}
}

// SendBroadcast transmits the fixed broadcast message.
func (h *Handler) SendBroadcast() error {
	h.mu.RLock()
	conn, state, closing := h.conn, h.state, h.closing
	h.mu.RUnlock()
	if state != StateOpen || conn == nil || closing {
		return ErrNotConnected
	}

	payload, err := model.NewBroadcast().Encode()
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}

	if err := h.write(conn, websocket.TextMessage, payload); err != nil {
		h.onError(err)
		return fmt.Errorf("send broadcast: %w", err)
	}

	h.log.Append("Sent broadcast message: " + string(payload))
	return nil
}

// Close starts a normal closure. The close notice is logged by Run once
// the peer acknowledges or the socket drops.
func (h *Handler) Close() error {
	h.mu.Lock()
	conn, state := h.conn, h.state
	if state != StateOpen || conn == nil {
		h.mu.Unlock()
		return ErrNotConnected
	}
	h.closing = true
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := h.write(conn, websocket.CloseMessage, msg); err != nil {
		return conn.Close()
	}
	return nil
}

// Done is closed once Run has processed the close event.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) shutdown() {
	if err := h.Close(); err != nil {
		return
	}
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	// the close frame is already queued; drop the socket so the read pump exits
	_ = conn.Close()
}

func (h *Handler) write(conn Conn, messageType int, data []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.options.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.options.WriteTimeout))
	}
	return conn.WriteMessage(messageType, data)
}

func (h *Handler) readPump(conn Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			h.mu.RLock()
			closing := h.closing
			h.mu.RUnlock()
			if !closing && !isCleanClose(err) {
				h.events <- event{kind: eventError, err: err}
			}
			h.events <- event{kind: eventClose}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}
		h.events <- event{kind: eventFrame, data: data}
	}
}

// isCleanClose reports a close frame with a normal status. An abrupt drop
// surfaces from gorilla as CloseAbnormalClosure and is an error.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	}
	return false
}

func (h *Handler) setState(state State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

func (h *Handler) onOpen(url string) {
	h.log.Append("Connected to " + url)
}

func (h *Handler) onMessage(raw []byte) {
	msg, err := model.Parse(raw)
	if err != nil {
		h.log.Append("Failed to parse message: " + string(raw))
		return
	}

	if msg.Type == model.TypeWelcome {
		h.log.Append("Server says: " + msg.Content)
		return
	}
	h.log.Append("Unknown message: " + string(raw))
}

func (h *Handler) onError(err error) {
	h.log.Append(fmt.Sprintf("Error: %v", err))
}

func (h *Handler) onClose() {
	h.setState(StateClosed)
	h.log.Append("Connection closed")
}
