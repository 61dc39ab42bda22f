package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of the handler's connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn is the subset of *websocket.Conn the handler relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Options 连接配置选项
type Options struct {
	HandshakeTimeout time.Duration // 握手超时时间
	WriteTimeout     time.Duration // 写入超时时间
	EventBuffer      int           // 入站事件缓冲
}

// DefaultOptions 默认连接选项
func DefaultOptions() *Options {
	return &Options{
		HandshakeTimeout: 45 * time.Second,
		WriteTimeout:     10 * time.Second,
		EventBuffer:      64,
	}
}

// EndpointURL builds the notification endpoint for host, using wss when secure.
func EndpointURL(host string, secure bool) string {
	scheme := "ws://"
	if secure {
		scheme = "wss://"
	}
	return scheme + host + "/connect"
}

// WebSocketDialer returns a DialFunc backed by gorilla's dialer.
func WebSocketDialer(options *Options) DialFunc {
	if options == nil {
		options = DefaultOptions()
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: options.HandshakeTimeout,
	}

	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial failed: %w", err)
		}
		return conn, nil
	}
}
