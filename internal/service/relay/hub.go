package relay

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/wsnotify/internal/metrics"
	model "github.com/zhouzirui/wsnotify/internal/model/notify"
)

// ErrHubStopped is returned by Serve once the hub has shut down.
var ErrHubStopped = errors.New("relay hub stopped")

// Options 中继配置选项
type Options struct {
	Welcome        string        // 欢迎消息内容
	BroadcastRate  float64       // 每个连接每秒允许的广播数
	BroadcastBurst int           // 广播突发量
	SendBuffer     int           // 每个连接的发送队列长度
	WriteTimeout   time.Duration // 写入超时时间
	PongTimeout    time.Duration // 读取超时时间
	PingInterval   time.Duration // Ping间隔
}

// DefaultOptions 默认中继选项
func DefaultOptions() Options {
	return Options{
		Welcome:        "Welcome to the notification relay",
		BroadcastRate:  5,
		BroadcastBurst: 10,
		SendBuffer:     32,
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

type inboundFrame struct {
	peer *Peer
	data []byte
}

// Hub relays broadcast frames between connected peers. All peer
// bookkeeping happens on the goroutine running Run.
type Hub struct {
	opts    Options
	metrics *metrics.RelayMetrics

	register   chan *Peer
	unregister chan *Peer
	inbound    chan inboundFrame
	done       chan struct{}

	peers map[string]*Peer
	count atomic.Int64
}

// NewHub creates a hub. m may be nil.
func NewHub(opts Options, m *metrics.RelayMetrics) *Hub {
	defaults := DefaultOptions()
	if opts.SendBuffer < 1 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaults.PongTimeout
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongTimeout {
		opts.PingInterval = opts.PongTimeout * 9 / 10
	}
	if opts.BroadcastBurst < 1 {
		opts.BroadcastBurst = 1
	}

	return &Hub{
		opts:       opts,
		metrics:    m,
		register:   make(chan *Peer),
		unregister: make(chan *Peer, 16),
		inbound:    make(chan inboundFrame, 64),
		done:       make(chan struct{}),
		peers:      make(map[string]*Peer),
	}
}

// Peers reports the number of registered peers.
func (h *Hub) Peers() int {
	return int(h.count.Load())
}

// Serve registers conn as a peer and blocks until it disconnects.
func (h *Hub) Serve(conn *websocket.Conn) error {
	limit := rate.Inf
	if h.opts.BroadcastRate > 0 {
		limit = rate.Limit(h.opts.BroadcastRate)
	}

	p := &Peer{
		ID:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBuffer),
		limiter: rate.NewLimiter(limit, h.opts.BroadcastBurst),
	}

	// register is unbuffered so a stopped hub can never accept a peer
	select {
	case h.register <- p:
	case <-h.done:
		conn.Close()
		return ErrHubStopped
	}

	go h.writePump(p)
	h.readPump(p)
	return nil
}

// Run owns the peer set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Println("[relay] hub is running")

	for {
		select {
		case p := <-h.register:
			h.onRegister(p)

		case p := <-h.unregister:
			h.remove(p)

		case in := <-h.inbound:
			h.onFrame(in)

		case <-ctx.Done():
			log.Println("[relay] hub shutting down")
			for _, p := range h.peers {
				h.remove(p)
			}
			close(h.done)
			return
		}
	}
}

func (h *Hub) onRegister(p *Peer) {
	h.peers[p.ID] = p
	h.count.Add(1)
	if h.metrics != nil {
		h.metrics.ActivePeers.Inc()
	}
	log.Printf("[relay] peer connected: %s", p.ID)

	welcome, err := model.Message{Type: model.TypeWelcome, Content: h.opts.Welcome}.Encode()
	if err != nil {
		log.Printf("[relay] encode welcome failed: %v", err)
		return
	}
	h.enqueue(p, welcome)
}

func (h *Hub) onFrame(in inboundFrame) {
	if _, ok := h.peers[in.peer.ID]; !ok {
		return
	}

	msg, err := model.Parse(in.data)
	if err != nil {
		log.Printf("[relay] malformed frame from peer=%s: %q", in.peer.ID, in.data)
		h.dropped(metrics.ReasonMalformed)
		return
	}

	if msg.Type != model.TypeBroadcast {
		log.Printf("[relay] unsupported message type %q from peer=%s", msg.Type, in.peer.ID)
		h.dropped(metrics.ReasonUnknown)
		return
	}

	if !in.peer.limiter.Allow() {
		log.Printf("[relay] broadcast rate exceeded peer=%s", in.peer.ID)
		h.dropped(metrics.ReasonRateLimited)
		return
	}

	out, err := model.Message{Type: model.TypeBroadcast, Content: msg.Content}.Encode()
	if err != nil {
		log.Printf("[relay] encode broadcast failed: %v", err)
		return
	}

	log.Printf("[relay] relaying broadcast from peer=%s to %d peers", in.peer.ID, len(h.peers))
	for _, p := range h.peers {
		h.enqueue(p, out)
	}
	if h.metrics != nil {
		h.metrics.BroadcastsRelayed.Inc()
	}
}

// enqueue drops peers whose send queue is full.
func (h *Hub) enqueue(p *Peer, frame []byte) {
	select {
	case p.send <- frame:
	default:
		log.Printf("[relay] peer %s is too slow, disconnecting", p.ID)
		h.remove(p)
	}
}

func (h *Hub) remove(p *Peer) {
	if _, ok := h.peers[p.ID]; !ok {
		return
	}
	delete(h.peers, p.ID)
	close(p.send)
	h.count.Add(-1)
	if h.metrics != nil {
		h.metrics.ActivePeers.Dec()
	}
	log.Printf("[relay] peer disconnected: %s", p.ID)
}

func (h *Hub) dropped(reason string) {
	if h.metrics != nil {
		h.metrics.FramesDropped.WithLabelValues(reason).Inc()
	}
}
