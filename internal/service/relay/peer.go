package relay

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const maxFrameSize = 4096

// Peer is one connected client of the relay.
type Peer struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// readPump forwards text frames to the hub until the socket fails.
func (h *Hub) readPump(p *Peer) {
	defer func() {
		select {
		case h.unregister <- p:
		case <-h.done:
		}
	}()

	p.conn.SetReadLimit(maxFrameSize)
	p.conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		return nil
	})

	for {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[relay] read error peer=%s: %v", p.ID, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case h.inbound <- inboundFrame{peer: p, data: data}:
		case <-h.done:
			return
		}
	}
}

// writePump drains the send queue; a closed queue ends the connection.
func (h *Hub) writePump(p *Peer) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[relay] write error peer=%s: %v", p.ID, err)
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
