package relay

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	relayService "github.com/zhouzirui/wsnotify/internal/service/relay"
	"github.com/zhouzirui/wsnotify/pkg/utils"
)

// Handler 中继服务的HTTP处理器
type Handler struct {
	hub      *relayService.Hub
	upgrader websocket.Upgrader
}

// New 创建中继处理器
func New(hub *relayService.Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册中继相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/connect", h.handleConnect)
	r.Get("/healthz", h.handleHealth)
}

// handleConnect 升级为WebSocket并交给hub
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[connect] upgrade failed: %v", err)
		return
	}

	log.Printf("[connect] new connection from %s", r.RemoteAddr)
	if err := h.hub.Serve(conn); err != nil {
		log.Printf("[connect] %v", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"peers":  h.hub.Peers(),
	})
}
