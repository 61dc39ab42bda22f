package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/wsnotify/internal/handler/relay"
	relayService "github.com/zhouzirui/wsnotify/internal/service/relay"
	"github.com/zhouzirui/wsnotify/pkg/utils"
)

// NewRouter wires HTTP routes to the relay hub. gatherer may be nil to
// leave /metrics unmounted.
func NewRouter(hub *relayService.Hub, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	relayHandler := relay.New(hub)
	relayHandler.RegisterRoutes(r)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})

	return r
}
