package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты ops API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Health и metrics — без логирования запросов
	mux.Handle("GET /healthz", Recovery(h.logger)(http.HandlerFunc(h.Health)))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Posts
	if h.posts != nil {
		mux.Handle("GET /api/v1/posts/{id}/publishing", chain(http.HandlerFunc(h.GetPublishingSummary)))
	}
}

// NewMux создаёт ServeMux с маршрутами Handler.
func (h *Handler) NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}
