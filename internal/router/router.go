package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"portfolio-backend/internal/handlers"
	"portfolio-backend/internal/metrics"
	"portfolio-backend/internal/middleware"
	"portfolio-backend/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	chatLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {

		// ──── Chat Routes (public) ────
		r.Route("/chat", func(r chi.Router) {
			r.With(chatLimiter.Middleware).Post("/", chatHandler.SendMessage)
			r.Get("/history", chatHandler.History)

			// ──── WebSocket ────
			if wsHub != nil {
				r.Get("/ws", wsHub.HandleWebSocket)
			}
		})
	})

	return r
}
