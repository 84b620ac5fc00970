package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/protocol-chat/notify-backend/internal/handlers"
)

// Handlers bundles the HTTP surfaces wired by SetupRoutes.
type Handlers struct {
	Registrar *handlers.Registrar
	Presence  *handlers.PresenceGateway
	Tester    *handlers.PushTester
}

// SetupRoutes mounts all routes. The test-push route group is CORS-open so
// operators can call it from anywhere; everything else inherits the
// origin-checked CORS middleware installed in main.
func SetupRoutes(r *chi.Mux, h Handlers, testPushMiddleware ...func(http.Handler) http.Handler) {
	// Push token registration (server-side write path of client registration)
	r.Post("/api/push/register", h.Registrar.Register)
	r.Post("/api/push/unregister", h.Registrar.Unregister)

	// WebSocket endpoint for realtime presence reporting
	r.Get("/ws/presence", h.Presence.PresenceWebSocket)

	// Diagnostic test push (CORS-open, rate limited)
	r.Group(func(g chi.Router) {
		g.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		for _, mw := range testPushMiddleware {
			g.Use(mw)
		}
		g.Get("/api/push/test", h.Tester.SendTestPush)
		g.Post("/api/push/test", h.Tester.SendTestPush)
	})
}
