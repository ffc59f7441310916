package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DoyleJ11/fanwars-backend/internal/ws"
)

func SetupRoutes(d ws.Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/rooms", Rooms(d.Hub))
	r.Get("/ws", ws.Handler(d))
	return r
}
