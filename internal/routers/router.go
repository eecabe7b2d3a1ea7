package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"prompter/internal/api"
	"prompter/internal/metrics"
	"prompter/internal/presence"
	"prompter/internal/session"
	"prompter/internal/utils"
)

func New(log *utils.Logger, registry *session.Registry, pub *presence.Publisher) http.Handler {
	h := api.NewHandlers(log, registry, pub)
	r := chi.NewRouter()

	// rooms are shared by link, so the API is origin-open
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/v1/healthz", h.Health)

	r.Post("/api/v1/rooms", h.CreateRoom)
	r.Get("/api/v1/rooms/{id}", h.GetRoom)
	r.Get("/api/v1/viewer/{viewerId}", h.ResolveViewer)

	r.Get("/ws/room/{id}", h.RoomWS)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
