package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging, h.withTimeout, h.resolveActor)

	// authentication
	router.Post("/auth/login", h.login)
	router.Post("/auth/register", h.register)

	// peer synchronization
	router.Route("/sync", func(r chi.Router) {
		r.Get("/register", h.syncRegister)
		r.Get("/pull", h.syncPull)
		r.Post("/push", h.syncPush)
	})

	// resource dispatcher
	router.Route("/{prefix}/{name}", func(r chi.Router) {
		r.Get("/", h.listResource)
		r.Post("/", h.createResource)
		r.Get("/{id}", h.readResource)
		r.Put("/{id}", h.updateResource)
		r.Delete("/{id}", h.deleteResource)
		r.Get("/{id}/{component}", h.listComponent)
		r.Get("/{id}/{component}/{cid}", h.readComponentRecord)
	})

	return router
}
