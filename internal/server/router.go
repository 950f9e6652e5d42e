package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the full HTTP surface.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(a.recoverer)
	r.Use(a.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.Health)
		r.Get("/health/ready", a.Ready)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", a.Login)
			r.Post("/verify", a.Verify)
			r.With(a.RequireAuth).Post("/logout", a.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.RequireAuth)

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", a.ListClients)
				r.Post("/", a.CreateClient)
				r.Delete("/{name}", a.RevokeClient)
				r.Post("/{name}/renew", a.RenewClient)
				r.Get("/{name}/config", a.DownloadConfig)
				r.Post("/{name}/disconnect", a.DisconnectClient)
				r.Post("/{name}/delete", a.DeleteClient)
			})

			r.Route("/server", func(r chi.Router) {
				r.Get("/status", a.ServerStatus)
				r.Post("/renew", a.RenewServer)
				r.Get("/info", a.ServerInfo)
				r.Get("/connections", a.Connections)
			})

			r.Get("/audit", a.ListAudit)
		})
	})

	if a.PublicMetrics {
		r.Get("/metrics", a.handleMetrics)
	} else {
		r.With(a.RequireAuth).Get("/metrics", a.handleMetrics)
	}
	return r
}
