package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/reviewguard/internal/api/handlers"
	"github.com/nikhilbhutani/reviewguard/internal/api/middleware"
	"github.com/nikhilbhutani/reviewguard/internal/auth"
)

// Deps are the collaborators the HTTP layer delegates to.
type Deps struct {
	Blobs     handlers.Blobs
	Registry  handlers.Registry
	Results   handlers.Results
	Processor handlers.Processor
	Checks    map[string]handlers.Check

	// JWTSecret enables bearer auth on the upload routes when set.
	JWTSecret      string
	AllowedOrigins []string
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.deps.AllowedOrigins))

	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/", health.Index)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	uploads := handlers.NewUploadHandler(rt.deps.Blobs, rt.deps.Registry, rt.deps.Results, rt.deps.Processor)
	r.Group(func(r chi.Router) {
		if rt.deps.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.deps.JWTSecret).Authenticate)
		}

		r.Post("/upload-to-gcs", uploads.Upload)
		r.Get("/process/{id}", uploads.Process)
		r.Get("/status/", uploads.Status)
		r.Get("/status/{id}", uploads.Status)
	})

	return r
}
