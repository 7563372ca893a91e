package httpapi

import (
	"log/slog"
	"net/http"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/middleware"
	"github.com/go-chi/chi/v5"
)

// Handler serves the trust API of one Engine.
type Handler struct {
	engine *goTrust.Engine
	logger *slog.Logger
}

// NewHandler binds a Handler to engine. Logs go to the engine logger.
func NewHandler(engine *goTrust.Engine) *Handler {
	return &Handler{
		engine: engine,
		logger: engine.Logger().With("layer", "http"),
	}
}

// NewRouter registers the session and security routes and the middleware
// stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(handler.recoverMiddleware)
	r.Use(handler.loggingMiddleware)
	r.Use(clientMiddleware)

	r.Get("/healthz", handler.healthz)

	r.Route("/session", func(r chi.Router) {
		r.Post("/refresh", handler.refresh)
		r.Post("/validate", handler.validate)
		r.Post("/terminate", handler.terminate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(handler.engine))
			r.Post("/revoke", handler.revoke)
			r.Get("/list", handler.listSessions)
		})
	})

	r.Route("/security", func(r chi.Router) {
		r.Use(middleware.Guard(handler.engine))
		r.Get("/", handler.securityOverview)
		r.Put("/mfa-enforcement", handler.updateMfaEnforcement)
		r.Get("/step-up-check", handler.stepUpCheck)
	})

	return r
}
