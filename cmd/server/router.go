package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/caderno-api/internal/api"
	apiMiddleware "github.com/phrazzld/caderno-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.RequestLogger(app.logger))

	generationHandler := api.NewGenerationHandler(app.generator, app.generator, app.logger)
	storageHandler := api.NewStorageHandler(app.store, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", generationHandler.Generate)

		r.Get("/credential", generationHandler.GetCredentialStatus)
		r.Put("/credential", generationHandler.SetCredential)
		r.Post("/credential/validate", generationHandler.ValidateCredential)

		r.Route("/storage", func(r chi.Router) {
			r.Get("/", storageHandler.Info)
			r.Delete("/", storageHandler.Clear)
			r.Get("/export", storageHandler.Export)
			r.Post("/import", storageHandler.Import)
			r.Get("/{key}", storageHandler.GetItem)
			r.Put("/{key}", storageHandler.PutItem)
			r.Delete("/{key}", storageHandler.DeleteItem)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
