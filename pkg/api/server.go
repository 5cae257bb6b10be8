// Package api serves a wear-levelled store over REST.
//
// @title           Wear-levelled record store API
// @version         1.0.0
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

// NewRouter wires all routes. metricsHandler is mounted unprotected at
// /metrics when not nil.
func NewRouter(server *Server, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Base-Address"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	instrument := func(method, endpoint string, h http.HandlerFunc) http.HandlerFunc {
		if server.metrics == nil {
			return h
		}
		return server.metrics.InstrumentHandler(method, endpoint, h)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Liveness probes carry no key
		r.Get("/health", instrument("GET", "/api/v1/health", server.handleHealth))

		auth := apiKeyMiddleware(server.config.APIKey)
		if server.metrics != nil {
			auth = server.metrics.InstrumentAuthMiddleware(auth)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/status", instrument("GET", "/api/v1/status", server.handleStatus))

			r.Get("/record", instrument("GET", "/api/v1/record", server.handleGetRecord))
			r.Put("/record", instrument("PUT", "/api/v1/record", server.handlePutRecord))
			r.Get("/record/raw", instrument("GET", "/api/v1/record/raw", server.handleGetRawRecord))
			r.Get("/verify", instrument("GET", "/api/v1/verify", server.handleVerify))
			r.Post("/format", instrument("POST", "/api/v1/format", server.handleFormat))

			r.Get("/wear", instrument("GET", "/api/v1/wear", server.handleWear))
		})
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/doc.json", handleSwaggerDoc)

	return r
}

// StartServer serves store until ctx is cancelled
func StartServer(ctx context.Context, store IWearLevelStore, wear WearReporter, config ServerConfig) error {
	metrics := NewMetrics(prometheus.DefaultRegisterer)
	metrics.UpdateStoreStats(store.BaseAddress(), store.Stats())

	server := NewServer(store, wear, config, metrics)

	SwaggerInfo.Host = fmt.Sprintf("%s:%d", config.Bind, config.Port)

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server, promhttp.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting wear-levelling REST API server on %s", addr)
		log.Printf("Metrics available at: http://%s/metrics", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("Shutting down server")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		log.Printf("Error generating swagger doc: %v", err)
		http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
