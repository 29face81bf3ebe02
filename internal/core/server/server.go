// Package server assembles the gateway's HTTP surface.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/scene-catalog/internal/core/health"
	"github.com/mohammed-shakir/scene-catalog/internal/core/middleware"
	"github.com/mohammed-shakir/scene-catalog/internal/core/router"
)

type Options struct {
	Logger  *slog.Logger
	API     *router.Handlers
	Metrics http.Handler
	Checks  []health.Check
	// ReadyTimeout bounds all readiness checks together.
	ReadyTimeout time.Duration
}

func NewHandler(o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(o.Logger))
	r.Use(middleware.Logging(o.Logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(o.ReadyTimeout, o.Checks...))
	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics)
	}
	if o.API != nil {
		o.API.Mount(r)
	}
	return r
}

// Run serves handler on addr until ctx is cancelled, then drains for up to 10s.
func Run(ctx context.Context, addr string, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// catalog searches can take most of a minute
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
