// Package api serves the worker's operational HTTP endpoints: Prometheus
// metrics and a health check.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// NewRouter creates a chi.Mux serving /metrics and /healthz.
func NewRouter(src StatusSource, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(accessLog(src, log))

	r.Get("/healthz", HealthzHandler(src))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// accessLog logs each request at debug level together with the consumer's
// received count, so a scrape log shows whether the worker is making progress.
func accessLog(src StatusSource, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Uint64("received", src.Stats().Received).
				Bool("printer", src.PrinterPresent()).
				Msg("request completed")
		})
	}
}

// Serve listens on addr until ctx is canceled, then shuts the server down.
// It returns nil after a clean shutdown.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
		return err
	}
	log.Info().Msg("metrics server stopped")
	return nil
}
