// Package httpapi serves the operational HTTP surface: health, the public
// verification key and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// KeySource exposes the public half of the signing key.
type KeySource interface {
	PublicKeyPEM() []byte
	KeyFingerprint() string
}

type healthResponse struct {
	Detail string `json:"detail"`
}

// NewRouter mounts /auth/health, /auth/public-key and, when metrics is
// non-nil, /metrics.
func NewRouter(keys KeySource, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/health", getHealth)
		r.Get("/public-key", publicKeyHandler(keys))
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

func getHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Detail: "OK"})
}

func publicKeyHandler(keys KeySource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		pem := keys.PublicKeyPEM()
		if len(pem) == 0 {
			http.Error(w, "public key not loaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Key-Fingerprint", keys.KeyFingerprint())
		_, _ = w.Write(pem)
	}
}

// Server runs the ops router until its context is cancelled.
type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

func NewServer(addr string, h http.Handler, l logging.Logger) *Server {
	return &Server{address: addr, handler: h, logger: l.With("module", "http_server")}
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
