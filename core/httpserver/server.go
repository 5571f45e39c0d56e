// Package httpserver runs the side listener with health and metrics endpoints.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/adboard/core/buildinfo"
	"github.com/m3rciful/adboard/core/logger"
)

// Check reports the health of one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

// Options configure NewServer.
type Options struct {
	Listen        string
	Checks        map[string]Check
	Metrics       http.Handler
	CheckTimeout  time.Duration
	ShutdownGrace time.Duration
}

// Server wraps an http.Server serving /healthz and /metrics.
type Server struct {
	srv   *http.Server
	grace time.Duration
}

type healthResponse struct {
	Status string            `json:"status"`
	Build  string            `json:"build"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter builds the chi router used by the server.
func NewRouter(opts Options) chi.Router {
	timeout := opts.CheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Build: buildinfo.String()}
		code := http.StatusOK
		if len(opts.Checks) > 0 {
			resp.Checks = make(map[string]string, len(opts.Checks))
		}
		for name, check := range opts.Checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

// NewServer returns a server bound to opts.Listen. It does not start listening.
func NewServer(opts Options) *Server {
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              opts.Listen,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		grace: grace,
	}
}

// Run listens until ctx is done, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	logger.HTTP.Info("http listening",
		slog.String("event", "http.listen"),
		slog.String("listen", ln.Addr().String()),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.HTTP.Info("http stopped", slog.String("event", "http.shutdown"))
	return nil
}
