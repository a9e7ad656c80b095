package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sandevgo/tutorbot/pkg/log"
)

// Server exposes the assistant pipeline over HTTP. It implements
// srv.Service so the process lifecycle owns it.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler *Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func newRouter(handler *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/assistant", func(r chi.Router) {
		r.Post("/chat", handler.Chat)
		r.Get("/sessions/{sessionID}", handler.SessionInfo)
		r.Delete("/sessions/{sessionID}", handler.ClearSession)
	})

	// Called by the platform when course content for a day changes.
	r.Post("/internal/assistant/cache/invalidate", handler.InvalidateCache)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.srv.Addr).Msg("starting http api")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
