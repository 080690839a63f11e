package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vrewcraft/backend/internal/engine"
	"github.com/vrewcraft/backend/internal/journal"
	"github.com/vrewcraft/backend/internal/media"
	"github.com/vrewcraft/backend/internal/metrics"
	"github.com/vrewcraft/backend/internal/progress"
	"github.com/vrewcraft/backend/internal/store"
)

// OperationService is the inbound contract the routing layer holds on the
// operation engine.
type OperationService interface {
	Submit(ctx context.Context, req engine.Request) (*engine.Result, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	PublicPrefix   string
	MaxUploadBytes int64
	PingInterval   time.Duration
	Store          *store.Store
	Engine         OperationService
	Prober         media.Prober
	Doctor         *media.Doctor
	Hub            *progress.Hub
	Journal        journal.Repository
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
