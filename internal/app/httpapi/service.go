package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/system"
	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
	"github.com/ayon178/bitgpt-backend-sub002/internal/metrics"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// Service exposes the HTTP API and fits into the system manager lifecycle,
// the same way the reference service's httpapi.Service wraps its handler in
// a middleware chain before handing it to *http.Server.
type Service struct {
	addr    string
	server  *http.Server
	handler http.Handler
	log     *logger.Logger
}

// NewService builds the HTTP Service for application, wrapping its handler
// with the metrics middleware.
func NewService(application *app.Application, cfg config.ServerConfig, rl config.RateLimitConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("http")
	}
	handler := NewHandler(application, rl, log)
	handler = metrics.InstrumentHandler(handler)
	return &Service{
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		handler: handler,
		log:     log,
	}
}

var _ system.Service = (*Service)(nil)

func (s *Service) Name() string { return "http" }

func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server error")
		}
	}()
	s.log.WithField("addr", s.addr).Info("http server started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
