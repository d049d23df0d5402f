package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"routekeeper/internal/api"
	"routekeeper/internal/config"
	"routekeeper/internal/logging"
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	app      *fiber.App
	listener net.Listener
	done     chan struct{}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	app := api.New(api.Deps{Engine: d.engine, Push: d.push, Sessions: d.sessions, Stop: d.StopTracking}, api.Options{
		Token:  cfg.Paths.APIToken,
		Export: cfg.Export,
		Logger: logger,
	})
	return &apiServer{bind: bind, logger: logger, app: app}
}

func (s *apiServer) start() error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.app.Listener(listener); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "fixes posted over HTTP are not received"),
			)
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.listener == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	s.listener = nil
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
