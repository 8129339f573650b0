package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/intentgraph/intentgraph/internal/config"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg  *config.Config
	app  *App
	http *http.Server
}

// New builds the application and its router. The context passed to Run
// controls shutdown.
func New(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*Server, error) {
	app, err := Build(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	s := &Server{cfg: cfg, app: app}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           Routes(ctx, app),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.RunTimeout)*time.Second + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) App() *App { return s.app }

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
