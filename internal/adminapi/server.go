package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"github.com/virtrpcd/virtrpcd/internal/logger"
)

// Config controls the admin API's bind address and the secret used to sign
// its session tokens, mirroring config.AdminAPIConfig.
type Config struct {
	Address   string
	JWTSecret string
}

// Server wraps an http.Server exposing the admin surface: a sync.Once
// guarded Stop and a context-driven Start/Stop pair.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// NewServer builds a Server bound to cfg.Address. store backs user CRUD and
// login; sessions reports currently open RPC connections.
func NewServer(cfg Config, store credstore.Store, sessions sessionLister) (*Server, error) {
	jwt, err := newJWTService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("admin API jwt secret: %w", err)
	}

	router := newRouter(jwt, store, sessions)

	return &Server{
		addr: cfg.Address,
		server: &http.Server{
			Addr:         cfg.Address,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Start serves the admin API until ctx is cancelled, then shuts down
// gracefully and returns Stop's result. If the listener fails first, it
// returns that error instead.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "address", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("admin API server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("admin API shutdown error: %w", err)
			logger.Error("admin API shutdown error", "error", err)
			return
		}
		logger.Info("admin API stopped gracefully")
	})
	return shutdownErr
}
