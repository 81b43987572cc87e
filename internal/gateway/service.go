package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/blockduel/blockduel/internal/auth"
	"github.com/blockduel/blockduel/internal/room"
	"github.com/blockduel/blockduel/internal/scorequeue"
	"github.com/blockduel/blockduel/internal/timer"
)

// Config holds gateway service configuration.
type Config struct {
	Connection    ConnectionConfig
	BeforeGameSec int
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Connection:    DefaultConnectionConfig(),
		BeforeGameSec: DefaultBeforeGameSec,
	}
}

// Service assembles the session stack: connection manager, admission
// handler, and the coordinator with its per-room registries.
type Service struct {
	manager     *ConnectionManager
	coordinator *Coordinator
	handler     *Handler
}

// NewService wires the gateway. relay may be nil to disable the
// broadcast mirror.
func NewService(cfg Config, repo room.Repository, verifier auth.Verifier, clock clockwork.Clock, relay Relay) *Service {
	manager := NewConnectionManager(cfg.Connection)
	coordinator := NewCoordinator(
		repo,
		manager,
		timer.NewRegistry(clock),
		scorequeue.NewRegistry(),
		cfg.BeforeGameSec,
	)
	manager.SetDispatcher(coordinator)
	if relay != nil {
		manager.SetRelay(relay)
	}

	return &Service{
		manager:     manager,
		coordinator: coordinator,
		handler:     NewHandler(verifier, repo, manager),
	}
}

// Start runs the broadcast loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.manager.Start(ctx)
}

// RegisterRoutes registers the WebSocket routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// Stats returns live connection counts per room.
func (s *Service) Stats() map[string]int {
	return s.manager.ConnectionStats()
}
