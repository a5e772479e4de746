// Package srv manages the lifecycle of long-lived app components, such as
// the MCP bridge: started in order during setup, shut down in reverse on
// exit.
package srv

import (
	"context"

	"github.com/sauruslabs/osseus/pkg/log"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Group tracks started services for ordered shutdown.
type Group struct {
	services []Service
}

// Start starts the service and registers it for shutdown. A start failure
// is returned to the caller; already-started services stay registered.
func (g *Group) Start(ctx context.Context, s Service) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	g.services = append(g.services, s)
	return nil
}

// Shutdown stops every registered service in reverse start order. Failures
// are logged, not returned; one bad shutdown must not block the rest.
func (g *Group) Shutdown(ctx context.Context) {
	logger := log.FromCtx(ctx)
	for i := len(g.services) - 1; i >= 0; i-- {
		if err := g.services[i].Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msgf("%T failed to shutdown", g.services[i])
		}
	}
	g.services = nil
}
