package service

import (
	"context"
	"fmt"

	"github.com/tendermint/chainsync/libs/log"
)

// Group starts its members in order and stops them in reverse order.
type Group struct {
	*BaseService
	logger   log.Logger
	services []Service
}

// NewGroup creates a Group that owns the given services.
func NewGroup(logger log.Logger, name string, services ...Service) *Group {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	g := &Group{
		logger:   logger,
		services: services,
	}
	g.BaseService = NewBaseService(logger, name, g)
	return g
}

func (g *Group) OnStart(ctx context.Context) error {
	for idx, srv := range g.services {
		if err := srv.Start(ctx); err != nil {
			g.stopFirst(idx)
			return fmt.Errorf("starting %s: %w", srv, err)
		}
	}
	return nil
}

func (g *Group) OnStop() { g.stopFirst(len(g.services)) }

func (g *Group) stopFirst(n int) {
	for idx := n - 1; idx >= 0; idx-- {
		srv := g.services[idx]
		if !srv.IsRunning() {
			continue
		}
		if err := srv.Stop(); err != nil {
			g.logger.Error(
				fmt.Sprintf("problem stopping service %d of %d", idx+1, len(g.services)),
				"service", srv.String(),
				"err", err)
		}
	}
}
