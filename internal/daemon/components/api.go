package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/api"
	"github.com/tabcurator/tabcurator/internal/config"
	"github.com/tabcurator/tabcurator/internal/daemon"
)

type APIComponent struct {
	cfg         *config.Config
	channelComp *ChannelComponent
	server      *api.Server
}

func NewAPIComponent(cfg *config.Config, channelComp *ChannelComponent) *APIComponent {
	return &APIComponent{cfg: cfg, channelComp: channelComp}
}

func (a *APIComponent) Name() string {
	return "API"
}

func (a *APIComponent) Dependencies() []string {
	return []string{"Channel"}
}

func (a *APIComponent) Init(ctx context.Context) error {
	if a.channelComp == nil || a.channelComp.GetRouter() == nil {
		return fmt.Errorf("channel not initialized")
	}

	serverCfg, err := api.ConfigFrom(a.cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to resolve server config: %w", err)
	}
	a.server = api.NewServer(a.channelComp.GetRouter(), serverCfg)

	slog.Info("API server initialized", "component", a.Name(), "port", serverCfg.Port)
	return nil
}

func (a *APIComponent) Start(ctx context.Context) error {
	if a.server == nil {
		return fmt.Errorf("api server not initialized")
	}
	return a.server.Start(ctx)
}

func (a *APIComponent) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Stop(ctx)
}

func (a *APIComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if a.server == nil {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: a.Name(), Healthy: true}, nil
}
