package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/curator"
	"github.com/tabcurator/tabcurator/internal/daemon"
	"github.com/tabcurator/tabcurator/internal/tabs"
)

type CuratorComponent struct {
	hostComp  *HostComponent
	stateComp *StateComponent
	adapter   *tabs.Adapter
	service   *curator.Service
}

func NewCuratorComponent(hostComp *HostComponent, stateComp *StateComponent) *CuratorComponent {
	return &CuratorComponent{hostComp: hostComp, stateComp: stateComp}
}

func (c *CuratorComponent) Name() string {
	return "Curator"
}

func (c *CuratorComponent) Dependencies() []string {
	return []string{"Host", "State"}
}

func (c *CuratorComponent) Init(ctx context.Context) error {
	if c.hostComp == nil || c.hostComp.GetHost() == nil {
		return fmt.Errorf("host not initialized")
	}
	if c.stateComp == nil || c.stateComp.GetStore() == nil {
		return fmt.Errorf("state not initialized")
	}

	c.adapter = tabs.NewAdapter(c.hostComp.GetHost())
	c.service = curator.NewService(c.adapter, c.stateComp.GetStore(), c.stateComp.GetSettings())

	slog.Info("Curator initialized", "component", c.Name())
	return nil
}

func (c *CuratorComponent) Start(ctx context.Context) error {
	if c.service == nil {
		return fmt.Errorf("curator not initialized")
	}
	return nil
}

func (c *CuratorComponent) Stop(ctx context.Context) error {
	return nil
}

func (c *CuratorComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if c.service == nil {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *CuratorComponent) GetService() *curator.Service {
	return c.service
}

func (c *CuratorComponent) GetAdapter() *tabs.Adapter {
	return c.adapter
}
