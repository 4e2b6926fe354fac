package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/browser/memory"
	"github.com/tabcurator/tabcurator/internal/config"
	"github.com/tabcurator/tabcurator/internal/daemon"
)

type HostComponent struct {
	cfg  *config.Config
	host *memory.Host
}

func NewHostComponent(cfg *config.Config) *HostComponent {
	return &HostComponent{cfg: cfg}
}

func (h *HostComponent) Name() string {
	return "Host"
}

func (h *HostComponent) Dependencies() []string {
	return nil
}

func (h *HostComponent) Init(ctx context.Context) error {
	opts := []memory.Option{
		memory.WithStoragePath(h.cfg.Host.StoragePath),
		memory.WithEventBuffer(h.cfg.Host.EventBufferSize),
	}
	if !h.cfg.Host.DiscardCapable {
		opts = append(opts, memory.WithoutDiscard())
	}

	host, err := memory.NewHost(opts...)
	if err != nil {
		return fmt.Errorf("failed to create browser host: %w", err)
	}
	h.host = host

	slog.Info("Browser host initialized", "component", h.Name(), "storage", h.cfg.Host.StoragePath)
	return nil
}

func (h *HostComponent) Start(ctx context.Context) error {
	if h.host == nil {
		return fmt.Errorf("host not initialized")
	}
	return nil
}

func (h *HostComponent) Stop(ctx context.Context) error {
	if h.host == nil {
		return nil
	}
	h.host.Close()
	slog.Info("Browser host stopped", "component", h.Name())
	return nil
}

func (h *HostComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if h.host == nil {
		return &daemon.ComponentHealth{Name: h.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: h.Name(), Healthy: true}, nil
}

func (h *HostComponent) GetHost() *memory.Host {
	return h.host
}
