package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/config"
	"github.com/tabcurator/tabcurator/internal/daemon"
	"github.com/tabcurator/tabcurator/internal/settings"
	"github.com/tabcurator/tabcurator/internal/state"
)

// StateComponent owns the store and the settings service, and rehydrates
// archives and sessions from the host storage area before the store starts.
type StateComponent struct {
	cfg      *config.Config
	hostComp *HostComponent
	store    *state.Store
	settings *settings.Service
}

func NewStateComponent(cfg *config.Config, hostComp *HostComponent) *StateComponent {
	return &StateComponent{cfg: cfg, hostComp: hostComp}
}

func (s *StateComponent) Name() string {
	return "State"
}

func (s *StateComponent) Dependencies() []string {
	return []string{"Host"}
}

func (s *StateComponent) Init(ctx context.Context) error {
	if s.hostComp == nil || s.hostComp.GetHost() == nil {
		return fmt.Errorf("host not initialized")
	}
	host := s.hostComp.GetHost()

	s.settings = settings.NewService(host.Storage(), settings.Defaults{
		InactiveThreshold: s.cfg.Curator.InactiveThresholdMinutes,
		TabLimit:          s.cfg.Curator.TabLimit,
	})
	s.store = state.NewStore()

	archived, err := s.settings.LoadArchive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted archive: %w", err)
	}
	sessions, err := s.settings.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted sessions: %w", err)
	}
	if err := s.store.Hydrate(archived, sessions); err != nil {
		return fmt.Errorf("failed to hydrate store: %w", err)
	}

	slog.Info("State store initialized", "component", s.Name(),
		"archived_tags", len(archived), "sessions", len(sessions))
	return nil
}

func (s *StateComponent) Start(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store not initialized")
	}
	return s.store.Start(ctx)
}

func (s *StateComponent) Stop(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Stop(ctx)
}

func (s *StateComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if s.store == nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if _, err := s.store.GetState(); err != nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *StateComponent) GetStore() *state.Store {
	return s.store
}

func (s *StateComponent) GetSettings() *settings.Service {
	return s.settings
}
