package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/config"
	"github.com/tabcurator/tabcurator/internal/daemon"
	"github.com/tabcurator/tabcurator/internal/scheduler"
)

type SchedulerComponent struct {
	cfg         *config.Config
	hostComp    *HostComponent
	stateComp   *StateComponent
	curatorComp *CuratorComponent
	channelComp *ChannelComponent
	engine      *scheduler.Engine
}

func NewSchedulerComponent(
	cfg *config.Config,
	hostComp *HostComponent,
	stateComp *StateComponent,
	curatorComp *CuratorComponent,
	channelComp *ChannelComponent,
) *SchedulerComponent {
	return &SchedulerComponent{
		cfg:         cfg,
		hostComp:    hostComp,
		stateComp:   stateComp,
		curatorComp: curatorComp,
		channelComp: channelComp,
	}
}

func (s *SchedulerComponent) Name() string {
	return "Scheduler"
}

func (s *SchedulerComponent) Dependencies() []string {
	return []string{"Host", "State", "Curator", "Channel"}
}

func (s *SchedulerComponent) Init(ctx context.Context) error {
	if s.channelComp == nil || s.channelComp.GetClient() == nil {
		return fmt.Errorf("channel not initialized")
	}
	if s.curatorComp == nil || s.curatorComp.GetAdapter() == nil {
		return fmt.Errorf("curator not initialized")
	}

	engineCfg, err := scheduler.ConfigFrom(s.cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("failed to resolve scheduler config: %w", err)
	}

	s.engine = scheduler.NewEngine(
		s.curatorComp.GetAdapter(),
		s.stateComp.GetStore(),
		s.stateComp.GetSettings(),
		s.channelComp.GetClient(),
		s.hostComp.GetHost().TabEvents(),
		engineCfg,
	)
	s.channelComp.SetSweeper(s.engine)

	slog.Info("Sweep scheduler initialized", "component", s.Name(), "schedule", engineCfg.SweepSchedule)
	return nil
}

func (s *SchedulerComponent) Start(ctx context.Context) error {
	if s.engine == nil {
		return fmt.Errorf("scheduler not initialized")
	}
	return s.engine.Start(ctx)
}

func (s *SchedulerComponent) Stop(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Stop(ctx)
}

func (s *SchedulerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if s.engine == nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *SchedulerComponent) GetEngine() *scheduler.Engine {
	return s.engine
}
