package components

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tabcurator/tabcurator/internal/channel"
	"github.com/tabcurator/tabcurator/internal/config"
	"github.com/tabcurator/tabcurator/internal/daemon"
)

// ChannelComponent owns the message router, the receiving server and the
// reconnecting client the daemon publishes through.
type ChannelComponent struct {
	cfg         *config.Config
	curatorComp *CuratorComponent
	stateComp   *StateComponent

	router  *channel.Router
	server  *channel.Server
	client  *channel.Client
	sweeper *lazySweeper
}

func NewChannelComponent(cfg *config.Config, curatorComp *CuratorComponent, stateComp *StateComponent) *ChannelComponent {
	return &ChannelComponent{
		cfg:         cfg,
		curatorComp: curatorComp,
		stateComp:   stateComp,
		sweeper:     &lazySweeper{},
	}
}

func (c *ChannelComponent) Name() string {
	return "Channel"
}

func (c *ChannelComponent) Dependencies() []string {
	return []string{"Curator", "State"}
}

func (c *ChannelComponent) Init(ctx context.Context) error {
	if c.curatorComp == nil || c.curatorComp.GetService() == nil {
		return fmt.Errorf("curator not initialized")
	}
	if c.stateComp == nil || c.stateComp.GetStore() == nil {
		return fmt.Errorf("state not initialized")
	}

	c.router = channel.NewRouter()
	handlers := channel.Handlers{
		Curator:  c.curatorComp.GetService(),
		Store:    c.stateComp.GetStore(),
		Settings: c.stateComp.GetSettings(),
		Sweeper:  c.sweeper,
	}
	handlers.Register(c.router)

	// The prompt travels the same channel as everything else; on this host
	// the user-facing surface is the log plus the getState snapshot.
	c.router.Register(channel.ActionTaggingPrompt, func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		slog.Info("Tagging prompt delivered", "payload", string(payload))
		return map[string]interface{}{"delivered": true}, nil
	})

	c.server = channel.NewServer(c.router, c.cfg.Channel.BatchSize)

	clientCfg, err := channel.ClientConfigFrom(c.cfg.Channel)
	if err != nil {
		return fmt.Errorf("failed to resolve channel config: %w", err)
	}
	c.client = channel.NewClient(c.server, "tabcurator", clientCfg, func(msg channel.Message) {
		if msg.ReplyTo != "" {
			return
		}
		resp := c.router.Dispatch(context.Background(), msg)
		if resp.Error != "" {
			slog.Warn("Inbound message failed", "action", msg.Action, "error", resp.Error)
		}
	})

	slog.Info("Message channel initialized", "component", c.Name(), "actions", len(c.router.Actions()))
	return nil
}

func (c *ChannelComponent) Start(ctx context.Context) error {
	if c.server == nil || c.client == nil {
		return fmt.Errorf("channel not initialized")
	}
	if err := c.server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start channel server: %w", err)
	}
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start channel client: %w", err)
	}
	return nil
}

func (c *ChannelComponent) Stop(ctx context.Context) error {
	if c.client != nil {
		if err := c.client.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop channel client: %w", err)
		}
	}
	if c.server != nil {
		if err := c.server.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop channel server: %w", err)
		}
	}
	return nil
}

func (c *ChannelComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if c.client == nil {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if state := c.client.State(); state == channel.StateCoolingDown {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("client cooling down, %d messages queued", c.client.QueueLen())}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *ChannelComponent) GetRouter() *channel.Router {
	return c.router
}

func (c *ChannelComponent) GetClient() *channel.Client {
	return c.client
}

// SetSweeper late-binds the sweep engine; the scheduler depends on the
// channel for publishing, so it cannot exist before Init runs.
func (c *ChannelComponent) SetSweeper(s channel.Sweeper) {
	c.sweeper.set(s)
}

type lazySweeper struct {
	mu sync.RWMutex
	s  channel.Sweeper
}

func (l *lazySweeper) set(s channel.Sweeper) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s = s
}

func (l *lazySweeper) SweepNow(ctx context.Context) error {
	l.mu.RLock()
	s := l.s
	l.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("sweep scheduler not ready")
	}
	return s.SweepNow(ctx)
}
