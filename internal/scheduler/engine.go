// Package scheduler drives the periodic curation sweep: tracking tab
// activity, suspending tabs idle past the threshold, and raising the tagging
// prompt when the open-tab count exceeds the limit.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tabcurator/tabcurator/internal/browser"
	"github.com/tabcurator/tabcurator/internal/channel"
	"github.com/tabcurator/tabcurator/internal/concurrency"
	"github.com/tabcurator/tabcurator/internal/config"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
	"github.com/tabcurator/tabcurator/internal/settings"
	"github.com/tabcurator/tabcurator/internal/state"
	"github.com/tabcurator/tabcurator/internal/tabs"
)

// Publisher delivers outbound messages to the user-facing side. Satisfied by
// the channel client.
type Publisher interface {
	Send(ctx context.Context, msg channel.Message) error
}

type Config struct {
	SweepSchedule   string
	PromptTimeout   time.Duration
	ShutdownTimeout time.Duration
}

// ConfigFrom resolves the scheduler config section into concrete values.
func ConfigFrom(cfg config.SchedulerConfig) (Config, error) {
	promptTimeout, err := config.DurationOrDefault(cfg.PromptTimeout, config.DefaultSchedulerPromptTimeout)
	if err != nil {
		return Config{}, curatorErrors.Wrap(err, "parse prompt timeout")
	}
	shutdown, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSchedulerShutdown)
	if err != nil {
		return Config{}, curatorErrors.Wrap(err, "parse shutdown timeout")
	}

	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = config.DefaultSchedulerSweepSchedule
	}
	return Config{
		SweepSchedule:   schedule,
		PromptTimeout:   promptTimeout,
		ShutdownTimeout: shutdown,
	}, nil
}

// TaggingPromptPayload is the outbound request asking the user to tag the
// selected tab before more can be opened.
type TaggingPromptPayload struct {
	TabID int    `json:"tabId"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Engine struct {
	adapter   *tabs.Adapter
	store     *state.Store
	settings  *settings.Service
	publisher Publisher
	events    <-chan browser.TabEvent
	cfg       Config
	cron      *cron.Cron
	now       func() time.Time

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewEngine(
	adapter *tabs.Adapter,
	store *state.Store,
	settingsSvc *settings.Service,
	publisher Publisher,
	events <-chan browser.TabEvent,
	cfg Config,
) *Engine {
	return &Engine{
		adapter:   adapter,
		store:     store,
		settings:  settingsSvc,
		publisher: publisher,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}
	e.started = true
	e.quit = make(chan struct{})

	e.cron = cron.New()
	if _, err := e.cron.AddFunc(e.cfg.SweepSchedule, func() {
		if err := e.SweepNow(ctx); err != nil {
			slog.Warn("Scheduled sweep failed", "error", err)
		}
	}); err != nil {
		e.started = false
		return curatorErrors.Wrap(err, "register sweep schedule")
	}
	e.cron.Start()

	e.wg.Add(1)
	concurrency.SafeGo(func() {
		defer e.wg.Done()
		e.watchTabEvents(ctx)
	}, nil)

	// Startup sweep, off the caller's path.
	e.wg.Add(1)
	concurrency.SafeGo(func() {
		defer e.wg.Done()
		if err := e.SweepNow(ctx); err != nil {
			slog.Warn("Startup sweep failed", "error", err)
		}
	}, nil)

	slog.Info("Sweep scheduler started", "schedule", e.cfg.SweepSchedule)
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	close(e.quit)
	cronCtx := e.cron.Stop()
	e.mu.Unlock()

	if e.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watchTabEvents keeps the activity map current and triggers a sweep on the
// lifecycle events that can change what the sweep would decide.
func (e *Engine) watchTabEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			e.handleTabEvent(ctx, ev)
		}
	}
}

func (e *Engine) handleTabEvent(ctx context.Context, ev browser.TabEvent) {
	switch ev.Kind {
	case browser.TabCreated, browser.TabActivated, browser.TabUpdated:
		err := e.store.Dispatch(state.UpdateTabActivity{
			TabID:     ev.Tab.ID,
			Timestamp: e.now().UnixMilli(),
		})
		if err != nil {
			slog.Warn("Failed to record tab activity", "tab", ev.Tab.ID, "error", err)
			return
		}
		if err := e.SweepNow(ctx); err != nil {
			slog.Warn("Event-triggered sweep failed", "kind", ev.Kind, "error", err)
		}

	case browser.TabRemoved:
		if err := e.store.Dispatch(state.RemoveTabActivity{TabID: ev.Tab.ID}); err != nil {
			slog.Warn("Failed to drop tab activity", "tab", ev.Tab.ID, "error", err)
		}
	}
}

// SweepNow runs one sweep. A settings or query failure aborts this sweep
// only; the next scheduled one proceeds normally.
func (e *Engine) SweepNow(ctx context.Context) error {
	e.expirePrompt()

	cfg, err := e.settings.Load(ctx)
	if err != nil {
		return curatorErrors.Wrap(err, "sweep aborted: load settings")
	}
	open, err := e.adapter.Query(ctx, browser.QueryFilter{})
	if err != nil {
		return curatorErrors.Wrap(err, "sweep aborted: query tabs")
	}
	snap, err := e.store.GetState()
	if err != nil {
		return curatorErrors.Wrap(err, "sweep aborted: snapshot state")
	}

	now := e.now().UnixMilli()

	if len(open) > cfg.TabLimit && !snap.TaggingPrompt.Active {
		if target, ok := oldestInactive(open, snap.TabActivity, now); ok {
			// Tagging takes priority over suspension when over the limit.
			return e.raisePrompt(ctx, target)
		}
	}

	thresholdMillis := int64(cfg.InactiveThreshold) * time.Minute.Milliseconds()
	for _, tab := range open {
		if tab.Active || tab.Discarded {
			continue
		}
		last, ok := snap.TabActivity[tab.ID]
		if !ok {
			// Never tracked: treated as active now, never a suspend target.
			continue
		}
		if now-last <= thresholdMillis {
			continue
		}
		if _, err := e.adapter.Discard(ctx, tab.ID); err != nil {
			slog.Warn("Failed to discard inactive tab", "tab", tab.ID, "error", err)
			continue
		}
		slog.Debug("Discarded inactive tab", "tab", tab.ID, "idle_ms", now-last)
	}
	return nil
}

// oldestInactive selects the inactive tab with the oldest recorded activity.
// Never-tracked tabs count as active now; ties keep the first encountered.
func oldestInactive(open []browser.Tab, activity map[int]int64, now int64) (browser.Tab, bool) {
	var target browser.Tab
	oldest := int64(-1)
	for _, tab := range open {
		if tab.Active {
			continue
		}
		last, ok := activity[tab.ID]
		if !ok {
			last = now
		}
		if oldest < 0 || last < oldest {
			oldest = last
			target = tab
		}
	}
	return target, oldest >= 0 && oldest < now
}

func (e *Engine) raisePrompt(ctx context.Context, target browser.Tab) error {
	msg, err := channel.NewMessage(channel.ActionTaggingPrompt, TaggingPromptPayload{
		TabID: target.ID,
		Title: target.Title,
		URL:   target.URL,
	})
	if err != nil {
		return curatorErrors.Wrap(err, "build tagging prompt")
	}
	if err := e.publisher.Send(ctx, msg); err != nil {
		return curatorErrors.Wrap(err, "send tagging prompt")
	}
	if err := e.store.Dispatch(state.SetTaggingPrompt{Active: true}); err != nil {
		return curatorErrors.Wrap(err, "mark tagging prompt active")
	}
	slog.Info("Tagging prompt raised", "tab", target.ID, "url", target.URL)
	return nil
}

// expirePrompt clears a prompt that was never answered so one lost message
// cannot disable suspension forever.
func (e *Engine) expirePrompt() {
	snap, err := e.store.GetState()
	if err != nil {
		return
	}
	if !snap.TaggingPrompt.Active {
		return
	}
	if e.now().Sub(snap.TaggingPrompt.SetAt) <= e.cfg.PromptTimeout {
		return
	}
	slog.Info("Tagging prompt expired without answer, clearing", "set_at", snap.TaggingPrompt.SetAt)
	if err := e.store.Dispatch(state.SetTaggingPrompt{Active: false}); err != nil {
		slog.Warn("Failed to clear expired tagging prompt", "error", err)
	}
}
