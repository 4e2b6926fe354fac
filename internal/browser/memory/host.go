// Package memory provides an in-process browser host. It backs the daemon in
// local runs and every package test; the sync-storage area persists to disk so
// archives and sessions survive restarts.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tabcurator/tabcurator/internal/browser"
	"github.com/tabcurator/tabcurator/internal/concurrency"
)

type Option func(*Host)

// WithoutDiscard disables the tab-discard capability, mimicking hosts that do
// not expose it.
func WithoutDiscard() Option {
	return func(h *Host) {
		h.caps.TabDiscard = false
	}
}

// WithStoragePath persists the storage area at path instead of keeping it
// memory-only.
func WithStoragePath(path string) Option {
	return func(h *Host) {
		h.storage.path = path
	}
}

// WithEventBuffer sets the tab-event channel capacity.
func WithEventBuffer(size int) Option {
	return func(h *Host) {
		if size > 0 {
			h.events = make(chan browser.TabEvent, size)
		}
	}
}

type Host struct {
	mu     sync.RWMutex
	tabs   map[int]*browser.Tab
	order  []int
	nextID int

	events  chan browser.TabEvent
	storage *storageArea
	alarms  *alarmClock
	caps    browser.Capabilities
}

func NewHost(opts ...Option) (*Host, error) {
	h := &Host{
		tabs:    make(map[int]*browser.Tab),
		nextID:  1,
		events:  make(chan browser.TabEvent, 256),
		storage: &storageArea{items: make(map[string][]byte)},
		alarms:  newAlarmClock(),
		caps:    browser.Capabilities{TabDiscard: true},
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.storage.load(); err != nil {
		return nil, fmt.Errorf("load storage area: %w", err)
	}
	return h, nil
}

func (h *Host) Tabs() browser.TabAPI              { return (*tabAPI)(h) }
func (h *Host) Storage() browser.StorageAPI       { return h.storage }
func (h *Host) Alarms() browser.AlarmAPI          { return h.alarms }
func (h *Host) TabEvents() <-chan browser.TabEvent { return h.events }
func (h *Host) Capabilities() browser.Capabilities { return h.caps }

// Close stops alarm tickers. Pending events stay readable.
func (h *Host) Close() {
	h.alarms.stop()
}

func (h *Host) emit(kind browser.TabEventKind, tab browser.Tab) {
	evt := browser.TabEvent{Kind: kind, Tab: tab, At: time.Now()}
	select {
	case h.events <- evt:
	default:
		slog.Warn("Tab event buffer full, dropping event", "kind", kind, "tab", tab.ID)
	}
}

// tabAPI implements browser.TabAPI over the host tab table.
type tabAPI Host

func (t *tabAPI) Query(ctx context.Context, filter browser.QueryFilter) ([]browser.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]browser.Tab, 0, len(t.order))
	for _, id := range t.order {
		tab := t.tabs[id]
		if filter.Active != nil && tab.Active != *filter.Active {
			continue
		}
		if filter.URLContains != "" && !contains(tab.URL, filter.URLContains) {
			continue
		}
		out = append(out, *tab)
	}
	return out, nil
}

func (t *tabAPI) Get(ctx context.Context, id int) (browser.Tab, error) {
	if err := ctx.Err(); err != nil {
		return browser.Tab{}, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	tab, ok := t.tabs[id]
	if !ok {
		return browser.Tab{}, fmt.Errorf("no tab with id %d", id)
	}
	return *tab, nil
}

func (t *tabAPI) Create(ctx context.Context, props browser.CreateProps) (browser.Tab, error) {
	if err := ctx.Err(); err != nil {
		return browser.Tab{}, err
	}

	t.mu.Lock()
	tab := &browser.Tab{
		ID:     t.nextID,
		Title:  props.Title,
		URL:    props.URL,
		Active: props.Active,
	}
	t.nextID++
	t.tabs[tab.ID] = tab
	t.order = append(t.order, tab.ID)
	if tab.Active {
		t.deactivateOthersLocked(tab.ID)
	}
	created := *tab
	t.mu.Unlock()

	(*Host)(t).emit(browser.TabCreated, created)
	return created, nil
}

func (t *tabAPI) Update(ctx context.Context, id int, props browser.UpdateProps) (browser.Tab, error) {
	if err := ctx.Err(); err != nil {
		return browser.Tab{}, err
	}

	t.mu.Lock()
	tab, ok := t.tabs[id]
	if !ok {
		t.mu.Unlock()
		return browser.Tab{}, fmt.Errorf("no tab with id %d", id)
	}
	if props.Title != nil {
		tab.Title = *props.Title
	}
	if props.URL != nil {
		tab.URL = *props.URL
	}
	activated := false
	if props.Active != nil && *props.Active && !tab.Active {
		tab.Active = true
		t.deactivateOthersLocked(id)
		activated = true
	}
	updated := *tab
	t.mu.Unlock()

	if activated {
		(*Host)(t).emit(browser.TabActivated, updated)
	} else {
		(*Host)(t).emit(browser.TabUpdated, updated)
	}
	return updated, nil
}

func (t *tabAPI) Remove(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	tab, ok := t.tabs[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("no tab with id %d", id)
	}
	removed := *tab
	delete(t.tabs, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	(*Host)(t).emit(browser.TabRemoved, removed)
	return nil
}

func (t *tabAPI) Discard(ctx context.Context, id int) (browser.Tab, error) {
	if err := ctx.Err(); err != nil {
		return browser.Tab{}, err
	}

	if !t.caps.TabDiscard {
		return browser.Tab{}, fmt.Errorf("tab discarding not supported")
	}

	t.mu.Lock()
	tab, ok := t.tabs[id]
	if !ok {
		t.mu.Unlock()
		return browser.Tab{}, fmt.Errorf("no tab with id %d", id)
	}
	tab.Discarded = true
	discarded := *tab
	t.mu.Unlock()

	(*Host)(t).emit(browser.TabUpdated, discarded)
	return discarded, nil
}

// caller holds t.mu
func (t *tabAPI) deactivateOthersLocked(keep int) {
	for id, tab := range t.tabs {
		if id != keep {
			tab.Active = false
		}
	}
}

func contains(haystack, needle string) bool {
	return needle == "" || strings.Contains(haystack, needle)
}

// alarmClock drives named periodic alarms with one ticker per alarm.
type alarmClock struct {
	mu      sync.Mutex
	cancels map[string]chan struct{}
	out     chan browser.Alarm
}

func newAlarmClock() *alarmClock {
	return &alarmClock{
		cancels: make(map[string]chan struct{}),
		out:     make(chan browser.Alarm, 16),
	}
}

func (a *alarmClock) Create(name string, period time.Duration) error {
	if name == "" {
		return fmt.Errorf("alarm name is empty")
	}
	if period <= 0 {
		return fmt.Errorf("alarm period must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if cancel, ok := a.cancels[name]; ok {
		close(cancel)
	}
	cancel := make(chan struct{})
	a.cancels[name] = cancel

	concurrency.SafeGo(func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case at := <-ticker.C:
				select {
				case a.out <- browser.Alarm{Name: name, At: at}:
				default:
					slog.Warn("Alarm channel full, dropping tick", "alarm", name)
				}
			case <-cancel:
				return
			}
		}
	}, nil)

	return nil
}

func (a *alarmClock) Clear(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cancel, ok := a.cancels[name]
	if !ok {
		return fmt.Errorf("no alarm named %q", name)
	}
	close(cancel)
	delete(a.cancels, name)
	return nil
}

func (a *alarmClock) Alarms() <-chan browser.Alarm { return a.out }

func (a *alarmClock) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.cancels))
	for name := range a.cancels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		close(a.cancels[name])
		delete(a.cancels, name)
	}
}
