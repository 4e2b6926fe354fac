// Package curator implements the tab operations: tagging, archiving under
// tags, rule application, undo, and session save/restore.
package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tabcurator/tabcurator/internal/browser"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
	"github.com/tabcurator/tabcurator/internal/settings"
	"github.com/tabcurator/tabcurator/internal/state"
	"github.com/tabcurator/tabcurator/internal/tabs"
)

type Service struct {
	adapter  *tabs.Adapter
	store    *state.Store
	settings *settings.Service
}

func NewService(adapter *tabs.Adapter, store *state.Store, settingsSvc *settings.Service) *Service {
	return &Service{adapter: adapter, store: store, settings: settingsSvc}
}

// TagTab prefixes the tab title with "[tag] ". Tagging is idempotent: an
// existing bracket prefix is replaced, never nested.
func (s *Service) TagTab(ctx context.Context, id int, tag string) (browser.Tab, error) {
	if id <= 0 {
		return browser.Tab{}, curatorErrors.InvalidArgument("tab ID must be a valid number")
	}
	if strings.TrimSpace(tag) == "" {
		return browser.Tab{}, curatorErrors.InvalidArgument("tag must not be empty")
	}

	tab, err := s.adapter.Get(ctx, id)
	if err != nil {
		return browser.Tab{}, err
	}

	title := fmt.Sprintf("[%s] %s", tag, stripTagPrefix(tab.Title))
	return s.adapter.Update(ctx, id, browser.UpdateProps{Title: &title})
}

// ArchiveTab records the tab under the tag, persists the archive, then
// removes the tab. Removal failure after the entry is recorded is accepted:
// duplicate metadata beats losing it.
func (s *Service) ArchiveTab(ctx context.Context, id int, tag string) error {
	if id <= 0 {
		return curatorErrors.InvalidArgument("tab ID must be a valid number")
	}
	if strings.TrimSpace(tag) == "" {
		return curatorErrors.InvalidArgument("tag must not be empty")
	}

	tab, err := s.adapter.Get(ctx, id)
	if err != nil {
		return err
	}

	entry := state.ArchivedTab{
		Title:     tab.Title,
		URL:       tab.URL,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.store.Dispatch(state.ArchiveTab{Tag: tag, Entry: entry}); err != nil {
		return err
	}
	s.persistArchive(ctx)

	if err := s.adapter.Remove(ctx, id); err != nil {
		if errors.Is(err, curatorErrors.ErrNotFound) {
			// Already gone; the archive entry stands.
			return nil
		}
		slog.Warn("Tab archived but removal failed", "tab", id, "tag", tag, "error", err)
	}
	return nil
}

// ApplyRules matches the tab against rules in order; the first matching Tag
// rule archives the tab and evaluation stops. No match is a no-op.
func (s *Service) ApplyRules(ctx context.Context, tab browser.Tab, rules []settings.Rule) error {
	for _, rule := range rules {
		if rule.Condition == "" {
			continue
		}
		if !strings.Contains(tab.URL, rule.Condition) && !strings.Contains(tab.Title, rule.Condition) {
			continue
		}

		tag, ok := rule.TagTarget()
		if !ok {
			slog.Debug("Rule matched but action not interpretable", "condition", rule.Condition, "action", rule.Action)
			return nil
		}
		return s.ArchiveTab(ctx, tab.ID, tag)
	}
	return nil
}

// Undo reverses the most recent archive: the entry leaves the archive and the
// tab is recreated. Empty history is a no-op.
func (s *Service) Undo(ctx context.Context) (*state.HistoryEntry, error) {
	entry, err := s.store.Undo()
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	s.persistArchive(ctx)

	if _, err := s.adapter.Create(ctx, browser.CreateProps{
		URL:   entry.Entry.URL,
		Title: entry.Entry.Title,
	}); err != nil {
		slog.Warn("Undo removed archive entry but tab recreation failed", "url", entry.Entry.URL, "error", err)
	}
	return entry, nil
}

// SaveSession snapshots all open tabs under name; a later save with the same
// name overwrites.
func (s *Service) SaveSession(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, curatorErrors.InvalidArgument("session name must not be empty")
	}

	open, err := s.adapter.Query(ctx, browser.QueryFilter{})
	if err != nil {
		return 0, err
	}

	tabsSnap := make([]state.SessionTab, 0, len(open))
	for _, tab := range open {
		tabsSnap = append(tabsSnap, state.SessionTab{Title: tab.Title, URL: tab.URL})
	}

	if err := s.store.Dispatch(state.RecordSession{Name: name, Tabs: tabsSnap}); err != nil {
		return 0, err
	}
	s.persistSessions(ctx)
	return len(tabsSnap), nil
}

// RestoreSession recreates every tab of the named session in order.
func (s *Service) RestoreSession(ctx context.Context, name string) (int, error) {
	snap, err := s.store.GetState()
	if err != nil {
		return 0, err
	}

	tabsSnap, ok := snap.SavedSessions[name]
	if !ok {
		return 0, curatorErrors.NotFound(fmt.Sprintf("session %q", name))
	}

	restored := 0
	for _, entry := range tabsSnap {
		if _, err := s.adapter.Create(ctx, browser.CreateProps{URL: entry.URL, Title: entry.Title}); err != nil {
			slog.Warn("Failed to restore tab", "session", name, "url", entry.URL, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

func (s *Service) Sessions(ctx context.Context) (map[string][]state.SessionTab, error) {
	snap, err := s.store.GetState()
	if err != nil {
		return nil, err
	}
	return snap.SavedSessions, nil
}

func (s *Service) DeleteSession(ctx context.Context, name string) error {
	if err := s.store.Dispatch(state.DeleteSession{Name: name}); err != nil {
		return err
	}
	s.persistSessions(ctx)
	return nil
}

// persistArchive mirrors the in-memory archive into host storage. Failures
// only log: in-memory state stays authoritative for this run.
func (s *Service) persistArchive(ctx context.Context) {
	snap, err := s.store.GetState()
	if err != nil {
		slog.Warn("Cannot snapshot state for archive persistence", "error", err)
		return
	}
	if err := s.settings.SaveArchive(ctx, snap.ArchivedTabs); err != nil {
		slog.Warn("Failed to persist archive", "error", err)
	}
}

func (s *Service) persistSessions(ctx context.Context) {
	snap, err := s.store.GetState()
	if err != nil {
		slog.Warn("Cannot snapshot state for session persistence", "error", err)
		return
	}
	if err := s.settings.SaveSessions(ctx, snap.SavedSessions); err != nil {
		slog.Warn("Failed to persist sessions", "error", err)
	}
}

// stripTagPrefix drops one leading "[...] " prefix if present.
func stripTagPrefix(title string) string {
	if !strings.HasPrefix(title, "[") {
		return title
	}
	end := strings.Index(title, "] ")
	if end < 0 {
		return title
	}
	return title[end+2:]
}
