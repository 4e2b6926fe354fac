// Package settings reads and writes the curator's persisted configuration
// through the host sync-storage area: inactivity threshold, tab limit,
// matching rules, saved sessions and the archive snapshot.
package settings

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tabcurator/tabcurator/internal/browser"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
	"github.com/tabcurator/tabcurator/internal/state"
)

const (
	keyInactiveThreshold = "inactiveThreshold"
	keyTabLimit          = "tabLimit"
	keyRules             = "rules"
	keySavedSessions     = "savedSessions"
	keyArchivedTabs      = "archivedTabs"
)

// Rule drives automatic tagging: a tab whose URL or title contains Condition
// triggers Action, encoded as "ActionType: Parameter". Only "Tag: <name>" is
// interpreted today.
type Rule struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
}

// TagTarget returns the tag name when the rule action is a Tag action.
func (r Rule) TagTarget() (string, bool) {
	const prefix = "Tag:"
	if !strings.HasPrefix(r.Action, prefix) {
		return "", false
	}
	tag := strings.TrimSpace(strings.TrimPrefix(r.Action, prefix))
	if tag == "" {
		return "", false
	}
	return tag, true
}

// Settings are the sweep tunables. Threshold is in minutes, matching the
// persisted schema.
type Settings struct {
	InactiveThreshold int
	TabLimit          int
	Rules             []Rule
}

type Defaults struct {
	InactiveThreshold int
	TabLimit          int
}

type Service struct {
	storage  browser.StorageAPI
	defaults Defaults
}

func NewService(storage browser.StorageAPI, defaults Defaults) *Service {
	if defaults.InactiveThreshold <= 0 {
		defaults.InactiveThreshold = 60
	}
	if defaults.TabLimit <= 0 {
		defaults.TabLimit = 100
	}
	return &Service{storage: storage, defaults: defaults}
}

func (s *Service) Load(ctx context.Context) (Settings, error) {
	got, err := s.storage.Get(ctx, []string{keyInactiveThreshold, keyTabLimit, keyRules})
	if err != nil {
		return Settings{}, curatorErrors.Wrap(err, "load settings")
	}

	out := Settings{
		InactiveThreshold: s.defaults.InactiveThreshold,
		TabLimit:          s.defaults.TabLimit,
	}

	if raw, ok := got[keyInactiveThreshold]; ok {
		var v int
		if err := json.Unmarshal(raw, &v); err == nil && v > 0 {
			out.InactiveThreshold = v
		}
	}
	if raw, ok := got[keyTabLimit]; ok {
		var v int
		if err := json.Unmarshal(raw, &v); err == nil && v > 0 {
			out.TabLimit = v
		}
	}
	if raw, ok := got[keyRules]; ok {
		if err := json.Unmarshal(raw, &out.Rules); err != nil {
			return Settings{}, curatorErrors.Wrap(err, "decode rules")
		}
	}
	return out, nil
}

func (s *Service) SaveRules(ctx context.Context, rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	return s.storage.Set(ctx, map[string]interface{}{keyRules: rules})
}

func (s *Service) SaveLimits(ctx context.Context, inactiveThreshold, tabLimit int) error {
	if inactiveThreshold <= 0 || tabLimit <= 0 {
		return curatorErrors.InvalidArgument("threshold and limit must be positive")
	}
	return s.storage.Set(ctx, map[string]interface{}{
		keyInactiveThreshold: inactiveThreshold,
		keyTabLimit:          tabLimit,
	})
}

func (s *Service) LoadArchive(ctx context.Context) (map[string][]state.ArchivedTab, error) {
	got, err := s.storage.Get(ctx, []string{keyArchivedTabs})
	if err != nil {
		return nil, curatorErrors.Wrap(err, "load archive")
	}

	archive := make(map[string][]state.ArchivedTab)
	if raw, ok := got[keyArchivedTabs]; ok {
		if err := json.Unmarshal(raw, &archive); err != nil {
			return nil, curatorErrors.Wrap(err, "decode archive")
		}
	}
	return archive, nil
}

func (s *Service) SaveArchive(ctx context.Context, archive map[string][]state.ArchivedTab) error {
	return s.storage.Set(ctx, map[string]interface{}{keyArchivedTabs: archive})
}

func (s *Service) LoadSessions(ctx context.Context) (map[string][]state.SessionTab, error) {
	got, err := s.storage.Get(ctx, []string{keySavedSessions})
	if err != nil {
		return nil, curatorErrors.Wrap(err, "load sessions")
	}

	sessions := make(map[string][]state.SessionTab)
	if raw, ok := got[keySavedSessions]; ok {
		if err := json.Unmarshal(raw, &sessions); err != nil {
			return nil, curatorErrors.Wrap(err, "decode sessions")
		}
	}
	return sessions, nil
}

func (s *Service) SaveSessions(ctx context.Context, sessions map[string][]state.SessionTab) error {
	return s.storage.Set(ctx, map[string]interface{}{keySavedSessions: sessions})
}
