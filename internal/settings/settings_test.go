package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabcurator/tabcurator/internal/browser/memory"
	"github.com/tabcurator/tabcurator/internal/state"
)

func newService(t *testing.T) *Service {
	t.Helper()
	host, err := memory.NewHost()
	require.NoError(t, err)
	t.Cleanup(host.Close)
	return NewService(host.Storage(), Defaults{})
}

func TestLoadDefaults(t *testing.T) {
	s := newService(t)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 60, cfg.InactiveThreshold)
	require.Equal(t, 100, cfg.TabLimit)
	require.Empty(t, cfg.Rules)
}

func TestSaveAndLoadLimits(t *testing.T) {
	s := newService(t)

	require.NoError(t, s.SaveLimits(context.Background(), 30, 50))

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, cfg.InactiveThreshold)
	require.Equal(t, 50, cfg.TabLimit)
}

func TestSaveLimitsValidation(t *testing.T) {
	s := newService(t)
	require.Error(t, s.SaveLimits(context.Background(), 0, 50))
	require.Error(t, s.SaveLimits(context.Background(), 30, -1))
}

func TestSaveAndLoadRules(t *testing.T) {
	s := newService(t)

	rules := []Rule{
		{Condition: "example.com", Action: "Tag: Research"},
		{Condition: "news", Action: "Tag: Reading"},
	}
	require.NoError(t, s.SaveRules(context.Background(), rules))

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, rules, cfg.Rules)
}

func TestTagTarget(t *testing.T) {
	cases := []struct {
		action string
		tag    string
		ok     bool
	}{
		{"Tag: Research", "Research", true},
		{"Tag:Work", "Work", true},
		{"Tag:   ", "", false},
		{"Close", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		tag, ok := Rule{Action: tc.action}.TagTarget()
		require.Equal(t, tc.ok, ok, "action %q", tc.action)
		require.Equal(t, tc.tag, tag, "action %q", tc.action)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	s := newService(t)

	archive := map[string][]state.ArchivedTab{
		"Research": {{Title: "Paper", URL: "https://arxiv.example", Timestamp: 123}},
	}
	require.NoError(t, s.SaveArchive(context.Background(), archive))

	loaded, err := s.LoadArchive(context.Background())
	require.NoError(t, err)
	require.Equal(t, archive, loaded)
}

func TestSessionsRoundTrip(t *testing.T) {
	s := newService(t)

	sessions := map[string][]state.SessionTab{
		"morning": {{Title: "Mail", URL: "https://mail.example"}},
	}
	require.NoError(t, s.SaveSessions(context.Background(), sessions))

	loaded, err := s.LoadSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, sessions, loaded)
}

func TestPersistenceSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	host, err := memory.NewHost(memory.WithStoragePath(path))
	require.NoError(t, err)
	s := NewService(host.Storage(), Defaults{})
	require.NoError(t, s.SaveLimits(context.Background(), 45, 80))
	host.Close()

	host2, err := memory.NewHost(memory.WithStoragePath(path))
	require.NoError(t, err)
	t.Cleanup(host2.Close)

	s2 := NewService(host2.Storage(), Defaults{})
	cfg, err := s2.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 45, cfg.InactiveThreshold)
	require.Equal(t, 80, cfg.TabLimit)
}
