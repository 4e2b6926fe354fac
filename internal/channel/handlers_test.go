package channel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabcurator/tabcurator/internal/browser"
	"github.com/tabcurator/tabcurator/internal/browser/memory"
	"github.com/tabcurator/tabcurator/internal/curator"
	"github.com/tabcurator/tabcurator/internal/settings"
	"github.com/tabcurator/tabcurator/internal/state"
	"github.com/tabcurator/tabcurator/internal/tabs"
)

type recordingSweeper struct {
	calls int
}

func (r *recordingSweeper) SweepNow(ctx context.Context) error {
	r.calls++
	return nil
}

type handlerFixture struct {
	adapter *tabs.Adapter
	store   *state.Store
	router  *Router
	sweeper *recordingSweeper
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	host, err := memory.NewHost()
	require.NoError(t, err)
	t.Cleanup(host.Close)

	store := state.NewStore()
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = store.Stop(ctx)
	})

	adapter := tabs.NewAdapter(host)
	settingsSvc := settings.NewService(host.Storage(), settings.Defaults{})
	service := curator.NewService(adapter, store, settingsSvc)
	sweeper := &recordingSweeper{}

	router := NewRouter()
	Handlers{Curator: service, Store: store, Settings: settingsSvc, Sweeper: sweeper}.Register(router)

	return &handlerFixture{adapter: adapter, store: store, router: router, sweeper: sweeper}
}

func (f *handlerFixture) dispatch(t *testing.T, action string, payload interface{}) Response {
	t.Helper()
	msg, err := NewMessage(action, payload)
	require.NoError(t, err)
	return f.router.Dispatch(context.Background(), msg)
}

func TestSessionActionsRoundTrip(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.adapter.Create(context.Background(), browser.CreateProps{Title: "a", URL: "https://a.example"})
	require.NoError(t, err)

	resp := f.dispatch(t, ActionSaveSession, map[string]string{"name": "work"})
	require.Empty(t, resp.Error)
	require.JSONEq(t, `{"success":true,"savedTabs":1}`, string(resp.Result))

	resp = f.dispatch(t, ActionGetSessions, nil)
	require.Empty(t, resp.Error)
	var sessions struct {
		Sessions map[string][]state.SessionTab `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &sessions))
	require.Len(t, sessions.Sessions["work"], 1)

	resp = f.dispatch(t, ActionRestoreSession, map[string]string{"name": "work"})
	require.Empty(t, resp.Error)

	resp = f.dispatch(t, ActionDeleteSession, map[string]string{"name": "work"})
	require.Empty(t, resp.Error)

	resp = f.dispatch(t, ActionDeleteSession, map[string]string{"name": "work"})
	require.NotEmpty(t, resp.Error, "second delete reports the missing session")
}

func TestRestoreMissingSessionReturnsErrorResponse(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.dispatch(t, ActionRestoreSession, map[string]string{"name": "ghost"})
	require.NotEmpty(t, resp.Error)
}

func TestUpdateAndGetRules(t *testing.T) {
	f := newHandlerFixture(t)

	rules := []settings.Rule{{Condition: "example.com", Action: "Tag: Research"}}
	resp := f.dispatch(t, ActionUpdateRules, map[string]interface{}{"rules": rules})
	require.Empty(t, resp.Error)

	resp = f.dispatch(t, ActionGetRules, nil)
	require.Empty(t, resp.Error)
	var got struct {
		Rules []settings.Rule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &got))
	require.Equal(t, rules, got.Rules)
}

func TestSuspendInactiveTabsTriggersSweep(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.dispatch(t, ActionSuspendInactiveTabs, nil)
	require.Empty(t, resp.Error)
	require.Equal(t, 1, f.sweeper.calls)
}

func TestTagAddedTagsAndClearsPrompt(t *testing.T) {
	f := newHandlerFixture(t)

	tab, err := f.adapter.Create(context.Background(), browser.CreateProps{Title: "Paper", URL: "https://p.example"})
	require.NoError(t, err)
	require.NoError(t, f.store.Dispatch(state.SetTaggingPrompt{Active: true}))

	resp := f.dispatch(t, ActionTagAdded, map[string]interface{}{"tabId": tab.ID, "tag": "Research"})
	require.Empty(t, resp.Error)

	got, err := f.adapter.Get(context.Background(), tab.ID)
	require.NoError(t, err)
	require.Equal(t, "[Research] Paper", got.Title)

	snap, err := f.store.GetState()
	require.NoError(t, err)
	require.False(t, snap.TaggingPrompt.Active)
}

func TestTagAddedFailureStillClearsPrompt(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.store.Dispatch(state.SetTaggingPrompt{Active: true}))

	resp := f.dispatch(t, ActionTagAdded, map[string]interface{}{"tabId": 999, "tag": "Research"})
	require.NotEmpty(t, resp.Error, "missing tab surfaces as an error response")

	snap, err := f.store.GetState()
	require.NoError(t, err)
	require.False(t, snap.TaggingPrompt.Active, "the user answered; the prompt goes away regardless")
}

func TestGetStateSnapshot(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.store.Dispatch(state.UpdateTabActivity{TabID: 3, Timestamp: 777}))

	resp := f.dispatch(t, ActionGetState, nil)
	require.Empty(t, resp.Error)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(resp.Result, &snap))
	require.Equal(t, int64(777), snap.TabActivity[3])
}

func TestDispatchActionUpdateActivity(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.dispatch(t, ActionDispatch, map[string]interface{}{
		"type": "UPDATE_TAB_ACTIVITY", "tabId": 5, "timestamp": 1234,
	})
	require.Empty(t, resp.Error)

	snap, err := f.store.GetState()
	require.NoError(t, err)
	require.Equal(t, int64(1234), snap.TabActivity[5])
}

func TestDispatchActionValidation(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.dispatch(t, ActionDispatch, map[string]interface{}{
		"type": "UPDATE_TAB_ACTIVITY", "tabId": 0, "timestamp": 1234,
	})
	require.NotEmpty(t, resp.Error)
	require.Contains(t, resp.Error, "tab ID must be a valid number")

	resp = f.dispatch(t, ActionDispatch, map[string]interface{}{
		"type": "SET_TAGGING_PROMPT_ACTIVE",
	})
	require.NotEmpty(t, resp.Error, "missing boolean value is rejected")
}

func TestDispatchActionUndo(t *testing.T) {
	f := newHandlerFixture(t)

	tab, err := f.adapter.Create(context.Background(), browser.CreateProps{Title: "Paper", URL: "https://p.example"})
	require.NoError(t, err)
	require.NoError(t, f.store.Dispatch(state.ArchiveTab{
		Tag:   "W",
		Entry: state.ArchivedTab{Title: tab.Title, URL: tab.URL, Timestamp: 1},
	}))

	resp := f.dispatch(t, ActionDispatch, map[string]string{"type": "UNDO_LAST_ACTION"})
	require.Empty(t, resp.Error)
	require.JSONEq(t, `{"undone":true,"tag":"W"}`, string(resp.Result))

	resp = f.dispatch(t, ActionDispatch, map[string]string{"type": "UNDO_LAST_ACTION"})
	require.Empty(t, resp.Error)
	require.JSONEq(t, `{"undone":false}`, string(resp.Result))
}

func TestDispatchActionUnknownTypeIgnored(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.dispatch(t, ActionDispatch, map[string]string{"type": "FUTURE_ACTION"})
	require.Empty(t, resp.Error, "unknown action types are ignored, not errors")
}
