package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/browser"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
	"github.com/tabcurator/tabcurator/internal/settings"
	"github.com/tabcurator/tabcurator/internal/state"
)

// Inbound actions exposed to popup, content and options collaborators.
const (
	ActionSaveSession         = "saveSession"
	ActionRestoreSession      = "restoreSession"
	ActionGetSessions         = "getSessions"
	ActionDeleteSession       = "deleteSession"
	ActionUpdateRules         = "updateRules"
	ActionGetRules            = "getRules"
	ActionSuspendInactiveTabs = "suspendInactiveTabs"
	ActionTagAdded            = "tagAdded"
	ActionGetState            = "getState"
	ActionDispatch            = "DISPATCH_ACTION"
	ActionTaggingPrompt       = "taggingPrompt"
)

// Dispatched action types carried inside a DISPATCH_ACTION payload.
const (
	dispatchSetTaggingPrompt  = "SET_TAGGING_PROMPT_ACTIVE"
	dispatchUpdateTabActivity = "UPDATE_TAB_ACTIVITY"
	dispatchRemoveTabActivity = "REMOVE_TAB_ACTIVITY"
	dispatchArchiveTab        = "ARCHIVE_TAB"
	dispatchUndoLastAction    = "UNDO_LAST_ACTION"
)

// Sweeper triggers an on-demand suspension sweep.
type Sweeper interface {
	SweepNow(ctx context.Context) error
}

// Curator is the subset of tab operations the channel exposes.
type Curator interface {
	TagTab(ctx context.Context, id int, tag string) (browser.Tab, error)
	Undo(ctx context.Context) (*state.HistoryEntry, error)
	SaveSession(ctx context.Context, name string) (int, error)
	RestoreSession(ctx context.Context, name string) (int, error)
	Sessions(ctx context.Context) (map[string][]state.SessionTab, error)
	DeleteSession(ctx context.Context, name string) error
}

type Handlers struct {
	Curator  Curator
	Store    *state.Store
	Settings *settings.Service
	Sweeper  Sweeper
}

// Register wires every inbound action into the router.
func (h Handlers) Register(r *Router) {
	r.Register(ActionSaveSession, h.saveSession)
	r.Register(ActionRestoreSession, h.restoreSession)
	r.Register(ActionGetSessions, h.getSessions)
	r.Register(ActionDeleteSession, h.deleteSession)
	r.Register(ActionUpdateRules, h.updateRules)
	r.Register(ActionGetRules, h.getRules)
	r.Register(ActionSuspendInactiveTabs, h.suspendInactiveTabs)
	r.Register(ActionTagAdded, h.tagAdded)
	r.Register(ActionGetState, h.getState)
	r.Register(ActionDispatch, h.dispatchAction)
}

type sessionPayload struct {
	Name string `json:"name"`
}

func (h Handlers) saveSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p sessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, curatorErrors.InvalidArgument("malformed saveSession payload")
	}
	count, err := h.Curator.SaveSession(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "savedTabs": count}, nil
}

func (h Handlers) restoreSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p sessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, curatorErrors.InvalidArgument("malformed restoreSession payload")
	}
	count, err := h.Curator.RestoreSession(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "restoredTabs": count}, nil
}

func (h Handlers) getSessions(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	sessions, err := h.Curator.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"sessions": sessions}, nil
}

func (h Handlers) deleteSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p sessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, curatorErrors.InvalidArgument("malformed deleteSession payload")
	}
	if err := h.Curator.DeleteSession(ctx, p.Name); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}

func (h Handlers) updateRules(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p struct {
		Rules []settings.Rule `json:"rules"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, curatorErrors.InvalidArgument("malformed updateRules payload")
	}
	if err := h.Settings.SaveRules(ctx, p.Rules); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "count": len(p.Rules)}, nil
}

func (h Handlers) getRules(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	cfg, err := h.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	rules := cfg.Rules
	if rules == nil {
		rules = []settings.Rule{}
	}
	return map[string]interface{}{"rules": rules}, nil
}

func (h Handlers) suspendInactiveTabs(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	if err := h.Sweeper.SweepNow(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}

// tagAdded tags the tab when payload carries one, and always clears the
// tagging prompt. Tagging failure still dismisses the prompt: the user has
// answered it.
func (h Handlers) tagAdded(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p struct {
		TabID int    `json:"tabId"`
		Tag   string `json:"tag"`
	}
	var tagErr error
	if err := json.Unmarshal(payload, &p); err != nil {
		tagErr = curatorErrors.InvalidArgument("malformed tagAdded payload")
	} else if p.TabID > 0 && p.Tag != "" {
		if _, err := h.Curator.TagTab(ctx, p.TabID, p.Tag); err != nil {
			tagErr = err
		}
	}

	if err := h.Store.Dispatch(state.SetTaggingPrompt{Active: false}); err != nil {
		slog.Warn("Failed to clear tagging prompt", "error", err)
	}
	if tagErr != nil {
		return nil, tagErr
	}
	return map[string]interface{}{"success": true}, nil
}

func (h Handlers) getState(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	snap, err := h.Store.GetState()
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// dispatchAction decodes a tagged action document and feeds it into the
// store. Undo routes through the curator so the archived tab is recreated.
func (h Handlers) dispatchAction(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, curatorErrors.InvalidArgument("malformed action payload")
	}

	switch head.Type {
	case dispatchSetTaggingPrompt:
		var p struct {
			Value *bool `json:"value"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.Value == nil {
			return nil, curatorErrors.InvalidArgument("value must be a boolean")
		}
		return nil, h.Store.Dispatch(state.SetTaggingPrompt{Active: *p.Value})

	case dispatchUpdateTabActivity:
		var p struct {
			TabID     int   `json:"tabId"`
			Timestamp int64 `json:"timestamp"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, curatorErrors.InvalidArgument("malformed UPDATE_TAB_ACTIVITY payload")
		}
		return nil, h.Store.Dispatch(state.UpdateTabActivity{TabID: p.TabID, Timestamp: p.Timestamp})

	case dispatchRemoveTabActivity:
		var p struct {
			TabID int `json:"tabId"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, curatorErrors.InvalidArgument("malformed REMOVE_TAB_ACTIVITY payload")
		}
		return nil, h.Store.Dispatch(state.RemoveTabActivity{TabID: p.TabID})

	case dispatchArchiveTab:
		var p struct {
			Tag     string            `json:"tag"`
			TabData state.ArchivedTab `json:"tabData"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, curatorErrors.InvalidArgument("malformed ARCHIVE_TAB payload")
		}
		return nil, h.Store.Dispatch(state.ArchiveTab{Tag: p.Tag, Entry: p.TabData})

	case dispatchUndoLastAction:
		entry, err := h.Curator.Undo(ctx)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return map[string]interface{}{"undone": false}, nil
		}
		return map[string]interface{}{"undone": true, "tag": entry.Tag}, nil

	default:
		// Unknown action types are ignored, matching the store's own policy.
		slog.Warn("Unknown dispatched action type", "type", head.Type)
		return map[string]interface{}{"ignored": fmt.Sprintf("unknown action type %q", head.Type)}, nil
	}
}
