// Package tabs wraps the host tab API with input validation and the curator
// error taxonomy. Every call is context-bound and maps raw host failures onto
// sentinel categories so callers can branch on errors.Is.
package tabs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tabcurator/tabcurator/internal/browser"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

type Adapter struct {
	host browser.Host
}

func NewAdapter(host browser.Host) *Adapter {
	return &Adapter{host: host}
}

func (a *Adapter) Query(ctx context.Context, filter browser.QueryFilter) ([]browser.Tab, error) {
	tabs, err := a.host.Tabs().Query(ctx, filter)
	if err != nil {
		return nil, curatorErrors.MapHostError(err)
	}
	return tabs, nil
}

func (a *Adapter) Get(ctx context.Context, id int) (browser.Tab, error) {
	if id <= 0 {
		return browser.Tab{}, curatorErrors.InvalidArgument("tab ID must be a valid number")
	}

	tab, err := a.host.Tabs().Get(ctx, id)
	if err != nil {
		return browser.Tab{}, curatorErrors.MapHostError(err)
	}

	// Guard against a stale or detached tab object.
	if tab.ID == 0 || tab.URL == "" {
		return browser.Tab{}, curatorErrors.InvalidTabData("tab record missing id or url")
	}
	return tab, nil
}

func (a *Adapter) Create(ctx context.Context, props browser.CreateProps) (browser.Tab, error) {
	if strings.TrimSpace(props.URL) == "" {
		return browser.Tab{}, curatorErrors.InvalidArgument("tab URL is required")
	}

	tab, err := a.host.Tabs().Create(ctx, props)
	if err != nil {
		return browser.Tab{}, curatorErrors.MapHostError(err)
	}
	return tab, nil
}

func (a *Adapter) Update(ctx context.Context, id int, props browser.UpdateProps) (browser.Tab, error) {
	if id <= 0 {
		return browser.Tab{}, curatorErrors.InvalidArgument("tab ID must be a valid number")
	}

	tab, err := a.host.Tabs().Update(ctx, id, props)
	if err != nil {
		return browser.Tab{}, curatorErrors.MapHostError(err)
	}
	return tab, nil
}

func (a *Adapter) Remove(ctx context.Context, id int) error {
	if id <= 0 {
		return curatorErrors.InvalidArgument("tab ID must be a valid number")
	}

	if err := a.host.Tabs().Remove(ctx, id); err != nil {
		return curatorErrors.MapHostError(err)
	}
	return nil
}

// Discard unloads a tab's content. Suspension is best-effort: on a host
// without the capability this resolves as a logged no-op success.
func (a *Adapter) Discard(ctx context.Context, id int) (browser.Tab, error) {
	if id <= 0 {
		return browser.Tab{}, curatorErrors.InvalidArgument("tab ID must be a valid number")
	}

	if !a.host.Capabilities().TabDiscard {
		slog.Info("Host does not support tab discard, skipping", "tab", id)
		return browser.Tab{}, nil
	}

	tab, err := a.host.Tabs().Discard(ctx, id)
	if err != nil {
		return browser.Tab{}, curatorErrors.MapHostError(err)
	}
	return tab, nil
}
