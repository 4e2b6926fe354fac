package tabs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabcurator/tabcurator/internal/browser"
	"github.com/tabcurator/tabcurator/internal/browser/memory"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

func newAdapter(t *testing.T, opts ...memory.Option) *Adapter {
	t.Helper()
	host, err := memory.NewHost(opts...)
	require.NoError(t, err)
	t.Cleanup(host.Close)
	return NewAdapter(host)
}

func TestGetValidation(t *testing.T) {
	a := newAdapter(t)

	for _, id := range []int{0, -1} {
		_, err := a.Get(context.Background(), id)
		require.True(t, errors.Is(err, curatorErrors.ErrInvalidArgument), "id %d", id)
	}
}

func TestGetMissingTab(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Get(context.Background(), 42)
	require.True(t, errors.Is(err, curatorErrors.ErrNotFound))
}

func TestCreateRequiresURL(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Create(context.Background(), browser.CreateProps{Title: "no url"})
	require.True(t, errors.Is(err, curatorErrors.ErrInvalidArgument))
}

func TestCreateAndQuery(t *testing.T) {
	a := newAdapter(t)

	first, err := a.Create(context.Background(), browser.CreateProps{Title: "a", URL: "https://a.example"})
	require.NoError(t, err)
	_, err = a.Create(context.Background(), browser.CreateProps{Title: "b", URL: "https://b.example", Active: true})
	require.NoError(t, err)

	all, err := a.Query(context.Background(), browser.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, first.ID, all[0].ID, "query preserves creation order")

	active := true
	onlyActive, err := a.Query(context.Background(), browser.QueryFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	require.Equal(t, "b", onlyActive[0].Title)

	byURL, err := a.Query(context.Background(), browser.QueryFilter{URLContains: "a.example"})
	require.NoError(t, err)
	require.Len(t, byURL, 1)
}

func TestUpdateTitle(t *testing.T) {
	a := newAdapter(t)

	tab, err := a.Create(context.Background(), browser.CreateProps{Title: "old", URL: "https://u.example"})
	require.NoError(t, err)

	title := "new"
	updated, err := a.Update(context.Background(), tab.ID, browser.UpdateProps{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "new", updated.Title)
}

func TestRemove(t *testing.T) {
	a := newAdapter(t)

	tab, err := a.Create(context.Background(), browser.CreateProps{URL: "https://r.example"})
	require.NoError(t, err)
	require.NoError(t, a.Remove(context.Background(), tab.ID))

	err = a.Remove(context.Background(), tab.ID)
	require.True(t, errors.Is(err, curatorErrors.ErrNotFound))
}

func TestDiscard(t *testing.T) {
	a := newAdapter(t)

	tab, err := a.Create(context.Background(), browser.CreateProps{URL: "https://d.example"})
	require.NoError(t, err)

	discarded, err := a.Discard(context.Background(), tab.ID)
	require.NoError(t, err)
	require.True(t, discarded.Discarded)
}

func TestDiscardWithoutCapabilityIsNoop(t *testing.T) {
	a := newAdapter(t, memory.WithoutDiscard())

	tab, err := a.Create(context.Background(), browser.CreateProps{URL: "https://d.example"})
	require.NoError(t, err)

	_, err = a.Discard(context.Background(), tab.ID)
	require.NoError(t, err, "missing capability resolves as no-op success")

	got, err := a.Get(context.Background(), tab.ID)
	require.NoError(t, err)
	require.False(t, got.Discarded)
}
