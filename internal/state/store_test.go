package state

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

func newStartedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestUpdateTabActivity(t *testing.T) {
	s := newStartedStore(t)

	snap, err := s.GetState()
	require.NoError(t, err)
	require.Empty(t, snap.TabActivity, "untracked tabs must have no entry")

	require.NoError(t, s.Dispatch(UpdateTabActivity{TabID: 7, Timestamp: 1111}))
	require.NoError(t, s.Dispatch(UpdateTabActivity{TabID: 7, Timestamp: 2222}))

	snap, err = s.GetState()
	require.NoError(t, err)
	require.Equal(t, int64(2222), snap.TabActivity[7], "later update overwrites")
}

func TestDispatchValidation(t *testing.T) {
	s := newStartedStore(t)

	cases := []struct {
		name   string
		action Action
	}{
		{"zero tab id", UpdateTabActivity{TabID: 0, Timestamp: 1}},
		{"negative tab id", UpdateTabActivity{TabID: -3, Timestamp: 1}},
		{"zero timestamp", UpdateTabActivity{TabID: 1, Timestamp: 0}},
		{"empty tag", ArchiveTab{Tag: "", Entry: ArchivedTab{URL: "https://a"}}},
		{"missing url", ArchiveTab{Tag: "w", Entry: ArchivedTab{}}},
		{"empty session name", RecordSession{Name: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Dispatch(tc.action)
			require.Error(t, err)
			require.True(t, errors.Is(err, curatorErrors.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestUndoIsLeftInverseOfArchive(t *testing.T) {
	s := newStartedStore(t)

	entry := ArchivedTab{Title: "Work", URL: "https://work.example", Timestamp: 42}
	require.NoError(t, s.Dispatch(ArchiveTab{Tag: "W", Entry: entry}))

	popped, err := s.Undo()
	require.NoError(t, err)
	require.NotNil(t, popped)
	require.Equal(t, "W", popped.Tag)
	require.Equal(t, entry.URL, popped.Entry.URL)

	snap, err := s.GetState()
	require.NoError(t, err)
	require.Empty(t, snap.ArchivedTabs["W"])
	require.Empty(t, snap.ActionHistory)
}

func TestArchiveThenUndoNTimes(t *testing.T) {
	for _, n := range []int{0, 1, 2, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := newStartedStore(t)

			for i := 0; i < n; i++ {
				entry := ArchivedTab{
					Title:     fmt.Sprintf("tab %d", i),
					URL:       fmt.Sprintf("https://example.com/%d", i),
					Timestamp: int64(i + 1),
				}
				require.NoError(t, s.Dispatch(ArchiveTab{Tag: "same", Entry: entry}))
			}

			for i := 0; i < n; i++ {
				entry, err := s.Undo()
				require.NoError(t, err)
				require.NotNil(t, entry)
			}

			snap, err := s.GetState()
			require.NoError(t, err)
			require.Empty(t, snap.ArchivedTabs["same"])
			require.Empty(t, snap.ActionHistory)

			// One more undo on empty history is a no-op.
			entry, err := s.Undo()
			require.NoError(t, err)
			require.Nil(t, entry)
		})
	}
}

func TestUndoRemovesNewestMatchingEntry(t *testing.T) {
	s := newStartedStore(t)

	first := ArchivedTab{Title: "a", URL: "https://dup.example", Timestamp: 1}
	second := ArchivedTab{Title: "b", URL: "https://dup.example", Timestamp: 2}
	require.NoError(t, s.Dispatch(ArchiveTab{Tag: "D", Entry: first}))
	require.NoError(t, s.Dispatch(ArchiveTab{Tag: "D", Entry: second}))

	_, err := s.Undo()
	require.NoError(t, err)

	snap, err := s.GetState()
	require.NoError(t, err)
	require.Len(t, snap.ArchivedTabs["D"], 1)
	require.Equal(t, "a", snap.ArchivedTabs["D"][0].Title, "exactly one entry removed, newest first")
}

func TestListenersRunInSubscriptionOrder(t *testing.T) {
	s := newStartedStore(t)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		_, err := s.Subscribe(func(Snapshot) { order = append(order, i) })
		require.NoError(t, err)
	}

	require.NoError(t, s.Dispatch(UpdateTabActivity{TabID: 1, Timestamp: 9}))
	require.Equal(t, []int{1, 2, 3}, order, "listeners complete before Dispatch returns, in order")
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := newStartedStore(t)

	calls := 0
	unsubscribe, err := s.Subscribe(func(Snapshot) { calls++ })
	require.NoError(t, err)

	require.NoError(t, s.Dispatch(UpdateTabActivity{TabID: 1, Timestamp: 1}))
	unsubscribe()
	require.NoError(t, s.Dispatch(UpdateTabActivity{TabID: 1, Timestamp: 2}))

	require.Equal(t, 1, calls)
}

func TestUnknownActionIsIgnored(t *testing.T) {
	s := newStartedStore(t)
	require.NoError(t, s.Dispatch(unknownAction{}))
}

type unknownAction struct{}

func (unknownAction) isAction() {}

func TestDeleteMissingSession(t *testing.T) {
	s := newStartedStore(t)

	err := s.Dispatch(DeleteSession{Name: "ghost"})
	require.Error(t, err)
	require.True(t, errors.Is(err, curatorErrors.ErrNotFound))
}

func TestRecordSessionOverwrites(t *testing.T) {
	s := newStartedStore(t)

	require.NoError(t, s.Dispatch(RecordSession{Name: "work", Tabs: []SessionTab{{URL: "https://a"}}}))
	require.NoError(t, s.Dispatch(RecordSession{Name: "work", Tabs: []SessionTab{{URL: "https://b"}, {URL: "https://c"}}}))

	snap, err := s.GetState()
	require.NoError(t, err)
	require.Len(t, snap.SavedSessions["work"], 2)
	require.Equal(t, "https://b", snap.SavedSessions["work"][0].URL)
}

func TestHydrateBeforeStartOnly(t *testing.T) {
	s := NewStore()
	archived := map[string][]ArchivedTab{"W": {{Title: "t", URL: "https://w", Timestamp: 5}}}
	sessions := map[string][]SessionTab{"s": {{URL: "https://s"}}}
	require.NoError(t, s.Hydrate(archived, sessions))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Error(t, s.Hydrate(nil, nil), "hydrate after start must fail")

	snap, err := s.GetState()
	require.NoError(t, err)
	require.Len(t, snap.ArchivedTabs["W"], 1)
	require.Len(t, snap.SavedSessions["s"], 1)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newStartedStore(t)
	require.NoError(t, s.Dispatch(ArchiveTab{Tag: "W", Entry: ArchivedTab{URL: "https://w"}}))

	snap, err := s.GetState()
	require.NoError(t, err)
	snap.ArchivedTabs["W"][0].URL = "https://mutated"
	snap.TabActivity[99] = 1

	fresh, err := s.GetState()
	require.NoError(t, err)
	require.Equal(t, "https://w", fresh.ArchivedTabs["W"][0].URL)
	require.NotContains(t, fresh.TabActivity, 99)
}
