package state

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tabcurator/tabcurator/internal/concurrency"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

type opKind int

const (
	opDispatch opKind = iota
	opGet
	opUndo
	opSubscribe
	opUnsubscribe
)

type request struct {
	op       opKind
	action   Action
	listener Listener
	subID    int
	result   chan error
	response chan interface{}
}

// Listener observes every applied transition. Listeners run on the writer
// goroutine, in subscription order, before Dispatch returns.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store is the single state container: tab activity, archived tabs, undo
// history, saved sessions and the tagging-prompt flag.
type Store struct {
	mu      sync.Mutex
	started bool
	quit    chan struct{}
	wg      sync.WaitGroup

	requests chan request

	data      Snapshot
	listeners []subscription
	nextSubID int
}

func NewStore() *Store {
	return &Store{
		requests: make(chan request),
		data: Snapshot{
			TabActivity:   make(map[int]int64),
			ArchivedTabs:  make(map[string][]ArchivedTab),
			SavedSessions: make(map[string][]SessionTab),
		},
	}
}

// Hydrate seeds archived tabs and saved sessions from persisted storage.
// Only valid before Start.
func (s *Store) Hydrate(archived map[string][]ArchivedTab, sessions map[string][]SessionTab) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return curatorErrors.Internal("store already started")
	}
	for tag, entries := range archived {
		s.data.ArchivedTabs[tag] = append([]ArchivedTab(nil), entries...)
	}
	for name, tabs := range sessions {
		s.data.SavedSessions[name] = append([]SessionTab(nil), tabs...)
	}
	return nil
}

func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	s.quit = make(chan struct{})

	s.wg.Add(1)
	concurrency.SafeGo(func() {
		defer s.wg.Done()
		s.run(ctx)
	}, nil)

	slog.Info("State store started")
	return nil
}

func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.quit)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("State store stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case req := <-s.requests:
			s.handle(req)
		}
	}
}

func (s *Store) handle(req request) {
	switch req.op {
	case opDispatch:
		err := s.apply(req.action)
		if err == nil {
			s.notify()
		}
		req.result <- err
	case opGet:
		req.response <- s.snapshot()
	case opUndo:
		entry, err := s.undo()
		if err == nil {
			s.notify()
		}
		req.response <- entry
		req.result <- err
	case opSubscribe:
		s.nextSubID++
		s.listeners = append(s.listeners, subscription{id: s.nextSubID, fn: req.listener})
		req.response <- s.nextSubID
	case opUnsubscribe:
		for i, sub := range s.listeners {
			if sub.id == req.subID {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				break
			}
		}
		req.result <- nil
	}
}

func (s *Store) submit(req request) error {
	s.mu.Lock()
	started := s.started
	quit := s.quit
	s.mu.Unlock()

	if !started {
		return curatorErrors.Internal("store not started")
	}

	select {
	case s.requests <- req:
		return nil
	case <-quit:
		return curatorErrors.Internal("store stopped")
	}
}

// Dispatch applies one action synchronously: the transition and all listener
// notifications complete before it returns. Validation failures surface as
// InvalidArgument; unknown actions are logged and ignored.
func (s *Store) Dispatch(action Action) error {
	req := request{op: opDispatch, action: action, result: make(chan error, 1)}
	if err := s.submit(req); err != nil {
		return err
	}
	return <-req.result
}

// GetState returns a deep copy of the current state.
func (s *Store) GetState() (Snapshot, error) {
	req := request{op: opGet, response: make(chan interface{}, 1)}
	if err := s.submit(req); err != nil {
		return Snapshot{}, err
	}
	return (<-req.response).(Snapshot), nil
}

// Undo pops the most recent history entry, removes the matching archive
// record (matched by URL) and returns the popped entry so the caller can
// recreate the tab. Empty history returns (nil, nil).
func (s *Store) Undo() (*HistoryEntry, error) {
	req := request{op: opUndo, result: make(chan error, 1), response: make(chan interface{}, 1)}
	if err := s.submit(req); err != nil {
		return nil, err
	}
	resp := <-req.response
	err := <-req.result
	entry, _ := resp.(*HistoryEntry)
	return entry, err
}

// Subscribe registers a listener and returns an unsubscribe func.
func (s *Store) Subscribe(listener Listener) (func(), error) {
	req := request{op: opSubscribe, listener: listener, response: make(chan interface{}, 1)}
	if err := s.submit(req); err != nil {
		return nil, err
	}
	id := (<-req.response).(int)
	return func() {
		unreq := request{op: opUnsubscribe, subID: id, result: make(chan error, 1)}
		if err := s.submit(unreq); err != nil {
			return
		}
		<-unreq.result
	}, nil
}

// apply runs on the writer goroutine.
func (s *Store) apply(action Action) error {
	switch a := action.(type) {
	case SetTaggingPrompt:
		s.data.TaggingPrompt = TaggingPrompt{Active: a.Active}
		if a.Active {
			s.data.TaggingPrompt.SetAt = time.Now()
		}
		return nil

	case UpdateTabActivity:
		if a.TabID <= 0 {
			return curatorErrors.InvalidArgument("tab ID must be a valid number")
		}
		if a.Timestamp <= 0 {
			return curatorErrors.InvalidArgument("timestamp must be a valid number")
		}
		s.data.TabActivity[a.TabID] = a.Timestamp
		return nil

	case RemoveTabActivity:
		if a.TabID <= 0 {
			return curatorErrors.InvalidArgument("tab ID must be a valid number")
		}
		delete(s.data.TabActivity, a.TabID)
		return nil

	case ArchiveTab:
		if strings.TrimSpace(a.Tag) == "" {
			return curatorErrors.InvalidArgument("tag must not be empty")
		}
		if a.Entry.URL == "" {
			return curatorErrors.InvalidArgument("archived tab must have a url")
		}
		s.data.ArchivedTabs[a.Tag] = append(s.data.ArchivedTabs[a.Tag], a.Entry)
		s.data.ActionHistory = append(s.data.ActionHistory, HistoryEntry{Tag: a.Tag, Entry: a.Entry})
		return nil

	case RecordSession:
		if strings.TrimSpace(a.Name) == "" {
			return curatorErrors.InvalidArgument("session name must not be empty")
		}
		// Later save under the same name overwrites.
		s.data.SavedSessions[a.Name] = append([]SessionTab(nil), a.Tabs...)
		return nil

	case DeleteSession:
		if _, ok := s.data.SavedSessions[a.Name]; !ok {
			return curatorErrors.NotFound(fmt.Sprintf("session %q", a.Name))
		}
		delete(s.data.SavedSessions, a.Name)
		return nil

	case UndoLastAction:
		_, err := s.undo()
		return err

	default:
		// Forward-compatible: unknown kinds are ignored, not fatal.
		slog.Warn("Unknown action dispatched", "action", fmt.Sprintf("%T", action))
		return nil
	}
}

// undo runs on the writer goroutine.
func (s *Store) undo() (*HistoryEntry, error) {
	n := len(s.data.ActionHistory)
	if n == 0 {
		return nil, nil
	}

	entry := s.data.ActionHistory[n-1]
	s.data.ActionHistory = s.data.ActionHistory[:n-1]

	list := s.data.ArchivedTabs[entry.Tag]
	removed := false
	// Remove exactly one entry, newest first, matched by URL.
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].URL == entry.Entry.URL {
			list = append(list[:i], list[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.data.ArchivedTabs[entry.Tag] = list
	} else {
		slog.Warn("Undo found no archive entry to remove", "tag", entry.Tag, "url", entry.Entry.URL)
	}

	return &entry, nil
}

// notify runs on the writer goroutine, in subscription order.
func (s *Store) notify() {
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshot()
	for _, sub := range s.listeners {
		sub.fn(snap)
	}
}

// snapshot runs on the writer goroutine.
func (s *Store) snapshot() Snapshot {
	snap := Snapshot{
		TabActivity:   make(map[int]int64, len(s.data.TabActivity)),
		ArchivedTabs:  make(map[string][]ArchivedTab, len(s.data.ArchivedTabs)),
		ActionHistory: append([]HistoryEntry(nil), s.data.ActionHistory...),
		SavedSessions: make(map[string][]SessionTab, len(s.data.SavedSessions)),
		TaggingPrompt: s.data.TaggingPrompt,
	}
	for id, ts := range s.data.TabActivity {
		snap.TabActivity[id] = ts
	}
	for tag, entries := range s.data.ArchivedTabs {
		snap.ArchivedTabs[tag] = append([]ArchivedTab(nil), entries...)
	}
	for name, tabs := range s.data.SavedSessions {
		snap.SavedSessions[name] = append([]SessionTab(nil), tabs...)
	}
	return snap
}
