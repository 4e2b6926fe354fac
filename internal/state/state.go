// Package state holds the curator's mutable state behind a single-writer
// dispatch loop. All mutation flows through Dispatch; one goroutine owns the
// data, so no caller ever takes a lock on it.
package state

import (
	"time"
)

// ArchivedTab is the metadata kept for a tab archived under a tag.
type ArchivedTab struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// SessionTab is one entry of a saved session snapshot.
type SessionTab struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// HistoryEntry is a reversible action on the undo stack. Archive is the only
// kind currently recorded.
type HistoryEntry struct {
	Tag   string      `json:"tag"`
	Entry ArchivedTab `json:"entry"`
}

// TaggingPrompt tracks the "please tag the oldest tab" request. SetAt allows
// a bounded expiry so a lost acknowledgment cannot lock the prompt forever.
type TaggingPrompt struct {
	Active bool      `json:"active"`
	SetAt  time.Time `json:"set_at"`
}

// Snapshot is a deep copy of the store state handed to readers and listeners.
type Snapshot struct {
	TabActivity   map[int]int64            `json:"tabActivity"`
	ArchivedTabs  map[string][]ArchivedTab `json:"archivedTabs"`
	ActionHistory []HistoryEntry           `json:"actionHistory"`
	SavedSessions map[string][]SessionTab  `json:"savedSessions"`
	TaggingPrompt TaggingPrompt            `json:"taggingPrompt"`
}

// Action is the closed set of state transitions. Concrete kinds below; the
// apply loop switches exhaustively and logs anything it does not recognize.
type Action interface {
	isAction()
}

type SetTaggingPrompt struct {
	Active bool
}

type UpdateTabActivity struct {
	TabID     int
	Timestamp int64
}

type RemoveTabActivity struct {
	TabID int
}

type ArchiveTab struct {
	Tag   string
	Entry ArchivedTab
}

type RecordSession struct {
	Name string
	Tabs []SessionTab
}

type DeleteSession struct {
	Name string
}

type UndoLastAction struct{}

func (SetTaggingPrompt) isAction()  {}
func (UpdateTabActivity) isAction() {}
func (RemoveTabActivity) isAction() {}
func (ArchiveTab) isAction()        {}
func (RecordSession) isAction()     {}
func (DeleteSession) isAction()     {}
func (UndoLastAction) isAction()    {}
