package browser

import (
	"context"
	"encoding/json"
	"time"
)

// Tab mirrors the host's view of an open tab. The host owns the record; the
// curator only reads and mutates it through the TabAPI.
type Tab struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Active    bool   `json:"active"`
	Discarded bool   `json:"discarded"`
}

// QueryFilter narrows a tab query. Zero value matches every tab.
type QueryFilter struct {
	Active      *bool
	URLContains string
}

type CreateProps struct {
	URL    string
	Title  string
	Active bool
}

// UpdateProps carries the fields to change; nil fields are left untouched.
type UpdateProps struct {
	Title  *string
	URL    *string
	Active *bool
}

type TabEventKind string

const (
	TabCreated   TabEventKind = "created"
	TabActivated TabEventKind = "activated"
	TabUpdated   TabEventKind = "updated"
	TabRemoved   TabEventKind = "removed"
)

type TabEvent struct {
	Kind TabEventKind
	Tab  Tab
	At   time.Time
}

// TabAPI is the host tab surface consumed by the adapter.
type TabAPI interface {
	Query(ctx context.Context, filter QueryFilter) ([]Tab, error)
	Get(ctx context.Context, id int) (Tab, error)
	Create(ctx context.Context, props CreateProps) (Tab, error)
	Update(ctx context.Context, id int, props UpdateProps) (Tab, error)
	Remove(ctx context.Context, id int) error
	Discard(ctx context.Context, id int) (Tab, error)
}

// StorageAPI is the host sync-storage surface.
type StorageAPI interface {
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, items map[string]interface{}) error
}

type Alarm struct {
	Name string
	At   time.Time
}

// AlarmAPI delivers periodic alarms by name.
type AlarmAPI interface {
	Create(name string, period time.Duration) error
	Clear(name string) error
	Alarms() <-chan Alarm
}

// Capabilities reports optional host features.
type Capabilities struct {
	TabDiscard bool
}

// Host bundles the surfaces a running browser exposes to the curator.
type Host interface {
	Tabs() TabAPI
	Storage() StorageAPI
	Alarms() AlarmAPI
	TabEvents() <-chan TabEvent
	Capabilities() Capabilities
}
