package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// storageArea implements browser.StorageAPI. When path is set, every write is
// flushed to disk atomically so the area behaves like the host's sync storage.
type storageArea struct {
	path  string
	items map[string][]byte
	mu    sync.RWMutex
}

func (s *storageArea) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.items[k] = []byte(v)
	}
	return nil
}

// caller holds s.mu
func (s *storageArea) flush() error {
	if s.path == "" {
		return nil
	}

	raw := make(map[string]json.RawMessage, len(s.items))
	for k, v := range s.items {
		raw[k] = json.RawMessage(v)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

func (s *storageArea) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if v, ok := s.items[key]; ok {
			out[key] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (s *storageArea) Set(ctx context.Context, items map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range items {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		s.items[key] = data
	}
	return s.flush()
}
