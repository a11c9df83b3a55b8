package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"newsplugin/internal/model"
)

// DefaultLimit bounds each curation list.
const DefaultLimit = 100

const optionPrefix = "news_plugin_widget_options:"

// OptionStore is the global key-value configuration store.
type OptionStore interface {
	GetOption(ctx context.Context, key string) (string, bool, error)
	SetOption(ctx context.Context, key, value string) error
}

// Store persists per-instance curation state. Writes to the same instance
// are serialized; each operation stores the full record immediately.
type Store struct {
	options OptionStore
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*instanceLock
}

// instanceLock is dropped from the map once no caller holds or awaits it.
type instanceLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore(options OptionStore) *Store {
	return &Store{options: options, now: time.Now, locks: map[string]*instanceLock{}}
}

func (s *Store) lock(instance string) func() {
	s.mu.Lock()
	l, ok := s.locks[instance]
	if !ok {
		l = &instanceLock{}
		s.locks[instance] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, instance)
		}
		s.mu.Unlock()
	}
}

// Get returns the state of an instance; absent state is empty.
func (s *Store) Get(ctx context.Context, instance string) (model.CurationState, error) {
	var st model.CurationState
	raw, ok, err := s.options.GetOption(ctx, optionPrefix+instance)
	if err != nil {
		return st, fmt.Errorf("load curation %s: %w", instance, err)
	}
	if !ok || raw == "" {
		return st, nil
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return st, fmt.Errorf("decode curation %s: %w", instance, err)
	}
	return st, nil
}

func (s *Store) put(ctx context.Context, instance string, st model.CurationState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.options.SetOption(ctx, optionPrefix+instance, string(b)); err != nil {
		return fmt.Errorf("save curation %s: %w", instance, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, instance string, fn func(*model.CurationState)) error {
	unlock := s.lock(instance)
	defer unlock()
	st, err := s.Get(ctx, instance)
	if err != nil {
		return err
	}
	fn(&st)
	return s.put(ctx, instance, st)
}

// Exclude hides id from the feed.
func (s *Store) Exclude(ctx context.Context, instance, id string, limit int) error {
	return s.update(ctx, instance, func(st *model.CurationState) {
		st.Excluded = prepend(st.Excluded, id, limit)
	})
}

// Star moves id to the top of the feed.
func (s *Store) Star(ctx context.Context, instance, id string, limit int) error {
	return s.update(ctx, instance, func(st *model.CurationState) {
		st.Favorite = prepend(st.Favorite, id, limit)
	})
}

// Unstar removes every occurrence of id from the favorites.
func (s *Store) Unstar(ctx context.Context, instance, id string) error {
	return s.update(ctx, instance, func(st *model.CurationState) {
		st.Favorite = without(st.Favorite, id)
	})
}

// Reset clears both lists; the publish time is kept.
func (s *Store) Reset(ctx context.Context, instance string) error {
	return s.update(ctx, instance, func(st *model.CurationState) {
		st.Excluded = []string{}
		st.Favorite = []string{}
	})
}

// SetPublished records a publish time, clamped to now.
func (s *Store) SetPublished(ctx context.Context, instance string, t int64) error {
	now := s.now().Unix()
	if t > now {
		t = now
	}
	return s.update(ctx, instance, func(st *model.CurationState) {
		st.PublishedAt = t
	})
}

func prepend(list []string, id string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, id)
	out = append(out, list...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
