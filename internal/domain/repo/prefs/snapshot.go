package prefs

import (
	"context"
	"sync"

	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
)

// Snapshot is a read-through in-memory view over a PreferenceStore. Warm
// loads everything once at startup; later reads only hit the backend on a
// miss, and writes go through to both.
type Snapshot struct {
	store repo.PreferenceStore

	mu    sync.RWMutex
	cache map[entity.UserID]entity.Preference
}

func NewSnapshot(store repo.PreferenceStore) *Snapshot {
	return &Snapshot{
		store: store,
		cache: map[entity.UserID]entity.Preference{},
	}
}

// Warm bulk-loads the backend. Returns the number of cached preferences.
func (s *Snapshot) Warm(ctx context.Context) (int, error) {
	preferences, err := s.store.ListPreferences(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pref := range preferences {
		s.cache[pref.User] = pref
	}

	return len(s.cache), nil
}

func (s *Snapshot) GetPreference(ctx context.Context, user entity.UserID) (entity.Preference, error) {
	s.mu.RLock()
	pref, ok := s.cache[user]
	s.mu.RUnlock()

	if ok {
		return pref, nil
	}

	pref, err := s.store.GetPreference(ctx, user)
	if err != nil {
		return entity.Preference{}, err
	}

	s.mu.Lock()
	s.cache[user] = pref
	s.mu.Unlock()

	return pref, nil
}

func (s *Snapshot) ListPreferences(ctx context.Context) ([]entity.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]entity.Preference, 0, len(s.cache))
	for _, pref := range s.cache {
		ret = append(ret, pref)
	}

	return ret, nil
}

func (s *Snapshot) PutPreference(ctx context.Context, pref entity.Preference) error {
	err := s.store.PutPreference(ctx, pref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[pref.User] = pref
	s.mu.Unlock()

	return nil
}
