package handlers

import (
	"sync"
	"time"

	"moodmap/internal/render"
)

const interactionIdle = 30 * time.Minute

type interactionKey struct {
	roomID   string
	memberID string
}

type interactionEntry struct {
	state   render.Interaction
	touched time.Time
}

// interactionStore remembers each viewer's hover and editor state between
// pointer requests and stream redraws.
type interactionStore struct {
	mu        sync.Mutex
	entries   map[interactionKey]interactionEntry
	now       func() time.Time
	lastPrune time.Time
}

func newInteractionStore() *interactionStore {
	return &interactionStore{
		entries: make(map[interactionKey]interactionEntry),
		now:     time.Now,
	}
}

func (s *interactionStore) Get(roomID, memberID string) render.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[interactionKey{roomID, memberID}]
	if !ok {
		return render.Idle()
	}
	return e.state
}

func (s *interactionStore) Set(roomID, memberID string, in render.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := interactionKey{roomID, memberID}
	if in.Mode == render.ModeIdle && in.HoveredTile == "" {
		delete(s.entries, key)
	} else {
		s.entries[key] = interactionEntry{state: in, touched: now}
	}
	if now.Sub(s.lastPrune) > interactionIdle {
		s.pruneLocked(now)
	}
}

func (s *interactionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *interactionStore) pruneLocked(now time.Time) {
	for k, e := range s.entries {
		if now.Sub(e.touched) > interactionIdle {
			delete(s.entries, k)
		}
	}
	s.lastPrune = now
}
