package realtime

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Room pairs shared state with the broadcaster its viewers listen on.
type Room[T any] struct {
	ID    string
	State T
	hub   *Broadcaster
}

// Hub returns the room's broadcaster.
func (r *Room[T]) Hub() *Broadcaster { return r.hub }

// RoomStore indexes live rooms by id and runs at most one timing loop per room.
type RoomStore[T any] struct {
	mu    sync.RWMutex
	rooms map[string]*Room[T]
	loops map[string]context.CancelFunc
	wakes map[string]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRoomStore creates an empty room store.
func NewRoomStore[T any]() *RoomStore[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomStore[T]{
		rooms:  make(map[string]*Room[T]),
		loops:  make(map[string]context.CancelFunc),
		wakes:  make(map[string]chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Create adds a room with the given id and state. An existing room with the
// same id is returned unchanged.
func (s *RoomStore[T]) Create(id string, state T) *Room[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r
	}
	r := &Room[T]{ID: id, State: state, hub: NewBroadcaster()}
	s.rooms[id] = r
	return r
}

// Get returns the room by ID if it exists.
func (s *RoomStore[T]) Get(id string) (*Room[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// IDs returns the ids of all live rooms, sorted.
func (s *RoomStore[T]) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live rooms.
func (s *RoomStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Delete stops the room's loop, disconnects its subscribers and forgets it.
func (s *RoomStore[T]) Delete(id string) {
	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	if cancel, running := s.loops[id]; running {
		cancel()
	}
	s.mu.Unlock()
	if ok {
		r.hub.Close()
	}
}

// Publish notifies subscribers of the room. Unknown rooms are ignored.
func (s *RoomStore[T]) Publish(id string, event string) {
	if hub := s.Broadcaster(id); hub != nil {
		hub.Publish(event)
	}
}

// Broadcaster returns the room's broadcaster, or nil for an unknown room.
func (s *RoomStore[T]) Broadcaster(id string) *Broadcaster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[id]; ok {
		return r.hub
	}
	return nil
}

// TickFunc is called by RunLoop to determine the next wake time and events to
// publish. A zero next parks the loop until Wake. stop true exits the loop.
type TickFunc[T any] func(state T, now time.Time) (next time.Time, events []string, stop bool)

// RunLoop starts a timing loop for the room. If a loop already exists for id,
// it is not started again.
func (s *RoomStore[T]) RunLoop(id string, getState func() T, tick TickFunc[T]) {
	s.mu.Lock()
	if _, ok := s.loops[id]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	wake := make(chan struct{}, 1)
	s.loops[id] = cancel
	s.wakes[id] = wake
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.loops, id)
			delete(s.wakes, id)
			s.mu.Unlock()
			cancel()
		}()

		for {
			next, events, stop := tick(getState(), time.Now().UTC())
			if stop {
				return
			}
			for _, e := range events {
				s.Publish(id, e)
			}

			var fire <-chan time.Time
			var timer *time.Timer
			if !next.IsZero() {
				wait := time.Until(next)
				if wait < 0 {
					wait = 0
				}
				timer = time.NewTimer(wait)
				fire = timer.C
			}
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case <-fire:
			case <-wake:
				if timer != nil {
					timer.Stop()
				}
			}
		}
	}()
}

// Wake unblocks the room's loop so it recomputes immediately.
func (s *RoomStore[T]) Wake(id string) {
	s.mu.RLock()
	wake, ok := s.wakes[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Close stops every loop and disconnects every subscriber.
func (s *RoomStore[T]) Close() {
	s.cancel()
	s.mu.RLock()
	hubs := make([]*Broadcaster, 0, len(s.rooms))
	for _, r := range s.rooms {
		hubs = append(hubs, r.hub)
	}
	s.mu.RUnlock()
	for _, h := range hubs {
		h.Close()
	}
}
