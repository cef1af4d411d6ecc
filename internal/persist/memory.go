package persist

import (
	"context"
	"sort"
	"sync"
	"time"

	"moodmap/internal/room"
)

var _ room.Backend = (*Memory)(nil)

// Memory keeps everything in process. It is the default backend and the one
// tests use.
type Memory struct {
	mu      sync.Mutex
	rooms   map[string]room.Meta
	members map[string]map[string]room.Member // room -> anon -> member
	moods   map[string]map[string]room.Mood   // room -> member -> mood
}

func NewMemory() *Memory {
	return &Memory{
		rooms:   make(map[string]room.Meta),
		members: make(map[string]map[string]room.Member),
		moods:   make(map[string]map[string]room.Mood),
	}
}

func (m *Memory) SaveRoom(_ context.Context, meta room.Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[meta.ID] = meta
	return nil
}

func (m *Memory) LoadRooms(_ context.Context) ([]room.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]room.Meta, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveMember(_ context.Context, mem room.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAnon, ok := m.members[mem.RoomID]
	if !ok {
		byAnon = make(map[string]room.Member)
		m.members[mem.RoomID] = byAnon
	}
	if _, exists := byAnon[mem.AnonID]; !exists {
		byAnon[mem.AnonID] = mem
	}
	return nil
}

func (m *Memory) LoadMembers(_ context.Context, roomID string) ([]room.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]room.Member, 0, len(m.members[roomID]))
	for _, mem := range m.members[roomID] {
		out = append(out, mem)
	}
	return out, nil
}

func (m *Memory) SaveMood(_ context.Context, md room.Mood) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byMember, ok := m.moods[md.RoomID]
	if !ok {
		byMember = make(map[string]room.Mood)
		m.moods[md.RoomID] = byMember
	}
	if old, exists := byMember[md.MemberID]; exists && !old.CreatedAt.IsZero() {
		md.CreatedAt = old.CreatedAt
	}
	byMember[md.MemberID] = md
	return nil
}

func (m *Memory) LoadMoods(_ context.Context, roomID string) ([]room.Mood, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]room.Mood, 0, len(m.moods[roomID]))
	for _, md := range m.moods[roomID] {
		out = append(out, md)
	}
	return out, nil
}

func (m *Memory) DeleteMoodsBefore(_ context.Context, roomID string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, md := range m.moods[roomID] {
		if !md.UpdatedAt.After(cutoff) {
			delete(m.moods[roomID], id)
		}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
