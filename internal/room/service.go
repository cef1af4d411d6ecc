package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"moodmap/internal/logutil"
	"moodmap/internal/mood"
	"moodmap/pkg/realtime"
)

// Backend persists rooms, members and moods. SaveMood upserts by
// (room, member).
type Backend interface {
	SaveRoom(ctx context.Context, m Meta) error
	LoadRooms(ctx context.Context) ([]Meta, error)
	SaveMember(ctx context.Context, m Member) error
	LoadMembers(ctx context.Context, roomID string) ([]Member, error)
	SaveMood(ctx context.Context, m Mood) error
	LoadMoods(ctx context.Context, roomID string) ([]Mood, error)
	DeleteMoodsBefore(ctx context.Context, roomID string, cutoff time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// Options configure a Service.
type Options struct {
	// Retention is how long a mood stays without being renewed; zero keeps
	// moods forever.
	Retention time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service owns every live room and writes through to the backend.
type Service struct {
	rooms     *realtime.RoomStore[*Room]
	backend   Backend
	catalog   *mood.Catalog
	retention realtime.Retention
	now       func() time.Time

	mu    sync.RWMutex
	slugs map[string]string // slug -> room id
}

// NewService creates an empty service. Call Load to restore persisted rooms.
func NewService(c *mood.Catalog, backend Backend, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		rooms:     realtime.NewRoomStore[*Room](),
		backend:   backend,
		catalog:   c,
		retention: realtime.Retention{TTL: opts.Retention},
		now:       now,
		slugs:     make(map[string]string),
	}
}

// Catalog returns the emotion catalog moods are validated against.
func (s *Service) Catalog() *mood.Catalog { return s.catalog }

// Load restores rooms, members and moods from the backend. Duplicate moods
// for one member collapse to the latest.
func (s *Service) Load(ctx context.Context) error {
	metas, err := s.backend.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	for _, meta := range metas {
		r := newRoom(meta)
		members, err := s.backend.LoadMembers(ctx, meta.ID)
		if err != nil {
			return fmt.Errorf("load members of %s: %w", meta.ID, err)
		}
		for _, m := range members {
			r.addMember(m)
		}
		moods, err := s.backend.LoadMoods(ctx, meta.ID)
		if err != nil {
			return fmt.Errorf("load moods of %s: %w", meta.ID, err)
		}
		for _, m := range moods {
			r.upsert(m)
		}
		s.register(r)
	}
	logutil.Infof("restored %d rooms", len(metas))
	return nil
}

func (s *Service) register(r *Room) {
	s.mu.Lock()
	s.slugs[r.Slug] = r.ID
	s.mu.Unlock()
	s.rooms.Create(r.ID, r)
	s.ensureSweep(r.ID)
}

// CreateRoom validates the title, derives a unique slug and persists the room.
func (s *Service) CreateRoom(ctx context.Context, title, passcode, createdBy string) (*Room, error) {
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	meta := Meta{
		ID:        uuid.NewString(),
		Title:     title,
		Passcode:  strings.TrimSpace(passcode),
		CreatedBy: createdBy,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	meta.Slug = s.uniqueSlugLocked(Slugify(title))
	s.slugs[meta.Slug] = meta.ID
	s.mu.Unlock()

	if err := s.backend.SaveRoom(ctx, meta); err != nil {
		s.mu.Lock()
		delete(s.slugs, meta.Slug)
		s.mu.Unlock()
		return nil, fmt.Errorf("save room: %w", err)
	}
	r := newRoom(meta)
	s.rooms.Create(r.ID, r)
	s.ensureSweep(r.ID)
	logutil.Infof("room %s created as /r/%s", r.ID, r.Slug)
	return r, nil
}

func (s *Service) uniqueSlugLocked(slug string) string {
	if slug == "" {
		slug = shortID(8)
	}
	candidate := slug
	for {
		if _, taken := s.slugs[candidate]; !taken {
			return candidate
		}
		base := slug
		if len(base) > MaxSlugLen-5 {
			base = strings.TrimRight(base[:MaxSlugLen-5], "-")
		}
		candidate = base + "-" + shortID(4)
	}
}

// ResolveRoom finds a room by slug, then by id.
func (s *Service) ResolveRoom(slugOrID string) (*Room, error) {
	key := strings.TrimSpace(slugOrID)
	s.mu.RLock()
	id, ok := s.slugs[strings.ToLower(key)]
	s.mu.RUnlock()
	if !ok {
		id = key
	}
	live, ok := s.rooms.Get(id)
	if !ok || live.State == nil {
		return nil, fmt.Errorf("resolve %q: %w", slugOrID, ErrRoomNotFound)
	}
	return live.State, nil
}

// Unlock checks a passcode and returns the access token to remember.
func (s *Service) Unlock(r *Room, passcode string) (string, error) {
	if !r.CheckPasscode(strings.TrimSpace(passcode)) {
		return "", ErrAccessDenied
	}
	return r.AccessToken(), nil
}

// EnsureMember returns the member for anonID, creating it on first visit.
func (s *Service) EnsureMember(ctx context.Context, r *Room, anonID string) (Member, error) {
	if anonID == "" {
		return Member{}, fmt.Errorf("ensure member: %w", ErrNotMember)
	}
	m, created := r.addMember(Member{
		ID:       uuid.NewString(),
		RoomID:   r.ID,
		AnonID:   anonID,
		JoinedAt: s.now(),
	})
	if !created {
		return m, nil
	}
	if err := s.backend.SaveMember(ctx, m); err != nil {
		r.removeMember(m)
		return Member{}, fmt.Errorf("save member: %w", err)
	}
	return m, nil
}

// SubmitMood records a confirmed selection as the member's current mood.
func (s *Service) SubmitMood(ctx context.Context, r *Room, memberID string, sel mood.Selection) (Mood, error) {
	if _, ok := s.catalog.Lookup(sel.EmotionKey); !ok {
		return Mood{}, fmt.Errorf("submit %q: %w", sel.EmotionKey, ErrUnknownEmotion)
	}
	now := s.now()
	return s.store(ctx, r, Mood{
		ID:         uuid.NewString(),
		RoomID:     r.ID,
		MemberID:   memberID,
		EmotionKey: sel.EmotionKey,
		Valence:    clampAffect(sel.Valence),
		Arousal:    clampAffect(sel.Arousal),
		Label:      sel.Label,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// PostEmotion records a discrete pick at the emotion's anchor.
func (s *Service) PostEmotion(ctx context.Context, r *Room, memberID, key string) (Mood, error) {
	a, ok := s.catalog.Lookup(key)
	if !ok {
		return Mood{}, fmt.Errorf("post %q: %w", key, ErrUnknownEmotion)
	}
	return s.SubmitMood(ctx, r, memberID, mood.Selection{EmotionKey: a.Key, Valence: a.Valence, Arousal: a.Arousal})
}

// ApplyRemote applies a mood produced elsewhere. It reports false when the
// room already holds a newer mood for that member.
func (s *Service) ApplyRemote(ctx context.Context, r *Room, m Mood) (bool, error) {
	if _, ok := s.catalog.Lookup(m.EmotionKey); !ok {
		return false, fmt.Errorf("apply %q: %w", m.EmotionKey, ErrUnknownEmotion)
	}
	m.RoomID = r.ID
	m.Valence, m.Arousal = clampAffect(m.Valence), clampAffect(m.Arousal)
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if cur, ok := r.CurrentMood(m.MemberID); ok && !m.newer(cur) {
		return false, nil
	}
	if _, err := s.store(ctx, r, m); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) store(ctx context.Context, r *Room, m Mood) (Mood, error) {
	if !r.hasMember(m.MemberID) {
		return Mood{}, fmt.Errorf("store mood: %w", ErrNotMember)
	}
	stored, prev, had, changed := r.replace(m)
	if !changed {
		return stored, nil
	}
	if err := s.backend.SaveMood(ctx, stored); err != nil {
		r.revert(stored, prev, had)
		logutil.Errorf("persist mood for %s in %s: %v", stored.MemberID, r.ID, err)
		return Mood{}, fmt.Errorf("save mood: %w", err)
	}
	s.publish(r.ID)
	s.rooms.Wake(r.ID)
	return stored, nil
}

func (s *Service) publish(roomID string) {
	s.rooms.Publish(roomID, realtime.EventMap)
	s.rooms.Publish(roomID, realtime.EventPopular)
}

// Broadcaster returns the room's event hub, or nil.
func (s *Service) Broadcaster(roomID string) *realtime.Broadcaster {
	return s.rooms.Broadcaster(roomID)
}

// Rooms returns how many rooms are live.
func (s *Service) Rooms() int { return s.rooms.Len() }

// ensureSweep starts the room's expiry loop. The loop parks while the room
// has no moods and is woken by every store.
func (s *Service) ensureSweep(id string) {
	if !s.retention.Enabled() {
		return
	}
	getState := func() *Room {
		live, ok := s.rooms.Get(id)
		if !ok {
			return nil
		}
		return live.State
	}
	tick := func(r *Room, wall time.Time) (time.Time, []string, bool) {
		if r == nil {
			return time.Time{}, nil, true
		}
		now := s.now()
		events := s.expire(r, now)
		next, ok := s.retention.NextWake(r.oldest(), now)
		if !ok {
			return time.Time{}, events, false
		}
		// the service clock may differ from the wall clock the loop sleeps on
		return wall.Add(next.Sub(now)), events, false
	}
	s.rooms.RunLoop(id, getState, tick)
}

// expire removes moods past the retention window and returns the events to
// publish.
func (s *Service) expire(r *Room, now time.Time) []string {
	n := r.sweep(s.retention, now)
	if n == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.backend.DeleteMoodsBefore(ctx, r.ID, s.retention.Cutoff(now)); err != nil {
		logutil.Warnf("expire moods in %s: %v", r.ID, err)
	}
	logutil.Debugf("expired %d moods in %s", n, r.ID)
	return []string{realtime.EventMap, realtime.EventPopular}
}

// Ping checks the backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close stops every loop and disconnects subscribers. The backend is closed
// by its owner.
func (s *Service) Close() {
	s.rooms.Close()
}

func clampAffect(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
