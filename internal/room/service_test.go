package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"moodmap/internal/mood"
	"moodmap/pkg/realtime"
)

// fakeBackend records writes in memory.
type fakeBackend struct {
	mu      sync.Mutex
	rooms   []Meta
	members []Member
	moods   map[string]Mood
	deleted []time.Time
	failing error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{moods: make(map[string]Mood)}
}

func (f *fakeBackend) SaveRoom(_ context.Context, m Meta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return f.failing
	}
	f.rooms = append(f.rooms, m)
	return nil
}

func (f *fakeBackend) LoadRooms(context.Context) ([]Meta, error) { return f.rooms, f.failing }

func (f *fakeBackend) SaveMember(_ context.Context, m Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return f.failing
	}
	f.members = append(f.members, m)
	return nil
}

func (f *fakeBackend) LoadMembers(_ context.Context, roomID string) ([]Member, error) {
	var out []Member
	for _, m := range f.members {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) SaveMood(_ context.Context, m Mood) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return f.failing
	}
	f.moods[m.RoomID+"/"+m.MemberID] = m
	return nil
}

func (f *fakeBackend) LoadMoods(_ context.Context, roomID string) ([]Mood, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Mood
	for _, m := range f.moods {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) DeleteMoodsBefore(_ context.Context, _ string, cutoff time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, cutoff)
	return nil
}

func (f *fakeBackend) Ping(context.Context) error { return f.failing }

func (f *fakeBackend) Close() error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, retention time.Duration) (*Service, *fakeBackend, *testClock) {
	t.Helper()
	b := newFakeBackend()
	clock := &testClock{now: base}
	s := NewService(mood.DefaultCatalog(), b, Options{Retention: retention, Now: clock.Now})
	t.Cleanup(s.Close)
	return s, b, clock
}

func TestService_CreateRoom(t *testing.T) {
	s, b, _ := newTestService(t, 0)
	ctx := context.Background()

	r, err := s.CreateRoom(ctx, " Team Standup ", "", "anon-1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if r.Slug != "team-standup" || r.Title != "Team Standup" || r.CreatedBy != "anon-1" {
		t.Errorf("room %+v", r.Meta)
	}
	if len(b.rooms) != 1 {
		t.Errorf("backend rooms %d, want 1", len(b.rooms))
	}

	dup, err := s.CreateRoom(ctx, "team standup!", "", "anon-2")
	if err != nil {
		t.Fatalf("CreateRoom dup: %v", err)
	}
	if dup.Slug == r.Slug || !strings.HasPrefix(dup.Slug, "team-standup-") {
		t.Errorf("colliding slug %q", dup.Slug)
	}

	symbols, err := s.CreateRoom(ctx, "☃☃☃", "", "")
	if err != nil {
		t.Fatalf("CreateRoom symbols: %v", err)
	}
	if len(symbols.Slug) != 8 {
		t.Errorf("fallback slug %q, want 8 chars", symbols.Slug)
	}

	if _, err := s.CreateRoom(ctx, "  ", "", ""); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("blank title err %v", err)
	}
	if s.Rooms() != 3 {
		t.Errorf("Rooms %d, want 3", s.Rooms())
	}
}

func TestService_CreateRoomBackendFailure(t *testing.T) {
	s, b, _ := newTestService(t, 0)
	b.failing = errors.New("disk full")
	if _, err := s.CreateRoom(context.Background(), "x", "", ""); err == nil {
		t.Fatal("expected error")
	}
	b.failing = nil
	r, err := s.CreateRoom(context.Background(), "x", "", "")
	if err != nil || r.Slug != "x" {
		t.Errorf("slug was not released after failure: %v %+v", err, r)
	}
}

func TestService_ResolveRoom(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	r, _ := s.CreateRoom(context.Background(), "Lobby", "", "")

	bySlug, err := s.ResolveRoom("Lobby")
	if err != nil || bySlug != r {
		t.Errorf("by slug: %v", err)
	}
	byID, err := s.ResolveRoom(r.ID)
	if err != nil || byID != r {
		t.Errorf("by id: %v", err)
	}
	if _, err := s.ResolveRoom("nowhere"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room err %v", err)
	}
}

func TestService_Unlock(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	r, _ := s.CreateRoom(context.Background(), "Secret", " 9999 ", "")
	if !r.Locked() {
		t.Fatal("room should be locked")
	}
	if _, err := s.Unlock(r, "1111"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("wrong passcode err %v", err)
	}
	token, err := s.Unlock(r, "9999")
	if err != nil || !r.CheckAccess(token) {
		t.Errorf("unlock failed: %v", err)
	}
}

func TestService_EnsureMemberIdempotent(t *testing.T) {
	s, b, _ := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")

	m1, err := s.EnsureMember(ctx, r, "anon-1")
	if err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	m2, _ := s.EnsureMember(ctx, r, "anon-1")
	if m1.ID != m2.ID {
		t.Errorf("member ids differ: %q %q", m1.ID, m2.ID)
	}
	if len(b.members) != 1 {
		t.Errorf("backend members %d, want 1", len(b.members))
	}
	if _, err := s.EnsureMember(ctx, r, ""); !errors.Is(err, ErrNotMember) {
		t.Errorf("empty anon err %v", err)
	}
}

func TestService_SubmitMood(t *testing.T) {
	s, b, clock := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")

	hub := s.Broadcaster(r.ID)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	sel := mood.Selection{EmotionKey: "curious", Valence: 0.41, Arousal: -0.5, Label: "new repo"}
	got, err := s.SubmitMood(ctx, r, m.ID, sel)
	if err != nil {
		t.Fatalf("SubmitMood: %v", err)
	}
	if got.Valence != 0.41 || got.Arousal != -0.5 || got.Label != "new repo" {
		t.Errorf("mood %+v does not carry the selection", got)
	}
	if ev := <-ch; ev != realtime.EventMap {
		t.Errorf("first event %q, want map", ev)
	}
	if ev := <-ch; ev != realtime.EventPopular {
		t.Errorf("second event %q, want popular", ev)
	}
	if _, ok := b.moods[r.ID+"/"+m.ID]; !ok {
		t.Error("mood not persisted")
	}

	clock.Advance(time.Minute)
	again, _ := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "excited", Valence: 3, Arousal: 0.9})
	if again.Valence != 1 {
		t.Errorf("valence %v, want clamped to 1", again.Valence)
	}
	if !again.CreatedAt.Equal(base) || !again.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("timestamps %v %v", again.CreatedAt, again.UpdatedAt)
	}
	if len(r.Moods()) != 1 {
		t.Error("second submit should replace the first")
	}
}

func TestService_SubmitMoodErrors(t *testing.T) {
	s, b, _ := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")

	if _, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "zen"}); !errors.Is(err, ErrUnknownEmotion) {
		t.Errorf("unknown key err %v", err)
	}
	if _, err := s.SubmitMood(ctx, r, "stranger", mood.Selection{EmotionKey: "sad"}); !errors.Is(err, ErrNotMember) {
		t.Errorf("stranger err %v", err)
	}
	b.failing = errors.New("db down")
	if _, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "sad"}); err == nil {
		t.Error("backend failure not surfaced")
	}
}

func TestService_FailedSaveLeavesRoomUnchanged(t *testing.T) {
	s, b, clock := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")

	b.failing = errors.New("db down")
	if _, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "sad"}); err == nil {
		t.Fatal("expected an error")
	}
	if _, held := r.CurrentMood(m.ID); held {
		t.Error("unsaved first mood is still held")
	}
	if len(r.Dots(s.Catalog())) != 0 || len(r.Popular(0)) != 0 {
		t.Error("unsaved mood visible on the board")
	}

	b.failing = nil
	first, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "bored"})
	if err != nil {
		t.Fatalf("SubmitMood: %v", err)
	}
	clock.Advance(time.Minute)
	b.failing = errors.New("db down")
	if _, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "sad"}); err == nil {
		t.Fatal("expected an error")
	}
	cur, _ := r.CurrentMood(m.ID)
	if cur.EmotionKey != "bored" || !cur.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("current mood %+v, want the saved bored mood back", cur)
	}
}

func TestService_FailedMemberSaveIsRetried(t *testing.T) {
	s, b, _ := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")

	b.failing = errors.New("db down")
	if _, err := s.EnsureMember(ctx, r, "anon-1"); err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := r.MemberID("anon-1"); ok || r.MemberCount() != 0 {
		t.Error("unsaved member kept in the room")
	}

	b.failing = nil
	m, err := s.EnsureMember(ctx, r, "anon-1")
	if err != nil {
		t.Fatalf("EnsureMember retry: %v", err)
	}
	if len(b.members) != 1 || b.members[0].ID != m.ID {
		t.Errorf("backend members %+v, want the retried member", b.members)
	}
}

func TestService_PostEmotionUsesAnchor(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")

	got, err := s.PostEmotion(ctx, r, m.ID, "grateful")
	if err != nil {
		t.Fatalf("PostEmotion: %v", err)
	}
	a, _ := s.Catalog().Lookup("grateful")
	if got.Valence != a.Valence || got.Arousal != a.Arousal {
		t.Errorf("mood at (%v,%v), want anchor (%v,%v)", got.Valence, got.Arousal, a.Valence, a.Arousal)
	}
	if pop := r.Popular(3); len(pop) != 1 || pop[0].EmotionKey != "grateful" {
		t.Errorf("popular %+v", pop)
	}
}

func TestService_ApplyRemoteIgnoresStale(t *testing.T) {
	s, _, _ := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")

	newer := Mood{MemberID: m.ID, EmotionKey: "sad", UpdatedAt: base.Add(time.Hour)}
	ok, err := s.ApplyRemote(ctx, r, newer)
	if err != nil || !ok {
		t.Fatalf("ApplyRemote newer: %v %v", ok, err)
	}
	stale := Mood{MemberID: m.ID, EmotionKey: "excited", UpdatedAt: base}
	ok, err = s.ApplyRemote(ctx, r, stale)
	if err != nil || ok {
		t.Errorf("stale update applied: %v %v", ok, err)
	}
	if cur, _ := r.CurrentMood(m.ID); cur.EmotionKey != "sad" || cur.RoomID != r.ID {
		t.Errorf("current %+v", cur)
	}
	if _, err := s.ApplyRemote(ctx, r, Mood{MemberID: m.ID, EmotionKey: "nope"}); !errors.Is(err, ErrUnknownEmotion) {
		t.Errorf("unknown key err %v", err)
	}
}

func TestService_LoadRestoresLatest(t *testing.T) {
	b := newFakeBackend()
	meta := Meta{ID: "r1", Slug: "restored", Title: "Restored", CreatedAt: base}
	b.rooms = []Meta{meta}
	b.members = []Member{{ID: "m1", RoomID: "r1", AnonID: "anon-1"}}
	b.moods["r1/m1"] = Mood{RoomID: "r1", MemberID: "m1", EmotionKey: "sad", UpdatedAt: base}

	s := NewService(mood.DefaultCatalog(), b, Options{})
	defer s.Close()
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, err := s.ResolveRoom("restored")
	if err != nil {
		t.Fatalf("ResolveRoom: %v", err)
	}
	if id, ok := r.MemberID("anon-1"); !ok || id != "m1" {
		t.Errorf("member not restored: %q %v", id, ok)
	}
	if len(r.Dots(s.Catalog())) != 1 {
		t.Error("mood not restored")
	}
}

func TestService_ExpirePublishesAndDeletes(t *testing.T) {
	s, b, clock := newTestService(t, 0)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")
	if _, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "sad"}); err != nil {
		t.Fatalf("SubmitMood: %v", err)
	}
	// enabled after creation so no background loop races the direct calls
	s.retention = realtime.Retention{TTL: time.Hour}

	if events := s.expire(r, clock.Now()); events != nil {
		t.Errorf("fresh mood expired: %v", events)
	}
	clock.Advance(2 * time.Hour)
	events := s.expire(r, clock.Now())
	if len(events) != 2 {
		t.Fatalf("events %v, want map and popular", events)
	}
	if len(r.Moods()) != 0 {
		t.Error("mood survived expiry")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.deleted) != 1 || !b.deleted[0].Equal(clock.Now().Add(-time.Hour)) {
		t.Errorf("backend deletes %v", b.deleted)
	}
}

func TestService_SweepLoopExpiresOverdueMoods(t *testing.T) {
	s, _, clock := newTestService(t, time.Hour)
	ctx := context.Background()
	r, _ := s.CreateRoom(ctx, "Room", "", "")
	m, _ := s.EnsureMember(ctx, r, "anon-1")

	hub := s.Broadcaster(r.ID)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	if _, err := s.SubmitMood(ctx, r, m.ID, mood.Selection{EmotionKey: "sad"}); err != nil {
		t.Fatalf("SubmitMood: %v", err)
	}
	<-ch
	<-ch

	clock.Advance(2 * time.Hour)
	s.rooms.Wake(r.ID)

	deadline := time.After(2 * time.Second)
	for len(r.Moods()) != 0 {
		select {
		case <-ch:
		case <-deadline:
			t.Fatal("sweep loop did not expire the mood")
		}
	}
}

func TestService_Ping(t *testing.T) {
	s, b, _ := newTestService(t, 0)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	b.failing = errors.New("down")
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping should surface backend errors")
	}
}
