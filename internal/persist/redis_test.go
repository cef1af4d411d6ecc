package persist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedis("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create redis backend: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestRedis_Contract(t *testing.T) {
	store, _ := setupTestRedis(t, 0)
	exerciseBackend(t, store)
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis("not a url", 0); err == nil {
		t.Error("expected parse error")
	}
}

func TestRedis_LegacyLabelRows(t *testing.T) {
	store, s := setupTestRedis(t, 0)
	s.HSet("moodmap:room:r1:moods", "m-old", `{"emotion_key":"lonely","valence":-0.9,"arousal":-0.45,"label":"quiet day","created_at":"2024-01-02T03:04:05Z"}`)

	moods, err := store.LoadMoods(context.Background(), "r1")
	if err != nil {
		t.Fatalf("LoadMoods: %v", err)
	}
	if len(moods) != 1 {
		t.Fatalf("moods %d, want 1", len(moods))
	}
	m := moods[0]
	if m.MemberID != "m-old" || m.RoomID != "r1" {
		t.Errorf("ids not filled from the key: %+v", m)
	}
	if m.Label != "quiet day" {
		t.Errorf("label %q, want legacy label", m.Label)
	}
	if m.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should fall back to CreatedAt")
	}
}

func TestRedis_MoodsExpireWhenQuiet(t *testing.T) {
	store, s := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	if err := store.SaveRoom(ctx, testRoom); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	if err := store.SaveMood(ctx, roomMood("m-a", t0)); err != nil {
		t.Fatalf("SaveMood: %v", err)
	}
	if ttl := s.TTL("moodmap:room:" + testRoom.ID + ":moods"); ttl != time.Hour {
		t.Errorf("moods TTL %v, want 1h", ttl)
	}

	s.FastForward(2 * time.Hour)
	moods, err := store.LoadMoods(ctx, testRoom.ID)
	if err != nil {
		t.Fatalf("LoadMoods: %v", err)
	}
	if len(moods) != 0 {
		t.Errorf("moods %d after quiet period, want 0", len(moods))
	}
	rooms, _ := store.LoadRooms(ctx)
	if len(rooms) != 1 {
		t.Error("rooms should not expire")
	}
}
