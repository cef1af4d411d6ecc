package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"moodmap/internal/room"
)

// Redis keeps one hash per concern:
//
//	moodmap:rooms                 id     -> room JSON
//	moodmap:room:{id}:members     anonID -> member JSON
//	moodmap:room:{id}:moods       member -> mood record JSON
//
// The moods hash expires when a room goes quiet for longer than the
// retention window.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ room.Backend = (*Redis)(nil)

type roomJSON struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Passcode  string    `json:"passcode,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type memberJSON struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	AnonID   string    `json:"anon_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// NewRedis connects to redisURL. ttl bounds how long a quiet room keeps its
// moods; zero keeps them forever.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "moodmap:", ttl: ttl}
}

func (s *Redis) roomsKey() string { return s.prefix + "rooms" }

func (s *Redis) membersKey(roomID string) string { return s.prefix + "room:" + roomID + ":members" }

func (s *Redis) moodsKey(roomID string) string { return s.prefix + "room:" + roomID + ":moods" }

func (s *Redis) SaveRoom(ctx context.Context, m room.Meta) error {
	data, err := json.Marshal(roomJSON(m))
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	if err := s.client.HSet(ctx, s.roomsKey(), m.ID, data).Err(); err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (s *Redis) LoadRooms(ctx context.Context) ([]room.Meta, error) {
	raw, err := s.client.HGetAll(ctx, s.roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	out := make([]room.Meta, 0, len(raw))
	for id, v := range raw {
		var r roomJSON
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("unmarshal room %s: %w", id, err)
		}
		out = append(out, room.Meta(r))
	}
	return out, nil
}

func (s *Redis) SaveMember(ctx context.Context, m room.Member) error {
	data, err := json.Marshal(memberJSON(m))
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := s.client.HSetNX(ctx, s.membersKey(m.RoomID), m.AnonID, data).Err(); err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	return nil
}

func (s *Redis) LoadMembers(ctx context.Context, roomID string) ([]room.Member, error) {
	raw, err := s.client.HGetAll(ctx, s.membersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	out := make([]room.Member, 0, len(raw))
	for anon, v := range raw {
		var m memberJSON
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("unmarshal member %s: %w", anon, err)
		}
		out = append(out, room.Member(m))
	}
	return out, nil
}

// SaveMood replaces the member's mood, keeping the first CreatedAt.
func (s *Redis) SaveMood(ctx context.Context, m room.Mood) error {
	key := s.moodsKey(m.RoomID)
	prev, err := s.client.HGet(ctx, key, m.MemberID).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		return fmt.Errorf("read mood: %w", err)
	default:
		var old Record
		if json.Unmarshal([]byte(prev), &old) == nil && !old.CreatedAt.IsZero() {
			m.CreatedAt = old.CreatedAt
		}
	}

	data, err := json.Marshal(FromMood(m))
	if err != nil {
		return fmt.Errorf("marshal mood: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m.MemberID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save mood: %w", err)
	}
	return nil
}

func (s *Redis) LoadMoods(ctx context.Context, roomID string) ([]room.Mood, error) {
	raw, err := s.client.HGetAll(ctx, s.moodsKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load moods: %w", err)
	}
	out := make([]room.Mood, 0, len(raw))
	for member, v := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal mood of %s: %w", member, err)
		}
		if rec.MemberID == "" {
			rec.MemberID = member
		}
		if rec.RoomID == "" {
			rec.RoomID = roomID
		}
		out = append(out, rec.Mood())
	}
	return out, nil
}

func (s *Redis) DeleteMoodsBefore(ctx context.Context, roomID string, cutoff time.Time) error {
	moods, err := s.LoadMoods(ctx, roomID)
	if err != nil {
		return err
	}
	var stale []string
	for _, m := range moods {
		if !m.UpdatedAt.After(cutoff) {
			stale = append(stale, m.MemberID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.moodsKey(roomID), stale...).Err(); err != nil {
		return fmt.Errorf("delete moods: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}
