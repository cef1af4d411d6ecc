package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"moodmap/internal/room"
)

// Open connects to PostgreSQL through the pgx stdlib driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

var _ room.Backend = (*Postgres)(nil)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) SaveRoom(ctx context.Context, m room.Meta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, slug, title, passcode, created_by, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.Slug, m.Title, m.Passcode, m.CreatedBy, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *Postgres) LoadRooms(ctx context.Context) ([]room.Meta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, COALESCE(passcode, ''), COALESCE(created_by, ''), created_at
		FROM rooms ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var out []room.Meta
	for rows.Next() {
		var m room.Meta
		if err := rows.Scan(&m.ID, &m.Slug, &m.Title, &m.Passcode, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveMember(ctx context.Context, m room.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, room_id, anon_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, anon_id) DO NOTHING
	`, m.ID, m.RoomID, m.AnonID, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *Postgres) LoadMembers(ctx context.Context, roomID string) ([]room.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, anon_id, joined_at FROM members WHERE room_id = $1
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []room.Member
	for rows.Next() {
		var m room.Member
		if err := rows.Scan(&m.ID, &m.RoomID, &m.AnonID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.JoinedAt = m.JoinedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveMood upserts the member's current mood. The first created_at survives
// updates and the legacy label column is cleared.
func (s *Postgres) SaveMood(ctx context.Context, m room.Mood) error {
	rec := FromMood(m)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moods (id, room_id, member_id, emotion_key, valence, arousal, feeling_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id, member_id) DO UPDATE SET
			emotion_key   = EXCLUDED.emotion_key,
			valence       = EXCLUDED.valence,
			arousal       = EXCLUDED.arousal,
			feeling_label = EXCLUDED.feeling_label,
			label         = NULL,
			updated_at    = EXCLUDED.updated_at
	`, rec.ID, rec.RoomID, rec.MemberID, rec.EmotionKey, rec.Valence, rec.Arousal, rec.FeelingLabel, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert mood: %w", err)
	}
	return nil
}

func (s *Postgres) LoadMoods(ctx context.Context, roomID string) ([]room.Mood, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, member_id, emotion_key, valence, arousal, feeling_label, label, created_at, updated_at
		FROM moods WHERE room_id = $1
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query moods: %w", err)
	}
	defer rows.Close()

	var out []room.Mood
	for rows.Next() {
		var (
			rec             Record
			feeling, legacy sql.NullString
			updated         sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.MemberID, &rec.EmotionKey, &rec.Valence, &rec.Arousal,
			&feeling, &legacy, &rec.CreatedAt, &updated); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		if feeling.Valid {
			rec.FeelingLabel = &feeling.String
		}
		if legacy.Valid {
			rec.LegacyLabel = &legacy.String
		}
		if updated.Valid {
			rec.UpdatedAt = updated.Time
		}
		out = append(out, rec.Mood())
	}
	return out, rows.Err()
}

func (s *Postgres) DeleteMoodsBefore(ctx context.Context, roomID string, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM moods WHERE room_id = $1 AND COALESCE(updated_at, created_at) <= $2
	`, roomID, cutoff)
	if err != nil {
		return fmt.Errorf("delete moods: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) Close() error {
	return s.db.Close()
}
