// Package persist stores rooms, members and moods for the room service.
package persist

import (
	"strings"
	"time"

	"moodmap/internal/room"
)

// Record is a mood as it travels through storage and the JSON API. Older
// rows carry the note in "label"; newer ones in "feeling_label".
type Record struct {
	ID           string    `json:"id,omitempty"`
	RoomID       string    `json:"room_id,omitempty"`
	MemberID     string    `json:"member_id,omitempty"`
	EmotionKey   string    `json:"emotion_key"`
	Valence      float64   `json:"valence"`
	Arousal      float64   `json:"arousal"`
	FeelingLabel *string   `json:"feeling_label,omitempty"`
	LegacyLabel  *string   `json:"label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Mood normalizes r into the canonical mood. feeling_label wins over label;
// a missing UpdatedAt falls back to CreatedAt.
func (r Record) Mood() room.Mood {
	label := ""
	switch {
	case r.FeelingLabel != nil:
		label = *r.FeelingLabel
	case r.LegacyLabel != nil:
		label = *r.LegacyLabel
	}
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = r.CreatedAt
	}
	return room.Mood{
		ID:         r.ID,
		RoomID:     r.RoomID,
		MemberID:   r.MemberID,
		EmotionKey: strings.TrimSpace(r.EmotionKey),
		Valence:    r.Valence,
		Arousal:    r.Arousal,
		Label:      strings.TrimSpace(label),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  updated.UTC(),
	}
}

// FromMood builds the record written by this version: always feeling_label.
func FromMood(m room.Mood) Record {
	rec := Record{
		ID:         m.ID,
		RoomID:     m.RoomID,
		MemberID:   m.MemberID,
		EmotionKey: m.EmotionKey,
		Valence:    m.Valence,
		Arousal:    m.Arousal,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Label != "" {
		label := m.Label
		rec.FeelingLabel = &label
	}
	return rec
}
