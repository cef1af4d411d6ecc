// Package room holds the live state of mood map rooms: who joined, each
// member's current mood, and the broadcaster viewers listen on.
package room

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"moodmap/internal/mood"
	"moodmap/pkg/realtime"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrUnknownEmotion = errors.New("unknown emotion")
	ErrNotMember      = errors.New("not a member of this room")
	ErrInvalidTitle   = errors.New("invalid room title")
)

// Meta is the immutable description of a room.
type Meta struct {
	ID        string
	Slug      string
	Title     string
	Passcode  string
	CreatedBy string
	CreatedAt time.Time
}

// Member is an anonymous participant of one room.
type Member struct {
	ID       string
	RoomID   string
	AnonID   string
	JoinedAt time.Time
}

// Mood is a member's current position on the map.
type Mood struct {
	ID         string
	RoomID     string
	MemberID   string
	EmotionKey string
	Valence    float64
	Arousal    float64
	Label      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// newer reports whether m should replace old.
func (m Mood) newer(old Mood) bool {
	if !m.UpdatedAt.Equal(old.UpdatedAt) {
		return m.UpdatedAt.After(old.UpdatedAt)
	}
	return !m.CreatedAt.Before(old.CreatedAt)
}

// Popular is one row of the popular emotions sidebar.
type Popular struct {
	EmotionKey string
	Count      int
}

// Room is the mutable state of one board. Meta never changes after creation.
type Room struct {
	Meta

	mu      sync.Mutex
	members map[string]Member // by anon id
	moods   map[string]Mood   // by member id
}

func newRoom(meta Meta) *Room {
	return &Room{
		Meta:    meta,
		members: make(map[string]Member),
		moods:   make(map[string]Mood),
	}
}

// Locked reports whether the room needs a passcode.
func (r *Room) Locked() bool {
	return r.Passcode != ""
}

// CheckPasscode compares in constant time.
func (r *Room) CheckPasscode(passcode string) bool {
	if !r.Locked() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.Passcode), []byte(passcode)) == 1
}

// AccessToken is the value of the per-room access cookie. It changes if the
// passcode does.
func (r *Room) AccessToken() string {
	sum := sha256.Sum256([]byte(r.ID + ":" + r.Passcode))
	return hex.EncodeToString(sum[:16])
}

// CheckAccess validates a token previously issued by AccessToken.
func (r *Room) CheckAccess(token string) bool {
	if !r.Locked() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.AccessToken()), []byte(token)) == 1
}

// MemberID returns the member id for an anonymous identity.
func (r *Room) MemberID(anonID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[anonID]
	return m.ID, ok
}

// MemberCount returns how many participants joined.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) addMember(m Member) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.members[m.AnonID]; ok {
		return old, false
	}
	r.members[m.AnonID] = m
	return m, true
}

// removeMember undoes addMember for a member that could not be persisted.
func (r *Room) removeMember(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.members[m.AnonID]; ok && cur.ID == m.ID {
		delete(r.members, m.AnonID)
	}
}

func (r *Room) hasMember(memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ID == memberID {
			return true
		}
	}
	return false
}

// upsert stores m as the member's current mood unless the held one is newer.
// The first CreatedAt and mood id are kept across updates.
func (r *Room) upsert(m Mood) (Mood, bool) {
	stored, _, _, changed := r.replace(m)
	return stored, changed
}

// replace is upsert that also returns the mood it displaced, if any.
func (r *Room) replace(m Mood) (stored, prev Mood, had, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had = r.moods[m.MemberID]
	if had {
		if !m.newer(prev) {
			return prev, prev, true, false
		}
		if !prev.CreatedAt.IsZero() && (m.CreatedAt.IsZero() || prev.CreatedAt.Before(m.CreatedAt)) {
			m.CreatedAt = prev.CreatedAt
		}
		if prev.ID != "" {
			m.ID = prev.ID
		}
	}
	r.moods[m.MemberID] = m
	return m, prev, had, true
}

// revert puts prev back in place of stored. A newer mood written meanwhile is
// left alone.
func (r *Room) revert(stored, prev Mood, had bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.moods[stored.MemberID]
	if !ok || cur.ID != stored.ID || !cur.UpdatedAt.Equal(stored.UpdatedAt) {
		return
	}
	if had {
		r.moods[stored.MemberID] = prev
	} else {
		delete(r.moods, stored.MemberID)
	}
}

// CurrentMood returns the member's mood, if any.
func (r *Room) CurrentMood(memberID string) (Mood, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.moods[memberID]
	return m, ok
}

// Moods returns current moods ordered by UpdatedAt, then member id, so the
// most recent mood is drawn last.
func (r *Room) Moods() []Mood {
	r.mu.Lock()
	out := make([]Mood, 0, len(r.moods))
	for _, m := range r.moods {
		out = append(out, m)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out
}

// Dots projects current moods for rendering.
func (r *Room) Dots(c *mood.Catalog) []mood.Dot {
	moods := r.Moods()
	dots := make([]mood.Dot, 0, len(moods))
	for _, m := range moods {
		color := mood.FallbackColor
		if c != nil {
			color = c.ColorFor(m.EmotionKey)
		}
		dots = append(dots, mood.Dot{
			Valence: m.Valence,
			Arousal: m.Arousal,
			Color:   color,
			OwnerID: m.MemberID,
			Label:   m.Label,
		})
	}
	return dots
}

// Popular counts current moods per emotion, most common first, ties by key.
// n <= 0 returns every emotion in use.
func (r *Room) Popular(n int) []Popular {
	r.mu.Lock()
	counts := make(map[string]int)
	for _, m := range r.moods {
		counts[m.EmotionKey]++
	}
	r.mu.Unlock()

	out := make([]Popular, 0, len(counts))
	for k, c := range counts {
		out = append(out, Popular{EmotionKey: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].EmotionKey < out[j].EmotionKey
		}
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// sweep drops moods the retention window has passed and returns how many.
func (r *Room) sweep(ret realtime.Retention, now time.Time) int {
	if !ret.Enabled() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, m := range r.moods {
		if ret.Expired(m.UpdatedAt, now) {
			delete(r.moods, id)
			removed++
		}
	}
	return removed
}

// oldest returns the earliest UpdatedAt among current moods.
func (r *Room) oldest() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t time.Time
	for _, m := range r.moods {
		if t.IsZero() || m.UpdatedAt.Before(t) {
			t = m.UpdatedAt
		}
	}
	return t
}
