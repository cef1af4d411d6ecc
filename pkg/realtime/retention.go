package realtime

import "time"

// DefaultRetention is how long a mood stays on the map without being renewed.
const DefaultRetention = 24 * time.Hour

// Retention is a sliding expiry window. It holds no room state; the room
// composes it and removes whatever Expired reports.
type Retention struct {
	TTL time.Duration
}

// Enabled reports whether entries expire at all.
func (r Retention) Enabled() bool {
	return r.TTL > 0
}

// Cutoff returns the instant before which entries are expired.
func (r Retention) Cutoff(now time.Time) time.Time {
	if !r.Enabled() {
		return time.Time{}
	}
	return now.Add(-r.TTL)
}

// Expired reports whether an entry last touched at updated is past the window.
func (r Retention) Expired(updated, now time.Time) bool {
	if !r.Enabled() {
		return false
	}
	return !updated.After(r.Cutoff(now))
}

// NextWake returns when the oldest live entry expires. ok is false when there
// is nothing to expire.
func (r Retention) NextWake(oldest, now time.Time) (next time.Time, ok bool) {
	if !r.Enabled() || oldest.IsZero() {
		return time.Time{}, false
	}
	next = oldest.Add(r.TTL)
	if next.Before(now) {
		return now, true
	}
	return next, true
}
