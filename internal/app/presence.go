package app

import (
	"strings"
	"sync"
	"time"

	"klasquiz-service/internal/domain"
)

// statusFocused is the client-reported status that marks a student as
// focused on the quiz tab.
const statusFocused = "actief"

// PresenceTracker keeps ephemeral per-student liveness state. Entries are
// pure overwrites with no history, are lost on restart, and report
// offline once older than staleAfter.
type PresenceTracker struct {
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[int64]domain.Presence
}

func NewPresenceTracker(staleAfter time.Duration) *PresenceTracker {
	return &PresenceTracker{
		staleAfter: staleAfter,
		now:        time.Now,
		entries:    make(map[int64]domain.Presence),
	}
}

// NewPresenceTrackerWithClock is test-only for deterministic timestamps.
func NewPresenceTrackerWithClock(staleAfter time.Duration, now func() time.Time) *PresenceTracker {
	t := NewPresenceTracker(staleAfter)
	t.now = now
	return t
}

// Update records the latest status for a student and refreshes last-seen.
func (t *PresenceTracker) Update(leerlingID int64, status string) {
	if status == "" {
		status = "non-actief"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[leerlingID] = domain.Presence{
		Status:   status,
		Focused:  strings.EqualFold(status, statusFocused),
		LastSeen: t.now(),
	}
}

// Get returns the latest presence entry. Absent or stale entries report
// ok=false, which viewers render as offline.
func (t *PresenceTracker) Get(leerlingID int64) (domain.Presence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[leerlingID]
	if !ok {
		return domain.Presence{}, false
	}
	if t.staleAfter > 0 && t.now().Sub(p.LastSeen) > t.staleAfter {
		return domain.Presence{}, false
	}
	return p, true
}
