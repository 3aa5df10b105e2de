package app

import (
	"sync"

	"klasquiz-service/internal/domain"
)

// Role identifies which view a live subscriber receives.
type Role int

const (
	// RoleStudent receives redacted "update" events.
	RoleStudent Role = iota
	// RoleTeacher receives full "session" snapshots.
	RoleTeacher
)

// Event is one push to a live viewer.
type Event struct {
	Name     string           `json:"event"`
	Snapshot *domain.Snapshot `json:"data"`
}

type subscriber struct {
	ch   chan Event
	role Role
}

// Hub fans session snapshots out to live viewers. Subscriber sets are
// keyed by session id and garbage-collected when the last viewer leaves.
// Connections attach and detach asynchronously relative to publishes, so
// every operation takes the hub lock.
type Hub struct {
	mu       sync.Mutex
	sessions map[int64]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[int64]map[*subscriber]struct{})}
}

// Subscribe registers a viewer and returns its event channel plus a
// cancel function. The caller must invoke cancel to avoid leaks.
func (h *Hub) Subscribe(sessionID int64, role Role) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 8), role: role}

	h.mu.Lock()
	set := h.sessions[sessionID]
	if set == nil {
		set = make(map[*subscriber]struct{})
		h.sessions[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.sessions[sessionID]; ok {
			if _, ok := set[sub]; ok {
				delete(set, sub)
				close(sub.ch)
				if len(set) == 0 {
					delete(h.sessions, sessionID)
				}
			}
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers a snapshot to every viewer of the session, applying
// role-based redaction per subscriber. A slow viewer has its oldest
// pending event dropped rather than blocking delivery to the rest.
func (h *Hub) Publish(sessionID int64, snap *domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var studentEvent *Event
	for sub := range h.sessions[sessionID] {
		var ev Event
		if sub.role == RoleTeacher {
			ev = Event{Name: "session", Snapshot: snap}
		} else {
			if studentEvent == nil {
				studentEvent = &Event{Name: "update", Snapshot: RedactForStudent(snap)}
			}
			ev = *studentEvent
		}
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- ev
		}
	}
}

// SubscriberCount reports how many viewers a session currently has.
func (h *Hub) SubscriberCount(sessionID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}
