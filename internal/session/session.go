// Package session owns conversation state: one Session per conversation,
// held in a keyed Store that serializes turns per session while letting
// distinct sessions proceed concurrently.
package session

import (
	"time"

	"github.com/hungryunicorn/concierge/internal/nlu"
)

// Session is the state of one conversation. It is only ever mutated by the
// turn that holds its lock; no other component retains a reference across
// turns.
type Session struct {
	ID     string
	Intent nlu.Intent // intent in progress, IntentUnknown when idle
	Slots  nlu.Slots

	// BookingRef is the most recent confirmed booking reference. It is only
	// overwritten by a new successful creation or an explicit reset, so
	// follow-up turns ("cancel my reservation") can resolve it.
	BookingRef string

	Turns        int
	CreatedAt    time.Time
	LastActivity time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Intent:       nlu.IntentUnknown,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// ClearProgress drops the in-progress intent and its collected slots but
// keeps the booking reference.
func (s *Session) ClearProgress() {
	s.Intent = nlu.IntentUnknown
	s.Slots = nlu.Slots{}
}
