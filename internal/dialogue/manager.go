package dialogue

import (
	"context"
	"log"
	"time"

	"github.com/hungryunicorn/concierge/internal/booking"
	"github.com/hungryunicorn/concierge/internal/nlu"
	"github.com/hungryunicorn/concierge/internal/session"
)

// Executor runs a completed intent against the booking API.
type Executor interface {
	Execute(ctx context.Context, intent nlu.Intent, slots nlu.Slots) booking.Outcome
}

// Manager drives one conversation turn end to end. It owns no state itself;
// everything lives in the session store.
type Manager struct {
	store     *session.Store
	extractor nlu.Extractor
	exec      Executor
	clock     func() time.Time // reference instant for date resolution
}

func NewManager(store *session.Store, extractor nlu.Extractor, exec Executor) *Manager {
	return &Manager{
		store:     store,
		extractor: extractor,
		exec:      exec,
		clock:     time.Now,
	}
}

// HandleTurn processes one guest utterance for a session and returns the
// reply. The returned error covers infrastructure problems only (such as the
// session cap); conversational trouble is always expressed in the reply.
func (m *Manager) HandleTurn(ctx context.Context, sessionID, utterance string) (string, error) {
	s, release, err := m.store.Acquire(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer release()

	res := m.extractor.Extract(ctx, utterance, nlu.Context{
		Intent: s.Intent,
		Known:  s.Slots,
		Ref:    m.clock(),
	})
	log.Printf("[%s] intent=%s clean=%v", sessionID, res.Intent, res.Clean)

	intent := res.Intent
	if intent == nlu.IntentUnknown {
		// No intent recognized this turn; an intent already in progress
		// absorbs any slots we did get.
		intent = s.Intent
	}
	if intent == nlu.IntentUnknown {
		// Nothing to act on; answer with help and leave the session as it was.
		return helpMessage, nil
	}

	slots := s.Slots
	switched := s.Intent != nlu.IntentUnknown && intent != s.Intent
	if switched {
		// Carry only the slots the new intent also uses.
		slots = slots.Retain(intent)
	}
	slots = slots.Merge(res.Slots.Retain(intent))

	// Follow-ups like "cancel my reservation" resolve against the reference
	// confirmed earlier in this session.
	if intent.Allows(nlu.SlotBookingRef) && !slots.Has(nlu.SlotBookingRef) && s.BookingRef != "" {
		slots.BookingRef = s.BookingRef
	}

	s.Turns++

	step := NextStep(intent, slots)
	if !step.Ready {
		s.Intent = intent
		s.Slots = slots
		if switched {
			if known := describeKnown(slots); known != "" {
				return "Got it (" + known + " so far). " + step.Prompt, nil
			}
		}
		return step.Prompt, nil
	}

	out := m.exec.Execute(ctx, intent, slots)
	log.Printf("[%s] executed %s ok=%v kind=%s", sessionID, intent, out.OK, out.Kind)

	if out.OK {
		s.ClearProgress()
		if intent == nlu.IntentCreateBooking && out.Booking != nil {
			s.BookingRef = out.Booking.Reference
		}
		if intent == nlu.IntentCancelBooking {
			s.BookingRef = ""
		}
		return composeOutcome(intent, out), nil
	}

	switch out.Kind {
	case booking.KindTransient, booking.KindValidation:
		// Keep collected slots: after a transient failure the guest can just
		// say "try again", and after a rejected request they can revise the
		// offending value without starting over.
		s.Intent = intent
		s.Slots = slots
	case booking.KindNotFound:
		s.ClearProgress()
		// The remembered reference is evidently stale.
		s.BookingRef = ""
	default:
		s.ClearProgress()
	}
	return composeOutcome(intent, out), nil
}

// Reset drops a session entirely.
func (m *Manager) Reset(ctx context.Context, sessionID string) bool {
	return m.store.Reset(ctx, sessionID)
}
