// Package nlu turns free-form guest utterances into a booking intent plus
// typed slot values. Extraction is a strict parse-then-validate boundary:
// whatever the generation model returns, the rest of the system only ever
// sees a known intent and well-typed slots.
package nlu

import (
	"context"
	"time"

	"github.com/hungryunicorn/concierge/internal/timeparse"
)

// Intent is the classified purpose of an utterance.
type Intent string

const (
	IntentCheckAvailability Intent = "check_availability"
	IntentCreateBooking     Intent = "create_booking"
	IntentGetBooking        Intent = "get_booking"
	IntentUpdateBooking     Intent = "update_booking"
	IntentCancelBooking     Intent = "cancel_booking"
	IntentUnknown           Intent = "unknown"
)

// ParseIntent maps a wire intent name onto the closed enumeration.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentCheckAvailability, IntentCreateBooking, IntentGetBooking,
		IntentUpdateBooking, IntentCancelBooking, IntentUnknown:
		return Intent(s), true
	}
	return IntentUnknown, false
}

// Slot identifies one named piece of information an intent needs.
type Slot string

const (
	SlotName       Slot = "name"
	SlotDate       Slot = "date"
	SlotTime       Slot = "time"
	SlotPartySize  Slot = "party_size"
	SlotBookingRef Slot = "booking_ref"
)

// AllSlots lists every defined slot, in no particular order of significance.
var AllSlots = []Slot{SlotName, SlotDate, SlotTime, SlotPartySize, SlotBookingRef}

// requiredSlots fixes the order in which missing slots are asked for.
// The order is deliberate (name first, party size last for bookings) and is
// not derived from the utterance.
var requiredSlots = map[Intent][]Slot{
	IntentCheckAvailability: {SlotDate},
	IntentCreateBooking:     {SlotName, SlotDate, SlotTime, SlotPartySize},
	IntentGetBooking:        {SlotBookingRef},
	IntentUpdateBooking:     {SlotBookingRef},
	IntentCancelBooking:     {SlotBookingRef},
}

var optionalSlots = map[Intent][]Slot{
	IntentCheckAvailability: {SlotTime, SlotPartySize},
	IntentUpdateBooking:     {SlotDate, SlotTime, SlotPartySize},
}

// Required returns the intent's required slots in their fixed asking order.
func (i Intent) Required() []Slot { return requiredSlots[i] }

// Optional returns the intent's optional slots.
func (i Intent) Optional() []Slot { return optionalSlots[i] }

// Allows reports whether the slot belongs to the intent's schema at all.
func (i Intent) Allows(slot Slot) bool {
	for _, s := range requiredSlots[i] {
		if s == slot {
			return true
		}
	}
	for _, s := range optionalSlots[i] {
		if s == slot {
			return true
		}
	}
	return false
}

// Slots holds the typed slot values known for a conversation. Zero values
// mean "not set"; raw unvalidated text is never stored here.
type Slots struct {
	Name       string
	Date       time.Time // calendar date, midnight UTC
	Time       *timeparse.Clock
	PartySize  int
	BookingRef string
}

// Has reports whether the named slot carries a value.
func (s Slots) Has(slot Slot) bool {
	switch slot {
	case SlotName:
		return s.Name != ""
	case SlotDate:
		return !s.Date.IsZero()
	case SlotTime:
		return s.Time != nil
	case SlotPartySize:
		return s.PartySize > 0
	case SlotBookingRef:
		return s.BookingRef != ""
	}
	return false
}

// Clear removes the named slot's value.
func (s *Slots) Clear(slot Slot) {
	switch slot {
	case SlotName:
		s.Name = ""
	case SlotDate:
		s.Date = time.Time{}
	case SlotTime:
		s.Time = nil
	case SlotPartySize:
		s.PartySize = 0
	case SlotBookingRef:
		s.BookingRef = ""
	}
}

// Merge overlays in on top of s; a newly extracted value always wins over a
// previously known one, and absent slots in in leave s untouched.
func (s Slots) Merge(in Slots) Slots {
	out := s
	if in.Name != "" {
		out.Name = in.Name
	}
	if !in.Date.IsZero() {
		out.Date = in.Date
	}
	if in.Time != nil {
		c := *in.Time
		out.Time = &c
	}
	if in.PartySize > 0 {
		out.PartySize = in.PartySize
	}
	if in.BookingRef != "" {
		out.BookingRef = in.BookingRef
	}
	return out
}

// Retain keeps only the slots the intent's schema defines, clearing the rest.
// Used when the conversation switches topics mid-collection.
func (s Slots) Retain(intent Intent) Slots {
	out := s
	for _, slot := range AllSlots {
		if !intent.Allows(slot) {
			out.Clear(slot)
		}
	}
	return out
}

// Result is one turn's extraction outcome. Clean is false when the model
// output failed schema validation and the result degraded to IntentUnknown.
type Result struct {
	Intent Intent
	Slots  Slots
	Clean  bool
}

// Context is the session state an extractor may condition on: the intent in
// progress, the slots already known, and the reference instant for resolving
// relative date/time expressions.
type Context struct {
	Intent Intent
	Known  Slots
	Ref    time.Time
}

// Extractor produces an extraction result for an utterance. Implementations
// must always return a usable Result; internal failures degrade to
// IntentUnknown with empty slots rather than surfacing an error.
type Extractor interface {
	Extract(ctx context.Context, utterance string, sctx Context) Result
}
