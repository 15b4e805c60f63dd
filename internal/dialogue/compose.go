package dialogue

import (
	"fmt"
	"strings"

	"github.com/hungryunicorn/concierge/internal/booking"
	"github.com/hungryunicorn/concierge/internal/nlu"
	"github.com/hungryunicorn/concierge/internal/timeparse"
)

// helpMessage is the reply when no intent can be made out of an utterance.
const helpMessage = "I can help you check availability, make a reservation, " +
	"or look up, change or cancel an existing booking. What would you like to do?"

// composeOutcome renders an execution outcome as guest-facing text.
func composeOutcome(intent nlu.Intent, out booking.Outcome) string {
	if !out.OK {
		return composeFailure(out)
	}

	switch intent {
	case nlu.IntentCheckAvailability:
		return composeAvailability(out.Availability)
	case nlu.IntentCreateBooking:
		return composeConfirmation(out.Booking)
	case nlu.IntentGetBooking:
		return composeDetails(out.Booking)
	case nlu.IntentUpdateBooking:
		return composeUpdate(out.Booking)
	case nlu.IntentCancelBooking:
		return composeCancellation(out.Cancellation)
	default:
		return helpMessage
	}
}

func composeFailure(out booking.Outcome) string {
	switch out.Kind {
	case booking.KindTransient:
		return "I'm having trouble reaching the booking system right now. Please try again in a moment."
	case booking.KindNotFound:
		return "I couldn't find a booking with that reference. Could you double-check it?"
	case booking.KindValidation:
		if out.Detail != "" {
			return "The booking system couldn't accept that: " + out.Detail
		}
		return "The booking system couldn't accept that request."
	case booking.KindAuth:
		return "I'm unable to access the booking system at the moment. Please try again later."
	default:
		return "Something went wrong handling that. Please try again."
	}
}

func composeAvailability(av *booking.Availability) string {
	var free []string
	for _, s := range av.AvailableSlots {
		if s.Available {
			free = append(free, strings.TrimSuffix(s.Time, ":00"))
		}
	}
	if len(free) == 0 {
		return fmt.Sprintf("I'm sorry, we're fully booked on %s. Would you like to try another date?", av.VisitDate)
	}
	return fmt.Sprintf("On %s we have tables available at: %s. Would you like to book one?",
		av.VisitDate, strings.Join(free, ", "))
}

func composeConfirmation(b *booking.Booking) string {
	return fmt.Sprintf("Your table is booked! %s for %d on %s at %s. Your booking reference is %s.",
		b.Customer.Name(), b.PartySize, b.VisitDate, strings.TrimSuffix(b.VisitTime, ":00"), b.Reference)
}

func composeDetails(b *booking.Booking) string {
	return fmt.Sprintf("Booking %s: %s, party of %d on %s at %s, status %s.",
		b.Reference, b.Customer.Name(), b.PartySize, b.VisitDate,
		strings.TrimSuffix(b.VisitTime, ":00"), b.Status)
}

func composeUpdate(b *booking.Booking) string {
	return fmt.Sprintf("Done. Booking %s is now for %d on %s at %s.",
		b.Reference, b.PartySize, b.VisitDate, strings.TrimSuffix(b.VisitTime, ":00"))
}

func composeCancellation(res *booking.CancelResult) string {
	return fmt.Sprintf("Your booking %s has been cancelled. We hope to see you another time.", res.Reference)
}

// describeKnown summarizes collected slots, used when re-asking after an
// interruption.
func describeKnown(slots nlu.Slots) string {
	var parts []string
	if slots.Name != "" {
		parts = append(parts, slots.Name)
	}
	if slots.Has(nlu.SlotDate) {
		parts = append(parts, slots.Date.Format(timeparse.DateLayout))
	}
	if slots.Time != nil {
		parts = append(parts, slots.Time.String())
	}
	if slots.PartySize > 0 {
		parts = append(parts, fmt.Sprintf("%d people", slots.PartySize))
	}
	return strings.Join(parts, ", ")
}
