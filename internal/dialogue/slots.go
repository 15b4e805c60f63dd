// Package dialogue drives a conversation turn: extract, merge slots, ask for
// what is missing or execute the completed intent, and compose the reply.
package dialogue

import (
	"fmt"

	"github.com/hungryunicorn/concierge/internal/nlu"
)

// Step is the next move for an intent in progress: either every required
// slot is filled and the intent is ready to execute, or Ask names the first
// missing slot and Prompt is the question to send.
type Step struct {
	Ready  bool
	Ask    nlu.Slot
	Prompt string
}

// One question per slot. Asking order follows the intent's required list, so
// conversations stay predictable regardless of how slots arrived.
var slotPrompts = map[nlu.Slot]string{
	nlu.SlotName:       "What name should I put the reservation under?",
	nlu.SlotDate:       "What date would you like to visit?",
	nlu.SlotTime:       "What time would you prefer?",
	nlu.SlotPartySize:  "How many people will be in your party?",
	nlu.SlotBookingRef: "Could you give me your booking reference? It looks like ABC1234.",
}

// NextStep finds the first required slot of intent that slots has not
// filled.
func NextStep(intent nlu.Intent, slots nlu.Slots) Step {
	for _, slot := range intent.Required() {
		if !slots.Has(slot) {
			return Step{Ask: slot, Prompt: slotPrompts[slot]}
		}
	}

	// An update needs the reference plus at least one field to change; with
	// only the reference in hand, ask what to change instead of executing.
	if intent == nlu.IntentUpdateBooking && !hasChange(slots) {
		return Step{Prompt: fmt.Sprintf(
			"What would you like to change about booking %s? I can update the date, time, or party size.",
			slots.BookingRef)}
	}

	return Step{Ready: true}
}

func hasChange(slots nlu.Slots) bool {
	return slots.Has(nlu.SlotDate) || slots.Time != nil || slots.PartySize > 0
}
