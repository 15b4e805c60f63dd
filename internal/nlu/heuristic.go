package nlu

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/hungryunicorn/concierge/internal/timeparse"
)

// HeuristicExtractor classifies with keyword rules and extracts slots with
// regular expressions. It needs no credentials and is fully deterministic,
// which makes it the extractor of choice when no generation provider is
// configured (and a convenient one for tests).
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor { return &HeuristicExtractor{} }

var (
	nameRe    = regexp.MustCompile(`(?:(?i:my name is|i am|i'm|it's|under))\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	refRe     = regexp.MustCompile(`\b([A-Z0-9]{6,8})\b`)
	timeExpRe = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*(?:am|pm))\b|\b(\d{1,2}:\d{2})\b`)
	partyRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:people|person|persons|guests?|pax)\b|\bfor\s+(\d{1,2})\b|\btable\s+(?:for\s+)?(\d{1,2})\b|\bparty\s+of\s+(\d{1,2})\b`)
	dateWords = []string{
		"today", "tonight", "tomorrow", "weekend",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	}
	isoDateRe  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	bareNameRe = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3}$`)
	bareNumRe  = regexp.MustCompile(`^\d{1,2}$`)
)

// Extract never fails; utterances that match nothing yield IntentUnknown.
func (h *HeuristicExtractor) Extract(_ context.Context, utterance string, sctx Context) Result {
	res := Result{
		Intent: classify(utterance, sctx.Intent),
		Clean:  true,
	}
	res.Slots = extractSlots(utterance, sctx)
	return res
}

// classify applies keyword rules in priority order; cancellation and lookup
// outrank the generic booking words so "cancel my booking" never reads as a
// new reservation.
func classify(utterance string, inProgress Intent) Intent {
	s := strings.ToLower(strings.TrimSpace(utterance))

	switch {
	case containsAny(s, "cancel", "cancellation"):
		return IntentCancelBooking
	case containsAny(s, "change", "modify", "update", "reschedule", "move my"):
		return IntentUpdateBooking
	case containsAny(s, "my booking", "my reservation", "check my", "status", "details", "look up"):
		return IntentGetBooking
	case containsAny(s, "availability", "available", "free", "open", "slots"):
		return IntentCheckAvailability
	case containsAny(s, "book", "reserve", "reservation", "table"):
		return IntentCreateBooking
	}

	// A short utterance with no intent keywords is most likely an answer to
	// the question we just asked; stay on the in-progress intent.
	if inProgress != "" && inProgress != IntentUnknown && len(strings.Fields(s)) < 10 {
		return inProgress
	}
	return IntentUnknown
}

func extractSlots(utterance string, sctx Context) Slots {
	var out Slots
	lower := strings.ToLower(utterance)

	if m := nameRe.FindStringSubmatch(utterance); m != nil {
		out.Name = normalizeName(m[1])
	} else if bareNameRe.MatchString(strings.TrimSpace(utterance)) && !containsAny(lower, dateWords...) {
		// A message that is just a capitalized name, typically answering
		// "what name should I put the reservation under?".
		out.Name = strings.TrimSpace(utterance)
	}

	if m := isoDateRe.FindStringSubmatch(utterance); m != nil {
		if d, err := timeparse.ResolveDate(m[1], sctx.Ref); err == nil {
			out.Date = d
		}
	} else {
		for _, w := range dateWords {
			if strings.Contains(lower, w) {
				if d, err := timeparse.ResolveDate(lower, sctx.Ref); err == nil {
					out.Date = d
				}
				break
			}
		}
	}

	if m := timeExpRe.FindStringSubmatch(utterance); m != nil {
		expr := m[1]
		if expr == "" {
			expr = m[2]
		}
		if c, err := timeparse.ResolveTime(expr); err == nil {
			out.Time = &c
		}
	}

	if m := partyRe.FindStringSubmatch(lower); m != nil {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if n, err := strconv.Atoi(g); err == nil && n >= 1 && n <= 20 {
				out.PartySize = n
			}
			break
		}
	}

	// References mix letters and digits (ABC1234); requiring both keeps
	// ordinary words and bare numbers from being read as a reference.
	for _, m := range refRe.FindAllStringSubmatch(strings.ToUpper(utterance), -1) {
		if strings.ContainsAny(m[1], "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(m[1], "0123456789") {
			out.BookingRef = m[1]
			break
		}
	}

	// A bare number ("7", "4") is the answer to whichever numeric slot was
	// just asked for; the next missing required slot disambiguates.
	if trimmed := strings.TrimSpace(utterance); bareNumRe.MatchString(trimmed) &&
		sctx.Intent != "" && sctx.Intent != IntentUnknown {
		switch nextMissing(sctx) {
		case SlotTime:
			if c, err := timeparse.ResolveTime(trimmed); err == nil {
				out.Time = &c
			}
		case SlotPartySize:
			if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= 20 {
				out.PartySize = n
			}
		}
	}

	return out
}

// nextMissing returns the first required slot of the in-progress intent that
// the session has not filled yet.
func nextMissing(sctx Context) Slot {
	for _, s := range sctx.Intent.Required() {
		if !sctx.Known.Has(s) {
			return s
		}
	}
	return ""
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
