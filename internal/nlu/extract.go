package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hungryunicorn/concierge/internal/provider"
	"github.com/hungryunicorn/concierge/internal/timeparse"
)

const systemPrompt = `You are the intent classifier for a restaurant booking assistant.
Classify the guest's message and extract booking details.

Respond with a single JSON object and nothing else:
{"intent": "<intent>", "slots": {...}}

Intents: check_availability, create_booking, get_booking, update_booking, cancel_booking, unknown.

Slots (include only those the message states or clearly implies):
- "name": the guest's name
- "date": the date expression, verbatim or ISO (e.g. "tomorrow", "next friday", "2025-08-15")
- "time": the time expression (e.g. "7pm", "19:30")
- "party_size": number of guests
- "booking_ref": a booking reference like ABC1234

If the guest is answering a question from an in-progress booking, keep that
intent. Never invent values the guest did not give.`

// bookingRefRe matches the booking service's reference format.
var bookingRefRe = regexp.MustCompile(`^[A-Z0-9]{6,8}$`)

// ModelExtractor delegates classification to a generation provider and
// strictly validates the returned JSON. It performs no booking-service I/O.
type ModelExtractor struct {
	gen     provider.Generator
	timeout time.Duration
}

// NewModelExtractor wraps gen; timeout bounds each generation call.
func NewModelExtractor(gen provider.Generator, timeout time.Duration) *ModelExtractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ModelExtractor{gen: gen, timeout: timeout}
}

// Extract asks the model for an intent/slot envelope and validates it.
// Any failure (provider error, malformed JSON, unknown intent) degrades to
// IntentUnknown with empty slots; the turn always gets a result.
func (e *ModelExtractor) Extract(ctx context.Context, utterance string, sctx Context) Result {
	gctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.gen.Generate(gctx, systemPrompt, buildPrompt(utterance, sctx))
	if err != nil {
		log.Printf("nlu: generation failed, degrading to unknown: %v", err)
		return Result{Intent: IntentUnknown}
	}
	return parseEnvelope(out, sctx.Ref)
}

// buildPrompt folds the session context into the user prompt so follow-up
// turns can supply slots incrementally without restating earlier ones.
func buildPrompt(utterance string, sctx Context) string {
	var b strings.Builder
	if sctx.Intent != "" && sctx.Intent != IntentUnknown {
		fmt.Fprintf(&b, "Intent in progress: %s\n", sctx.Intent)
	}
	if known := describeSlots(sctx.Known); known != "" {
		fmt.Fprintf(&b, "Already known: %s\n", known)
	}
	fmt.Fprintf(&b, "Guest: %s", utterance)
	return b.String()
}

func describeSlots(s Slots) string {
	var parts []string
	if s.Name != "" {
		parts = append(parts, "name="+s.Name)
	}
	if !s.Date.IsZero() {
		parts = append(parts, "date="+s.Date.Format(timeparse.DateLayout))
	}
	if s.Time != nil {
		parts = append(parts, "time="+s.Time.String())
	}
	if s.PartySize > 0 {
		parts = append(parts, "party_size="+strconv.Itoa(s.PartySize))
	}
	if s.BookingRef != "" {
		parts = append(parts, "booking_ref="+s.BookingRef)
	}
	return strings.Join(parts, ", ")
}

type envelope struct {
	Intent string         `json:"intent"`
	Slots  map[string]any `json:"slots"`
}

// parseEnvelope validates raw model output against the expected shape.
// A broken envelope degrades to IntentUnknown; an individually invalid slot
// value is dropped while the rest of the envelope survives.
func parseEnvelope(raw string, ref time.Time) Result {
	var env envelope
	if err := json.Unmarshal([]byte(stripFences(raw)), &env); err != nil {
		return Result{Intent: IntentUnknown}
	}

	intent, ok := ParseIntent(env.Intent)
	if !ok {
		return Result{Intent: IntentUnknown}
	}

	res := Result{Intent: intent, Clean: true}
	for name, val := range env.Slots {
		switch Slot(name) {
		case SlotName:
			if s, ok := val.(string); ok {
				res.Slots.Name = normalizeName(s)
			}
		case SlotDate:
			if s, ok := val.(string); ok {
				if d, err := timeparse.ResolveDate(s, ref); err == nil {
					res.Slots.Date = d
				}
			}
		case SlotTime:
			if s, ok := val.(string); ok {
				if c, err := timeparse.ResolveTime(s); err == nil {
					res.Slots.Time = &c
				}
			}
		case SlotPartySize:
			res.Slots.PartySize = normalizePartySize(val)
		case SlotBookingRef:
			if s, ok := val.(string); ok {
				res.Slots.BookingRef = normalizeRef(s)
			}
		}
	}
	return res
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizeName accepts a plausible guest name: non-empty, no digits, at
// most four words.
func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "0123456789") {
		return ""
	}
	if len(strings.Fields(s)) > 4 {
		return ""
	}
	return s
}

// normalizePartySize accepts an integer between 1 and 20, arriving as a JSON
// number or a numeric string.
func normalizePartySize(val any) int {
	var n int
	switch v := val.(type) {
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 1 || n > 20 {
		return 0
	}
	return n
}

func normalizeRef(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !bookingRefRe.MatchString(s) {
		return ""
	}
	return s
}
