package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hungryunicorn/concierge/internal/booking"
	"github.com/hungryunicorn/concierge/internal/nlu"
	"github.com/hungryunicorn/concierge/internal/session"
	"github.com/hungryunicorn/concierge/internal/timeparse"
)

// scriptedExtractor maps utterances to fixed results, so tests control
// exactly what each turn extracts.
type scriptedExtractor struct {
	script map[string]nlu.Result
}

func (e *scriptedExtractor) Extract(_ context.Context, utterance string, _ nlu.Context) nlu.Result {
	if res, ok := e.script[utterance]; ok {
		return res
	}
	return nlu.Result{Intent: nlu.IntentUnknown, Clean: true}
}

// fakeExecutor returns canned outcomes and records what it ran.
type fakeExecutor struct {
	outcome    booking.Outcome
	lastIntent nlu.Intent
	lastSlots  nlu.Slots
	calls      int
}

func (f *fakeExecutor) Execute(_ context.Context, intent nlu.Intent, slots nlu.Slots) booking.Outcome {
	f.calls++
	f.lastIntent = intent
	f.lastSlots = slots
	return f.outcome
}

func newTestManager(t *testing.T, script map[string]nlu.Result, exec Executor) *Manager {
	t.Helper()
	store := session.NewStore(context.Background(), session.Options{})
	t.Cleanup(store.Close)
	return NewManager(store, &scriptedExtractor{script: script}, exec)
}

func confirmedBooking() booking.Outcome {
	return booking.Outcome{OK: true, Booking: &booking.Booking{
		Reference: "ABC1234",
		VisitDate: "2025-01-07",
		VisitTime: "19:00:00",
		PartySize: 4,
		Status:    "confirmed",
		Customer:  booking.Customer{FirstName: "John", Surname: "Smith"},
	}}
}

func TestTurnByTurnBookingFlow(t *testing.T) {
	seven := timeparse.Clock{Hour: 19}
	tomorrow := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

	script := map[string]nlu.Result{
		"I'd like to book a table": {Intent: nlu.IntentCreateBooking, Clean: true},
		"John Smith":               {Intent: nlu.IntentCreateBooking, Slots: nlu.Slots{Name: "John Smith"}, Clean: true},
		"tomorrow":                 {Intent: nlu.IntentCreateBooking, Slots: nlu.Slots{Date: tomorrow}, Clean: true},
		"7pm":                      {Intent: nlu.IntentCreateBooking, Slots: nlu.Slots{Time: &seven}, Clean: true},
		"4 people":                 {Intent: nlu.IntentCreateBooking, Slots: nlu.Slots{PartySize: 4}, Clean: true},
	}
	exec := &fakeExecutor{outcome: confirmedBooking()}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	turns := []struct {
		utterance  string
		wantInsert string
	}{
		{"I'd like to book a table", "What name"},
		{"John Smith", "What date"},
		{"tomorrow", "What time"},
		{"7pm", "How many people"},
	}
	for _, turn := range turns {
		reply, err := m.HandleTurn(ctx, "s-1", turn.utterance)
		if err != nil {
			t.Fatalf("HandleTurn(%q): %v", turn.utterance, err)
		}
		if !strings.Contains(reply, turn.wantInsert) {
			t.Errorf("HandleTurn(%q) = %q, want it to ask %q", turn.utterance, reply, turn.wantInsert)
		}
		if exec.calls != 0 {
			t.Fatalf("executed before all required slots were filled")
		}
	}

	reply, err := m.HandleTurn(ctx, "s-1", "4 people")
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != 1 {
		t.Fatalf("calls = %d, want execution on the final slot", exec.calls)
	}
	if !strings.Contains(reply, "ABC1234") {
		t.Errorf("confirmation %q missing the booking reference", reply)
	}
	if exec.lastSlots.Name != "John Smith" || exec.lastSlots.PartySize != 4 {
		t.Errorf("executed slots = %+v", exec.lastSlots)
	}
}

func TestSingleUtteranceBooking(t *testing.T) {
	seven := timeparse.Clock{Hour: 19}
	script := map[string]nlu.Result{
		"book for John Smith tomorrow 7pm for 4": {
			Intent: nlu.IntentCreateBooking,
			Slots: nlu.Slots{
				Name:      "John Smith",
				Date:      time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
				Time:      &seven,
				PartySize: 4,
			},
			Clean: true,
		},
	}
	exec := &fakeExecutor{outcome: confirmedBooking()}
	m := newTestManager(t, script, exec)

	reply, err := m.HandleTurn(context.Background(), "s-1", "book for John Smith tomorrow 7pm for 4")
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != 1 {
		t.Fatalf("calls = %d, want immediate execution", exec.calls)
	}
	if !strings.Contains(reply, "ABC1234") {
		t.Errorf("reply = %q", reply)
	}
}

func TestUnknownUtteranceGetsHelpWithoutTouchingState(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestManager(t, map[string]nlu.Result{}, exec)

	reply, err := m.HandleTurn(context.Background(), "s-1", "what's the meaning of life")
	if err != nil {
		t.Fatal(err)
	}
	if reply != helpMessage {
		t.Errorf("reply = %q, want the help message", reply)
	}
	if exec.calls != 0 {
		t.Error("unknown utterance reached the executor")
	}

	s, ok := m.store.Peek("s-1")
	if !ok {
		t.Fatal("session missing after help turn")
	}
	if s.Turns != 0 || s.Intent != nlu.IntentUnknown || s.Slots.Has(nlu.SlotName) {
		t.Errorf("help turn mutated session state: %+v", s)
	}
}

func TestIntentSwitchClearsForeignSlots(t *testing.T) {
	script := map[string]nlu.Result{
		"book a table": {
			Intent: nlu.IntentCreateBooking,
			Slots:  nlu.Slots{Name: "John Smith", PartySize: 4},
			Clean:  true,
		},
		"actually, cancel my booking": {Intent: nlu.IntentCancelBooking, Clean: true},
	}
	exec := &fakeExecutor{}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	if _, err := m.HandleTurn(ctx, "s-1", "book a table"); err != nil {
		t.Fatal(err)
	}
	reply, err := m.HandleTurn(ctx, "s-1", "actually, cancel my booking")
	if err != nil {
		t.Fatal(err)
	}
	// No reference known yet, so cancellation must ask for one rather than
	// reuse the reservation slots.
	if !strings.Contains(reply, "booking reference") {
		t.Errorf("reply = %q, want a booking reference prompt", reply)
	}
	if exec.calls != 0 {
		t.Error("cancel executed without a reference")
	}
}

func TestImplicitBookingReference(t *testing.T) {
	seven := timeparse.Clock{Hour: 19}
	script := map[string]nlu.Result{
		"book for John Smith tomorrow 7pm for 4": {
			Intent: nlu.IntentCreateBooking,
			Slots: nlu.Slots{
				Name:      "John Smith",
				Date:      time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
				Time:      &seven,
				PartySize: 4,
			},
			Clean: true,
		},
		"cancel my reservation": {Intent: nlu.IntentCancelBooking, Clean: true},
	}
	exec := &fakeExecutor{outcome: confirmedBooking()}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	if _, err := m.HandleTurn(ctx, "s-1", "book for John Smith tomorrow 7pm for 4"); err != nil {
		t.Fatal(err)
	}

	exec.outcome = booking.Outcome{OK: true, Cancellation: &booking.CancelResult{
		Reference: "ABC1234", Status: "cancelled",
	}}
	reply, err := m.HandleTurn(ctx, "s-1", "cancel my reservation")
	if err != nil {
		t.Fatal(err)
	}
	if exec.lastIntent != nlu.IntentCancelBooking || exec.lastSlots.BookingRef != "ABC1234" {
		t.Errorf("executed %s with slots %+v, want the remembered reference", exec.lastIntent, exec.lastSlots)
	}
	if !strings.Contains(reply, "cancelled") {
		t.Errorf("reply = %q", reply)
	}
}

func TestTransientFailureKeepsSlotsForRetry(t *testing.T) {
	seven := timeparse.Clock{Hour: 19}
	complete := nlu.Result{
		Intent: nlu.IntentCreateBooking,
		Slots: nlu.Slots{
			Name:      "John Smith",
			Date:      time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
			Time:      &seven,
			PartySize: 4,
		},
		Clean: true,
	}
	script := map[string]nlu.Result{
		"book for John Smith tomorrow 7pm for 4": complete,
	}
	exec := &fakeExecutor{outcome: booking.Outcome{Kind: booking.KindTransient, Detail: "down"}}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	reply, err := m.HandleTurn(ctx, "s-1", "book for John Smith tomorrow 7pm for 4")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "try again") {
		t.Errorf("reply = %q, want a try-again message", reply)
	}

	// An unrecognized nudge re-runs the still-complete intent.
	exec.outcome = confirmedBooking()
	reply, err = m.HandleTurn(ctx, "s-1", "please try again")
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != 2 {
		t.Fatalf("calls = %d, want a second execution", exec.calls)
	}
	if !strings.Contains(reply, "ABC1234") {
		t.Errorf("reply = %q", reply)
	}
}

func TestUpdateWithNoFieldsAsksWhatToChange(t *testing.T) {
	eight := timeparse.Clock{Hour: 20}
	script := map[string]nlu.Result{
		"change my booking ABC1234": {
			Intent: nlu.IntentUpdateBooking,
			Slots:  nlu.Slots{BookingRef: "ABC1234"},
			Clean:  true,
		},
		"move it to 8pm": {
			Intent: nlu.IntentUpdateBooking,
			Slots:  nlu.Slots{Time: &eight},
			Clean:  true,
		},
	}
	exec := &fakeExecutor{outcome: booking.Outcome{OK: true, Booking: &booking.Booking{
		Reference: "ABC1234", VisitDate: "2025-01-07", VisitTime: "20:00:00", PartySize: 4, Status: "confirmed",
	}}}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	reply, err := m.HandleTurn(ctx, "s-1", "change my booking ABC1234")
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != 0 {
		t.Fatal("update executed with nothing to change")
	}
	if !strings.Contains(reply, "What would you like to change about booking ABC1234") {
		t.Errorf("reply = %q, want a what-to-change prompt naming the reference", reply)
	}

	// The reference survives, so the follow-up field executes the update.
	reply, err = m.HandleTurn(ctx, "s-1", "move it to 8pm")
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != 1 {
		t.Fatalf("calls = %d, want execution once a field arrived", exec.calls)
	}
	if exec.lastSlots.BookingRef != "ABC1234" || exec.lastSlots.Time == nil || exec.lastSlots.Time.Hour != 20 {
		t.Errorf("executed slots = %+v", exec.lastSlots)
	}
	if !strings.Contains(reply, "20:00") {
		t.Errorf("reply = %q", reply)
	}
}

func TestNotFoundClearsStaleReference(t *testing.T) {
	script := map[string]nlu.Result{
		"check booking ZZZ9999": {
			Intent: nlu.IntentGetBooking,
			Slots:  nlu.Slots{BookingRef: "ZZZ9999"},
			Clean:  true,
		},
		"check my booking": {Intent: nlu.IntentGetBooking, Clean: true},
	}
	exec := &fakeExecutor{outcome: booking.Outcome{Kind: booking.KindNotFound, Detail: "Booking not found"}}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	reply, err := m.HandleTurn(ctx, "s-1", "check booking ZZZ9999")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "couldn't find") {
		t.Errorf("reply = %q", reply)
	}

	// The stale reference must not be silently reused.
	reply, err = m.HandleTurn(ctx, "s-1", "check my booking")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "booking reference") {
		t.Errorf("reply = %q, want a reference prompt", reply)
	}
}

// TestHeuristicEndToEnd runs the real heuristic extractor through the
// manager with a pinned clock: Monday 2025-01-06.
func TestHeuristicEndToEnd(t *testing.T) {
	store := session.NewStore(context.Background(), session.Options{})
	t.Cleanup(store.Close)

	exec := &fakeExecutor{outcome: confirmedBooking()}
	m := NewManager(store, nlu.NewHeuristicExtractor(), exec)
	m.clock = func() time.Time { return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	reply, err := m.HandleTurn(ctx, "s-1", "I want to book a table")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "What name") {
		t.Fatalf("reply = %q, want the name prompt first", reply)
	}

	if _, err := m.HandleTurn(ctx, "s-1", "John Smith"); err != nil {
		t.Fatal(err)
	}

	reply, err = m.HandleTurn(ctx, "s-1", "tomorrow at 7pm for 4 people")
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != 1 {
		t.Fatalf("calls = %d, want execution once all slots arrived", exec.calls)
	}
	if got := exec.lastSlots.Date.Format("2006-01-02"); got != "2025-01-07" {
		t.Errorf("date = %s, want 2025-01-07", got)
	}
	if exec.lastSlots.Time == nil || exec.lastSlots.Time.String() != "19:00" {
		t.Errorf("time = %v, want 19:00", exec.lastSlots.Time)
	}
	if exec.lastSlots.PartySize != 4 || exec.lastSlots.Name != "John Smith" {
		t.Errorf("slots = %+v", exec.lastSlots)
	}
	if !strings.Contains(reply, "ABC1234") {
		t.Errorf("reply = %q", reply)
	}
}

// Replaying the same utterance sequence after a reset yields the same
// replies: extraction, slot filling, and composition are deterministic.
func TestReplayAfterResetIsIdentical(t *testing.T) {
	store := session.NewStore(context.Background(), session.Options{})
	t.Cleanup(store.Close)

	exec := &fakeExecutor{outcome: confirmedBooking()}
	m := NewManager(store, nlu.NewHeuristicExtractor(), exec)
	m.clock = func() time.Time { return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	utterances := []string{
		"I want to book a table",
		"John Smith",
		"tomorrow at 7pm for 4 people",
	}

	run := func() []string {
		var replies []string
		for _, u := range utterances {
			reply, err := m.HandleTurn(ctx, "s-1", u)
			if err != nil {
				t.Fatal(err)
			}
			replies = append(replies, reply)
		}
		return replies
	}

	first := run()
	m.Reset(ctx, "s-1")
	second := run()

	for i := range first {
		if first[i] != second[i] {
			t.Errorf("turn %d diverged:\n first: %q\nsecond: %q", i, first[i], second[i])
		}
	}
}

func TestValidationFailureKeepsSlotsForRevision(t *testing.T) {
	seven := timeparse.Clock{Hour: 19}
	eight := timeparse.Clock{Hour: 20}
	script := map[string]nlu.Result{
		"book for John Smith tomorrow 7pm for 4": {
			Intent: nlu.IntentCreateBooking,
			Slots: nlu.Slots{
				Name:      "John Smith",
				Date:      time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
				Time:      &seven,
				PartySize: 4,
			},
			Clean: true,
		},
		"make it 8pm instead": {
			Intent: nlu.IntentCreateBooking,
			Slots:  nlu.Slots{Time: &eight},
			Clean:  true,
		},
	}
	exec := &fakeExecutor{outcome: booking.Outcome{Kind: booking.KindValidation, Detail: "No availability at 19:00"}}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	if _, err := m.HandleTurn(ctx, "s-1", "book for John Smith tomorrow 7pm for 4"); err != nil {
		t.Fatal(err)
	}

	exec.outcome = confirmedBooking()
	if _, err := m.HandleTurn(ctx, "s-1", "make it 8pm instead"); err != nil {
		t.Fatal(err)
	}
	if exec.calls != 2 {
		t.Fatalf("calls = %d, want re-execution after revision", exec.calls)
	}
	if exec.lastSlots.Time == nil || exec.lastSlots.Time.Hour != 20 {
		t.Errorf("time = %v, want the revised 20:00", exec.lastSlots.Time)
	}
	if exec.lastSlots.Name != "John Smith" || exec.lastSlots.PartySize != 4 {
		t.Errorf("other slots lost on revision: %+v", exec.lastSlots)
	}
}

func TestSessionsDoNotLeakAcrossIDs(t *testing.T) {
	script := map[string]nlu.Result{
		"book a table": {Intent: nlu.IntentCreateBooking, Slots: nlu.Slots{Name: "John Smith"}, Clean: true},
	}
	exec := &fakeExecutor{}
	m := newTestManager(t, script, exec)
	ctx := context.Background()

	if _, err := m.HandleTurn(ctx, "a", "book a table"); err != nil {
		t.Fatal(err)
	}
	reply, err := m.HandleTurn(ctx, "b", "what's up")
	if err != nil {
		t.Fatal(err)
	}
	if reply != helpMessage {
		t.Errorf("fresh session replied %q, want help", reply)
	}
}
