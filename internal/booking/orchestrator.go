package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hungryunicorn/concierge/internal/nlu"
)

// API is the surface of Client the orchestrator needs, split out so dialogue
// tests can substitute a fake.
type API interface {
	CheckAvailability(ctx context.Context, date time.Time, partySize int) (*Availability, error)
	CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error)
	GetBooking(ctx context.Context, ref string) (*Booking, error)
	UpdateBooking(ctx context.Context, ref string, req UpdateRequest) (*Booking, error)
	CancelBooking(ctx context.Context, ref string) (*CancelResult, error)
}

// Outcome is the result of executing a completed intent. Exactly one of the
// payload fields is set on success; Kind and Detail describe the failure
// otherwise.
type Outcome struct {
	OK     bool
	Kind   ErrorKind
	Detail string

	Availability *Availability
	Booking      *Booking
	Cancellation *CancelResult
}

func success() Outcome { return Outcome{OK: true} }

// failure maps an error to an Outcome. A transient kind here means retries
// are already exhausted.
func failure(err error) Outcome {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return Outcome{Kind: apiErr.Kind, Detail: apiErr.Detail}
	}
	return Outcome{Kind: KindTransient, Detail: err.Error()}
}

// Orchestrator executes completed intents against the booking API under a
// retry policy.
type Orchestrator struct {
	api    API
	policy Policy
}

func NewOrchestrator(api API, policy Policy) *Orchestrator {
	return &Orchestrator{api: api, policy: policy}
}

// Execute runs the API call for intent using the collected slots. The caller
// guarantees the intent's required slots are filled.
func (o *Orchestrator) Execute(ctx context.Context, intent nlu.Intent, slots nlu.Slots) Outcome {
	switch intent {
	case nlu.IntentCheckAvailability:
		return o.checkAvailability(ctx, slots)
	case nlu.IntentCreateBooking:
		return o.createBooking(ctx, slots)
	case nlu.IntentGetBooking:
		return o.getBooking(ctx, slots)
	case nlu.IntentUpdateBooking:
		return o.updateBooking(ctx, slots)
	case nlu.IntentCancelBooking:
		return o.cancelBooking(ctx, slots)
	default:
		return Outcome{Kind: KindValidation, Detail: fmt.Sprintf("intent %q is not executable", intent)}
	}
}

func (o *Orchestrator) checkAvailability(ctx context.Context, slots nlu.Slots) Outcome {
	var av *Availability
	err := o.policy.Do(ctx, func() error {
		var err error
		av, err = o.api.CheckAvailability(ctx, slots.Date, slots.PartySize)
		return err
	})
	if err != nil {
		return failure(err)
	}
	out := success()
	out.Availability = av
	return out
}

func (o *Orchestrator) createBooking(ctx context.Context, slots nlu.Slots) Outcome {
	req := CreateRequest{
		CustomerName: slots.Name,
		VisitDate:    slots.Date,
		VisitTime:    *slots.Time,
		PartySize:    slots.PartySize,
	}

	var b *Booking
	err := o.policy.Do(ctx, func() error {
		var err error
		b, err = o.api.CreateBooking(ctx, req)
		return err
	})
	if err != nil {
		return failure(err)
	}
	out := success()
	out.Booking = b
	return out
}

func (o *Orchestrator) getBooking(ctx context.Context, slots nlu.Slots) Outcome {
	var b *Booking
	err := o.policy.Do(ctx, func() error {
		var err error
		b, err = o.api.GetBooking(ctx, slots.BookingRef)
		return err
	})
	if err != nil {
		return failure(err)
	}
	out := success()
	out.Booking = b
	return out
}

func (o *Orchestrator) updateBooking(ctx context.Context, slots nlu.Slots) Outcome {
	var req UpdateRequest
	if slots.Has(nlu.SlotDate) {
		d := slots.Date
		req.VisitDate = &d
	}
	if slots.Time != nil {
		c := *slots.Time
		req.VisitTime = &c
	}
	if slots.PartySize > 0 {
		n := slots.PartySize
		req.PartySize = &n
	}
	if req.VisitDate == nil && req.VisitTime == nil && req.PartySize == nil {
		return Outcome{Kind: KindValidation, Detail: "nothing to update"}
	}

	var b *Booking
	err := o.policy.Do(ctx, func() error {
		var err error
		b, err = o.api.UpdateBooking(ctx, slots.BookingRef, req)
		return err
	})
	if err != nil {
		return failure(err)
	}
	out := success()
	out.Booking = b
	return out
}

func (o *Orchestrator) cancelBooking(ctx context.Context, slots nlu.Slots) Outcome {
	var res *CancelResult
	err := o.policy.Do(ctx, func() error {
		var err error
		res, err = o.api.CancelBooking(ctx, slots.BookingRef)
		return err
	})
	if err != nil {
		return failure(err)
	}
	out := success()
	out.Cancellation = res
	return out
}
