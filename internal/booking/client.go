// Package booking talks to the restaurant booking API and turns dialogue
// intents into API calls with retry on transient failures.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hungryunicorn/concierge/internal/timeparse"
)

// ErrorKind classifies API failures for retry and response-wording decisions.
type ErrorKind string

const (
	KindTransient  ErrorKind = "transient"  // 5xx, 429, network
	KindNotFound   ErrorKind = "not_found"  // unknown booking reference
	KindValidation ErrorKind = "validation" // the API rejected the request fields
	KindAuth       ErrorKind = "auth"       // bad or missing token
)

// APIError is a non-2xx response from the booking API.
type APIError struct {
	Kind   ErrorKind
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("booking api: %s (status %d): %s", e.Kind, e.Status, e.Detail)
}

// Availability is the result of an availability search.
type Availability struct {
	VisitDate      string `json:"visit_date"`
	PartySize      int    `json:"party_size"`
	AvailableSlots []Slot `json:"available_slots"`
	TotalSlots     int    `json:"total_slots"`
}

// Slot is one bookable time in an availability response.
type Slot struct {
	Time         string `json:"time"`
	Available    bool   `json:"available"`
	MaxPartySize int    `json:"max_party_size"`
}

// Booking is a created or retrieved reservation.
type Booking struct {
	Reference string   `json:"booking_reference"`
	VisitDate string   `json:"visit_date"`
	VisitTime string   `json:"visit_time"`
	PartySize int      `json:"party_size"`
	Status    string   `json:"status"`
	Customer  Customer `json:"customer"`
}

// Customer is the guest a booking is held under.
type Customer struct {
	FirstName string `json:"first_name"`
	Surname   string `json:"surname"`
}

// Name joins the customer's name parts for display.
func (c Customer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.Surname)
}

// CancelResult is the API's acknowledgement of a cancellation.
type CancelResult struct {
	Reference string `json:"booking_reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// CreateRequest carries the fields for a new booking.
type CreateRequest struct {
	CustomerName    string
	VisitDate       time.Time
	VisitTime       timeparse.Clock
	PartySize       int
	SpecialRequests string
}

// UpdateRequest carries the changed fields for an existing booking. Nil
// fields are left untouched by the API.
type UpdateRequest struct {
	VisitDate *time.Time
	VisitTime *timeparse.Clock
	PartySize *int
}

// Client is an HTTP client for one restaurant's booking API. The API takes
// form-encoded requests with a bearer token and answers in JSON.
type Client struct {
	baseURL    string
	token      string
	restaurant string
	httpc      *http.Client
}

func NewClient(baseURL, token, restaurant string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		restaurant: restaurant,
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL + "/api/ConsumerApi/v1/Restaurant/" + c.restaurant + "/" + strings.Join(parts, "/")
}

// CheckAvailability searches bookable slots on a date. partySize 0 lets the
// API assume its default of two covers.
func (c *Client) CheckAvailability(ctx context.Context, date time.Time, partySize int) (*Availability, error) {
	form := url.Values{}
	form.Set("VisitDate", date.Format(timeparse.DateLayout))
	form.Set("ChannelCode", "ONLINE")
	if partySize > 0 {
		form.Set("PartySize", strconv.Itoa(partySize))
	} else {
		form.Set("PartySize", "2")
	}

	var out Availability
	if err := c.do(ctx, http.MethodPost, c.endpoint("AvailabilitySearch"), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBooking creates a reservation and returns it with its reference.
func (c *Client) CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	first, surname := splitName(req.CustomerName)

	form := url.Values{}
	form.Set("VisitDate", req.VisitDate.Format(timeparse.DateLayout))
	form.Set("VisitTime", req.VisitTime.String()+":00")
	form.Set("PartySize", strconv.Itoa(req.PartySize))
	form.Set("ChannelCode", "ONLINE")
	form.Set("Customer[FirstName]", first)
	form.Set("Customer[Surname]", surname)
	if req.SpecialRequests != "" {
		form.Set("SpecialRequests", req.SpecialRequests)
	}

	var out Booking
	if err := c.do(ctx, http.MethodPost, c.endpoint("BookingWithStripeToken"), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBooking retrieves a reservation by reference.
func (c *Client) GetBooking(ctx context.Context, ref string) (*Booking, error) {
	var out Booking
	if err := c.do(ctx, http.MethodGet, c.endpoint("Booking", ref), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBooking patches the supplied fields of an existing reservation.
func (c *Client) UpdateBooking(ctx context.Context, ref string, req UpdateRequest) (*Booking, error) {
	form := url.Values{}
	if req.VisitDate != nil {
		form.Set("VisitDate", req.VisitDate.Format(timeparse.DateLayout))
	}
	if req.VisitTime != nil {
		form.Set("VisitTime", req.VisitTime.String()+":00")
	}
	if req.PartySize != nil {
		form.Set("PartySize", strconv.Itoa(*req.PartySize))
	}

	var out Booking
	if err := c.do(ctx, http.MethodPatch, c.endpoint("Booking", ref), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelBooking cancels a reservation by reference.
func (c *Client) CancelBooking(ctx context.Context, ref string) (*CancelResult, error) {
	form := url.Values{}
	form.Set("micrositeName", c.restaurant)
	form.Set("bookingReference", ref)
	form.Set("cancellationReasonId", "1")

	var out CancelResult
	if err := c.do(ctx, http.MethodPost, c.endpoint("Booking", ref, "Cancel"), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and decodes a 2xx JSON body into out. Non-2xx
// responses become *APIError classified by status.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransient, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &APIError{Kind: KindTransient, Status: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Detail: errorDetail(raw),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status >= 500:
		return KindTransient
	default:
		return KindValidation
	}
}

// errorDetail pulls a human-readable message out of an error body, falling
// back to the raw text.
func errorDetail(raw []byte) string {
	var e struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		for _, s := range []string{e.Detail, e.Message, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func splitName(full string) (first, surname string) {
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		surname = parts[1]
	}
	return first, surname
}
