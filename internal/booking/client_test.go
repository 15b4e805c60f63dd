package booking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hungryunicorn/concierge/internal/timeparse"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", "TheHungryUnicorn")
}

func TestCheckAvailability(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/api/ConsumerApi/v1/Restaurant/TheHungryUnicorn/AvailabilitySearch" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("VisitDate") != "2025-01-07" {
			t.Errorf("VisitDate = %q", r.PostForm.Get("VisitDate"))
		}
		if r.PostForm.Get("PartySize") != "4" {
			t.Errorf("PartySize = %q", r.PostForm.Get("PartySize"))
		}
		if r.PostForm.Get("ChannelCode") != "ONLINE" {
			t.Errorf("ChannelCode = %q", r.PostForm.Get("ChannelCode"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"visit_date": "2025-01-07",
			"party_size": 4,
			"available_slots": [
				{"time": "19:00:00", "available": true, "max_party_size": 8},
				{"time": "19:30:00", "available": false, "max_party_size": 8}
			],
			"total_slots": 2
		}`))
	})

	date := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	av, err := c.CheckAvailability(context.Background(), date, 4)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(av.AvailableSlots) != 2 || av.AvailableSlots[0].Time != "19:00:00" {
		t.Errorf("slots = %+v", av.AvailableSlots)
	}
}

func TestCreateBooking(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ConsumerApi/v1/Restaurant/TheHungryUnicorn/BookingWithStripeToken" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("Customer[FirstName]") != "John" || r.PostForm.Get("Customer[Surname]") != "Smith" {
			t.Errorf("customer = %q %q", r.PostForm.Get("Customer[FirstName]"), r.PostForm.Get("Customer[Surname]"))
		}
		if r.PostForm.Get("VisitTime") != "19:00:00" {
			t.Errorf("VisitTime = %q, seconds must be appended", r.PostForm.Get("VisitTime"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"booking_reference": "ABC1234",
			"visit_date": "2025-01-07",
			"visit_time": "19:00:00",
			"party_size": 4,
			"status": "confirmed",
			"customer": {"first_name": "John", "surname": "Smith"}
		}`))
	})

	b, err := c.CreateBooking(context.Background(), CreateRequest{
		CustomerName: "John Smith",
		VisitDate:    time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		VisitTime:    timeparse.Clock{Hour: 19},
		PartySize:    4,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Reference != "ABC1234" {
		t.Errorf("reference = %q", b.Reference)
	}
	if b.Customer.Name() != "John Smith" {
		t.Errorf("customer = %q", b.Customer.Name())
	}
}

func TestGetBookingPath(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/api/ConsumerApi/v1/Restaurant/TheHungryUnicorn/Booking/ABC1234" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"booking_reference": "ABC1234", "status": "confirmed"}`))
	})

	b, err := c.GetBooking(context.Background(), "ABC1234")
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if b.Status != "confirmed" {
		t.Errorf("status = %q", b.Status)
	}
}

func TestUpdateBookingSendsOnlyChangedFields(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("VisitTime") != "20:00:00" {
			t.Errorf("VisitTime = %q", r.PostForm.Get("VisitTime"))
		}
		if r.PostForm.Has("VisitDate") || r.PostForm.Has("PartySize") {
			t.Errorf("unchanged fields sent: %v", r.PostForm)
		}
		w.Write([]byte(`{"booking_reference": "ABC1234", "visit_time": "20:00:00", "status": "confirmed"}`))
	})

	eight := timeparse.Clock{Hour: 20}
	b, err := c.UpdateBooking(context.Background(), "ABC1234", UpdateRequest{VisitTime: &eight})
	if err != nil {
		t.Fatalf("UpdateBooking: %v", err)
	}
	if b.VisitTime != "20:00:00" {
		t.Errorf("visit time = %q", b.VisitTime)
	}
}

func TestCancelBooking(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ConsumerApi/v1/Restaurant/TheHungryUnicorn/Booking/ABC1234/Cancel" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("bookingReference") != "ABC1234" {
			t.Errorf("bookingReference = %q", r.PostForm.Get("bookingReference"))
		}
		w.Write([]byte(`{"booking_reference": "ABC1234", "status": "cancelled", "message": "Booking cancelled successfully"}`))
	})

	res, err := c.CancelBooking(context.Background(), "ABC1234")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if res.Status != "cancelled" {
		t.Errorf("status = %q", res.Status)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   ErrorKind
	}{
		{http.StatusNotFound, `{"detail": "Booking not found"}`, KindNotFound},
		{http.StatusUnauthorized, `{"detail": "Invalid token"}`, KindAuth},
		{http.StatusBadRequest, `{"detail": "PartySize must be between 1 and 20"}`, KindValidation},
		{http.StatusInternalServerError, `{"detail": "oops"}`, KindTransient},
		{http.StatusTooManyRequests, `slow down`, KindTransient},
		{http.StatusServiceUnavailable, ``, KindTransient},
	}

	for _, tt := range tests {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		})

		_, err := c.GetBooking(context.Background(), "ABC1234")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: err = %v, want *APIError", tt.status, err)
		}
		if apiErr.Kind != tt.want {
			t.Errorf("status %d: kind = %s, want %s", tt.status, apiErr.Kind, tt.want)
		}
	}
}

func TestConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, "test-token", "TheHungryUnicorn")
	_, err := c.GetBooking(context.Background(), "ABC1234")
	if !IsTransient(err) {
		t.Errorf("connection failure not classified transient: %v", err)
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, first, surname string
	}{
		{"John Smith", "John", "Smith"},
		{"Cher", "Cher", ""},
		{"Mary Jane Watson", "Mary", "Jane Watson"},
	}
	for _, tt := range tests {
		first, surname := splitName(tt.in)
		if first != tt.first || surname != tt.surname {
			t.Errorf("splitName(%q) = %q, %q", tt.in, first, surname)
		}
	}
}
