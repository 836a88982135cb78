package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cabgo/models"
)

func sampleBooking() *models.BookingRequest {
	return &models.BookingRequest{
		SessionID:   "sess-1",
		Pickup:      "Kochi International Airport",
		Dropoff:     "Fort Kochi",
		VehicleType: "sedan",
		Language:    models.LangEnglish,
	}
}

func TestDispatchSuccess(t *testing.T) {
	var received models.BookingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode booking: %v", err)
		}
		json.NewEncoder(w).Encode(models.DispatchResult{Success: true, BookingID: "BK123"})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 0)
	result, err := d.Dispatch(context.Background(), sampleBooking())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Success || result.BookingID != "BK123" {
		t.Errorf("result = %+v, want success BK123", result)
	}
	if received.Pickup != "Kochi International Airport" || received.SessionID != "sess-1" {
		t.Errorf("server received %+v", received)
	}
}

func TestDispatchRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(models.DispatchResult{Success: false})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 0)
	result, err := d.Dispatch(context.Background(), sampleBooking())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Success {
		t.Error("rejection should not report success")
	}
}

func TestDispatchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 0)
	result, err := d.Dispatch(context.Background(), sampleBooking())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Success {
		t.Error("5xx must map to an unsuccessful result")
	}
}

func TestDispatchSuccessWithoutIDIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(models.DispatchResult{Success: true})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 0)
	result, err := d.Dispatch(context.Background(), sampleBooking())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Success {
		t.Error("a success with no booking id must be treated as a failure")
	}
}

func TestDispatchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(models.DispatchResult{Success: true, BookingID: "BK9"})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 20*time.Millisecond)
	if _, err := d.Dispatch(context.Background(), sampleBooking()); err == nil {
		t.Error("expected a timeout error")
	}
}

func TestDispatchContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewHTTPDispatcher(srv.URL, 0)
	if _, err := d.Dispatch(ctx, sampleBooking()); err == nil {
		t.Error("expected a cancellation error")
	}
}
