package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   Kind
	}{
		{status: 400, want: KindValidation},
		{status: 422, want: KindValidation},
		{status: 401, want: KindUnverified},
		{status: 403, want: KindUnverified},
		{status: 404, want: KindConflict},
		{status: 409, code: "duplicate_bid", want: KindDuplicateBid},
		{status: 409, code: "not_pending", want: KindNotPending},
		{status: 409, code: "already_active", want: KindAlreadyActive},
		{status: 409, code: "already_cancelled", want: KindAlreadyCancelled},
		{status: 409, want: KindConflict},
		{status: 408, want: KindTransient},
		{status: 429, want: KindTransient},
		{status: 500, want: KindTransient},
		{status: 503, want: KindTransient},
		{status: 418, want: KindUnknown},
	}

	for _, tt := range tests {
		err := classify(tt.status, errorBody{Code: tt.code})
		if err.Kind != tt.want {
			t.Fatalf("classify(%d, %q) = %s, want %s", tt.status, tt.code, err.Kind, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q, want empty", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %q, want unknown", got)
	}
	wrapped := NewError(KindDuplicateBid, "exists")
	if !IsKind(wrapped, KindDuplicateBid) {
		t.Fatalf("expected wrapped error to carry duplicate_bid")
	}
}

func TestCreateBidSendsAuthAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bids" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"bid-9","shipment_id":"ship-1","status":"pending","price":"100"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Token: "token-1", HTTPClient: srv.Client()}
	bid, err := c.CreateBid(context.Background(), CreateBidRequest{ShipmentID: "ship-1", Price: "100", Currency: "USD", ETA: "3 days"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bid.ID != "bid-9" || bid.ShipmentID != "ship-1" {
		t.Fatalf("unexpected bid decoded: %+v", bid)
	}
}

func TestErrorResponseClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"duplicate_bid","message":"an active bid already exists"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.CreateBid(context.Background(), CreateBidRequest{ShipmentID: "ship-1", Price: "100", Currency: "USD", ETA: "3 days"})
	if !IsKind(err, KindDuplicateBid) {
		t.Fatalf("expected duplicate_bid, got %v", err)
	}
}

func TestUnreachableServerIsTransient(t *testing.T) {
	c := &Client{
		BaseURL:    "http://127.0.0.1:1", // nothing listens here
		HTTPClient: &http.Client{Timeout: 200 * time.Millisecond},
	}
	_, err := c.MyBids(context.Background())
	if !IsKind(err, KindTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestProfileVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/profile" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"car-1","verification_status":"verified"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	profile, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := profile.Verification()
	if v.ActorID != "car-1" || !v.CanWrite() {
		t.Fatalf("unexpected verification: %+v", v)
	}
}
