package payoutclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestRequestPayoutPostsIdempotentRequest(t *testing.T) {
	txID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payouts" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != txID.String() {
			t.Fatalf("expected idempotency key %s, got %q", txID, got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gw-key" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		var req PayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !req.AmountNGN.Equal(decimal.NewFromInt(1500)) {
			t.Fatalf("expected 1500 NGN, got %s", req.AmountNGN)
		}
		_ = json.NewEncoder(w).Encode(PayoutResponse{Reference: "po_123", Status: "processing"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "gw-key").RequestPayout(context.Background(), PayoutRequest{
		TransactionID: txID,
		AccountID:     uuid.New(),
		AmountNGN:     decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resp.Reference != "po_123" {
		t.Fatalf("expected reference po_123, got %q", resp.Reference)
	}
}

func TestRequestPayoutSurfacesGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid bank account"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").RequestPayout(context.Background(), PayoutRequest{TransactionID: uuid.New()})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", apiErr.StatusCode)
	}
}
