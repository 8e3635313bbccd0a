package kycclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

func TestTierSendsInternalKeyAndParsesTier(t *testing.T) {
	accountID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/kyc/"+accountID.String() {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Internal-API-Key"); got != "secret" {
			t.Fatalf("expected internal api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tier":"TIER1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret")
	tier, err := client.Tier(context.Background(), accountID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tier != domain.KYCTierOne {
		t.Fatalf("expected TIER1, got %s", tier)
	}
}

func TestTierTreatsUnknownAccountAsNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tier, err := NewClient(server.URL, "").Tier(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tier != domain.KYCTierNone {
		t.Fatalf("expected NONE, got %s", tier)
	}
}

func TestTierReturnsErrorOnServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, "").Tier(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for 502 response")
	}
	if _, err := NewClient("", "").Tier(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
