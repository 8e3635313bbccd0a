package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func familyCount(t *testing.T, name string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/draw/rounds/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := familyCount(t, "sup_ledger_http_requests_total")
	req := httptest.NewRequest(http.MethodGet, "/draw/rounds/6f1c2a4e-8d3b-4f7a-9e21-5b0c7d9a3e14", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := familyCount(t, "sup_ledger_http_requests_total"); got != before+1 {
		t.Fatalf("expected one more request, got %v -> %v", before, got)
	}

	families, _ := Registry.Gather()
	found := false
	for _, mf := range families {
		if mf.GetName() != "sup_ledger_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "path" && label.GetValue() == "/draw/rounds/{id}" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected the route pattern as path label")
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/", want: "/"},
		{in: "/wallet", want: "/wallet"},
		{in: "/treasury/alerts/6f1c2a4e-8d3b-4f7a-9e21-5b0c7d9a3e14/resolve", want: "/treasury/alerts/{id}/resolve"},
	}
	for _, tt := range tests {
		if got := canonicalPath(tt.in); got != tt.want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordersIncrement(t *testing.T) {
	before := familyCount(t, "sup_ledger_monitor_alerts_raised_total")
	RecordAlert("LARGE_WITHDRAWAL", true)
	RecordAlert("LARGE_WITHDRAWAL", false)
	if got := familyCount(t, "sup_ledger_monitor_alerts_raised_total"); got != before+1 {
		t.Fatalf("expected raised counter to grow by one, got %v -> %v", before, got)
	}

	RecordLedgerAppend("BUY", "COMPLETED")
	RecordLimitDenial("WEEKLY_CAP_EXCEEDED")
	RecordJobRun("", 0, true)
	RecordJobRun("draw_due", 20*time.Millisecond, false)

	SetFrozen(true)
	if got := familyCount(t, "sup_ledger_treasury_frozen"); got != 1 {
		t.Fatalf("expected frozen gauge 1, got %v", got)
	}
	SetFrozen(false)
	if got := familyCount(t, "sup_ledger_treasury_frozen"); got != 0 {
		t.Fatalf("expected frozen gauge 0, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sup_ledger_treasury_frozen") {
		t.Fatal("expected ledger metrics in exposition")
	}
}
