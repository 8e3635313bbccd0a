package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

func TestEvaluateCashout(t *testing.T) {
	tests := []struct {
		name       string
		tier       domain.KYCTier
		amount     string
		weeklyNGN  string
		wantAllow  bool
		wantReason domain.LimitReason
	}{
		{name: "tier one at cap", tier: domain.KYCTierOne, amount: "2000", weeklyNGN: "0", wantAllow: true},
		{name: "tier one over cap", tier: domain.KYCTierOne, amount: "2000.01", weeklyNGN: "0", wantReason: domain.ReasonWeeklyCapExceeded},
		{name: "tier one with usage", tier: domain.KYCTierOne, amount: "100", weeklyNGN: "19000", wantAllow: true},
		{name: "tier one usage pushes over", tier: domain.KYCTierOne, amount: "100.01", weeklyNGN: "19000", wantReason: domain.ReasonWeeklyCapExceeded},
		{name: "tier one ₦1,000 after ₦19,500", tier: domain.KYCTierOne, amount: "100", weeklyNGN: "19500", wantReason: domain.ReasonWeeklyCapExceeded},
		{name: "tier one ₦500 after ₦19,500", tier: domain.KYCTierOne, amount: "50", weeklyNGN: "19500", wantAllow: true},
		{name: "tier two cap", tier: domain.KYCTierTwo, amount: "20000", weeklyNGN: "0", wantAllow: true},
		{name: "tier two over cap", tier: domain.KYCTierTwo, amount: "100", weeklyNGN: "199500", wantReason: domain.ReasonWeeklyCapExceeded},
		{name: "unverified", tier: domain.KYCTierNone, amount: "100", weeklyNGN: "0", wantReason: domain.ReasonTierTooLow},
		{name: "unknown tier", tier: domain.KYCTier("TIER9"), amount: "100", weeklyNGN: "0", wantReason: domain.ReasonTierTooLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.tier, OpCashout, decimal.RequireFromString(tt.amount), Usage{WeeklyCashoutNGN: decimal.RequireFromString(tt.weeklyNGN)})
			if got.Allowed != tt.wantAllow {
				t.Fatalf("expected allowed=%v, got %+v", tt.wantAllow, got)
			}
			if !tt.wantAllow && got.Reason != tt.wantReason {
				t.Fatalf("expected reason %s, got %s", tt.wantReason, got.Reason)
			}
			if tt.wantAllow && got.Err() != nil {
				t.Fatalf("expected nil error for allowed decision, got %v", got.Err())
			}
		})
	}
}

func TestEvaluateEngageTruncates(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		daily       string
		monthly     string
		wantGranted string
		wantReason  domain.LimitReason
	}{
		{name: "fits", amount: "10", daily: "0", monthly: "0", wantGranted: "10"},
		{name: "daily headroom", amount: "10", daily: "20", monthly: "20", wantGranted: "5"},
		{name: "monthly headroom", amount: "10", daily: "0", monthly: "495", wantGranted: "5"},
		{name: "request above daily cap", amount: "40", daily: "0", monthly: "0", wantGranted: "25"},
		{name: "daily exhausted", amount: "1", daily: "25", monthly: "25", wantReason: domain.ReasonDailyEarnCapExceeded},
		{name: "monthly exhausted", amount: "1", daily: "0", monthly: "500", wantReason: domain.ReasonMonthlyEarnCapExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate("", OpEngage, decimal.RequireFromString(tt.amount), Usage{
				DailyEarnSUP:   decimal.RequireFromString(tt.daily),
				MonthlyEarnSUP: decimal.RequireFromString(tt.monthly),
			})
			if tt.wantReason != "" {
				if got.Allowed || got.Reason != tt.wantReason {
					t.Fatalf("expected denial %s, got %+v", tt.wantReason, got)
				}
				return
			}
			if !got.Allowed {
				t.Fatalf("expected allowed, got %+v", got)
			}
			if !got.Granted.Equal(decimal.RequireFromString(tt.wantGranted)) {
				t.Fatalf("expected granted %s, got %s", tt.wantGranted, got.Granted)
			}
		})
	}
}
