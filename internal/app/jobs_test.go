package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibetrailmedia/stepupnaija-sub004/internal/config"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"go.uber.org/zap"
)

type roundDrawerStub struct {
	calls int
	now   time.Time
	err   error
}

func (s *roundDrawerStub) DrawDue(ctx context.Context, now time.Time) (int, error) {
	s.calls++
	s.now = now
	return 1, s.err
}

type payoutExpirerStub struct {
	olderThan time.Duration
}

func (s *payoutExpirerStub) ExpireStalePayouts(ctx context.Context, olderThan time.Duration) (int, error) {
	s.olderThan = olderThan
	return 0, nil
}

type reserveMonitorStub struct {
	calls int
}

func (s *reserveMonitorStub) CheckReserves(ctx context.Context) (domain.TreasurySnapshot, error) {
	s.calls++
	return domain.TreasurySnapshot{Healthy: false}, nil
}

type auditorStub struct {
	actor string
	err   error
}

func (s *auditorStub) Audit(ctx context.Context, actor string) (domain.AuditReport, error) {
	s.actor = actor
	return domain.AuditReport{}, s.err
}

func newTestJobs(payoutTimeout time.Duration) (*Jobs, *roundDrawerStub, *payoutExpirerStub, *reserveMonitorStub, *auditorStub) {
	rounds := &roundDrawerStub{}
	payouts := &payoutExpirerStub{}
	reserves := &reserveMonitorStub{}
	auditor := &auditorStub{}
	return NewJobs(rounds, payouts, reserves, auditor, payoutTimeout, zap.NewNop()), rounds, payouts, reserves, auditor
}

func TestJobs_DrawDueRoundsUsesClock(t *testing.T) {
	jobs, rounds, _, _, _ := newTestJobs(0)
	fixed := time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)
	jobs.now = func() time.Time { return fixed }

	jobs.DrawDueRounds()

	if rounds.calls != 1 || !rounds.now.Equal(fixed) {
		t.Fatalf("expected one DrawDue call at %s, got %d at %s", fixed, rounds.calls, rounds.now)
	}
}

func TestJobs_FailuresDoNotPanic(t *testing.T) {
	jobs, rounds, _, _, auditor := newTestJobs(0)
	rounds.err = errors.New("db unavailable")
	auditor.err = errors.New("db unavailable")

	jobs.DrawDueRounds()
	jobs.AuditLedger()

	if auditor.actor != SystemActor {
		t.Fatalf("expected audit by %q, got %q", SystemActor, auditor.actor)
	}
}

func TestJobs_ExpireStalePayoutsDefaultsTimeout(t *testing.T) {
	jobs, _, payouts, _, _ := newTestJobs(0)
	jobs.ExpireStalePayouts()
	if payouts.olderThan != 30*time.Minute {
		t.Fatalf("expected default 30m timeout, got %s", payouts.olderThan)
	}

	jobs, _, payouts, _, _ = newTestJobs(45 * time.Minute)
	jobs.ExpireStalePayouts()
	if payouts.olderThan != 45*time.Minute {
		t.Fatalf("expected configured 45m timeout, got %s", payouts.olderThan)
	}
}

func TestJobs_CheckTreasuryHealth(t *testing.T) {
	jobs, _, _, reserves, _ := newTestJobs(0)
	jobs.CheckTreasuryHealth()
	if reserves.calls != 1 {
		t.Fatalf("expected one reserve check, got %d", reserves.calls)
	}
}

func TestScheduler_SkipsInvalidSchedules(t *testing.T) {
	jobs, _, _, _, _ := newTestJobs(0)
	cfg := config.Config{
		DrawJobSchedule:        "@every 1m",
		PayoutExpirySchedule:   "not a schedule",
		TreasuryHealthSchedule: "@every 10m",
		LedgerAuditSchedule:    "0 3 * * *",
	}
	scheduler := NewScheduler(jobs, zap.NewNop(), cfg)

	if got := scheduler.Start(); got != 3 {
		t.Fatalf("expected 3 scheduled jobs, got %d", got)
	}
	<-scheduler.Stop().Done()
}
