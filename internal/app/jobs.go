/**
 * @description
 * Scheduled job implementations: drawing due prize rounds, expiring payouts
 * that never settled, the treasury health check and the nightly ledger audit.
 */
package app

import (
	"context"
	"time"

	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/metrics"
	"go.uber.org/zap"
)

// RoundDrawer draws rounds whose close time has passed.
type RoundDrawer interface {
	DrawDue(ctx context.Context, now time.Time) (int, error)
}

// PayoutExpirer reverses cashouts stuck in PENDING.
type PayoutExpirer interface {
	ExpireStalePayouts(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReserveMonitor raises LOW_RESERVES when the treasury is unhealthy.
type ReserveMonitor interface {
	CheckReserves(ctx context.Context) (domain.TreasurySnapshot, error)
}

// LedgerAuditor reconciles cached balances against the ledger.
type LedgerAuditor interface {
	Audit(ctx context.Context, actor string) (domain.AuditReport, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	rounds        RoundDrawer
	payouts       PayoutExpirer
	reserves      ReserveMonitor
	auditor       LedgerAuditor
	payoutTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(rounds RoundDrawer, payouts PayoutExpirer, reserves ReserveMonitor, auditor LedgerAuditor, payoutTimeout time.Duration, logger *zap.Logger) *Jobs {
	if payoutTimeout <= 0 {
		payoutTimeout = 30 * time.Minute
	}
	return &Jobs{
		rounds:        rounds,
		payouts:       payouts,
		reserves:      reserves,
		auditor:       auditor,
		payoutTimeout: payoutTimeout,
		logger:        logger.With(zap.String("component", "jobs")),
		now:           time.Now,
	}
}

func (j *Jobs) run(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordJobRun(name, time.Since(start), err == nil)
	if err != nil {
		j.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
	}
}

// DrawDueRounds draws every round past its close time.
func (j *Jobs) DrawDueRounds() {
	j.run("draw_due_rounds", 2*time.Minute, func(ctx context.Context) error {
		drawn, err := j.rounds.DrawDue(ctx, j.now())
		if drawn > 0 {
			j.logger.Info("prize rounds drawn", zap.Int("count", drawn))
		}
		return err
	})
}

// ExpireStalePayouts reverses cashouts older than the payout timeout.
func (j *Jobs) ExpireStalePayouts() {
	j.run("expire_stale_payouts", 2*time.Minute, func(ctx context.Context) error {
		expired, err := j.payouts.ExpireStalePayouts(ctx, j.payoutTimeout)
		if expired > 0 {
			j.logger.Warn("stale payouts reversed", zap.Int("count", expired))
		}
		return err
	})
}

// CheckTreasuryHealth runs the LOW_RESERVES rule on a schedule.
func (j *Jobs) CheckTreasuryHealth() {
	j.run("treasury_health", time.Minute, func(ctx context.Context) error {
		snap, err := j.reserves.CheckReserves(ctx)
		if err != nil {
			return err
		}
		if !snap.Healthy {
			j.logger.Warn("treasury reserves unhealthy", zap.Int("pending_withdrawals", snap.PendingWithdrawals))
		}
		return nil
	})
}

// AuditLedger reconciles every account balance.
func (j *Jobs) AuditLedger() {
	j.run("ledger_audit", 10*time.Minute, func(ctx context.Context) error {
		report, err := j.auditor.Audit(ctx, SystemActor)
		if err != nil {
			return err
		}
		j.logger.Info("ledger audit finished", zap.Int("accounts", report.Accounts), zap.Int("drifts", len(report.Drifts)))
		return nil
	})
}
