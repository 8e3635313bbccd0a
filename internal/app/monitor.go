/**
 * @description
 * AnomalyMonitor watches committed ledger appends and raises security alerts.
 * Appends arrive through Observe after the wallet's unit of work commits and
 * are inspected on a background goroutine, so a slow rule never delays a
 * wallet operation.
 *
 * Rules:
 * - LARGE_WITHDRAWAL (high): a cashout above the configured naira threshold.
 * - UNUSUAL_ACTIVITY (medium): more appends per minute than allowed.
 * - LOW_RESERVES (critical): unhealthy treasury after a BUY or CASHOUT.
 * - RATE_LIMIT_HIT (low): reported by the wallet when a cap denies or truncates.
 *
 * @notes
 * - At most one unresolved alert per (type, account) is stored within the
 *   cooldown; further hits are suppressed.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/metrics"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
	"go.uber.org/zap"
)

const monitorQueueSize = 1024

// ReserveChecker computes the treasury snapshot the reserve rule reads.
type ReserveChecker interface {
	Overview(ctx context.Context) (domain.TreasurySnapshot, error)
}

// MonitorConfig holds the rule thresholds.
type MonitorConfig struct {
	LargeWithdrawalNGN decimal.Decimal
	VelocityPerMinute  int
	Cooldown           time.Duration
}

// DefaultMonitorConfig returns the production thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		LargeWithdrawalNGN: decimal.NewFromInt(100_000),
		VelocityPerMinute:  10,
		Cooldown:           15 * time.Minute,
	}
}

// AnomalyMonitor evaluates the alert rules.
type AnomalyMonitor struct {
	ledger   store.Ledger
	reserves ReserveChecker
	velocity VelocityCounter
	events   *Events
	cfg      MonitorConfig
	logger   *zap.Logger
	now      func() time.Time

	queue    chan domain.LedgerEvent
	treasury map[uuid.UUID]struct{}
}

// NewAnomalyMonitor creates a monitor. A nil velocity counter falls back to
// the in-memory sliding window.
func NewAnomalyMonitor(ledger store.Ledger, reserves ReserveChecker, velocity VelocityCounter, events *Events, cfg MonitorConfig, logger *zap.Logger) *AnomalyMonitor {
	defaults := DefaultMonitorConfig()
	if !cfg.LargeWithdrawalNGN.IsPositive() {
		cfg.LargeWithdrawalNGN = defaults.LargeWithdrawalNGN
	}
	if cfg.VelocityPerMinute <= 0 {
		cfg.VelocityPerMinute = defaults.VelocityPerMinute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaults.Cooldown
	}
	if velocity == nil {
		velocity = NewMemoryVelocityCounter()
	}
	treasury := make(map[uuid.UUID]struct{}, len(domain.SubAccounts))
	for _, sub := range domain.SubAccounts {
		treasury[sub.ID()] = struct{}{}
	}
	return &AnomalyMonitor{
		ledger:   ledger,
		reserves: reserves,
		velocity: velocity,
		events:   events,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "anomaly_monitor")),
		now:      time.Now,
		treasury: treasury,
	}
}

// Start runs the inspection loop until ctx is cancelled. Observe must not be
// called concurrently with Start.
func (m *AnomalyMonitor) Start(ctx context.Context) {
	m.queue = make(chan domain.LedgerEvent, monitorQueueSize)
	go func() {
		m.logger.Info("anomaly monitor started")
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("anomaly monitor stopped")
				return
			case event := <-m.queue:
				m.Inspect(ctx, event)
			}
		}
	}()
}

// Observe queues a committed append. Before Start it inspects inline.
func (m *AnomalyMonitor) Observe(event domain.LedgerEvent) {
	if m.queue == nil {
		m.Inspect(context.Background(), event)
		return
	}
	select {
	case m.queue <- event:
	default:
		m.logger.Warn("monitor queue full; append not inspected",
			zap.String("transaction_id", event.Transaction.ID.String()),
			zap.String("account_id", event.Transaction.AccountID.String()),
		)
	}
}

// Inspect evaluates every rule against one append.
func (m *AnomalyMonitor) Inspect(ctx context.Context, event domain.LedgerEvent) {
	entry := event.Transaction
	accountID := entry.AccountID

	if entry.Type == domain.TypeCashout && entry.ReversalOf == nil {
		if ngn := entry.AmountNGN.Abs(); ngn.GreaterThan(m.cfg.LargeWithdrawalNGN) {
			m.raise(ctx, domain.AlertLargeWithdrawal, domain.SeverityHigh, &accountID,
				fmt.Sprintf("cashout of ₦%s exceeds ₦%s", ngn.StringFixed(2), m.cfg.LargeWithdrawalNGN.StringFixed(2)))
		}
	}

	if _, isTreasury := m.treasury[accountID]; !isTreasury {
		at := entry.CreatedAt
		if at.IsZero() {
			at = m.now()
		}
		count, err := m.velocity.Hit(ctx, accountID, at)
		if err != nil {
			m.logger.Warn("velocity count failed", zap.String("account_id", accountID.String()), zap.Error(err))
		} else if count > m.cfg.VelocityPerMinute {
			m.raise(ctx, domain.AlertUnusualActivity, domain.SeverityMedium, &accountID,
				fmt.Sprintf("%d transactions in the last minute exceeds %d", count, m.cfg.VelocityPerMinute))
		}
	}

	if entry.Type == domain.TypeBuy || entry.Type == domain.TypeCashout {
		if _, err := m.CheckReserves(ctx); err != nil {
			m.logger.Warn("reserve check failed", zap.Error(err))
		}
	}
}

// RateLimitHit raises a low severity alert for a cap hit.
func (m *AnomalyMonitor) RateLimitHit(ctx context.Context, accountID uuid.UUID, detail string) {
	m.raise(ctx, domain.AlertRateLimitHit, domain.SeverityLow, &accountID, detail)
}

// CheckReserves raises LOW_RESERVES when the treasury is unhealthy.
func (m *AnomalyMonitor) CheckReserves(ctx context.Context) (domain.TreasurySnapshot, error) {
	if m.reserves == nil {
		return domain.TreasurySnapshot{}, nil
	}
	snap, err := m.reserves.Overview(ctx)
	if err != nil {
		return domain.TreasurySnapshot{}, err
	}
	if !snap.Healthy && snap.ReserveRatio != nil {
		m.raise(ctx, domain.AlertLowReserves, domain.SeverityCritical, nil,
			fmt.Sprintf("reserve ratio %s%% is below %s%%", snap.ReserveRatio.StringFixed(2), domain.MinHealthyReserveRatio))
	}
	return snap, nil
}

func (m *AnomalyMonitor) raise(ctx context.Context, alertType domain.AlertType, severity domain.Severity, accountID *uuid.UUID, message string) {
	now := m.now().UTC()
	alert, inserted, err := m.ledger.InsertAlertUnlessRecent(ctx, domain.SecurityAlert{
		Type:      alertType,
		Severity:  severity,
		AccountID: accountID,
		Message:   message,
		Timestamp: now,
	}, now.Add(-m.cfg.Cooldown))
	if err != nil {
		m.logger.Error("failed to store security alert", zap.String("type", string(alertType)), zap.Error(err))
		return
	}
	metrics.RecordAlert(string(alertType), inserted)
	if !inserted {
		m.logger.Debug("security alert suppressed by cooldown", zap.String("type", string(alertType)), zap.String("alert_id", alert.ID.String()))
		return
	}

	fields := []zap.Field{
		zap.String("alert_id", alert.ID.String()),
		zap.String("type", string(alertType)),
		zap.String("severity", string(severity)),
		zap.String("message", message),
	}
	if accountID != nil {
		fields = append(fields, zap.String("account_id", accountID.String()))
	}
	m.logger.Warn("security alert raised", fields...)
	m.events.Publish(ctx, domain.RoutingAlertRaised, alert)
}

// Resolve closes an alert with an admin note. Resolving an already resolved
// alert returns it unchanged.
func (m *AnomalyMonitor) Resolve(ctx context.Context, alertID uuid.UUID, actor, note string) (*domain.SecurityAlert, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.ErrJustificationNeeded
	}
	if strings.TrimSpace(actor) == "" {
		return nil, invalid("actor is required")
	}
	alert, changed, err := m.ledger.ResolveAlert(ctx, alertID, actor, note, m.now().UTC(), domain.AuditEntry{
		Actor:         actor,
		Action:        domain.AuditResolveAlert,
		Subject:       alertID.String(),
		Justification: note,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve alert: %w", err)
	}
	if changed {
		m.logger.Info("security alert resolved", zap.String("alert_id", alertID.String()), zap.String("actor", actor))
	}
	return alert, nil
}

// ListAlerts returns alerts newest first.
func (m *AnomalyMonitor) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.SecurityAlert, error) {
	return m.ledger.ListAlerts(ctx, filter)
}
