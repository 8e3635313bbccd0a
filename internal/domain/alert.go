package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType enumerates the anomaly rules.
type AlertType string

const (
	AlertLargeWithdrawal AlertType = "LARGE_WITHDRAWAL"
	AlertUnusualActivity AlertType = "UNUSUAL_ACTIVITY"
	AlertLowReserves     AlertType = "LOW_RESERVES"
	AlertRateLimitHit    AlertType = "RATE_LIMIT_HIT"
)

// Severity of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityAlert is raised by the anomaly monitor and resolved by an admin.
type SecurityAlert struct {
	ID             uuid.UUID  `json:"id"`
	Type           AlertType  `json:"type"`
	Severity       Severity   `json:"severity"`
	AccountID      *uuid.UUID `json:"account_id,omitempty"`
	Message        string     `json:"message"`
	Timestamp      time.Time  `json:"timestamp"`
	Resolved       bool       `json:"resolved"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	UnresolvedOnly bool
	Type           AlertType
	Limit          int
}

// AuditAction names an administrative action.
type AuditAction string

const (
	AuditTransfer     AuditAction = "TRANSFER"
	AuditFreeze       AuditAction = "FREEZE"
	AuditUnfreeze     AuditAction = "UNFREEZE"
	AuditResolveAlert AuditAction = "RESOLVE_ALERT"
	AuditReverse      AuditAction = "REVERSE"
	AuditLedgerAudit  AuditAction = "LEDGER_AUDIT"
	AuditOpenRound    AuditAction = "OPEN_ROUND"
)

// AuditEntry is written for every administrative state change.
type AuditEntry struct {
	ID            uuid.UUID   `json:"id"`
	Actor         string      `json:"actor"`
	Action        AuditAction `json:"action"`
	Subject       string      `json:"subject"`
	Justification string      `json:"justification"`
	CreatedAt     time.Time   `json:"created_at"`
}
