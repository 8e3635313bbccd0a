/**
 * @description
 * HTTP handlers for the wallet endpoints plus the shared JSON and error
 * helpers. Handlers parse the request, call the application service and map
 * its error classes onto HTTP statuses.
 *
 * @dependencies
 * - internal/app, internal/domain: services, models and error sentinels.
 * - go.uber.org/zap: logging of unexpected failures.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/app"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/draw"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handlers holds the application services the handlers use.
type Handlers struct {
	wallet   *app.WalletService
	draws    *app.DrawEngine
	treasury *app.TreasuryService
	monitor  *app.AnomalyMonitor
	logger   *zap.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(wallet *app.WalletService, draws *app.DrawEngine, treasury *app.TreasuryService, monitor *app.AnomalyMonitor, logger *zap.Logger) *Handlers {
	return &Handlers{
		wallet:   wallet,
		draws:    draws,
		treasury: treasury,
		monitor:  monitor,
		logger:   logger.With(zap.String("component", "api")),
	}
}

type balanceResponse struct {
	SUPBalance    string `json:"supBalance"`
	NGNEquivalent string `json:"ngnEquivalent"`
}

type cashoutRequest struct {
	SUPAmount decimal.Decimal `json:"supAmount"`
}

type voteRequest struct {
	ProjectID string          `json:"projectId"`
	SUPAmount decimal.Decimal `json:"supAmount"`
}

// BalanceHandler returns the caller's SUP balance and NGN equivalent.
func (h *Handlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	balance, err := h.wallet.Balance(r.Context(), accountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// An account with no entries yet has a zero balance.
		writeJSON(w, http.StatusOK, balanceResponse{SUPBalance: "0.00", NGNEquivalent: "0.00"})
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		SUPBalance:    balance.SUPBalance.StringFixed(2),
		NGNEquivalent: balance.NGNEquivalent.StringFixed(2),
	})
}

// HistoryHandler lists the caller's entries newest first.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := r.URL.Query()
	filter := domain.HistoryFilter{Limit: defaultHistoryLimit}
	for _, raw := range splitList(query.Get("type")) {
		t, valid := domain.ParseTransactionType(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "Unknown transaction type: "+raw)
			return
		}
		filter.Types = append(filter.Types, t)
	}
	for _, raw := range splitList(query.Get("status")) {
		s, valid := domain.ParseTransactionStatus(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "Unknown transaction status: "+raw)
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, maxHistoryLimit)
	}

	entries := make([]domain.Transaction, 0, filter.Limit)
	for entry, err := range h.wallet.History(r.Context(), accountID, filter) {
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, entries)
}

// CashoutHandler starts a withdrawal. The entry stays PENDING until the
// payout gateway reports back.
func (h *Handlers) CashoutHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req cashoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.wallet.Cashout(r.Context(), accountID, req.SUPAmount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, entry)
}

// VoteHandler spends SUP to back a project.
func (h *Handlers) VoteHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.wallet.Vote(r.Context(), accountID, req.ProjectID, req.SUPAmount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// writeServiceError maps an application error to its HTTP status.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var limitErr *domain.LimitExceededError
	var payoutErr *domain.PayoutFailedError
	switch {
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":  err.Error(),
			"reason": limitErr.Reason,
			"usage":  limitErr.Usage.StringFixed(2),
			"limit":  limitErr.Limit.StringFixed(2),
			"unit":   limitErr.Unit,
		})
	case errors.As(err, &payoutErr):
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":          err.Error(),
			"retryable":      payoutErr.Retryable(),
			"transaction_id": payoutErr.TransactionID,
		})
	case errors.Is(err, domain.ErrFrozen):
		writeJSON(w, http.StatusLocked, map[string]string{"error": err.Error(), "code": "TREASURY_FROZEN"})
	case errors.Is(err, domain.ErrInvalidTransaction), errors.Is(err, domain.ErrJustificationNeeded):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrTierTooLow):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRoundNotOpen),
		errors.Is(err, domain.ErrRoundClosed),
		errors.Is(err, domain.ErrAlreadyReversed),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicateTask),
		errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, draw.ErrSeedNotRevealed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
