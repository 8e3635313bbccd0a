/**
 * @description
 * Admin handlers for the treasury: overview, sub-account transfers, the
 * emergency freeze, alert resolution, reversals, prize round administration
 * and the ledger audit. The acting admin is the token subject.
 */

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/app"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

type transferRequest struct {
	Amount decimal.Decimal     `json:"amount"`
	Reason string              `json:"reason"`
	Kind   domain.TransferKind `json:"kind"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type resolveRequest struct {
	Note string `json:"note"`
}

type openRoundRequest struct {
	ClosesAt time.Time `json:"closesAt"`
}

func adminActor(r *http.Request) string {
	if id, ok := GetAccountID(r.Context()); ok {
		return id.String()
	}
	return ""
}

// OverviewHandler returns the recomputed treasury snapshot.
func (h *Handlers) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.treasury.Overview(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// TransferHandler moves SUP from operating to reserve or emergency.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.treasury.Transfer(r.Context(), app.TransferRequest{
		Amount: req.Amount,
		Reason: req.Reason,
		Kind:   domain.TransferKind(strings.ToUpper(string(req.Kind))),
		Actor:  adminActor(r),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// FreezeHandler sets the emergency freeze.
func (h *Handlers) FreezeHandler(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	controls, err := h.treasury.EmergencyFreeze(r.Context(), adminActor(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, controls)
}

// LiftFreezeHandler clears the emergency freeze.
func (h *Handlers) LiftFreezeHandler(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	controls, err := h.treasury.LiftFreeze(r.Context(), adminActor(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, controls)
}

// ListAlertsHandler lists alerts newest first. ?unresolved=true hides
// resolved ones and ?type= narrows to one rule.
func (h *Handlers) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.AlertFilter{Type: domain.AlertType(strings.ToUpper(strings.TrimSpace(query.Get("type"))))}
	if raw := strings.TrimSpace(query.Get("unresolved")); raw != "" {
		unresolved, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unresolved must be a boolean")
			return
		}
		filter.UnresolvedOnly = unresolved
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	alerts, err := h.monitor.ListAlerts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if alerts == nil {
		alerts = []domain.SecurityAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// ResolveAlertHandler closes an alert with a note.
func (h *Handlers) ResolveAlertHandler(w http.ResponseWriter, r *http.Request) {
	alertID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	alert, err := h.monitor.Resolve(r.Context(), alertID, adminActor(r), req.Note)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ReverseHandler cancels a committed entry.
func (h *Handlers) ReverseHandler(w http.ResponseWriter, r *http.Request) {
	txID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	comp, err := h.wallet.Reverse(r.Context(), txID, adminActor(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comp)
}

// OpenRoundHandler opens a prize round.
func (h *Handlers) OpenRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req openRoundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	round, err := h.draws.OpenRound(r.Context(), req.ClosesAt, adminActor(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// DrawRoundHandler draws a round immediately.
func (h *Handlers) DrawRoundHandler(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	round, err := h.draws.Draw(r.Context(), roundID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// VerifyRoundHandler recomputes a closed round from its revealed seed.
func (h *Handlers) VerifyRoundHandler(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.draws.VerifyDraw(r.Context(), roundID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"round_id": roundID, "verified": true})
}

// AuditHandler runs the ledger reconciliation now.
func (h *Handlers) AuditHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.treasury.Audit(r.Context(), adminActor(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AuditLogHandler lists recent admin actions.
func (h *Handlers) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	entries, err := h.treasury.AuditLog(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
