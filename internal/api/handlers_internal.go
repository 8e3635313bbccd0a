package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/app"
)

type buyRequest struct {
	AccountID        uuid.UUID       `json:"accountId"`
	NGNAmount        decimal.Decimal `json:"ngnAmount"`
	PaymentReference string          `json:"paymentReference"`
}

type engageRequest struct {
	AccountID uuid.UUID       `json:"accountId"`
	TaskID    string          `json:"taskId"`
	Amount    decimal.Decimal `json:"amount"`
}

type payoutStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// BuyHandler credits SUP for an NGN payment the payment gateway has
// confirmed. The gateway reference makes the credit idempotent.
func (h *Handlers) BuyHandler(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	entry, err := h.wallet.Buy(r.Context(), app.BuyRequest{
		AccountID:        req.AccountID,
		AmountNGN:        req.NGNAmount,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// EngageHandler credits a verified civic task. Called by the task verifier.
func (h *Handlers) EngageHandler(w http.ResponseWriter, r *http.Request) {
	var req engageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	entry, err := h.wallet.Engage(r.Context(), app.EngageRequest{
		AccountID: req.AccountID,
		TaskID:    req.TaskID,
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// PayoutStatusHandler applies a payout result reported over HTTP instead of
// the broker.
func (h *Handlers) PayoutStatusHandler(w http.ResponseWriter, r *http.Request) {
	txID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req payoutStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	succeeded, settled := app.PayoutOutcome(req.Status)
	if !settled {
		writeError(w, http.StatusBadRequest, "status must be a final payout status")
		return
	}
	entry, err := h.wallet.ConfirmPayout(r.Context(), txID, succeeded, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
