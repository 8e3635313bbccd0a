package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

type enterRequest struct {
	RoundID    uuid.UUID `json:"roundId"`
	EntryCount int       `json:"entryCount"`
}

// ListRoundsHandler lists prize rounds, optionally filtered by ?status=.
func (h *Handlers) ListRoundsHandler(w http.ResponseWriter, r *http.Request) {
	var filter domain.RoundFilter
	for _, raw := range splitList(r.URL.Query().Get("status")) {
		status := domain.RoundStatus(strings.ToUpper(raw))
		switch status {
		case domain.RoundOpen, domain.RoundDrawing, domain.RoundClosed:
			filter.Statuses = append(filter.Statuses, status)
		default:
			writeError(w, http.StatusBadRequest, "Unknown round status: "+raw)
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	rounds, err := h.draws.ListRounds(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if rounds == nil {
		rounds = []domain.PrizeRound{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// GetRoundHandler returns one round. The seed is only present once closed.
func (h *Handlers) GetRoundHandler(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	round, err := h.draws.GetRound(r.Context(), roundID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// EnterHandler buys draw entries for the caller.
func (h *Handlers) EnterHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req enterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RoundID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "roundId is required")
		return
	}
	receipt, err := h.draws.Enter(r.Context(), req.RoundID, accountID, req.EntryCount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
