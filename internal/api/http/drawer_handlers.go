package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
)

type openSessionRequest struct {
	Date         string          `json:"date"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
	Cashier      string          `json:"cashier"`
}

func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	session, err := h.drawer.OpenSession(r.Context(), req.Date, req.OpeningFloat, req.Cashier)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

type closeSessionRequest struct {
	ClosingFloat decimal.Decimal `json:"closing_float"`
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req closeSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	session, err := h.drawer.CloseSession(r.Context(), pathVar(r, "date"), req.ClosingFloat)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type addMovementRequest struct {
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Cashier     string          `json:"cashier"`
}

func (h *Handler) handleAddMovement(w http.ResponseWriter, r *http.Request) {
	var req addMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	movement, err := h.drawer.AddMovement(r.Context(), req.Date, domain.CashMovementType(req.Type), req.Amount, req.Description, req.Cashier)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleDaySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.drawer.DaySummary(r.Context(), pathVar(r, "date"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
