package http

import (
	"net/http"
	"strconv"
	"time"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/service"
)

func (h *Handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	loan, err := h.loans.CreateLoan(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.GetLoan(r.Context(), pathVar(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	loans, err := h.loans.ListLoans(r.Context(), r.URL.Query().Get("borrower_id"), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"loans": loans})
}

func (h *Handler) handleInstallmentQuote(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(pathVar(r, "seq"))
	if err != nil || seq < 1 {
		respondError(w, domain.Validation("seq", "must be a positive integer"))
		return
	}
	quote, err := h.loans.InstallmentView(r.Context(), pathVar(r, "id"), seq, time.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}
