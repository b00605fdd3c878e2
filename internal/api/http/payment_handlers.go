package http

import (
	"net/http"
	"time"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/service"
)

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req service.SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	req.LoanID = pathVar(r, "id")

	result, err := h.settlements.Settle(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

func (h *Handler) handleIssueReceipt(w http.ResponseWriter, r *http.Request) {
	number, err := h.receipts.IssueReceipt(r.Context(), pathVar(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"receipt_number": number})
}

type createOrderRequest struct {
	LoanID string `json:"loan_id"`
	Seq    int    `json:"seq"`
	Email  string `json:"email"`
}

// handleCreateOrder opens a gateway order for whatever the installment owes
// right now, late charges included.
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Seq < 1 {
		respondError(w, domain.Validation("seq", "must be a positive integer"))
		return
	}

	quote, err := h.loans.InstallmentView(r.Context(), req.LoanID, req.Seq, time.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	if !quote.TotalDue.IsPositive() {
		respondError(w, domain.Validation("seq", "installment has nothing outstanding"))
		return
	}

	order, err := h.gateway.CreateOrder(r.Context(), req.LoanID, req.Seq, quote.TotalDue, req.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// handleGatewayWebhook receives the gateway's payment notification. The token
// is verified against the gateway before anything is settled, and the token
// itself keys idempotency so redeliveries return the original payment.
func (h *Handler) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, domain.Validation("body", "malformed form"))
		return
	}
	token := r.PostFormValue("token")
	if token == "" {
		respondError(w, domain.Validation("token", "is required"))
		return
	}

	status, err := h.gateway.GetStatus(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}
	if !status.Paid {
		logger.Info("gateway notification without payment", "token", token, "commerce_order", status.CommerceOrder)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	result, err := h.settlements.Settle(r.Context(), service.SettleRequest{
		LoanID:         status.LoanID,
		Seq:            status.Seq,
		Amount:         status.Amount,
		Method:         status.Method,
		AmountReceived: status.Amount,
		ExternalRef:    token,
		Cashier:        "gateway",
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
