// Package http exposes the back-office REST API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/gateway"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/service"
)

// Handler wires the services behind the REST routes.
type Handler struct {
	loans       service.LoanService
	settlements service.SettlementService
	drawer      service.CashDrawerService
	receipts    service.ReceiptService
	gateway     *gateway.Client
}

func NewHandler(
	loans service.LoanService,
	settlements service.SettlementService,
	drawer service.CashDrawerService,
	receipts service.ReceiptService,
	gw *gateway.Client,
) *Handler {
	return &Handler{
		loans:       loans,
		settlements: settlements,
		drawer:      drawer,
		receipts:    receipts,
		gateway:     gw,
	}
}

// Router builds the full route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/loans", h.handleCreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.handleListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}", h.handleGetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/installments/{seq}", h.handleInstallmentQuote).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/payments", h.handleSettle).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/receipt", h.handleIssueReceipt).Methods(http.MethodPost)

	api.HandleFunc("/drawer/sessions", h.handleOpenSession).Methods(http.MethodPost)
	api.HandleFunc("/drawer/sessions/{date}/close", h.handleCloseSession).Methods(http.MethodPost)
	api.HandleFunc("/drawer/movements", h.handleAddMovement).Methods(http.MethodPost)
	api.HandleFunc("/drawer/summary/{date}", h.handleDaySummary).Methods(http.MethodGet)

	api.HandleFunc("/gateway/orders", h.handleCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/gateway/webhook", h.handleGatewayWebhook).Methods(http.MethodPost)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("encoding response", "error", err)
		}
	}
}

type errorBody struct {
	Error                string `json:"error"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	var overpay *domain.OverpaymentError
	switch {
	case domain.IsValidation(err):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrInstallmentNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &overpay):
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error(), RequiresConfirmation: true})
	case errors.Is(err, domain.ErrDuplicatePending),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrSessionExists),
		errors.Is(err, domain.ErrSessionNotOpen):
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		logger.Error("request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Validation("body", "malformed JSON: "+err.Error())
	}
	return nil
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
