package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
)

// ValidPaymentMethod reports whether m is one of the supported methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

// Payment is the immutable receipt of one settlement. The only later write it
// ever receives is the receipt number upsert, which is a no-op once assigned.
type Payment struct {
	ID               string          `json:"id"`
	LoanID           string          `json:"loan_id"`
	InstallmentSeq   int             `json:"installment_seq"`
	BorrowerID       string          `json:"borrower_id"`
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	PenaltyPortion   decimal.Decimal `json:"penalty_portion"`
	Method           PaymentMethod   `json:"method"`
	// AmountReceived is the cash physically handed over; it equals Amount for
	// non-cash methods and drives the change calculation for cash.
	AmountReceived decimal.Decimal `json:"amount_received"`
	// ExternalRef is the gateway-provided reference for off-platform payments.
	// It keys redelivery idempotency and is empty for teller payments.
	ExternalRef   string    `json:"external_ref,omitempty"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
	Cashier       string    `json:"cashier"`
	CreatedAt     time.Time `json:"created_at"`
}
