package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
)

// CreateLoanRequest carries the inputs for a new loan. AnnualRate is the
// effective annual rate; values above 1 are read as percentages.
type CreateLoanRequest struct {
	BorrowerID    string          `json:"borrower_id"`
	BorrowerName  string          `json:"borrower_name"`
	BorrowerEmail string          `json:"borrower_email"`
	Principal     decimal.Decimal `json:"principal"`
	AnnualRate    float64         `json:"annual_rate"`
	TermMonths    int             `json:"term_months"`
	StartDate     string          `json:"start_date"` // yyyy-mm-dd, defaults to today
}

type LoanService interface {
	CreateLoan(ctx context.Context, req CreateLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListLoans(ctx context.Context, borrowerID string, limit int) ([]domain.Loan, error)
	// InstallmentView returns the installment with its penalty accrued as of
	// now, without writing anything.
	InstallmentView(ctx context.Context, loanID string, seq int, asOf time.Time) (*InstallmentQuote, error)
}

// InstallmentQuote is a read-only pricing of one installment at a moment.
type InstallmentQuote struct {
	Installment          domain.Installment `json:"installment"`
	DaysLate             int                `json:"days_late"`
	AccruedPenalty       decimal.Decimal    `json:"accrued_penalty"`
	OutstandingPenalty   decimal.Decimal    `json:"outstanding_penalty"`
	OutstandingPrincipal decimal.Decimal    `json:"outstanding_principal"`
	TotalDue             decimal.Decimal    `json:"total_due"`
}

// SettleRequest carries one payment against one installment.
type SettleRequest struct {
	LoanID         string               `json:"loan_id"`
	Seq            int                  `json:"seq"`
	Amount         decimal.Decimal      `json:"amount"`
	Method         domain.PaymentMethod `json:"method"`
	AmountReceived decimal.Decimal      `json:"amount_received"` // cash tendered; ignored for non-cash
	ExternalRef    string               `json:"external_ref"`
	// ConfirmOverpayment accepts an amount above the total outstanding; the
	// surplus comes back as change instead of being applied.
	ConfirmOverpayment bool   `json:"confirm_overpayment"`
	Cashier            string `json:"cashier"`
	// AsOf overrides the penalty accrual instant. Zero means now.
	AsOf time.Time `json:"-"`
}

// SettleResult is the outcome of one settlement.
type SettleResult struct {
	Payment *domain.Payment `json:"payment"`
	Loan    *domain.Loan    `json:"loan"`
	Change  decimal.Decimal `json:"change"`
	// Replayed is true when the external reference was already settled and
	// the stored payment is returned instead of a new one.
	Replayed bool `json:"replayed"`
}

type SettlementService interface {
	Settle(ctx context.Context, req SettleRequest) (*SettleResult, error)
}

type CashDrawerService interface {
	OpenSession(ctx context.Context, date string, openingFloat decimal.Decimal, cashier string) (*domain.CashSession, error)
	CloseSession(ctx context.Context, date string, closingFloat decimal.Decimal) (*domain.CashSession, error)
	AddMovement(ctx context.Context, date string, typ domain.CashMovementType, amount decimal.Decimal, description, cashier string) (*domain.CashMovement, error)
	DaySummary(ctx context.Context, date string) (*domain.DrawerSummary, error)
}

type ReceiptService interface {
	// IssueReceipt assigns the next sequential receipt number to a payment.
	// Repeated calls return the number already assigned.
	IssueReceipt(ctx context.Context, paymentID string) (string, error)
}

type EmailService interface {
	SendOverdueReminder(ctx context.Context, email, name, loanID string, seq int, daysLate int, totalDue decimal.Decimal) error
	SendReceipt(ctx context.Context, email, name, receiptNumber string, amount decimal.Decimal) error
}
