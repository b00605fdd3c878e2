package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	// LoanStatusPending means at least one installment is not fully paid.
	LoanStatusPending LoanStatus = "PENDING"
	// LoanStatusFinalized means every installment in the schedule is paid.
	LoanStatusFinalized LoanStatus = "FINALIZED"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPartial InstallmentStatus = "PARTIAL"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
)

// SettleTolerance is the residual below which an amount counts as settled.
// It absorbs the rounding drift that two-decimal schedules accumulate.
var SettleTolerance = decimal.RequireFromString("0.10")

// Loan is the aggregate root of the lending engine. The embedded schedule is
// mutated only through a settlement transaction; loans are never deleted.
type Loan struct {
	ID                string          `json:"id"`
	BorrowerID        string          `json:"borrower_id"`
	BorrowerName      string          `json:"borrower_name"`
	BorrowerEmail     string          `json:"borrower_email,omitempty"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualRate        float64         `json:"annual_rate"`
	MonthlyRate       float64         `json:"monthly_rate"`
	TermMonths        int             `json:"term_months"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalPayable      decimal.Decimal `json:"total_payable"`
	StartDate         time.Time       `json:"start_date"`
	CreatedAt         time.Time       `json:"created_at"`
	Status            LoanStatus      `json:"status"`
	Schedule          []Installment   `json:"schedule"`
}

// Installment is one entry of the amortization schedule. Seq, DueDate and the
// scheduled amounts are fixed at creation; the paid/frozen fields change only
// when a payment is applied.
type Installment struct {
	Seq       int             `json:"seq"`
	DueDate   time.Time       `json:"due_date"`
	Amount    decimal.Decimal `json:"amount"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`

	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	PenaltyPaid   decimal.Decimal `json:"penalty_paid"`
	// FrozenPenalty carries penalty already accrued against principal that has
	// since been paid off. It never shrinks.
	FrozenPenalty decimal.Decimal `json:"frozen_penalty"`
	// LastPenaltyTotal is the total generated penalty observed at the last
	// settlement. Informational only.
	LastPenaltyTotal decimal.Decimal   `json:"last_penalty_total"`
	Status           InstallmentStatus `json:"status"`
	LastPaymentAt    *time.Time        `json:"last_payment_at,omitempty"`
	ReceiptNumber    string            `json:"receipt_number,omitempty"`
}

// OutstandingPrincipal is the scheduled amount not yet covered by payments.
func (i *Installment) OutstandingPrincipal() decimal.Decimal {
	return i.Amount.Sub(i.PrincipalPaid)
}

// Settled reports whether the remaining principal is within tolerance.
func (i *Installment) Settled() bool {
	return i.OutstandingPrincipal().LessThanOrEqual(SettleTolerance)
}

// Installment returns the schedule entry with the given sequence number, or
// nil when it does not exist.
func (l *Loan) Installment(seq int) *Installment {
	for idx := range l.Schedule {
		if l.Schedule[idx].Seq == seq {
			return &l.Schedule[idx]
		}
	}
	return nil
}

// RefreshStatus recomputes the loan status from the schedule: FINALIZED only
// when every installment is PAID, PENDING otherwise.
func (l *Loan) RefreshStatus() {
	for idx := range l.Schedule {
		if l.Schedule[idx].Status != InstallmentStatusPaid {
			l.Status = LoanStatusPending
			return
		}
	}
	l.Status = LoanStatusFinalized
}
