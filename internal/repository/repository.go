package repository

import (
	"context"
	"time"

	"presta-backoffice/internal/domain"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	List(ctx context.Context, limit int) ([]domain.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID string) ([]domain.Loan, error)
	// HasPendingForBorrower supports the one-pending-loan-per-borrower rule.
	HasPendingForBorrower(ctx context.Context, borrowerID string) (bool, error)
	ListPending(ctx context.Context) ([]domain.Loan, error)
}

type PaymentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	// ListBetween returns payments with from <= CreatedAt < to.
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error)
}

type CashRepository interface {
	GetSession(ctx context.Context, date string) (*domain.CashSession, error)
	CreateSession(ctx context.Context, session *domain.CashSession) error
	UpdateSession(ctx context.Context, session *domain.CashSession) error
	AddMovement(ctx context.Context, movement *domain.CashMovement) error
	ListMovements(ctx context.Context, date string) ([]domain.CashMovement, error)
}

// SettleFunc mutates a freshly read loan and returns the payment to persist
// alongside it. Returning an error aborts the transaction with no writes.
type SettleFunc func(loan *domain.Loan) (*domain.Payment, error)

// Store aggregates the repositories and the transactional primitives that
// must span more than one of them.
type Store interface {
	Loans() LoanRepository
	Payments() PaymentRepository
	Cash() CashRepository

	// SettleLoan runs fn against the loan inside one transactional
	// read-modify-write: the updated loan and the new payment commit together
	// or not at all, and a conflicting concurrent write restarts fn against
	// freshly read state (bounded retries, then domain.ErrConflict).
	//
	// When externalRef is non-empty, an idempotency record keyed by it is
	// checked inside the same transaction; a reference seen before returns
	// the original payment with replayed=true and fn is never called.
	SettleLoan(ctx context.Context, loanID, externalRef string, fn SettleFunc) (payment *domain.Payment, replayed bool, err error)

	// AssignReceiptNumber stamps the payment with the next number from a
	// monotonic counter guarded by the same transaction. A payment that
	// already carries a number is returned as-is, so repeated calls are
	// no-ops.
	AssignReceiptNumber(ctx context.Context, paymentID string) (string, error)

	Close() error
}
