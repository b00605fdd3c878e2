// Package memory provides an in-process repository.Store with the same
// optimistic-concurrency contract as the Firestore implementation. It backs
// unit tests and local development (store.type: memory).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/repository"
)

const settleMaxAttempts = 5

type loanEntry struct {
	loan    domain.Loan
	version int64
}

type Store struct {
	mu        sync.Mutex
	loans     map[string]*loanEntry
	payments  map[string]domain.Payment
	sessions  map[string]domain.CashSession
	movements []domain.CashMovement
	refs      map[string]string // externalRef -> paymentID
	counter   int64
}

func New() *Store {
	return &Store{
		loans:    make(map[string]*loanEntry),
		payments: make(map[string]domain.Payment),
		sessions: make(map[string]domain.CashSession),
		refs:     make(map[string]string),
	}
}

func (s *Store) Loans() repository.LoanRepository       { return &loanRepo{s} }
func (s *Store) Payments() repository.PaymentRepository { return &paymentRepo{s} }
func (s *Store) Cash() repository.CashRepository        { return &cashRepo{s} }

func (s *Store) Close() error { return nil }

func cloneLoan(l *domain.Loan) domain.Loan {
	out := *l
	out.Schedule = make([]domain.Installment, len(l.Schedule))
	copy(out.Schedule, l.Schedule)
	for i := range out.Schedule {
		if ts := out.Schedule[i].LastPaymentAt; ts != nil {
			cp := *ts
			out.Schedule[i].LastPaymentAt = &cp
		}
	}
	return out
}

// SettleLoan mirrors the document store's transaction semantics: read a
// snapshot, run fn, and commit only if no concurrent settlement bumped the
// loan's version in between. A lost race restarts fn against fresh state.
func (s *Store) SettleLoan(ctx context.Context, loanID, externalRef string, fn repository.SettleFunc) (*domain.Payment, bool, error) {
	for attempt := 0; attempt < settleMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		s.mu.Lock()
		if externalRef != "" {
			if paymentID, ok := s.refs[externalRef]; ok {
				p := s.payments[paymentID]
				s.mu.Unlock()
				return &p, true, nil
			}
		}
		entry, ok := s.loans[loanID]
		if !ok {
			s.mu.Unlock()
			return nil, false, domain.ErrLoanNotFound
		}
		snapshot := cloneLoan(&entry.loan)
		version := entry.version
		s.mu.Unlock()

		payment, err := fn(&snapshot)
		if err != nil {
			return nil, false, err
		}

		s.mu.Lock()
		entry, ok = s.loans[loanID]
		if !ok {
			s.mu.Unlock()
			return nil, false, domain.ErrLoanNotFound
		}
		if entry.version != version {
			s.mu.Unlock()
			continue // lost the race, retry from a fresh read
		}
		entry.loan = cloneLoan(&snapshot)
		entry.version++
		s.payments[payment.ID] = *payment
		if externalRef != "" {
			s.refs[externalRef] = payment.ID
		}
		s.mu.Unlock()
		return payment, false, nil
	}
	return nil, false, domain.ErrConflict
}

func (s *Store) AssignReceiptNumber(ctx context.Context, paymentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return "", domain.ErrPaymentNotFound
	}
	if payment.ReceiptNumber != "" {
		return payment.ReceiptNumber, nil
	}

	s.counter++
	number := fmt.Sprintf("E001-%06d", s.counter)
	payment.ReceiptNumber = number
	s.payments[paymentID] = payment

	if entry, ok := s.loans[payment.LoanID]; ok {
		if inst := entry.loan.Installment(payment.InstallmentSeq); inst != nil {
			inst.ReceiptNumber = number
			entry.version++
		}
	}
	return number, nil
}

type loanRepo struct{ s *Store }

func (r *loanRepo) Create(ctx context.Context, loan *domain.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loans[loan.ID]; ok {
		return fmt.Errorf("loan %s already exists", loan.ID)
	}
	r.s.loans[loan.ID] = &loanEntry{loan: cloneLoan(loan)}
	return nil
}

func (r *loanRepo) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	loan := cloneLoan(&entry.loan)
	return &loan, nil
}

func (r *loanRepo) List(ctx context.Context, limit int) ([]domain.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var loans []domain.Loan
	for _, entry := range r.s.loans {
		loans = append(loans, cloneLoan(&entry.loan))
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].CreatedAt.After(loans[j].CreatedAt) })
	if limit > 0 && len(loans) > limit {
		loans = loans[:limit]
	}
	return loans, nil
}

func (r *loanRepo) ListByBorrower(ctx context.Context, borrowerID string) ([]domain.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var loans []domain.Loan
	for _, entry := range r.s.loans {
		if entry.loan.BorrowerID == borrowerID {
			loans = append(loans, cloneLoan(&entry.loan))
		}
	}
	return loans, nil
}

func (r *loanRepo) HasPendingForBorrower(ctx context.Context, borrowerID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, entry := range r.s.loans {
		if entry.loan.BorrowerID == borrowerID && entry.loan.Status == domain.LoanStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *loanRepo) ListPending(ctx context.Context) ([]domain.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var loans []domain.Loan
	for _, entry := range r.s.loans {
		if entry.loan.Status == domain.LoanStatusPending {
			loans = append(loans, cloneLoan(&entry.loan))
		}
	}
	return loans, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *paymentRepo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var payments []domain.Payment
	for _, p := range r.s.payments {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	return payments, nil
}

type cashRepo struct{ s *Store }

func (r *cashRepo) GetSession(ctx context.Context, date string) (*domain.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[date]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *cashRepo) CreateSession(ctx context.Context, session *domain.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[session.Date]; ok {
		return domain.ErrSessionExists
	}
	r.s.sessions[session.Date] = *session
	return nil
}

func (r *cashRepo) UpdateSession(ctx context.Context, session *domain.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[session.Date]; !ok {
		return domain.ErrSessionNotFound
	}
	r.s.sessions[session.Date] = *session
	return nil
}

func (r *cashRepo) AddMovement(ctx context.Context, movement *domain.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movements = append(r.s.movements, *movement)
	return nil
}

func (r *cashRepo) ListMovements(ctx context.Context, date string) ([]domain.CashMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var movements []domain.CashMovement
	for _, m := range r.s.movements {
		if m.Date == date {
			movements = append(movements, m)
		}
	}
	return movements, nil
}
