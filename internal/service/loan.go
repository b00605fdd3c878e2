package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
)

type loanService struct {
	store repository.Store
	mora  finance.MoraPolicy
}

func NewLoanService(store repository.Store, mora finance.MoraPolicy) LoanService {
	return &loanService{store: store, mora: mora}
}

func (s *loanService) CreateLoan(ctx context.Context, req CreateLoanRequest) (*domain.Loan, error) {
	log := logger.WithService("loan")

	req.BorrowerID = strings.TrimSpace(req.BorrowerID)
	req.BorrowerName = strings.TrimSpace(req.BorrowerName)
	if req.BorrowerID == "" {
		return nil, domain.Validation("borrower_id", "is required")
	}
	if req.BorrowerName == "" {
		return nil, domain.Validation("borrower_name", "is required")
	}
	if !req.Principal.IsPositive() {
		return nil, domain.Validation("principal", "must be positive")
	}
	if req.AnnualRate <= 0 {
		return nil, domain.Validation("annual_rate", "must be positive")
	}
	if req.TermMonths < 1 {
		return nil, domain.Validation("term_months", "must be at least 1")
	}

	start := time.Now()
	if req.StartDate != "" {
		var err error
		start, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, domain.Validation("start_date", "must be yyyy-mm-dd")
		}
	}

	// One open loan per borrower keeps the teller flow unambiguous.
	pending, err := s.store.Loans().HasPendingForBorrower(ctx, req.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("checking pending loans: %w", err)
	}
	if pending {
		return nil, domain.ErrDuplicatePending
	}

	monthlyRate := finance.AnnualToMonthlyRate(req.AnnualRate)
	schedule, err := finance.GenerateSchedule(req.Principal, monthlyRate, req.TermMonths, start)
	if err != nil {
		return nil, err
	}
	installment, totalInterest := finance.ScheduleTotals(schedule)

	loan := &domain.Loan{
		ID:                uuid.New().String(),
		BorrowerID:        req.BorrowerID,
		BorrowerName:      req.BorrowerName,
		BorrowerEmail:     strings.TrimSpace(req.BorrowerEmail),
		Principal:         req.Principal,
		AnnualRate:        req.AnnualRate,
		MonthlyRate:       monthlyRate,
		TermMonths:        req.TermMonths,
		InstallmentAmount: installment,
		TotalInterest:     totalInterest,
		TotalPayable:      req.Principal.Add(totalInterest),
		StartDate:         start,
		CreatedAt:         time.Now(),
		Status:            domain.LoanStatusPending,
		Schedule:          schedule,
	}

	if err := s.store.Loans().Create(ctx, loan); err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}

	log.InfoContext(ctx, "loan created",
		"loan_id", loan.ID,
		"borrower_id", loan.BorrowerID,
		"principal", loan.Principal.StringFixed(2),
		"term_months", loan.TermMonths)
	return loan, nil
}

func (s *loanService) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validation("loan_id", "is required")
	}
	return s.store.Loans().GetByID(ctx, id)
}

func (s *loanService) ListLoans(ctx context.Context, borrowerID string, limit int) ([]domain.Loan, error) {
	if borrowerID != "" {
		return s.store.Loans().ListByBorrower(ctx, borrowerID)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Loans().List(ctx, limit)
}

func (s *loanService) InstallmentView(ctx context.Context, loanID string, seq int, asOf time.Time) (*InstallmentQuote, error) {
	loan, err := s.store.Loans().GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	inst := loan.Installment(seq)
	if inst == nil {
		return nil, domain.ErrInstallmentNotFound
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	accrued, daysLate := s.mora.Accrued(inst, asOf)
	outstandingPenalty := accrued.Add(inst.FrozenPenalty).Sub(inst.PenaltyPaid)
	if outstandingPenalty.IsNegative() {
		outstandingPenalty = decimal.Zero
	}
	outstandingPrincipal := inst.OutstandingPrincipal()

	return &InstallmentQuote{
		Installment:          *inst,
		DaysLate:             daysLate,
		AccruedPenalty:       accrued,
		OutstandingPenalty:   outstandingPenalty,
		OutstandingPrincipal: outstandingPrincipal,
		TotalDue:             outstandingPenalty.Add(outstandingPrincipal),
	}, nil
}
