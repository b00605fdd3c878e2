package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
)

type settlementService struct {
	store repository.Store
	mora  finance.MoraPolicy
}

func NewSettlementService(store repository.Store, mora finance.MoraPolicy) SettlementService {
	return &settlementService{store: store, mora: mora}
}

// Settle applies one payment to one installment inside a single transactional
// read-modify-write over the loan aggregate. Penalty is re-accrued against the
// freshly read state, so a concurrent settlement that retires principal first
// changes what this one is allowed to collect.
func (s *settlementService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	log := logger.WithService("settlement")

	if req.LoanID == "" {
		return nil, domain.Validation("loan_id", "is required")
	}
	if req.Seq < 1 {
		return nil, domain.Validation("seq", "must be at least 1")
	}
	if !req.Amount.IsPositive() {
		return nil, domain.Validation("amount", "must be positive")
	}
	if !domain.ValidPaymentMethod(req.Method) {
		return nil, domain.Validation("method", "must be CASH, CARD or WALLET")
	}
	if req.Method != domain.PaymentMethodCash && req.ExternalRef == "" {
		return nil, domain.Validation("external_ref", "is required for non-cash payments")
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	received := req.AmountReceived
	if req.Method != domain.PaymentMethodCash {
		received = req.Amount
	}
	if received.LessThan(req.Amount) {
		return nil, domain.Validation("amount_received", "must cover the payment amount")
	}

	var updatedLoan *domain.Loan
	payment, replayed, err := s.store.SettleLoan(ctx, req.LoanID, req.ExternalRef, func(loan *domain.Loan) (*domain.Payment, error) {
		inst := loan.Installment(req.Seq)
		if inst == nil {
			return nil, domain.ErrInstallmentNotFound
		}
		if inst.Settled() {
			return nil, domain.Validation("seq", "installment is already settled")
		}

		accrued, daysLate := s.mora.Accrued(inst, asOf)
		alloc, err := finance.Allocate(inst, accrued, daysLate, s.mora.DailyRate(), req.Amount, req.ConfirmOverpayment)
		if err != nil {
			return nil, err
		}
		applied := alloc.PenaltyPortion.Add(alloc.PrincipalPortion)
		if !applied.IsPositive() {
			return nil, domain.Validation("amount", "nothing outstanding to apply")
		}

		alloc.ApplyTo(inst, asOf)
		loan.RefreshStatus()
		updatedLoan = loan

		return &domain.Payment{
			ID:               uuid.New().String(),
			LoanID:           loan.ID,
			InstallmentSeq:   inst.Seq,
			BorrowerID:       loan.BorrowerID,
			Amount:           applied,
			PrincipalPortion: alloc.PrincipalPortion,
			PenaltyPortion:   alloc.PenaltyPortion,
			Method:           req.Method,
			AmountReceived:   received,
			ExternalRef:      req.ExternalRef,
			Cashier:          req.Cashier,
			CreatedAt:        asOf,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		// Redelivered gateway notification: nothing was written, return the
		// original payment and the current loan.
		loan, err := s.store.Loans().GetByID(ctx, payment.LoanID)
		if err != nil {
			return nil, fmt.Errorf("loading loan for replayed settlement: %w", err)
		}
		log.InfoContext(ctx, "settlement replayed",
			"loan_id", payment.LoanID,
			"external_ref", req.ExternalRef,
			"payment_id", payment.ID)
		return &SettleResult{Payment: payment, Loan: loan, Change: decimal.Zero, Replayed: true}, nil
	}

	change := received.Sub(payment.Amount)
	if change.IsNegative() {
		change = decimal.Zero
	}

	log.InfoContext(ctx, "installment settled",
		"loan_id", payment.LoanID,
		"seq", payment.InstallmentSeq,
		"method", string(payment.Method),
		"amount", payment.Amount.StringFixed(2),
		"penalty", payment.PenaltyPortion.StringFixed(2),
		"loan_status", string(updatedLoan.Status))

	return &SettleResult{Payment: payment, Loan: updatedLoan, Change: change, Replayed: false}, nil
}
