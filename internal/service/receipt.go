package service

import (
	"context"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
)

type receiptService struct {
	store repository.Store
	email EmailService
}

func NewReceiptService(store repository.Store, email EmailService) ReceiptService {
	return &receiptService{store: store, email: email}
}

func (s *receiptService) IssueReceipt(ctx context.Context, paymentID string) (string, error) {
	if paymentID == "" {
		return "", domain.Validation("payment_id", "is required")
	}
	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return "", err
	}
	reissued, loan := s.lookupIssuance(ctx, payment)

	number, err := s.store.AssignReceiptNumber(ctx, paymentID)
	if err != nil {
		return "", err
	}
	logger.WithService("receipt").InfoContext(ctx, "receipt issued",
		"payment_id", paymentID, "receipt_number", number, "reissued", reissued)

	// Email only the first issuance; delivery failures never void the number.
	if !reissued && loan != nil && loan.BorrowerEmail != "" {
		if err := s.email.SendReceipt(ctx, loan.BorrowerEmail, loan.BorrowerName, number, payment.Amount); err != nil {
			logger.WithService("receipt").WarnContext(ctx, "receipt email failed",
				"payment_id", paymentID, "receipt_number", number, "error", err)
		}
	}
	return number, nil
}

// lookupIssuance reads the loan behind the payment to decide whether the
// schedule entry already carries a receipt number, and who to notify.
func (s *receiptService) lookupIssuance(ctx context.Context, payment *domain.Payment) (bool, *domain.Loan) {
	loan, err := s.store.Loans().GetByID(ctx, payment.LoanID)
	if err != nil {
		return false, nil
	}
	inst := loan.Installment(payment.InstallmentSeq)
	return inst != nil && inst.ReceiptNumber != "", loan
}
