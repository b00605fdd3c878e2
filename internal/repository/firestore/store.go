package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/repository"
)

const (
	colLoans          = "loans"
	colPayments       = "payments"
	colCashSessions   = "cash_sessions"
	colCashMovements  = "cash_movements"
	colCounters       = "counters"
	colSettlementRefs = "settlement_refs"

	receiptCounterDoc = "receipts"
	receiptSeries     = "E001"

	settleMaxAttempts = 5
)

// Config holds the Firestore connection settings.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// Store is the Firestore-backed implementation of repository.Store. The loan
// document is the aggregate: settlements rewrite the whole schedule array in
// one transaction, never individual entries.
type Store struct {
	client   *firestore.Client
	loans    *loanRepo
	payments *paymentRepo
	cash     *cashRepo
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &Store{
		client:   client,
		loans:    &loanRepo{client: client},
		payments: &paymentRepo{client: client},
		cash:     &cashRepo{client: client},
	}, nil
}

func (s *Store) Loans() repository.LoanRepository       { return s.loans }
func (s *Store) Payments() repository.PaymentRepository { return s.payments }
func (s *Store) Cash() repository.CashRepository        { return s.cash }

func (s *Store) Close() error { return s.client.Close() }

// SettleLoan implements the transactional read-modify-write at loan-aggregate
// granularity. Firestore restarts the function on contention; attempts are
// bounded, after which the error surfaces as a retryable conflict.
func (s *Store) SettleLoan(ctx context.Context, loanID, externalRef string, fn repository.SettleFunc) (*domain.Payment, bool, error) {
	var (
		payment  *domain.Payment
		replayed bool
	)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		payment = nil
		replayed = false

		if externalRef != "" {
			refSnap, err := tx.Get(s.client.Collection(colSettlementRefs).Doc(externalRef))
			if err == nil {
				var ref settlementRefDoc
				if err := refSnap.DataTo(&ref); err != nil {
					return err
				}
				paySnap, err := tx.Get(s.client.Collection(colPayments).Doc(ref.PaymentID))
				if err != nil {
					return err
				}
				var doc paymentDoc
				if err := paySnap.DataTo(&doc); err != nil {
					return err
				}
				payment, err = fromPaymentDoc(&doc)
				if err != nil {
					return err
				}
				replayed = true
				return nil
			}
			if status.Code(err) != codes.NotFound {
				return err
			}
		}

		loanRef := s.client.Collection(colLoans).Doc(loanID)
		loanSnap, err := tx.Get(loanRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrLoanNotFound
			}
			return err
		}
		var doc loanDoc
		if err := loanSnap.DataTo(&doc); err != nil {
			return err
		}
		loan, err := fromLoanDoc(&doc)
		if err != nil {
			return err
		}

		payment, err = fn(loan)
		if err != nil {
			return err
		}

		if err := tx.Set(loanRef, toLoanDoc(loan)); err != nil {
			return err
		}
		if err := tx.Set(s.client.Collection(colPayments).Doc(payment.ID), toPaymentDoc(payment)); err != nil {
			return err
		}
		if externalRef != "" {
			ref := settlementRefDoc{PaymentID: payment.ID, CreatedAt: payment.CreatedAt}
			if err := tx.Set(s.client.Collection(colSettlementRefs).Doc(externalRef), ref); err != nil {
				return err
			}
		}
		return nil
	}, firestore.MaxAttempts(settleMaxAttempts))

	if err != nil {
		if status.Code(err) == codes.Aborted {
			return nil, false, fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return nil, false, err
	}
	return payment, replayed, nil
}

// AssignReceiptNumber increments the receipt counter and stamps the payment
// and its schedule entry in a single transaction. The read-before-write check
// makes redelivery a no-op once the number exists.
func (s *Store) AssignReceiptNumber(ctx context.Context, paymentID string) (string, error) {
	var number string

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		payRef := s.client.Collection(colPayments).Doc(paymentID)
		paySnap, err := tx.Get(payRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrPaymentNotFound
			}
			return err
		}
		var pay paymentDoc
		if err := paySnap.DataTo(&pay); err != nil {
			return err
		}
		if pay.ReceiptNumber != "" {
			number = pay.ReceiptNumber
			return nil
		}

		counterRef := s.client.Collection(colCounters).Doc(receiptCounterDoc)
		var counter counterDoc
		counterSnap, err := tx.Get(counterRef)
		switch {
		case err == nil:
			if err := counterSnap.DataTo(&counter); err != nil {
				return err
			}
		case status.Code(err) == codes.NotFound:
			// first receipt ever
		default:
			return err
		}

		loanRef := s.client.Collection(colLoans).Doc(pay.LoanID)
		loanSnap, err := tx.Get(loanRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		next := counter.Last + 1
		number = fmt.Sprintf("%s-%06d", receiptSeries, next)

		if err := tx.Set(counterRef, counterDoc{Last: next}); err != nil {
			return err
		}
		if err := tx.Update(payRef, []firestore.Update{{Path: "receiptNumber", Value: number}}); err != nil {
			return err
		}
		if loanSnap != nil && loanSnap.Exists() {
			var loan loanDoc
			if err := loanSnap.DataTo(&loan); err != nil {
				return err
			}
			for i := range loan.Schedule {
				if loan.Schedule[i].Seq == pay.InstallmentSeq {
					loan.Schedule[i].ReceiptNumber = number
				}
			}
			if err := tx.Set(loanRef, loan); err != nil {
				return err
			}
		}
		return nil
	}, firestore.MaxAttempts(settleMaxAttempts))

	if err != nil {
		if status.Code(err) == codes.Aborted && !errors.Is(err, domain.ErrPaymentNotFound) {
			return "", fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return "", err
	}
	return number, nil
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func alreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
