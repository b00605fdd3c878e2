package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"presta-backoffice/internal/domain"
)

type loanRepo struct {
	client *firestore.Client
}

func (r *loanRepo) Create(ctx context.Context, loan *domain.Loan) error {
	_, err := r.client.Collection(colLoans).Doc(loan.ID).Create(ctx, toLoanDoc(loan))
	return err
}

func (r *loanRepo) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	snap, err := r.client.Collection(colLoans).Doc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	var doc loanDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return fromLoanDoc(&doc)
}

func (r *loanRepo) List(ctx context.Context, limit int) ([]domain.Loan, error) {
	q := r.client.Collection(colLoans).Query
	if limit > 0 {
		q = q.Limit(limit)
	}
	return collectLoans(q.Documents(ctx))
}

func (r *loanRepo) ListByBorrower(ctx context.Context, borrowerID string) ([]domain.Loan, error) {
	q := r.client.Collection(colLoans).Where("borrowerId", "==", borrowerID)
	return collectLoans(q.Documents(ctx))
}

func (r *loanRepo) HasPendingForBorrower(ctx context.Context, borrowerID string) (bool, error) {
	q := r.client.Collection(colLoans).
		Where("borrowerId", "==", borrowerID).
		Where("status", "==", string(domain.LoanStatusPending)).
		Limit(1)
	it := q.Documents(ctx)
	defer it.Stop()

	_, err := it.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *loanRepo) ListPending(ctx context.Context) ([]domain.Loan, error) {
	q := r.client.Collection(colLoans).Where("status", "==", string(domain.LoanStatusPending))
	return collectLoans(q.Documents(ctx))
}

func collectLoans(it *firestore.DocumentIterator) ([]domain.Loan, error) {
	defer it.Stop()

	var loans []domain.Loan
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc loanDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		loan, err := fromLoanDoc(&doc)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, nil
}
