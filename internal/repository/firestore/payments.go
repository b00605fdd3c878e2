package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"presta-backoffice/internal/domain"
)

type paymentRepo struct {
	client *firestore.Client
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	snap, err := r.client.Collection(colPayments).Doc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	var doc paymentDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return fromPaymentDoc(&doc)
}

func (r *paymentRepo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	q := r.client.Collection(colPayments).
		Where("createdAt", ">=", from).
		Where("createdAt", "<", to).
		OrderBy("createdAt", firestore.Desc)
	it := q.Documents(ctx)
	defer it.Stop()

	var payments []domain.Payment
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc paymentDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		p, err := fromPaymentDoc(&doc)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, nil
}
