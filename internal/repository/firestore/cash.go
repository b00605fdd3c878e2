package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"presta-backoffice/internal/domain"
)

type cashRepo struct {
	client *firestore.Client
}

// Sessions are keyed by their local calendar day, which makes the
// one-session-per-day rule a plain document-exists check.
func (r *cashRepo) GetSession(ctx context.Context, date string) (*domain.CashSession, error) {
	snap, err := r.client.Collection(colCashSessions).Doc(date).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return fromSessionDoc(&doc)
}

func (r *cashRepo) CreateSession(ctx context.Context, session *domain.CashSession) error {
	_, err := r.client.Collection(colCashSessions).Doc(session.Date).Create(ctx, toSessionDoc(session))
	if err != nil && alreadyExists(err) {
		return domain.ErrSessionExists
	}
	return err
}

func (r *cashRepo) UpdateSession(ctx context.Context, session *domain.CashSession) error {
	_, err := r.client.Collection(colCashSessions).Doc(session.Date).Set(ctx, toSessionDoc(session))
	return err
}

func (r *cashRepo) AddMovement(ctx context.Context, movement *domain.CashMovement) error {
	_, err := r.client.Collection(colCashMovements).Doc(movement.ID).Create(ctx, toMovementDoc(movement))
	return err
}

func (r *cashRepo) ListMovements(ctx context.Context, date string) ([]domain.CashMovement, error) {
	q := r.client.Collection(colCashMovements).Where("date", "==", date)
	it := q.Documents(ctx)
	defer it.Stop()

	var movements []domain.CashMovement
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc movementDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		m, err := fromMovementDoc(&doc)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *m)
	}
	return movements, nil
}
