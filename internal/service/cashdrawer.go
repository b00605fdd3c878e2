package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
)

type cashDrawerService struct {
	store        repository.Store
	loc          *time.Location
	roundingStep decimal.Decimal
}

// NewCashDrawerService builds the drawer service. loc defines the local
// business day used to bucket payments; roundingStep is the smallest physical
// denomination the expected cash figure is rounded to.
func NewCashDrawerService(store repository.Store, loc *time.Location, roundingStep float64) CashDrawerService {
	if loc == nil {
		loc = time.UTC
	}
	step := decimal.NewFromFloat(roundingStep)
	if !step.IsPositive() {
		step = decimal.RequireFromString("0.10")
	}
	return &cashDrawerService{store: store, loc: loc, roundingStep: step}
}

func (s *cashDrawerService) OpenSession(ctx context.Context, date string, openingFloat decimal.Decimal, cashier string) (*domain.CashSession, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	if openingFloat.IsNegative() {
		return nil, domain.Validation("opening_float", "must not be negative")
	}

	session := &domain.CashSession{
		ID:           uuid.New().String(),
		Date:         day,
		Status:       domain.CashSessionOpen,
		OpeningFloat: openingFloat,
		OpenedAt:     time.Now(),
		Cashier:      cashier,
	}
	if err := s.store.Cash().CreateSession(ctx, session); err != nil {
		return nil, err
	}
	logger.WithService("cash").InfoContext(ctx, "drawer session opened",
		"date", day, "opening_float", openingFloat.StringFixed(2), "cashier", cashier)
	return session, nil
}

func (s *cashDrawerService) CloseSession(ctx context.Context, date string, closingFloat decimal.Decimal) (*domain.CashSession, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	if closingFloat.IsNegative() {
		return nil, domain.Validation("closing_float", "must not be negative")
	}

	session, err := s.store.Cash().GetSession(ctx, day)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.CashSessionOpen {
		return nil, domain.ErrSessionNotOpen
	}

	now := time.Now()
	session.Status = domain.CashSessionClosed
	session.ClosingFloat = closingFloat
	session.ClosedAt = &now
	if err := s.store.Cash().UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	summary, err := s.DaySummary(ctx, day)
	if err == nil {
		diff := closingFloat.Sub(summary.ExpectedCashOnHand)
		logger.WithService("cash").InfoContext(ctx, "drawer session closed",
			"date", day,
			"closing_float", closingFloat.StringFixed(2),
			"expected", summary.ExpectedCashOnHand.StringFixed(2),
			"difference", diff.StringFixed(2))
	}
	return session, nil
}

func (s *cashDrawerService) AddMovement(ctx context.Context, date string, typ domain.CashMovementType, amount decimal.Decimal, description, cashier string) (*domain.CashMovement, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	if typ != domain.CashMovementIn && typ != domain.CashMovementOut {
		return nil, domain.Validation("type", "must be IN or OUT")
	}
	if !amount.IsPositive() {
		return nil, domain.Validation("amount", "must be positive")
	}
	if description == "" {
		return nil, domain.Validation("description", "is required")
	}

	// Movements require an open session so every manual entry is attributable
	// to a drawer someone is accountable for.
	session, err := s.store.Cash().GetSession(ctx, day)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.CashSessionOpen {
		return nil, domain.ErrSessionNotOpen
	}

	movement := &domain.CashMovement{
		ID:          uuid.New().String(),
		Date:        day,
		Type:        typ,
		Amount:      amount,
		Description: description,
		Cashier:     cashier,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Cash().AddMovement(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *cashDrawerService) DaySummary(ctx context.Context, date string) (*domain.DrawerSummary, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}

	summary := &domain.DrawerSummary{Date: day}

	session, err := s.store.Cash().GetSession(ctx, day)
	switch {
	case err == nil:
		summary.SessionStatus = session.Status
		summary.OpeningFloat = session.OpeningFloat
	case errors.Is(err, domain.ErrSessionNotFound):
		// A day with no session still has a payments view.
	default:
		return nil, err
	}

	from, to := s.dayBounds(day)
	payments, err := s.store.Payments().ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing payments for %s: %w", day, err)
	}
	for _, p := range payments {
		if p.Method == domain.PaymentMethodCash {
			summary.CashSales = summary.CashSales.Add(p.Amount)
		} else {
			summary.DigitalSales = summary.DigitalSales.Add(p.Amount)
		}
	}

	movements, err := s.store.Cash().ListMovements(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("listing movements for %s: %w", day, err)
	}
	for _, m := range movements {
		if m.Type == domain.CashMovementIn {
			summary.ManualCashIn = summary.ManualCashIn.Add(m.Amount)
		} else {
			summary.ManualCashOut = summary.ManualCashOut.Add(m.Amount)
		}
	}

	expected := summary.OpeningFloat.
		Add(summary.CashSales).
		Add(summary.ManualCashIn).
		Sub(summary.ManualCashOut)
	summary.ExpectedCashOnHand = s.roundToStep(expected)
	return summary, nil
}

// roundToStep rounds to the nearest multiple of the configured denomination,
// matching what a teller can physically count out of the drawer.
func (s *cashDrawerService) roundToStep(v decimal.Decimal) decimal.Decimal {
	return v.Div(s.roundingStep).Round(0).Mul(s.roundingStep)
}

// normalizeDate validates the yyyy-mm-dd key; empty means today in the
// drawer's local timezone.
func (s *cashDrawerService) normalizeDate(date string) (string, error) {
	if date == "" {
		return time.Now().In(s.loc).Format("2006-01-02"), nil
	}
	if _, err := time.ParseInLocation("2006-01-02", date, s.loc); err != nil {
		return "", domain.Validation("date", "must be yyyy-mm-dd")
	}
	return date, nil
}

// dayBounds returns the [from, to) UTC instants covering the local day.
func (s *cashDrawerService) dayBounds(day string) (time.Time, time.Time) {
	start, _ := time.ParseInLocation("2006-01-02", day, s.loc)
	return start, start.AddDate(0, 0, 1)
}
