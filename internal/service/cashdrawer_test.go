package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/repository/memory"
)

func newDrawerFixture() (*memory.Store, LoanService, SettlementService, CashDrawerService) {
	store := memory.New()
	mora := finance.NewMoraPolicy(0.01, time.UTC)
	return store,
		NewLoanService(store, mora),
		NewSettlementService(store, mora),
		NewCashDrawerService(store, time.UTC, 0.10)
}

func TestCashDrawerService_Sessions(t *testing.T) {
	ctx := context.Background()

	t.Run("OpenCloseLifecycle", func(t *testing.T) {
		_, _, _, drawer := newDrawerFixture()

		session, err := drawer.OpenSession(ctx, "2026-02-15", dec("100.00"), "ana")
		require.NoError(t, err)
		assert.Equal(t, domain.CashSessionOpen, session.Status)
		assert.Equal(t, "2026-02-15", session.Date)

		closed, err := drawer.CloseSession(ctx, "2026-02-15", dec("95.50"))
		require.NoError(t, err)
		assert.Equal(t, domain.CashSessionClosed, closed.Status)
		assert.Equal(t, "95.50", closed.ClosingFloat.StringFixed(2))
		require.NotNil(t, closed.ClosedAt)
	})

	t.Run("OnlyOneSessionPerDay", func(t *testing.T) {
		_, _, _, drawer := newDrawerFixture()

		_, err := drawer.OpenSession(ctx, "2026-02-15", dec("100.00"), "ana")
		require.NoError(t, err)

		_, err = drawer.OpenSession(ctx, "2026-02-15", dec("50.00"), "jose")
		assert.True(t, errors.Is(err, domain.ErrSessionExists))
	})

	t.Run("CloseRequiresOpenSession", func(t *testing.T) {
		_, _, _, drawer := newDrawerFixture()

		_, err := drawer.CloseSession(ctx, "2026-02-15", dec("100.00"))
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

		_, err = drawer.OpenSession(ctx, "2026-02-15", dec("100.00"), "ana")
		require.NoError(t, err)
		_, err = drawer.CloseSession(ctx, "2026-02-15", dec("100.00"))
		require.NoError(t, err)

		_, err = drawer.CloseSession(ctx, "2026-02-15", dec("100.00"))
		assert.True(t, errors.Is(err, domain.ErrSessionNotOpen))
	})

	t.Run("BadDate", func(t *testing.T) {
		_, _, _, drawer := newDrawerFixture()
		_, err := drawer.OpenSession(ctx, "15/02/2026", dec("100.00"), "ana")
		assert.True(t, domain.IsValidation(err))
	})
}

func TestCashDrawerService_Movements(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresOpenSession", func(t *testing.T) {
		_, _, _, drawer := newDrawerFixture()
		_, err := drawer.AddMovement(ctx, "2026-02-15", domain.CashMovementOut, dec("20.00"), "courier", "ana")
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	})

	t.Run("RecordsInAndOut", func(t *testing.T) {
		store, _, _, drawer := newDrawerFixture()
		_, err := drawer.OpenSession(ctx, "2026-02-15", dec("100.00"), "ana")
		require.NoError(t, err)

		_, err = drawer.AddMovement(ctx, "2026-02-15", domain.CashMovementIn, dec("10.00"), "change fund", "ana")
		require.NoError(t, err)
		_, err = drawer.AddMovement(ctx, "2026-02-15", domain.CashMovementOut, dec("5.00"), "courier", "ana")
		require.NoError(t, err)

		movements, err := store.Cash().ListMovements(ctx, "2026-02-15")
		require.NoError(t, err)
		assert.Len(t, movements, 2)
	})

	t.Run("Validation", func(t *testing.T) {
		_, _, _, drawer := newDrawerFixture()
		_, err := drawer.OpenSession(ctx, "2026-02-15", dec("100.00"), "ana")
		require.NoError(t, err)

		_, err = drawer.AddMovement(ctx, "2026-02-15", "SIDEWAYS", dec("5.00"), "x", "ana")
		assert.True(t, domain.IsValidation(err))

		_, err = drawer.AddMovement(ctx, "2026-02-15", domain.CashMovementIn, decimal.Zero, "x", "ana")
		assert.True(t, domain.IsValidation(err))

		_, err = drawer.AddMovement(ctx, "2026-02-15", domain.CashMovementIn, dec("5.00"), "", "ana")
		assert.True(t, domain.IsValidation(err))
	})
}

func TestCashDrawerService_DaySummary(t *testing.T) {
	ctx := context.Background()

	t.Run("ReconcilesCashAndRoundsToStep", func(t *testing.T) {
		_, loans, settlements, drawer := newDrawerFixture()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate // 2026-02-15
		day := due.Format("2006-01-02")

		_, err := drawer.OpenSession(ctx, day, dec("100.00"), "ana")
		require.NoError(t, err)

		// One cash quota, one card quota, a cash-in and a cash-out.
		_, err = settlements.Settle(ctx, SettleRequest{
			LoanID: loan.ID, Seq: 1, Amount: dec("91.86"),
			Method: domain.PaymentMethodCash, AmountReceived: dec("91.86"), AsOf: due,
		})
		require.NoError(t, err)
		_, err = settlements.Settle(ctx, SettleRequest{
			LoanID: loan.ID, Seq: 2, Amount: dec("91.86"),
			Method: domain.PaymentMethodCard, ExternalRef: "tok-1", AsOf: due,
		})
		require.NoError(t, err)
		_, err = drawer.AddMovement(ctx, day, domain.CashMovementIn, dec("10.00"), "change fund", "ana")
		require.NoError(t, err)
		_, err = drawer.AddMovement(ctx, day, domain.CashMovementOut, dec("5.00"), "courier", "ana")
		require.NoError(t, err)

		summary, err := drawer.DaySummary(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, "100.00", summary.OpeningFloat.StringFixed(2))
		assert.Equal(t, "91.86", summary.CashSales.StringFixed(2))
		assert.Equal(t, "91.86", summary.DigitalSales.StringFixed(2))
		assert.Equal(t, "10.00", summary.ManualCashIn.StringFixed(2))
		assert.Equal(t, "5.00", summary.ManualCashOut.StringFixed(2))
		// 100 + 91.86 + 10 - 5 = 196.86, rounded to the nearest 0.10.
		assert.Equal(t, "196.90", summary.ExpectedCashOnHand.StringFixed(2))
	})

	t.Run("PaymentsOutsideTheDayExcluded", func(t *testing.T) {
		_, loans, settlements, drawer := newDrawerFixture()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		_, err := settlements.Settle(ctx, SettleRequest{
			LoanID: loan.ID, Seq: 1, Amount: dec("91.86"),
			Method: domain.PaymentMethodCash, AmountReceived: dec("91.86"), AsOf: due,
		})
		require.NoError(t, err)

		summary, err := drawer.DaySummary(ctx, due.AddDate(0, 0, 1).Format("2006-01-02"))
		require.NoError(t, err)
		assert.True(t, summary.CashSales.IsZero())
	})

	t.Run("NoSessionStillSummarizesPayments", func(t *testing.T) {
		_, loans, settlements, drawer := newDrawerFixture()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		_, err := settlements.Settle(ctx, SettleRequest{
			LoanID: loan.ID, Seq: 1, Amount: dec("91.86"),
			Method: domain.PaymentMethodCash, AmountReceived: dec("91.86"), AsOf: due,
		})
		require.NoError(t, err)

		summary, err := drawer.DaySummary(ctx, due.Format("2006-01-02"))
		require.NoError(t, err)
		assert.Empty(t, summary.SessionStatus)
		assert.Equal(t, "91.86", summary.CashSales.StringFixed(2))
	})
}
