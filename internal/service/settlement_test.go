package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/repository/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestServices() (*memory.Store, LoanService, SettlementService) {
	store := memory.New()
	mora := finance.NewMoraPolicy(0.01, time.UTC)
	return store, NewLoanService(store, mora), NewSettlementService(store, mora)
}

func createTestLoan(t *testing.T, loans LoanService) *domain.Loan {
	t.Helper()
	loan, err := loans.CreateLoan(context.Background(), CreateLoanRequest{
		BorrowerID:    "b-1",
		BorrowerName:  "Maria Quispe",
		BorrowerEmail: "maria@example.com",
		Principal:     decimal.NewFromInt(1000),
		AnnualRate:    0.20,
		TermMonths:    12,
		StartDate:     "2026-01-15",
	})
	require.NoError(t, err)
	return loan
}

func TestSettlementService_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("FullCashSettlementOnTime", func(t *testing.T) {
		store, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		result, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("91.86"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("100.00"),
			Cashier:        "ana",
			AsOf:           due,
		})
		require.NoError(t, err)

		assert.Equal(t, "91.86", result.Payment.Amount.StringFixed(2))
		assert.Equal(t, "91.86", result.Payment.PrincipalPortion.StringFixed(2))
		assert.True(t, result.Payment.PenaltyPortion.IsZero())
		assert.Equal(t, "8.14", result.Change.StringFixed(2))
		assert.False(t, result.Replayed)

		stored, err := store.Loans().GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusPaid, stored.Schedule[0].Status)
		assert.Equal(t, domain.LoanStatusPending, stored.Status)
	})

	t.Run("PaymentLeavingExactlyToleranceSettlesInstallment", func(t *testing.T) {
		store, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		// 91.86 scheduled, 91.76 tendered: the 0.10 residual sits exactly on
		// the tolerance and must close the installment.
		result, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("91.76"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("91.76"),
			Cashier:        "ana",
			AsOf:           due,
		})
		require.NoError(t, err)
		assert.Equal(t, "91.76", result.Payment.PrincipalPortion.StringFixed(2))

		stored, err := store.Loans().GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusPaid, stored.Schedule[0].Status)
		assert.True(t, stored.Schedule[0].Settled())

		// The residual is forgiven, not collectable later.
		_, err = settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("0.10"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("0.10"),
			Cashier:        "ana",
			AsOf:           due,
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("LateSettlementCollectsPenaltyFirst", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		asOf := loan.Schedule[0].DueDate.AddDate(0, 0, 10)

		// 91.86 * (0.01/30) * 10 = 0.31 penalty on top of the quota.
		result, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("92.17"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("92.17"),
			AsOf:           asOf,
		})
		require.NoError(t, err)

		assert.Equal(t, "0.31", result.Payment.PenaltyPortion.StringFixed(2))
		assert.Equal(t, "91.86", result.Payment.PrincipalPortion.StringFixed(2))
		assert.Equal(t, domain.InstallmentStatusPaid, result.Loan.Schedule[0].Status)
	})

	t.Run("PartialLatePaymentFreezesPenalty", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		asOf := loan.Schedule[0].DueDate.AddDate(0, 0, 10)

		result, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("50.00"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("50.00"),
			AsOf:           asOf,
		})
		require.NoError(t, err)

		inst := result.Loan.Schedule[0]
		assert.Equal(t, domain.InstallmentStatusPartial, inst.Status)
		assert.Equal(t, "0.31", result.Payment.PenaltyPortion.StringFixed(2))
		assert.Equal(t, "49.69", result.Payment.PrincipalPortion.StringFixed(2))
		// Penalty accrued on the retired 49.69 does not evaporate.
		assert.Equal(t, "0.17", inst.FrozenPenalty.StringFixed(2))
	})

	t.Run("OverpaymentRequiresConfirmation", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		_, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("120.00"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("120.00"),
			AsOf:           due,
		})
		require.Error(t, err)
		assert.True(t, domain.IsOverpayment(err))

		// Confirmed: the allocation is capped and the surplus comes back.
		result, err := settlements.Settle(ctx, SettleRequest{
			LoanID:             loan.ID,
			Seq:                1,
			Amount:             dec("120.00"),
			Method:             domain.PaymentMethodCash,
			AmountReceived:     dec("120.00"),
			ConfirmOverpayment: true,
			AsOf:               due,
		})
		require.NoError(t, err)
		assert.Equal(t, "91.86", result.Payment.Amount.StringFixed(2))
		assert.Equal(t, "28.14", result.Change.StringFixed(2))
	})

	t.Run("SettledInstallmentRejectsFurtherPayments", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		req := SettleRequest{
			LoanID:         loan.ID,
			Seq:            1,
			Amount:         dec("91.86"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("91.86"),
			AsOf:           due,
		}
		_, err := settlements.Settle(ctx, req)
		require.NoError(t, err)

		_, err = settlements.Settle(ctx, req)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("FinalizesLoanWhenLastInstallmentPaid", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)

		var last *SettleResult
		for _, inst := range loan.Schedule {
			result, err := settlements.Settle(ctx, SettleRequest{
				LoanID:         loan.ID,
				Seq:            inst.Seq,
				Amount:         inst.Amount,
				Method:         domain.PaymentMethodCash,
				AmountReceived: inst.Amount,
				AsOf:           inst.DueDate,
			})
			require.NoError(t, err)
			last = result
		}
		assert.Equal(t, domain.LoanStatusFinalized, last.Loan.Status)
	})

	t.Run("ExternalRefReplayDoesNotDoubleSettle", func(t *testing.T) {
		store, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		req := SettleRequest{
			LoanID:      loan.ID,
			Seq:         1,
			Amount:      dec("91.86"),
			Method:      domain.PaymentMethodCard,
			ExternalRef: "tok-abc123",
			AsOf:        due,
		}
		first, err := settlements.Settle(ctx, req)
		require.NoError(t, err)
		require.False(t, first.Replayed)

		second, err := settlements.Settle(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Payment.ID, second.Payment.ID)

		// The installment was charged exactly once.
		stored, err := store.Loans().GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, "91.86", stored.Schedule[0].PrincipalPaid.StringFixed(2))
	})

	t.Run("ConcurrentSettlementsAreLinearized", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		// Two cashiers race on the same installment with half the quota each.
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = settlements.Settle(ctx, SettleRequest{
					LoanID:         loan.ID,
					Seq:            1,
					Amount:         dec("45.93"),
					Method:         domain.PaymentMethodCash,
					AmountReceived: dec("45.93"),
					Cashier:        fmt.Sprintf("cashier-%d", i),
					AsOf:           due,
				})
			}(i)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		updated, err := loans.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, "91.86", updated.Schedule[0].PrincipalPaid.StringFixed(2))
		assert.Equal(t, domain.InstallmentStatusPaid, updated.Schedule[0].Status)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		due := loan.Schedule[0].DueDate

		cases := []struct {
			name string
			req  SettleRequest
		}{
			{"MissingLoanID", SettleRequest{Seq: 1, Amount: dec("10"), Method: domain.PaymentMethodCash, AmountReceived: dec("10")}},
			{"BadSeq", SettleRequest{LoanID: loan.ID, Seq: 0, Amount: dec("10"), Method: domain.PaymentMethodCash, AmountReceived: dec("10")}},
			{"ZeroAmount", SettleRequest{LoanID: loan.ID, Seq: 1, Method: domain.PaymentMethodCash}},
			{"BadMethod", SettleRequest{LoanID: loan.ID, Seq: 1, Amount: dec("10"), Method: "CHECK", AmountReceived: dec("10")}},
			{"CardWithoutRef", SettleRequest{LoanID: loan.ID, Seq: 1, Amount: dec("10"), Method: domain.PaymentMethodCard}},
			{"ShortCash", SettleRequest{LoanID: loan.ID, Seq: 1, Amount: dec("10"), Method: domain.PaymentMethodCash, AmountReceived: dec("5"), AsOf: due}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := settlements.Settle(ctx, tc.req)
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err), "want validation error, got %v", err)
			})
		}
	})

	t.Run("UnknownLoan", func(t *testing.T) {
		_, _, settlements := newTestServices()
		_, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         "missing",
			Seq:            1,
			Amount:         dec("10.00"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("10.00"),
		})
		assert.True(t, errors.Is(err, domain.ErrLoanNotFound))
	})

	t.Run("UnknownInstallment", func(t *testing.T) {
		_, loans, settlements := newTestServices()
		loan := createTestLoan(t, loans)
		_, err := settlements.Settle(ctx, SettleRequest{
			LoanID:         loan.ID,
			Seq:            99,
			Amount:         dec("10.00"),
			Method:         domain.PaymentMethodCash,
			AmountReceived: dec("10.00"),
		})
		assert.True(t, errors.Is(err, domain.ErrInstallmentNotFound))
	})
}
