package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presta-backoffice/internal/domain"
)

const testDailyRate = 0.01 / 30

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAllocate(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("PenaltyFirstThenPrincipal", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, dec("0.33"), 10, testDailyRate, dec("50.00"), false)
		require.NoError(t, err)

		assert.Equal(t, "0.33", alloc.PenaltyPortion.StringFixed(2))
		assert.Equal(t, "49.67", alloc.PrincipalPortion.StringFixed(2))
		assert.Equal(t, domain.InstallmentStatusPartial, alloc.Status)
		// Penalty accrued against the 49.67 that just got paid is frozen.
		assert.Equal(t, "0.17", alloc.NewFrozenPenalty.StringFixed(2))
	})

	t.Run("FullSettlement", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, dec("0.33"), 10, testDailyRate, dec("100.33"), false)
		require.NoError(t, err)

		assert.Equal(t, "0.33", alloc.PenaltyPortion.StringFixed(2))
		assert.Equal(t, "100.00", alloc.PrincipalPortion.StringFixed(2))
		assert.Equal(t, domain.InstallmentStatusPaid, alloc.Status)
	})

	t.Run("ResidualWithinToleranceIsPaid", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, decimal.Zero, 0, testDailyRate, dec("99.95"), false)
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusPaid, alloc.Status)
	})

	t.Run("ResidualExactlyAtToleranceIsPaid", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, decimal.Zero, 0, testDailyRate, dec("99.90"), false)
		require.NoError(t, err)

		assert.Equal(t, domain.InstallmentStatusPaid, alloc.Status)
		alloc.ApplyTo(inst, due)
		assert.True(t, inst.Settled())
	})

	t.Run("OnTimePaymentFreezesNothing", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, decimal.Zero, 0, testDailyRate, dec("60.00"), false)
		require.NoError(t, err)
		assert.True(t, alloc.NewFrozenPenalty.IsZero())
		assert.Equal(t, "60.00", alloc.PrincipalPortion.StringFixed(2))
	})

	t.Run("OverpaymentRejectedWithoutConfirmation", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		_, err := Allocate(inst, dec("0.33"), 10, testDailyRate, dec("150.00"), false)
		require.Error(t, err)
		assert.True(t, domain.IsOverpayment(err))
	})

	t.Run("OverpaymentCappedWhenConfirmed", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, dec("0.33"), 10, testDailyRate, dec("150.00"), true)
		require.NoError(t, err)
		assert.Equal(t, "0.33", alloc.PenaltyPortion.StringFixed(2))
		assert.Equal(t, "100.00", alloc.PrincipalPortion.StringFixed(2))
		assert.Equal(t, domain.InstallmentStatusPaid, alloc.Status)
	})

	t.Run("NonPositiveAmountRejected", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		_, err := Allocate(inst, decimal.Zero, 0, testDailyRate, decimal.Zero, false)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("FrozenPenaltyCollectedBeforePrincipal", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		inst.PrincipalPaid = dec("50.00")
		inst.PenaltyPaid = dec("0.33")
		inst.FrozenPenalty = dec("0.17")
		inst.Status = domain.InstallmentStatusPartial

		// Active penalty on the remaining 50 for 5 more days late plus the
		// frozen 0.17; 0.33 already paid.
		active := dec("0.25") // 50 * (0.01/30) * 15
		alloc, err := Allocate(inst, active, 15, testDailyRate, dec("10.00"), false)
		require.NoError(t, err)

		// outstanding penalty = 0.25 + 0.17 - 0.33 = 0.09
		assert.Equal(t, "0.09", alloc.PenaltyPortion.StringFixed(2))
		assert.Equal(t, "9.91", alloc.PrincipalPortion.StringFixed(2))
	})

	t.Run("SecondPaymentSeesLargerFrozenCarry", func(t *testing.T) {
		inst := overdueInstallment("100.00", due)
		alloc, err := Allocate(inst, dec("0.33"), 10, testDailyRate, dec("50.00"), false)
		require.NoError(t, err)
		alloc.ApplyTo(inst, due.AddDate(0, 0, 10))

		// Later and larger: freezing is cumulative, never recomputed down.
		alloc2, err := Allocate(inst, dec("0.25"), 15, testDailyRate, dec("30.00"), false)
		require.NoError(t, err)
		assert.True(t, alloc2.NewFrozenPenalty.GreaterThan(alloc.NewFrozenPenalty))
	})
}

func TestAllocationApplyTo(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	inst := overdueInstallment("100.00", due)

	alloc, err := Allocate(inst, dec("0.33"), 10, testDailyRate, dec("50.00"), false)
	require.NoError(t, err)

	at := due.AddDate(0, 0, 10)
	alloc.ApplyTo(inst, at)

	assert.Equal(t, "49.67", inst.PrincipalPaid.StringFixed(2))
	assert.Equal(t, "0.33", inst.PenaltyPaid.StringFixed(2))
	assert.Equal(t, "0.17", inst.FrozenPenalty.StringFixed(2))
	assert.Equal(t, "0.33", inst.LastPenaltyTotal.StringFixed(2))
	assert.Equal(t, domain.InstallmentStatusPartial, inst.Status)
	require.NotNil(t, inst.LastPaymentAt)
	assert.Equal(t, at, *inst.LastPaymentAt)
}
