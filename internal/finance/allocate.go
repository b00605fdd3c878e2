package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
)

// Allocation is the split of one tendered amount over an installment.
type Allocation struct {
	PenaltyPortion   decimal.Decimal
	PrincipalPortion decimal.Decimal
	// NewFrozenPenalty replaces the installment's frozen carry-forward.
	NewFrozenPenalty decimal.Decimal
	// TotalPenalty is the total generated penalty (active + frozen) observed
	// at allocation time.
	TotalPenalty decimal.Decimal
	Status       domain.InstallmentStatus
}

// Allocate splits a tendered amount over an installment. The order is fixed:
// penalty is covered first, principal second, each capped at its outstanding
// amount. Funds beyond the total outstanding are rejected with an
// OverpaymentError unless the caller confirmed, in which case the allocation
// is capped and the surplus is returned as change.
//
// When the payment retires principal on a late installment, the penalty that
// had accrued against exactly that principal slice is moved into the frozen
// carry-forward. Without this, the next accrual pass would recompute penalty
// against the shrunken balance and silently erase what was already owed.
func Allocate(inst *domain.Installment, activePenalty decimal.Decimal, daysLate int, dailyRate float64, tendered decimal.Decimal, confirmOverpayment bool) (Allocation, error) {
	if !tendered.IsPositive() {
		return Allocation{}, domain.Validation("amount", "must be positive")
	}

	totalPenalty := activePenalty.Add(inst.FrozenPenalty)
	outstandingPenalty := totalPenalty.Sub(inst.PenaltyPaid)
	if outstandingPenalty.IsNegative() {
		outstandingPenalty = decimal.Zero
	}
	outstandingPrincipal := inst.OutstandingPrincipal()

	totalOutstanding := outstandingPenalty.Add(outstandingPrincipal)
	if tendered.GreaterThan(totalOutstanding) {
		if !confirmOverpayment {
			return Allocation{}, &domain.OverpaymentError{Tendered: tendered, Outstanding: totalOutstanding}
		}
		tendered = totalOutstanding
	}

	penaltyPortion := decimal.Min(tendered, outstandingPenalty)
	remaining := tendered.Sub(penaltyPortion)
	principalPortion := decimal.Min(remaining, outstandingPrincipal)

	frozen := inst.FrozenPenalty
	if principalPortion.IsPositive() && daysLate > 0 {
		accruedOnPaidSlice := principalPortion.Mul(decimal.NewFromFloat(dailyRate * float64(daysLate)))
		frozen = frozen.Add(round2(accruedOnPaidSlice))
	}

	status := resultingStatus(inst, penaltyPortion, principalPortion, outstandingPenalty, outstandingPrincipal)

	return Allocation{
		PenaltyPortion:   penaltyPortion,
		PrincipalPortion: principalPortion,
		NewFrozenPenalty: frozen,
		TotalPenalty:     totalPenalty,
		Status:           status,
	}, nil
}

func resultingStatus(inst *domain.Installment, penaltyPortion, principalPortion, outstandingPenalty, outstandingPrincipal decimal.Decimal) domain.InstallmentStatus {
	penaltyLeft := outstandingPenalty.Sub(penaltyPortion)
	principalLeft := outstandingPrincipal.Sub(principalPortion)
	// Inclusive on the tolerance so the boundary agrees with Installment.Settled;
	// a residual of exactly the tolerance could otherwise never be collected.
	if penaltyLeft.LessThanOrEqual(domain.SettleTolerance) && principalLeft.LessThanOrEqual(domain.SettleTolerance) {
		return domain.InstallmentStatusPaid
	}
	if inst.PrincipalPaid.Add(principalPortion).IsPositive() || inst.PenaltyPaid.Add(penaltyPortion).IsPositive() {
		return domain.InstallmentStatusPartial
	}
	return domain.InstallmentStatusPending
}

// ApplyTo writes the allocation back onto the installment.
func (a Allocation) ApplyTo(inst *domain.Installment, at time.Time) {
	inst.PrincipalPaid = inst.PrincipalPaid.Add(a.PrincipalPortion)
	inst.PenaltyPaid = inst.PenaltyPaid.Add(a.PenaltyPortion)
	inst.FrozenPenalty = a.NewFrozenPenalty
	inst.LastPenaltyTotal = a.TotalPenalty
	inst.Status = a.Status
	ts := at
	inst.LastPaymentAt = &ts
}
