package finance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
)

// penaltyProrationDays spreads the nominal monthly penalty rate over a
// commercial month.
const penaltyProrationDays = 30

// MoraPolicy decides how much late-payment penalty an overdue installment has
// accrued. The penalty is a nominal monthly rate prorated daily against the
// remaining principal: remaining * (monthly/30) * daysLate. Penalty already
// frozen against paid-off principal is carried separately on the installment
// and is never recomputed.
type MoraPolicy struct {
	monthlyRate float64
	loc         *time.Location
}

// NewMoraPolicy builds a policy with the given nominal monthly rate (e.g.
// 0.01 for 1%) computing day boundaries in loc.
func NewMoraPolicy(monthlyRate float64, loc *time.Location) MoraPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return MoraPolicy{monthlyRate: monthlyRate, loc: loc}
}

// DailyRate is the prorated per-day penalty rate.
func (p MoraPolicy) DailyRate() float64 {
	return p.monthlyRate / penaltyProrationDays
}

// Accrued returns the penalty currently accrued on the remaining principal
// and the number of days the installment is late as of asOf. Nothing accrues
// while the installment is settled within tolerance or not yet due. Both
// dates are normalized to local midnight before comparison.
func (p MoraPolicy) Accrued(inst *domain.Installment, asOf time.Time) (decimal.Decimal, int) {
	remaining := inst.OutstandingPrincipal()
	if remaining.LessThanOrEqual(domain.SettleTolerance) {
		return decimal.Zero, 0
	}

	due := midnight(inst.DueDate, p.loc)
	day := midnight(asOf, p.loc)
	if !day.After(due) {
		return decimal.Zero, 0
	}

	daysLate := int(math.Ceil(day.Sub(due).Hours() / 24))
	penalty := remaining.Mul(decimal.NewFromFloat(p.DailyRate() * float64(daysLate)))
	return round2(penalty), daysLate
}

// TotalGenerated is the penalty owed for billing purposes: the part still
// accruing on the open balance plus the frozen carry-forward.
func (p MoraPolicy) TotalGenerated(inst *domain.Installment, asOf time.Time) decimal.Decimal {
	active, _ := p.Accrued(inst, asOf)
	return active.Add(inst.FrozenPenalty)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
