package finance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
)

const monthsPerYear = 12

// round2 rounds a monetary amount to two decimals, half up. Rounding happens
// at the point of derivation so a schedule can be verified row by row against
// a spreadsheet.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AnnualToMonthlyRate converts an effective annual rate into the effective
// monthly rate: (1+annual)^(1/12) - 1. Rates above 1 are read as percentages,
// so 20.0 means 20%.
func AnnualToMonthlyRate(annual float64) float64 {
	if annual > 1 {
		annual = annual / 100
	}
	return math.Pow(1+annual, 1.0/monthsPerYear) - 1
}

// FixedPayment computes the constant installment of the French amortization
// method: P * r(1+r)^n / ((1+r)^n - 1). A zero rate degenerates to P/n.
func FixedPayment(principal decimal.Decimal, monthlyRate float64, term int) decimal.Decimal {
	n := decimal.NewFromInt(int64(term))
	if monthlyRate == 0 {
		return principal.DivRound(n, 2)
	}
	growth := math.Pow(1+monthlyRate, float64(term))
	factor := monthlyRate * growth / (growth - 1)
	return round2(principal.Mul(decimal.NewFromFloat(factor)))
}

// GenerateSchedule builds the amortization schedule for a loan. Each period
// accrues interest on the open balance; the principal portion is the fixed
// payment minus that interest. The final period absorbs all rounding drift:
// its principal portion is forced to the remaining balance, which guarantees
// the principal portions sum to the principal exactly and the balance ends at
// zero. Due dates advance one calendar month per installment from start.
func GenerateSchedule(principal decimal.Decimal, monthlyRate float64, term int, start time.Time) ([]domain.Installment, error) {
	if !principal.IsPositive() {
		return nil, domain.Validation("principal", "must be positive")
	}
	if term < 1 {
		return nil, domain.Validation("term", "must be at least 1")
	}
	if monthlyRate < 0 {
		return nil, domain.Validation("rate", "must not be negative")
	}

	payment := FixedPayment(principal, monthlyRate, term)
	rate := decimal.NewFromFloat(monthlyRate)
	balance := principal

	schedule := make([]domain.Installment, 0, term)
	for i := 1; i <= term; i++ {
		interest := round2(balance.Mul(rate))
		capital := payment.Sub(interest)
		if i == term {
			// Last-period correction: close the balance exactly.
			capital = balance
		}
		balance = balance.Sub(capital)

		schedule = append(schedule, domain.Installment{
			Seq:       i,
			DueDate:   start.AddDate(0, i, 0),
			Amount:    interest.Add(capital),
			Interest:  interest,
			Principal: capital,
			Status:    domain.InstallmentStatusPending,
		})
	}

	return schedule, nil
}

// ScheduleTotals returns the regular installment amount and the interest
// accumulated over the whole schedule.
func ScheduleTotals(schedule []domain.Installment) (installmentAmount, totalInterest decimal.Decimal) {
	if len(schedule) > 0 {
		installmentAmount = schedule[0].Amount
	}
	for i := range schedule {
		totalInterest = totalInterest.Add(schedule[i].Interest)
	}
	return installmentAmount, totalInterest
}
