package jobs

import (
	"context"
	"time"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/logger"
)

// SendOverdueReminders emails every borrower who has an overdue installment
// on a pending loan. Only the earliest overdue installment per loan is
// mentioned so borrowers get one actionable figure, not a ledger dump.
func (jr *JobRunner) SendOverdueReminders() {
	jr.runWithRecovery("SendOverdueReminders", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		loans, err := jr.store.Loans().ListPending(ctx)
		if err != nil {
			logger.Error("Failed to list pending loans", "job", "SendOverdueReminders", "error", err)
			return
		}

		now := time.Now()
		sent := 0
		for _, loan := range loans {
			if loan.BorrowerEmail == "" {
				continue
			}
			for i := range loan.Schedule {
				inst := &loan.Schedule[i]
				if inst.Settled() {
					continue
				}
				accrued, daysLate := jr.mora.Accrued(inst, now)
				if daysLate == 0 {
					break // schedule is ordered; nothing later is overdue either
				}

				totalDue := inst.OutstandingPrincipal().
					Add(accrued).
					Add(inst.FrozenPenalty).
					Sub(inst.PenaltyPaid)
				err := jr.services.Email.SendOverdueReminder(ctx,
					loan.BorrowerEmail, loan.BorrowerName, loan.ID, inst.Seq, daysLate, totalDue)
				if err != nil {
					logger.Error("Failed to send overdue reminder",
						"job", "SendOverdueReminders", "loan_id", loan.ID, "error", err)
				} else {
					sent++
				}
				break
			}
		}
		logger.Info("Overdue reminders processed", "job", "SendOverdueReminders", "sent", sent, "loans", len(loans))
	})
}

// LogDrawerSummary logs the end-of-day reconciliation figures and warns if
// the drawer session was never closed.
func (jr *JobRunner) LogDrawerSummary() {
	jr.runWithRecovery("LogDrawerSummary", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		summary, err := jr.services.Drawer.DaySummary(ctx, "")
		if err != nil {
			logger.Error("Failed to build drawer summary", "job", "LogDrawerSummary", "error", err)
			return
		}

		logger.Info("Daily drawer summary",
			"job", "LogDrawerSummary",
			"date", summary.Date,
			"opening_float", summary.OpeningFloat.StringFixed(2),
			"cash_sales", summary.CashSales.StringFixed(2),
			"digital_sales", summary.DigitalSales.StringFixed(2),
			"manual_in", summary.ManualCashIn.StringFixed(2),
			"manual_out", summary.ManualCashOut.StringFixed(2),
			"expected_cash", summary.ExpectedCashOnHand.StringFixed(2))

		if summary.SessionStatus == domain.CashSessionOpen {
			logger.Warn("Drawer session still open at end of day", "job", "LogDrawerSummary", "date", summary.Date)
		}
	})
}
