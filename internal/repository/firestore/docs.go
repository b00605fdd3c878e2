package firestore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
)

// Monetary amounts are stored as fixed-point strings so documents survive
// round trips without binary-float drift.

type loanDoc struct {
	ID                string    `firestore:"id"`
	BorrowerID        string    `firestore:"borrowerId"`
	BorrowerName      string    `firestore:"borrowerName"`
	BorrowerEmail     string    `firestore:"borrowerEmail"`
	Principal         string    `firestore:"principal"`
	AnnualRate        float64   `firestore:"annualRate"`
	MonthlyRate       float64   `firestore:"monthlyRate"`
	TermMonths        int       `firestore:"termMonths"`
	InstallmentAmount string    `firestore:"installmentAmount"`
	TotalInterest     string    `firestore:"totalInterest"`
	TotalPayable      string    `firestore:"totalPayable"`
	StartDate         time.Time `firestore:"startDate"`
	CreatedAt         time.Time `firestore:"createdAt"`
	Status            string    `firestore:"status"`
	Schedule          []instDoc `firestore:"schedule"`
}

type instDoc struct {
	Seq              int        `firestore:"seq"`
	DueDate          time.Time  `firestore:"dueDate"`
	Amount           string     `firestore:"amount"`
	Interest         string     `firestore:"interest"`
	Principal        string     `firestore:"principal"`
	PrincipalPaid    string     `firestore:"principalPaid"`
	PenaltyPaid      string     `firestore:"penaltyPaid"`
	FrozenPenalty    string     `firestore:"frozenPenalty"`
	LastPenaltyTotal string     `firestore:"lastPenaltyTotal"`
	Status           string     `firestore:"status"`
	LastPaymentAt    *time.Time `firestore:"lastPaymentAt"`
	ReceiptNumber    string     `firestore:"receiptNumber"`
}

type paymentDoc struct {
	ID               string    `firestore:"id"`
	LoanID           string    `firestore:"loanId"`
	InstallmentSeq   int       `firestore:"installmentSeq"`
	BorrowerID       string    `firestore:"borrowerId"`
	Amount           string    `firestore:"amount"`
	PrincipalPortion string    `firestore:"principalPortion"`
	PenaltyPortion   string    `firestore:"penaltyPortion"`
	Method           string    `firestore:"method"`
	AmountReceived   string    `firestore:"amountReceived"`
	ExternalRef      string    `firestore:"externalRef"`
	ReceiptNumber    string    `firestore:"receiptNumber"`
	Cashier          string    `firestore:"cashier"`
	CreatedAt        time.Time `firestore:"createdAt"`
}

type sessionDoc struct {
	ID           string     `firestore:"id"`
	Date         string     `firestore:"date"`
	Status       string     `firestore:"status"`
	OpeningFloat string     `firestore:"openingFloat"`
	ClosingFloat string     `firestore:"closingFloat"`
	OpenedAt     time.Time  `firestore:"openedAt"`
	ClosedAt     *time.Time `firestore:"closedAt"`
	Cashier      string     `firestore:"cashier"`
}

type movementDoc struct {
	ID          string    `firestore:"id"`
	Date        string    `firestore:"date"`
	Type        string    `firestore:"type"`
	Amount      string    `firestore:"amount"`
	Description string    `firestore:"description"`
	Cashier     string    `firestore:"cashier"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// settlementRefDoc is the idempotency marker written in the same transaction
// as a gateway-triggered settlement.
type settlementRefDoc struct {
	PaymentID string    `firestore:"paymentId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type counterDoc struct {
	Last int64 `firestore:"last"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func toLoanDoc(l *domain.Loan) loanDoc {
	doc := loanDoc{
		ID:                l.ID,
		BorrowerID:        l.BorrowerID,
		BorrowerName:      l.BorrowerName,
		BorrowerEmail:     l.BorrowerEmail,
		Principal:         money(l.Principal),
		AnnualRate:        l.AnnualRate,
		MonthlyRate:       l.MonthlyRate,
		TermMonths:        l.TermMonths,
		InstallmentAmount: money(l.InstallmentAmount),
		TotalInterest:     money(l.TotalInterest),
		TotalPayable:      money(l.TotalPayable),
		StartDate:         l.StartDate,
		CreatedAt:         l.CreatedAt,
		Status:            string(l.Status),
		Schedule:          make([]instDoc, len(l.Schedule)),
	}
	for i := range l.Schedule {
		doc.Schedule[i] = toInstDoc(&l.Schedule[i])
	}
	return doc
}

func toInstDoc(in *domain.Installment) instDoc {
	return instDoc{
		Seq:              in.Seq,
		DueDate:          in.DueDate,
		Amount:           money(in.Amount),
		Interest:         money(in.Interest),
		Principal:        money(in.Principal),
		PrincipalPaid:    money(in.PrincipalPaid),
		PenaltyPaid:      money(in.PenaltyPaid),
		FrozenPenalty:    money(in.FrozenPenalty),
		LastPenaltyTotal: money(in.LastPenaltyTotal),
		Status:           string(in.Status),
		LastPaymentAt:    in.LastPaymentAt,
		ReceiptNumber:    in.ReceiptNumber,
	}
}

func fromLoanDoc(doc *loanDoc) (*domain.Loan, error) {
	loan := &domain.Loan{
		ID:            doc.ID,
		BorrowerID:    doc.BorrowerID,
		BorrowerName:  doc.BorrowerName,
		BorrowerEmail: doc.BorrowerEmail,
		AnnualRate:    doc.AnnualRate,
		MonthlyRate:   doc.MonthlyRate,
		TermMonths:    doc.TermMonths,
		StartDate:     doc.StartDate,
		CreatedAt:     doc.CreatedAt,
		Status:        domain.LoanStatus(doc.Status),
		Schedule:      make([]domain.Installment, len(doc.Schedule)),
	}

	var err error
	if loan.Principal, err = parseMoney("principal", doc.Principal); err != nil {
		return nil, err
	}
	if loan.InstallmentAmount, err = parseMoney("installmentAmount", doc.InstallmentAmount); err != nil {
		return nil, err
	}
	if loan.TotalInterest, err = parseMoney("totalInterest", doc.TotalInterest); err != nil {
		return nil, err
	}
	if loan.TotalPayable, err = parseMoney("totalPayable", doc.TotalPayable); err != nil {
		return nil, err
	}

	for i := range doc.Schedule {
		inst, err := fromInstDoc(&doc.Schedule[i])
		if err != nil {
			return nil, err
		}
		loan.Schedule[i] = inst
	}
	return loan, nil
}

func fromInstDoc(doc *instDoc) (domain.Installment, error) {
	inst := domain.Installment{
		Seq:           doc.Seq,
		DueDate:       doc.DueDate,
		Status:        domain.InstallmentStatus(doc.Status),
		LastPaymentAt: doc.LastPaymentAt,
		ReceiptNumber: doc.ReceiptNumber,
	}

	var err error
	if inst.Amount, err = parseMoney("amount", doc.Amount); err != nil {
		return inst, err
	}
	if inst.Interest, err = parseMoney("interest", doc.Interest); err != nil {
		return inst, err
	}
	if inst.Principal, err = parseMoney("principal", doc.Principal); err != nil {
		return inst, err
	}
	if inst.PrincipalPaid, err = parseMoney("principalPaid", doc.PrincipalPaid); err != nil {
		return inst, err
	}
	if inst.PenaltyPaid, err = parseMoney("penaltyPaid", doc.PenaltyPaid); err != nil {
		return inst, err
	}
	if inst.FrozenPenalty, err = parseMoney("frozenPenalty", doc.FrozenPenalty); err != nil {
		return inst, err
	}
	if inst.LastPenaltyTotal, err = parseMoney("lastPenaltyTotal", doc.LastPenaltyTotal); err != nil {
		return inst, err
	}
	return inst, nil
}

func toPaymentDoc(p *domain.Payment) paymentDoc {
	return paymentDoc{
		ID:               p.ID,
		LoanID:           p.LoanID,
		InstallmentSeq:   p.InstallmentSeq,
		BorrowerID:       p.BorrowerID,
		Amount:           money(p.Amount),
		PrincipalPortion: money(p.PrincipalPortion),
		PenaltyPortion:   money(p.PenaltyPortion),
		Method:           string(p.Method),
		AmountReceived:   money(p.AmountReceived),
		ExternalRef:      p.ExternalRef,
		ReceiptNumber:    p.ReceiptNumber,
		Cashier:          p.Cashier,
		CreatedAt:        p.CreatedAt,
	}
}

func fromPaymentDoc(doc *paymentDoc) (*domain.Payment, error) {
	p := &domain.Payment{
		ID:             doc.ID,
		LoanID:         doc.LoanID,
		InstallmentSeq: doc.InstallmentSeq,
		BorrowerID:     doc.BorrowerID,
		Method:         domain.PaymentMethod(doc.Method),
		ExternalRef:    doc.ExternalRef,
		ReceiptNumber:  doc.ReceiptNumber,
		Cashier:        doc.Cashier,
		CreatedAt:      doc.CreatedAt,
	}

	var err error
	if p.Amount, err = parseMoney("amount", doc.Amount); err != nil {
		return nil, err
	}
	if p.PrincipalPortion, err = parseMoney("principalPortion", doc.PrincipalPortion); err != nil {
		return nil, err
	}
	if p.PenaltyPortion, err = parseMoney("penaltyPortion", doc.PenaltyPortion); err != nil {
		return nil, err
	}
	if p.AmountReceived, err = parseMoney("amountReceived", doc.AmountReceived); err != nil {
		return nil, err
	}
	return p, nil
}

func toSessionDoc(s *domain.CashSession) sessionDoc {
	return sessionDoc{
		ID:           s.ID,
		Date:         s.Date,
		Status:       string(s.Status),
		OpeningFloat: money(s.OpeningFloat),
		ClosingFloat: money(s.ClosingFloat),
		OpenedAt:     s.OpenedAt,
		ClosedAt:     s.ClosedAt,
		Cashier:      s.Cashier,
	}
}

func fromSessionDoc(doc *sessionDoc) (*domain.CashSession, error) {
	s := &domain.CashSession{
		ID:       doc.ID,
		Date:     doc.Date,
		Status:   domain.CashSessionStatus(doc.Status),
		OpenedAt: doc.OpenedAt,
		ClosedAt: doc.ClosedAt,
		Cashier:  doc.Cashier,
	}

	var err error
	if s.OpeningFloat, err = parseMoney("openingFloat", doc.OpeningFloat); err != nil {
		return nil, err
	}
	if s.ClosingFloat, err = parseMoney("closingFloat", doc.ClosingFloat); err != nil {
		return nil, err
	}
	return s, nil
}

func toMovementDoc(m *domain.CashMovement) movementDoc {
	return movementDoc{
		ID:          m.ID,
		Date:        m.Date,
		Type:        string(m.Type),
		Amount:      money(m.Amount),
		Description: m.Description,
		Cashier:     m.Cashier,
		CreatedAt:   m.CreatedAt,
	}
}

func fromMovementDoc(doc *movementDoc) (*domain.CashMovement, error) {
	m := &domain.CashMovement{
		ID:          doc.ID,
		Date:        doc.Date,
		Type:        domain.CashMovementType(doc.Type),
		Description: doc.Description,
		Cashier:     doc.Cashier,
		CreatedAt:   doc.CreatedAt,
	}

	var err error
	if m.Amount, err = parseMoney("amount", doc.Amount); err != nil {
		return nil, err
	}
	return m, nil
}
