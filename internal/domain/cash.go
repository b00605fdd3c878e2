package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashSessionStatus string

const (
	CashSessionOpen   CashSessionStatus = "OPEN"
	CashSessionClosed CashSessionStatus = "CLOSED"
)

// CashSession is one business day's drawer state. At most one session exists
// per local calendar day.
type CashSession struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"` // local calendar day, yyyy-mm-dd
	Status       CashSessionStatus `json:"status"`
	OpeningFloat decimal.Decimal   `json:"opening_float"`
	ClosingFloat decimal.Decimal   `json:"closing_float"`
	OpenedAt     time.Time         `json:"opened_at"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
	Cashier      string            `json:"cashier"`
}

type CashMovementType string

const (
	CashMovementIn  CashMovementType = "IN"
	CashMovementOut CashMovementType = "OUT"
)

// CashMovement is a manual cash in/out entry. Movements are append-only;
// corrections are made with inverse entries, never edits.
type CashMovement struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Type        CashMovementType `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	Cashier     string           `json:"cashier"`
	CreatedAt   time.Time        `json:"created_at"`
}

// DrawerSummary is the daily cash-reconciliation view.
type DrawerSummary struct {
	Date               string            `json:"date"`
	SessionStatus      CashSessionStatus `json:"session_status,omitempty"`
	OpeningFloat       decimal.Decimal   `json:"opening_float"`
	CashSales          decimal.Decimal   `json:"cash_sales"`
	DigitalSales       decimal.Decimal   `json:"digital_sales"`
	ManualCashIn       decimal.Decimal   `json:"manual_cash_in"`
	ManualCashOut      decimal.Decimal   `json:"manual_cash_out"`
	ExpectedCashOnHand decimal.Decimal   `json:"expected_cash_on_hand"`
}
