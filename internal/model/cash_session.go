package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session states. Closed is terminal — there is no reopen.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// Movement kinds. Sale and deposit add to the method total, withdrawal subtracts.
const (
	KindSale       = "sale"
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
)

// Payment methods. Only cash is subject to a physical count at close.
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
)

// CashSession is one open-to-close lifecycle of a till drawer.
//
// system_* columns are maintained incrementally while the session is open and
// overwritten by the authoritative movement fold at close. declared_*,
// variance, closed_at and closed_by are written exactly once, at close.
// At most one session per register may be open at a time — enforced by a
// partial unique index (see infra.applySchemaPatches).
type CashSession struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Register int       `gorm:"not null;index"`

	OpenedBy uuid.UUID  `gorm:"type:uuid;not null"`
	ClosedBy *uuid.UUID `gorm:"type:uuid"`
	OpenedAt time.Time  `gorm:"not null"`
	ClosedAt *time.Time

	// OpeningFloat is the operator-declared drawer content at open.
	// Immutable after open; not part of the system totals.
	OpeningFloat decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	SystemCash     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	SystemCard     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	SystemTransfer decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	DeclaredCash     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaredCard     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaredTransfer *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// Variance = declared cash − system cash. Positive = overage, negative =
	// shortage. Never auto-corrected.
	Variance *decimal.Decimal `gorm:"type:decimal(12,2)"`

	State string  `gorm:"type:varchar(10);not null;default:'open'"`
	Notes *string
}

// CashMovement is an immutable entry in the session ledger.
// Amount is always stored positive; the sign is derived from Kind when
// folding. Corrections are new offsetting movements, never edits.
type CashMovement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID uuid.UUID `gorm:"type:uuid;index;not null"`

	Kind   string          `gorm:"type:varchar(15);not null"`
	Method string          `gorm:"type:varchar(15);not null"`
	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	// Description is mandatory for deposit/withdrawal, optional for sale.
	Description string
	// ReferenceID links a sale movement to the originating order.
	ReferenceID *uuid.UUID `gorm:"type:uuid"`

	// RecordedAt is the explicit ordering key — listings sort on it, never
	// on storage insertion order.
	RecordedAt time.Time `gorm:"not null;index"`
	RecordedBy uuid.UUID `gorm:"type:uuid;not null"`
}

// Totals holds the per-method signed fold of a session's movements.
type Totals struct {
	Cash     decimal.Decimal
	Card     decimal.Decimal
	Transfer decimal.Decimal
}

// Get returns the total for a method.
func (t Totals) Get(method string) decimal.Decimal {
	switch method {
	case MethodCash:
		return t.Cash
	case MethodCard:
		return t.Card
	case MethodTransfer:
		return t.Transfer
	}
	return decimal.Zero
}

// Add accumulates amount into the method bucket and returns the result.
func (t Totals) Add(method string, amount decimal.Decimal) Totals {
	switch method {
	case MethodCash:
		t.Cash = t.Cash.Add(amount)
	case MethodCard:
		t.Card = t.Card.Add(amount)
	case MethodTransfer:
		t.Transfer = t.Transfer.Add(amount)
	}
	return t
}

// ValidKind reports whether k is a known movement kind.
func ValidKind(k string) bool {
	return k == KindSale || k == KindDeposit || k == KindWithdrawal
}

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m string) bool {
	return m == MethodCash || m == MethodCard || m == MethodTransfer
}

// SignedAmount returns the movement's effect on its method total:
// positive for sale/deposit, negative for withdrawal.
func (m CashMovement) SignedAmount() decimal.Decimal {
	if m.Kind == KindWithdrawal {
		return m.Amount.Neg()
	}
	return m.Amount
}

// SystemTotals returns the session's cached per-method totals.
func (s CashSession) SystemTotals() Totals {
	return Totals{Cash: s.SystemCash, Card: s.SystemCard, Transfer: s.SystemTransfer}
}
