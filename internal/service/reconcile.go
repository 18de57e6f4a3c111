package service

// reconcile.go — pure reconciliation rules applied at close.
// Cash is the only method with a physical count, so it is the only one that
// produces a variance. Card/transfer mismatches are surfaced as warnings and
// never block the close.

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tallerpos/internal/model"
)

// foldTotals computes the per-method signed fold over a movement set:
// sale/deposit add, withdrawal subtracts.
func foldTotals(movements []model.CashMovement) model.Totals {
	var t model.Totals
	for _, m := range movements {
		t = t.Add(m.Method, m.SignedAmount())
	}
	return t
}

// cashVariance returns declared cash minus system cash.
// Positive = overage, negative = shortage. Zero is a clean close.
func cashVariance(system, declared model.Totals) decimal.Decimal {
	return declared.Cash.Sub(system.Cash)
}

// electronicWarnings compares card/transfer declarations against the system
// totals. Mismatches are reported for human review, not enforced — there is
// no drawer to count for electronic payments.
func electronicWarnings(system, declared model.Totals) []string {
	var warnings []string
	for _, method := range []string{model.MethodCard, model.MethodTransfer} {
		sys, dec := system.Get(method), declared.Get(method)
		if !dec.Equal(sys) {
			warnings = append(warnings, fmt.Sprintf(
				"declared %s total %s differs from system total %s",
				method, dec.String(), sys.String()))
		}
	}
	return warnings
}
