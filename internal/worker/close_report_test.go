package worker

import (
	"testing"
	"time"

	"tallerpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func closedSession(variance string) *model.CashSession {
	opened := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	closed := opened.Add(8 * time.Hour)
	declCash := decimal.RequireFromString("130.00")
	declCard := decimal.RequireFromString("30.00")
	declTransfer := decimal.Zero
	v := decimal.RequireFromString(variance)
	return &model.CashSession{
		ID:               uuid.New(),
		Register:         2,
		OpenedAt:         opened,
		ClosedAt:         &closed,
		OpeningFloat:     decimal.RequireFromString("100.00"),
		SystemCash:       decimal.RequireFromString("30.00"),
		SystemCard:       decimal.RequireFromString("30.00"),
		SystemTransfer:   decimal.Zero,
		DeclaredCash:     &declCash,
		DeclaredCard:     &declCard,
		DeclaredTransfer: &declTransfer,
		Variance:         &v,
		State:            model.SessionClosed,
	}
}

func TestBuildCloseReportBody(t *testing.T) {
	body := buildCloseReportBody(closedSession("100.00"))

	assert.Contains(t, body, "Register:       2")
	assert.Contains(t, body, "2026-03-15T09:00:00Z")
	assert.Contains(t, body, "Opening float:  100")
	assert.Contains(t, body, "System totals:   cash 30, card 30, transfer 0")
	assert.Contains(t, body, "Declared totals: cash 130, card 30, transfer 0")
	assert.Contains(t, body, "Cash variance:   100")
	assert.Contains(t, body, "overage")
}

func TestBuildCloseReportBodyShortage(t *testing.T) {
	body := buildCloseReportBody(closedSession("-12.50"))
	assert.Contains(t, body, "shortage")
}

func TestBuildCloseReportBodyCleanClose(t *testing.T) {
	body := buildCloseReportBody(closedSession("0"))
	assert.Contains(t, body, "clean close")
}

func TestBuildCloseReportBodyIncludesNotes(t *testing.T) {
	s := closedSession("0")
	notes := "drawer recounted twice"
	s.Notes = &notes
	assert.Contains(t, buildCloseReportBody(s), "drawer recounted twice")
}
