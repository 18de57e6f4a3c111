package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	Register     int             `json:"register"      validate:"required,min=1"`
	OpeningFloat decimal.Decimal `json:"opening_float" validate:"min=0"`
	Notes        *string         `json:"notes"`
}

// MethodTotals carries one amount per payment method, both for declarations
// at close and for totals in responses.
type MethodTotals struct {
	Cash     decimal.Decimal `json:"cash"     validate:"min=0"`
	Card     decimal.Decimal `json:"card"     validate:"min=0"`
	Transfer decimal.Decimal `json:"transfer" validate:"min=0"`
}

type CloseSessionRequest struct {
	SessionID string       `json:"session_id" validate:"required,uuid"`
	Declared  MethodTotals `json:"declared"   validate:"required"`
	Notes     *string      `json:"notes"`
}

type RecordMovementRequest struct {
	SessionID   string          `json:"session_id"   validate:"required,uuid"`
	Kind        string          `json:"kind"         validate:"required,oneof=sale deposit withdrawal"`
	Method      string          `json:"method"       validate:"required,oneof=cash card transfer"`
	Amount      decimal.Decimal `json:"amount"       validate:"required,gt=0"`
	Description string          `json:"description"`
	ReferenceID *string         `json:"reference_id" validate:"omitempty,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessionResponse struct {
	ID           string          `json:"id"`
	Register     int             `json:"register"`
	State        string          `json:"state"`
	OpenedBy     string          `json:"opened_by"`
	ClosedBy     *string         `json:"closed_by"`
	OpenedAt     string          `json:"opened_at"`
	ClosedAt     *string         `json:"closed_at"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
	SystemTotals MethodTotals    `json:"system_totals"`
	Declared     *MethodTotals   `json:"declared_totals"`
	// Variance = declared cash − system cash; present only once closed.
	Variance *decimal.Decimal `json:"variance"`
	Notes    *string          `json:"notes"`
}

type CloseSessionResponse struct {
	Session SessionResponse `json:"session"`
	// Warnings lists non-blocking electronic-payment mismatches.
	Warnings []string `json:"warnings,omitempty"`
}

type MovementResponse struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Kind        string          `json:"kind"`
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	ReferenceID *string         `json:"reference_id"`
	RecordedAt  string          `json:"recorded_at"`
	RecordedBy  string          `json:"recorded_by"`
}

type SessionListResponse struct {
	Data  []SessionResponse `json:"data"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Total int64             `json:"total"`
}
