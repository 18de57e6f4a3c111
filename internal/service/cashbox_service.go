package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tallerpos/internal/dto"
	"tallerpos/internal/model"
	"tallerpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SessionLocker serializes operations on the same session across instances.
// Lock blocks until the lock is held or ctx expires; the returned func
// releases it.
type SessionLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// CloseReportDispatcher enqueues the post-close notification job.
type CloseReportDispatcher interface {
	EnqueueCloseReport(ctx context.Context, sessionID uuid.UUID) error
}

type CashboxService interface {
	Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	RecordMovement(ctx context.Context, operatorID uuid.UUID, req dto.RecordMovementRequest) (*dto.MovementResponse, error)
	Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.CloseSessionResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	// GetActive resolves the open session for a register as a query — there
	// is no in-process "current session" singleton.
	GetActive(ctx context.Context, register int) (*dto.SessionResponse, error)
	ListMovements(ctx context.Context, sessionID uuid.UUID, f repository.MovementFilter) ([]dto.MovementResponse, error)
	// ComputeTotals folds all movements of the session by method.
	ComputeTotals(ctx context.Context, sessionID uuid.UUID) (*dto.MethodTotals, error)
	History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error)
}

type cashboxService struct {
	repo       repository.CashboxRepository
	locker     SessionLocker
	dispatcher CloseReportDispatcher
	now        func() time.Time
}

// NewCashboxService wires the cashbox core. locker and dispatcher may be nil
// (unit tests, single-instance deployments without notifications).
func NewCashboxService(repo repository.CashboxRepository, locker SessionLocker, dispatcher CloseReportDispatcher) CashboxService {
	return &cashboxService{
		repo:       repo,
		locker:     locker,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func sessionLockKey(id uuid.UUID) string { return "cashbox:session:" + id.String() }

func (s *cashboxService) lockSession(ctx context.Context, id uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Lock(ctx, sessionLockKey(id))
}

// ── Open ─────────────────────────────────────────────────────────────────────

func (s *cashboxService) Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if req.Register < 1 {
		return nil, validationf("register must be a positive till number")
	}
	if req.OpeningFloat.IsNegative() {
		return nil, validationf("opening float must not be negative")
	}

	// Friendly pre-check; the partial unique index on (register) WHERE
	// state='open' is the guarantee that survives a concurrent race.
	existing, err := s.repo.FindOpenSessionByRegister(ctx, req.Register)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Reason: fmt.Sprintf("register %d already has an open session", req.Register)}
	}

	session := &model.CashSession{
		Register:     req.Register,
		OpenedBy:     operatorID,
		OpenedAt:     s.now().UTC(),
		OpeningFloat: req.OpeningFloat,
		State:        model.SessionOpen,
		Notes:        req.Notes,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Reason: fmt.Sprintf("register %d already has an open session", req.Register)}
		}
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("register", session.Register).
		Str("opened_by", operatorID.String()).
		Msg("cash session opened")

	resp := sessionToResponse(session)
	return &resp, nil
}

// ── RecordMovement ───────────────────────────────────────────────────────────
// The ledger is append-only: movements are never updated or deleted, and a
// movement can only be appended while its session is open. The append and the
// incremental totals update commit atomically under the session row lock.

func (s *cashboxService) RecordMovement(ctx context.Context, operatorID uuid.UUID, req dto.RecordMovementRequest) (*dto.MovementResponse, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, validationf("session_id is not a valid uuid")
	}
	if !model.ValidKind(req.Kind) {
		return nil, validationf("unknown movement kind %q", req.Kind)
	}
	if !model.ValidMethod(req.Method) {
		return nil, validationf("unknown payment method %q", req.Method)
	}
	if !req.Amount.IsPositive() {
		return nil, validationf("amount must be greater than zero")
	}
	if req.Kind != model.KindSale && strings.TrimSpace(req.Description) == "" {
		return nil, validationf("description is required for %s movements", req.Kind)
	}

	var referenceID *uuid.UUID
	if req.ReferenceID != nil {
		ref, err := uuid.Parse(*req.ReferenceID)
		if err != nil {
			return nil, validationf("reference_id is not a valid uuid")
		}
		referenceID = &ref
	}

	release, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	movement := &model.CashMovement{
		SessionID:   sessionID,
		Kind:        req.Kind,
		Method:      req.Method,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		ReferenceID: referenceID,
		RecordedAt:  s.now().UTC(),
		RecordedBy:  operatorID,
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		session, err := s.repo.FindSessionForUpdate(tx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "session", ID: sessionID.String()}
			}
			return err
		}
		if session.State != model.SessionOpen {
			return &InvalidStateError{Reason: "session is closed; the ledger is frozen"}
		}

		if err := s.repo.CreateMovementTx(tx, movement); err != nil {
			return err
		}

		// Incremental maintenance of the cached totals. The close fold is
		// still authoritative.
		signed := movement.SignedAmount()
		switch movement.Method {
		case model.MethodCash:
			session.SystemCash = session.SystemCash.Add(signed)
		case model.MethodCard:
			session.SystemCard = session.SystemCard.Add(signed)
		case model.MethodTransfer:
			session.SystemTransfer = session.SystemTransfer.Add(signed)
		}
		return s.repo.UpdateSessionTx(tx, session)
	})
	if txErr != nil {
		return nil, txErr
	}

	resp := movementToResponse(movement)
	return &resp, nil
}

// ── Close ────────────────────────────────────────────────────────────────────
// The only transition out of open, taken exactly once. System totals are
// recomputed by the full movement fold inside the same transaction that flips
// the state, so no movement recorded after the fold can be lost. An erroneous
// close is corrected by opening a new session, never by reopening.

func (s *cashboxService) Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.CloseSessionResponse, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, validationf("session_id is not a valid uuid")
	}
	declared := model.Totals{
		Cash:     req.Declared.Cash,
		Card:     req.Declared.Card,
		Transfer: req.Declared.Transfer,
	}
	for _, method := range []string{model.MethodCash, model.MethodCard, model.MethodTransfer} {
		if declared.Get(method).IsNegative() {
			return nil, validationf("declared %s total must not be negative", method)
		}
	}

	release, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		session  *model.CashSession
		warnings []string
	)
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		session, err = s.repo.FindSessionForUpdate(tx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "session", ID: sessionID.String()}
			}
			return err
		}
		if session.State != model.SessionOpen {
			return &InvalidStateError{Reason: "session is already closed"}
		}

		// Authoritative recomputation — the cached incremental totals are
		// discarded to guard against drift.
		system, err := s.repo.SumMovementsByMethod(tx, sessionID)
		if err != nil {
			return err
		}

		variance := cashVariance(system, declared)
		warnings = electronicWarnings(system, declared)

		now := s.now().UTC()
		session.SystemCash = system.Cash
		session.SystemCard = system.Card
		session.SystemTransfer = system.Transfer
		session.DeclaredCash = &declared.Cash
		session.DeclaredCard = &declared.Card
		session.DeclaredTransfer = &declared.Transfer
		session.Variance = &variance
		session.ClosedAt = &now
		session.ClosedBy = &operatorID
		session.State = model.SessionClosed
		if req.Notes != nil {
			session.Notes = req.Notes
		}
		return s.repo.UpdateSessionTx(tx, session)
	})
	if txErr != nil {
		return nil, txErr
	}

	evt := log.Info().
		Str("session_id", session.ID.String()).
		Int("register", session.Register).
		Str("variance", session.Variance.String())
	if len(warnings) > 0 {
		evt = evt.Strs("warnings", warnings)
	}
	evt.Msg("cash session closed")

	// Non-zero variance is business data for human review, never an error.
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueCloseReport(ctx, session.ID); err != nil {
			log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to enqueue close report")
		}
	}

	return &dto.CloseSessionResponse{
		Session:  sessionToResponse(session),
		Warnings: warnings,
	}, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *cashboxService) GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "session", ID: id.String()}
		}
		return nil, err
	}
	resp := sessionToResponse(session)
	return &resp, nil
}

func (s *cashboxService) GetActive(ctx context.Context, register int) (*dto.SessionResponse, error) {
	session, err := s.repo.FindOpenSessionByRegister(ctx, register)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Entity: "open session for register", ID: fmt.Sprint(register)}
	}
	resp := sessionToResponse(session)
	return &resp, nil
}

func (s *cashboxService) ListMovements(ctx context.Context, sessionID uuid.UUID, f repository.MovementFilter) ([]dto.MovementResponse, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx, sessionID, f)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.MovementResponse, len(movements))
	for i := range movements {
		resp[i] = movementToResponse(&movements[i])
	}
	return resp, nil
}

func (s *cashboxService) ComputeTotals(ctx context.Context, sessionID uuid.UUID) (*dto.MethodTotals, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	db := s.repo.DB()
	if db != nil {
		db = db.WithContext(ctx)
	}
	totals, err := s.repo.SumMovementsByMethod(db, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.MethodTotals{Cash: totals.Cash, Card: totals.Card, Transfer: totals.Transfer}, nil
}

func (s *cashboxService) History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error) {
	sessions, total, err := s.repo.ListClosedSessions(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		data[i] = sessionToResponse(&sessions[i])
	}
	return &dto.SessionListResponse{Data: data, Page: page, Limit: limit, Total: total}, nil
}

// ── Response mapping ─────────────────────────────────────────────────────────

func sessionToResponse(s *model.CashSession) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:           s.ID.String(),
		Register:     s.Register,
		State:        s.State,
		OpenedBy:     s.OpenedBy.String(),
		OpenedAt:     s.OpenedAt.UTC().Format(time.RFC3339),
		OpeningFloat: s.OpeningFloat,
		SystemTotals: dto.MethodTotals{
			Cash:     s.SystemCash,
			Card:     s.SystemCard,
			Transfer: s.SystemTransfer,
		},
		Variance: s.Variance,
		Notes:    s.Notes,
	}
	if s.ClosedBy != nil {
		cb := s.ClosedBy.String()
		resp.ClosedBy = &cb
	}
	if s.ClosedAt != nil {
		ca := s.ClosedAt.UTC().Format(time.RFC3339)
		resp.ClosedAt = &ca
	}
	if s.DeclaredCash != nil && s.DeclaredCard != nil && s.DeclaredTransfer != nil {
		resp.Declared = &dto.MethodTotals{
			Cash:     *s.DeclaredCash,
			Card:     *s.DeclaredCard,
			Transfer: *s.DeclaredTransfer,
		}
	}
	return resp
}

func movementToResponse(m *model.CashMovement) dto.MovementResponse {
	resp := dto.MovementResponse{
		ID:          m.ID.String(),
		SessionID:   m.SessionID.String(),
		Kind:        m.Kind,
		Method:      m.Method,
		Amount:      m.Amount,
		Description: m.Description,
		RecordedAt:  m.RecordedAt.UTC().Format(time.RFC3339),
		RecordedBy:  m.RecordedBy.String(),
	}
	if m.ReferenceID != nil {
		ref := m.ReferenceID.String()
		resp.ReferenceID = &ref
	}
	return resp
}
