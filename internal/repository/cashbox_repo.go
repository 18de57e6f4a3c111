package repository

import (
	"context"
	"time"

	"tallerpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementFilter narrows a movement listing. Zero values mean "no filter".
type MovementFilter struct {
	Kind   string
	Method string
	From   *time.Time
	To     *time.Time
}

// CashboxRepository is the persistence contract for sessions and movements.
//
// The *Tx methods run inside a caller-managed transaction so that the service
// can make the state check, the movement append and the totals update one
// atomic unit. DB() exposes the handle for that transaction; it is nil in
// unit tests, which run the same service code without a database.
type CashboxRepository interface {
	DB() *gorm.DB

	CreateSession(ctx context.Context, s *model.CashSession) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	// FindOpenSessionByRegister returns (nil, nil) when no session is open.
	FindOpenSessionByRegister(ctx context.Context, register int) (*model.CashSession, error)
	ListClosedSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error)

	// FindSessionForUpdate locks the session row for the rest of the
	// transaction, serializing concurrent movement recording and close.
	FindSessionForUpdate(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	UpdateSessionTx(tx *gorm.DB, s *model.CashSession) error
	CreateMovementTx(tx *gorm.DB, m *model.CashMovement) error
	// SumMovementsByMethod is the authoritative signed fold: sale/deposit
	// add, withdrawal subtracts, grouped by payment method.
	SumMovementsByMethod(tx *gorm.DB, sessionID uuid.UUID) (model.Totals, error)

	ListMovements(ctx context.Context, sessionID uuid.UUID, f MovementFilter) ([]model.CashMovement, error)
}

type cashboxRepo struct{ db *gorm.DB }

func NewCashboxRepository(db *gorm.DB) CashboxRepository { return &cashboxRepo{db: db} }

func (r *cashboxRepo) DB() *gorm.DB { return r.db }

func (r *cashboxRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cashboxRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashboxRepo) FindOpenSessionByRegister(ctx context.Context, register int) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("register = ? AND state = ?", register, model.SessionOpen).
		First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashboxRepo) ListClosedSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.CashSession{}).Where("state = ?", model.SessionClosed)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []model.CashSession
	err := q.Order("closed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

func (r *cashboxRepo) FindSessionForUpdate(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashboxRepo) UpdateSessionTx(tx *gorm.DB, s *model.CashSession) error {
	return tx.Save(s).Error
}

func (r *cashboxRepo) CreateMovementTx(tx *gorm.DB, m *model.CashMovement) error {
	return tx.Create(m).Error
}

func (r *cashboxRepo) SumMovementsByMethod(tx *gorm.DB, sessionID uuid.UUID) (model.Totals, error) {
	rows := []struct {
		Method string
		Total  decimal.Decimal
	}{}
	err := tx.Model(&model.CashMovement{}).
		Select("method, COALESCE(SUM(CASE WHEN kind = ? THEN -amount ELSE amount END), 0) AS total", model.KindWithdrawal).
		Where("session_id = ?", sessionID).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return model.Totals{}, err
	}

	var t model.Totals
	for _, row := range rows {
		t = t.Add(row.Method, row.Total)
	}
	return t, nil
}

func (r *cashboxRepo) ListMovements(ctx context.Context, sessionID uuid.UUID, f MovementFilter) ([]model.CashMovement, error) {
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}
	if f.From != nil {
		q = q.Where("recorded_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("recorded_at <= ?", *f.To)
	}

	var movements []model.CashMovement
	// Explicit ordering on recorded_at — storage return order is not trusted.
	err := q.Order("recorded_at ASC").Find(&movements).Error
	return movements, err
}
