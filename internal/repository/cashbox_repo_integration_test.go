//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"tallerpos/internal/infra"
	"tallerpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// Spins up a disposable Postgres and verifies the storage-level guarantees
// the unit tests can only fake: the partial unique index behind session
// uniqueness, the row lock, and the SQL fold.
//
//	go test -tags integration ./internal/repository/
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tallerpos_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func openTestSession(t *testing.T, repo CashboxRepository, register int) *model.CashSession {
	t.Helper()
	s := &model.CashSession{
		Register:     register,
		OpenedBy:     uuid.New(),
		OpenedAt:     time.Now().UTC(),
		OpeningFloat: decimal.RequireFromString("100.00"),
		State:        model.SessionOpen,
	}
	require.NoError(t, repo.CreateSession(context.Background(), s))
	return s
}

func TestPartialUniqueIndexSerializesOpens(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCashboxRepository(db)
	ctx := context.Background()

	openTestSession(t, repo, 1)

	// A second open session on the same register loses at the index.
	dup := &model.CashSession{
		Register:     1,
		OpenedBy:     uuid.New(),
		OpenedAt:     time.Now().UTC(),
		OpeningFloat: decimal.Zero,
		State:        model.SessionOpen,
	}
	err := repo.CreateSession(ctx, dup)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// A closed session on the register does not block a new open one.
	require.NoError(t, db.Model(&model.CashSession{}).
		Where("register = ?", 1).
		Update("state", model.SessionClosed).Error)
	openTestSession(t, repo, 1)
}

func TestConcurrentOpensExactlyOneWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCashboxRepository(db)
	ctx := context.Background()

	const attempts = 10
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateSession(ctx, &model.CashSession{
				Register:     5,
				OpenedBy:     uuid.New(),
				OpenedAt:     time.Now().UTC(),
				OpeningFloat: decimal.Zero,
				State:        model.SessionOpen,
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestSumMovementsByMethodFold(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCashboxRepository(db)
	s := openTestSession(t, repo, 1)

	movements := []struct{ kind, method, amount string }{
		{model.KindSale, model.MethodCash, "50.00"},
		{model.KindSale, model.MethodCard, "30.00"},
		{model.KindWithdrawal, model.MethodCash, "20.00"},
		{model.KindDeposit, model.MethodTransfer, "15.00"},
	}
	for _, m := range movements {
		require.NoError(t, repo.CreateMovementTx(db, &model.CashMovement{
			SessionID:  s.ID,
			Kind:       m.kind,
			Method:     m.method,
			Amount:     decimal.RequireFromString(m.amount),
			RecordedAt: time.Now().UTC(),
			RecordedBy: uuid.New(),
		}))
	}

	totals, err := repo.SumMovementsByMethod(db, s.ID)
	require.NoError(t, err)
	assert.True(t, totals.Cash.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, totals.Card.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, totals.Transfer.Equal(decimal.RequireFromString("15.00")))

	// A session with no movements folds to zero, not an error.
	empty := openTestSession(t, repo, 2)
	totals, err = repo.SumMovementsByMethod(db, empty.ID)
	require.NoError(t, err)
	assert.True(t, totals.Cash.IsZero())
}

func TestFindSessionForUpdateBlocksSecondLocker(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCashboxRepository(db)
	s := openTestSession(t, repo, 1)

	locked := make(chan struct{})
	release := make(chan struct{})
	secondDone := make(chan time.Time, 1)

	go func() {
		_ = db.Transaction(func(tx *gorm.DB) error {
			_, err := repo.FindSessionForUpdate(tx, s.ID)
			require.NoError(t, err)
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked
	start := time.Now()
	go func() {
		_ = db.Transaction(func(tx *gorm.DB) error {
			_, err := repo.FindSessionForUpdate(tx, s.ID)
			require.NoError(t, err)
			secondDone <- time.Now()
			return nil
		})
	}()

	time.Sleep(150 * time.Millisecond)
	close(release)

	got := <-secondDone
	assert.GreaterOrEqual(t, got.Sub(start), 100*time.Millisecond,
		"second FOR UPDATE must wait for the first transaction")
}

func TestListMovementsFiltersAndOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCashboxRepository(db)
	ctx := context.Background()
	s := openTestSession(t, repo, 1)

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	for i, m := range []struct{ kind, method string }{
		{model.KindSale, model.MethodCash},
		{model.KindWithdrawal, model.MethodCash},
		{model.KindSale, model.MethodCard},
	} {
		require.NoError(t, repo.CreateMovementTx(db, &model.CashMovement{
			SessionID:  s.ID,
			Kind:       m.kind,
			Method:     m.method,
			Amount:     decimal.RequireFromString("10.00"),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			RecordedBy: uuid.New(),
		}))
	}

	all, err := repo.ListMovements(ctx, s.ID, MovementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].RecordedAt.Before(all[1].RecordedAt))
	assert.True(t, all[1].RecordedAt.Before(all[2].RecordedAt))

	from := base.Add(30 * time.Second)
	filtered, err := repo.ListMovements(ctx, s.ID, MovementFilter{Method: model.MethodCash, From: &from})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, model.KindWithdrawal, filtered[0].Kind)
}
