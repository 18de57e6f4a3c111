package infra

import (
	"fmt"

	"tallerpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// for the cashbox tables, then applies the idempotent SQL patches that GORM
// cannot express (the partial unique index guarding session uniqueness).
//
// TranslateError is enabled so unique-constraint violations surface as
// gorm.ErrDuplicatedKey, which the service maps to ConflictError.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates/updates the schema. Also used by integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Operator{},
		&model.CashSession{},
		&model.CashMovement{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
//
// The partial unique index is the storage-level guarantee behind "at most one
// open session per register": a concurrent double-open loses the race at the
// index, not at an in-process check, so the invariant survives restarts and
// multiple instances.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_cash_sessions_open_register') THEN
		    CREATE UNIQUE INDEX uni_cash_sessions_open_register
		        ON cash_sessions (register)
		        WHERE state = 'open';
		  END IF;
		END $$`,
		// covering index for the close-time fold and movement listings
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_cash_movements_session_recorded') THEN
		    CREATE INDEX idx_cash_movements_session_recorded
		        ON cash_movements (session_id, recorded_at);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
