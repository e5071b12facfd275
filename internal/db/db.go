package db

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite

	"autograder/internal/migrations"
)

// Open migrates the database and connects to it. driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var drvName string
	switch driver {
	case "postgres", "pgx":
		drvName = "pgx"
	case "sqlite":
		drvName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := migrations.Run(driver, dsn); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", drvName, err)
	}
	if drvName == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
