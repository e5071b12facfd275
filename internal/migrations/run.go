package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var fs embed.FS

// Run applies all up migrations for driver ("postgres" or "sqlite") to dsn.
func Run(driver, dsn string) error {
	if dsn == "" {
		return errors.New("database dsn is not set")
	}
	dir, url, err := source(driver, dsn)
	if err != nil {
		return err
	}

	// iofs driver from embedded files
	d, err := iofs.New(fs, dir)
	if err != nil {
		return fmt.Errorf("iofs: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, url)
	if err != nil {
		return fmt.Errorf("migrate new: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func source(driver, dsn string) (dir, url string, err error) {
	switch driver {
	case "postgres", "pgx":
		return "postgres", dsn, nil
	case "sqlite":
		if !strings.HasPrefix(dsn, "sqlite://") {
			dsn = "sqlite://" + dsn
		}
		return "sqlite", dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported driver: %s", driver)
	}
}
