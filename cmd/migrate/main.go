// Command migrate applies the embedded SQL schema to the sessions
// database. Usage:
//
//	migrate [up|down|version|force <v>]
//
// With no argument it migrates up to the latest version.
package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appconfig "github.com/curasoft/emr-assist/internal/config"
	appmigrations "github.com/curasoft/emr-assist/migrations"
	"github.com/curasoft/emr-assist/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	m, cleanup, err := newMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to set up migrator", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migrate up failed", "error", err)
			os.Exit(1)
		}
		logger.Info("schema is up to date")
	case "down":
		if err := m.Steps(-1); err != nil {
			logger.Error("migrate down failed", "error", err)
			os.Exit(1)
		}
		logger.Info("rolled back one migration")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			logger.Error("failed to read version", "error", err)
			os.Exit(1)
		}
		logger.Info("current schema version", "version", v, "dirty", dirty)
	case "force":
		if len(os.Args) < 3 {
			logger.Error("force requires a version argument")
			os.Exit(1)
		}
		v, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logger.Error("invalid version", "error", err)
			os.Exit(1)
		}
		if err := m.Force(v); err != nil {
			logger.Error("force failed", "error", err)
			os.Exit(1)
		}
		logger.Info("forced schema version", "version", v)
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(1)
	}
}

func newMigrator(databaseURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, func() { _, _ = m.Close() }, nil
}
