package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// openMigrationDB opens a database/sql handle for goose; the app itself talks through pgxpool.
func openMigrationDB(dbURL string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}

	return sqlDB, nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, dbURL string) error {
	return RunMigrations(ctx, dbURL, "up")
}

// RunMigrations runs a goose command (up, down, status, reset, version) against dbURL.
func RunMigrations(ctx context.Context, dbURL, command string) error {
	sqlDB, err := openMigrationDB(dbURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := goose.RunContext(ctx, command, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
