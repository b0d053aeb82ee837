package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Direction selects which way migrations are applied.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Source returns the embedded migration set.
func Source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations",
	}
}

// Migrate applies the embedded migrations through database/sql with the
// lib/pq driver. max limits how many steps run; 0 means all.
func Migrate(ctx context.Context, databaseURL string, dir Direction, max int) (int, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return 0, fmt.Errorf("db: open: %w", err)
	}
	defer conn.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return 0, fmt.Errorf("db: ping: %w", err)
	}

	direction := migrate.Up
	if dir == Down {
		direction = migrate.Down
	}
	n, err := migrate.ExecMax(conn, "postgres", Source(), direction, max)
	if err != nil {
		return n, fmt.Errorf("db: migrate %s: %w", dir, err)
	}
	return n, nil
}

// Pending lists migration ids that have not been applied yet.
func Pending(ctx context.Context, databaseURL string) ([]string, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	planned, _, err := migrate.PlanMigration(conn, "postgres", Source(), migrate.Up, 0)
	if err != nil {
		return nil, fmt.Errorf("db: plan: %w", err)
	}
	ids := make([]string, 0, len(planned))
	for _, m := range planned {
		ids = append(ids, m.Id)
	}
	return ids, nil
}
