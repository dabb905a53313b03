// Package storage is the Persistent Store adapter from spec §2
// ("relational + vector index adapter"): an ent/pgx-backed client for
// episodic events, heuristics and fires, grounded on the teacher's
// pkg/database/client.go (embedded migrations, explicit pool tuning,
// "close only the migration source driver, never the shared *sql.DB").
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gladys-ai/gladys/ent"
	"github.com/gladys-ai/gladys/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps the generated ent client together with the underlying
// *sql.DB so callers needing raw SQL (GIN index creation, cosine-distance
// fallback queries) can reach past the ORM, same as the teacher's
// database.Client.
type Client struct {
	*ent.Client
	db *sql.DB
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Close() error {
	return c.Client.Close()
}

// NewClient opens a pooled Postgres connection, wraps it for ent, and
// runs embedded migrations (including the GIN full-text indexes on
// episodic_events.raw_text and heuristics.condition_text).
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("storage: ping db: %w", err)
	}

	drv := entsql.OpenDB(dialect.Postgres, db)
	entClient := ent.NewClient(ent.Driver(drv))

	if err := runMigrations(ctx, db, cfg.DBName, drv); err != nil {
		return nil, fmt.Errorf("storage: migrations: %w", err)
	}

	return &Client{Client: entClient, db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB, dbName string, drv *entsql.Driver) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, dbDriver)
	if err != nil {
		return fmt.Errorf("new migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// Close only the source driver. Calling m.Close() would close the
	// shared *sql.DB out from under the rest of this process.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("close migration source: %w", err)
	}
	return CreateGINIndexes(ctx, drv)
}
