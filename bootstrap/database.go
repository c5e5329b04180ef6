package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artpar/typemap/adapters/mysql"
	"github.com/artpar/typemap/adapters/postgres"
	"github.com/artpar/typemap/adapters/sqlite"
	"github.com/artpar/typemap/config"
	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/typemap"
)

// Database is the configured schema backend: a connection, the column
// source reading from it, and the type map for its SQL dialect.
type Database struct {
	Driver string
	Types  *sqltypes.Map
	Source schema.Source

	// Exactly one of these is set, matching Driver.
	SQLite   *sqlite.DB
	Postgres *pgxpool.Pool
	MySQL    *sql.DB

	// Records stores rows of models backed by SQLite.
	Records *sqlite.RecordStore
}

// OpenDatabase connects to the configured database. opts are applied to
// the dialect's type map.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, opts ...typemap.Option) (*Database, error) {
	tm, err := NewTypeMap(cfg.Driver, opts...)
	if err != nil {
		return nil, err
	}
	d := &Database{Driver: cfg.Driver, Types: tm}

	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		d.SQLite = db
		d.Source = sqlite.NewSource(db)
		d.Records = sqlite.NewRecordStore(db)

	case "postgres":
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		d.Postgres = pool
		d.Source = postgres.NewSource(pool, cfg.Schema)

	case "mysql":
		db, err := mysql.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		d.MySQL = db
		d.Source = mysql.NewSource(db)
	}

	return d, nil
}

// NewTypeMap returns the type map for a driver's SQL dialect. It needs no
// connection.
func NewTypeMap(driver string, opts ...typemap.Option) (*sqltypes.Map, error) {
	switch driver {
	case "sqlite":
		return sqlite.NewTypeMap(opts...), nil
	case "postgres":
		return postgres.NewTypeMap(opts...), nil
	case "mysql":
		return mysql.NewTypeMap(opts...), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// HealthCheck pings the connection.
func (d *Database) HealthCheck(ctx context.Context) error {
	switch {
	case d.SQLite != nil:
		return d.SQLite.PingContext(ctx)
	case d.Postgres != nil:
		return d.Postgres.Ping(ctx)
	case d.MySQL != nil:
		return d.MySQL.PingContext(ctx)
	}
	return fmt.Errorf("database not open")
}

// Close closes the connection.
func (d *Database) Close() error {
	switch {
	case d.SQLite != nil:
		return d.SQLite.Close()
	case d.Postgres != nil:
		d.Postgres.Close()
	case d.MySQL != nil:
		return d.MySQL.Close()
	}
	return nil
}
