package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leafsii/hugo/internal/db/entities"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds database configuration
type Config struct {
	Type     string // "sqlite", "postgres"
	DSN      string // file path for sqlite, connection string for postgres
	Table    string // defaults to entities.DefaultTable
	ReadOnly bool   // open without write access (sqlite only)
	Logger   *zap.SugaredLogger
}

// Database is an opened store holding the record table
type Database struct {
	sql     *sql.DB
	dialect Dialect
	schema  *interfaces.Schema
	dsn     string
	logger  *zap.SugaredLogger
}

// NewDatabase creates a new database handle based on configuration.
// No connection is made until Connect.
func NewDatabase(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}

	dialect, err := DialectFor(config.Type)
	if err != nil {
		return nil, err
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("%s: DSN is required", dialect.Name)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	table := config.Table
	if table == "" {
		table = entities.DefaultTable
	}

	dsn := config.DSN
	if dialect.Name == DriverSQLite {
		dsn = sqliteDSN(config.DSN, config.ReadOnly)
	}

	sqlDB, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, interfaces.Wrap("open", err)
	}
	if dialect.Name == DriverSQLite {
		// one connection: a pool of in-memory handles would each see an empty database
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Debugw("Opened database", "driver", dialect.Name, "table", table, "read_only", config.ReadOnly)

	return &Database{
		sql:     sqlDB,
		dialect: dialect,
		schema:  entities.RecordSchema.WithTable(table),
		dsn:     config.DSN,
		logger:  logger,
	}, nil
}

// OpenSource opens an existing SQLite store read-only, for import
func OpenSource(ctx context.Context, path string, logger *zap.SugaredLogger) (*Database, error) {
	db, err := NewDatabase(&Config{
		Type:     DriverSQLite,
		DSN:      path,
		ReadOnly: true,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ConnectAndMigrate connects to the database and creates the record table
func ConnectAndMigrate(ctx context.Context, db *Database) error {
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Connect verifies the store is reachable
func (d *Database) Connect(ctx context.Context) error {
	return interfaces.Wrap("connect", d.sql.PingContext(ctx))
}

// Migrate creates the record table if it does not exist yet
func (d *Database) Migrate(ctx context.Context) error {
	ddl, err := d.dialect.CreateTable(d.schema)
	if err != nil {
		return err
	}
	if _, err := d.sql.ExecContext(ctx, ddl); err != nil {
		return interfaces.Wrap("create table", err)
	}
	return nil
}

// Transaction runs fn inside one transaction. The transaction commits when
// fn returns nil and rolls back on an error or a panic.
func (d *Database) Transaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.Conn) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return interfaces.Wrap("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Warnw("Rollback failed", "error", rbErr)
		}
		return err
	}

	return interfaces.Wrap("commit", tx.Commit())
}

// Compact reclaims space freed by deletions. It must run outside a transaction.
func (d *Database) Compact(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx, d.dialect.Compact(d.schema.TableName))
	return interfaces.Wrap("compact", err)
}

// Conn exposes the pool for work outside an explicit transaction
func (d *Database) Conn() interfaces.Conn {
	return d.sql
}

func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) Schema() *interfaces.Schema {
	return d.schema
}

// DSN returns the path or connection string the database was opened with
func (d *Database) DSN() string {
	return d.dsn
}

func (d *Database) Close() error {
	return d.sql.Close()
}

func sqliteDSN(path string, readOnly bool) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	params := []string{"_time_format=sqlite"}
	if readOnly {
		params = append(params, "mode=ro")
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}
