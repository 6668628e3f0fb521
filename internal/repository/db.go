package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
)

// DB is an open SQL store with the dialect its statements are built for.
type DB struct {
	SQL     *sql.DB
	Dialect string
	pool    *pgxpool.Pool
}

func (db *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.Dialect)
}

// Open connects to the configured driver and applies the schema.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = OpenPostgres(ctx, cfg, logger)
	case "sqlite":
		db, err = OpenSQLite(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}
	return db, nil
}

// OpenPostgres creates a pgx pool and wraps it as *sql.DB.
func OpenPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres", "dsn", redact(cfg.DSN))
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "boq-matcher"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return &DB{SQL: stdlib.OpenDBFromPool(pool), Dialect: dialect.Postgres, pool: pool}, nil
}

// OpenSQLite opens an embedded database file. In-memory databases are
// pinned to a single connection so every query sees the same data.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", dsn)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	return &DB{SQL: sqlDB, Dialect: dialect.SQLite}, nil
}

// Close closes the database connections gracefully.
func (db *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.SQL.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the store to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.pool != nil {
		if err := db.pool.Ping(ctx); err != nil {
			return common.WrapError(err, "ping postgres")
		}
	} else if err := db.SQL.PingContext(ctx); err != nil {
		return common.WrapError(err, "ping sqlite")
	}
	logger.Debug("database ping successful")
	return nil
}

func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
