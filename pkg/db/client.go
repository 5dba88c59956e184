package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/pkg/config"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

// connectBackoff is the first wait between startup pings.
var connectBackoff = 200 * time.Millisecond

type Client struct {
	conn *gorm.DB
}

// Pinger is the readiness surface shared by the DB, Redis and Pub/Sub clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the pool and blocks until the database answers a ping or
// cfg.ConnectRetries is spent. useSQLite opens cfg.SQLitePath instead of
// Postgres and is meant for local runs only.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	dialector, err := dialectorFor(cfg, useSQLite)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	tunePool(sqlDB, cfg, useSQLite)

	if err := waitReady(ctx, sqlDB, cfg.ConnectRetries, logg); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "sqlite", useSQLite), "database connection established")
	}
	return &Client{conn: conn}, nil
}

// FromGorm wraps an existing connection, e.g. an in-memory SQLite handle in tests.
func FromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialectorFor(cfg config.DBConfig, useSQLite bool) (gorm.Dialector, error) {
	if useSQLite {
		return sqlite.Open(cfg.SQLitePath), nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
}

func tunePool(sqlDB *sql.DB, cfg config.DBConfig, useSQLite bool) {
	switch {
	case useSQLite:
		// one writer; concurrent connections would hit SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if !useSQLite && cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func waitReady(ctx context.Context, sqlDB *sql.DB, retries uint64, logg *logger.Logger) error {
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(connectBackoff))
	backoff = retry.WithCappedDuration(5*time.Second, backoff)
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := sqlDB.PingContext(ctx); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "attempt", attempt), "database ping failed: "+err.Error())
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction. Returning an error or panicking rolls back;
// a panic is re-raised after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
