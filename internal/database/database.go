package database

import (
	"context"
	"embed"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/tgdrive/paperlink/internal/config"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const connectAttempts = 5

// NewDatabase opens a pgx pool. Only the initial connect is retried, calls
// made through the pool fail straight to the caller.
func NewDatabase(ctx context.Context, cfg *config.StoreConfig, lg *zap.SugaredLogger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DataSource)
	if err != nil {
		return nil, errors.Wrap(err, "parse data source")
	}
	if cfg.Pool.MaxOpenConnections > 0 {
		poolConfig.MaxConns = int32(cfg.Pool.MaxOpenConnections)
	}
	if cfg.Pool.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.Pool.MaxLifetime
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), connectAttempts), ctx)
	err = backoff.RetryNotify(connect, b, func(err error, _ time.Duration) {
		lg.Warnw("failed to open database", "err", err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	return pool, nil
}

func MigrateDB(ctx context.Context, pool *pgxpool.Pool, lg *zap.SugaredLogger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(&gooseLogger{lg: lg})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

type gooseLogger struct {
	lg *zap.SugaredLogger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.lg.Fatalf(format, v...)
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.lg.Infof(format, v...)
}
