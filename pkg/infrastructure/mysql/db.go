package mysql

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	connectRetries  = 5
	maxOpenConns    = 20
	connMaxLifetime = 5 * time.Minute
)

// Open connects to MySQL and waits until the server answers a ping. The DSN always gets
// parseTime and UTC so DATETIME columns scan into time.Time, and clientFoundRows so an
// UPDATE that matches a row never reports zero rows affected.
func Open(ctx context.Context, dsn string, logger logrus.FieldLogger) (*sqlx.DB, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(connMaxLifetime)

	ping := func() error { return db.PingContext(ctx) }
	notify := func(err error, next time.Duration) {
		logger.WithError(err).WithField("retry_in", next).Warn("mysql is not reachable yet")
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries), ctx)
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	logger.WithField("addr", cfg.Addr).Info("connected to mysql")
	return db, nil
}
