package ygggo_mysqlpool

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// OpenTestConnection dials a single connection outside the pool, pings it and
// closes it again. It is a startup/health diagnostic: it does not count
// against PoolSize and must not be used to run application queries.
// The handshake is bounded by Config.ConnectTimeout. Failures are *Error
// values of kind ConnectFailure.
func (m *Manager) OpenTestConnection(ctx context.Context) (err error) {
	if m.isClosed() { return ErrClosed }
	start := time.Now()
	defer func() { m.logTestConnection(ctx, time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	db, err := m.openDB()
	if err != nil { return newError("test_connection", ConnectFailure, err) }
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	conn, err := db.Conn(ctx)
	if err != nil { return newError("test_connection", ConnectFailure, err) }
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return newError("test_connection", ConnectFailure, err)
	}
	return nil
}

// BackoffPolicy controls WaitForServer.
type BackoffPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxElapsed stops retrying; 0 means retry until ctx is done.
	MaxElapsed time.Duration
}

// DefaultBackoffPolicy waits up to a minute, doubling from 200ms to 5s.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		MaxElapsed:      time.Minute,
	}
}

// WaitForServer repeats OpenTestConnection with exponential backoff until the
// server accepts a connection. Intended for process startup; queries never retry.
func (m *Manager) WaitForServer(ctx context.Context, pol BackoffPolicy) error {
	b := backoff.NewExponentialBackOff()
	if pol.InitialInterval > 0 { b.InitialInterval = pol.InitialInterval }
	if pol.MaxInterval > 0 { b.MaxInterval = pol.MaxInterval }
	if pol.Multiplier >= 1 { b.Multiplier = pol.Multiplier }
	b.MaxElapsedTime = pol.MaxElapsed

	attempt := 0
	op := func() error {
		attempt++
		err := m.OpenTestConnection(ctx)
		if errors.Is(err, ErrClosed) { return backoff.Permanent(err) }
		return err
	}
	notify := func(err error, next time.Duration) {
		m.logRetry(ctx, attempt, next, err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
