package ygggo_mysqlpool

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/jmoiron/sqlx"
)

// Conn wraps a single connection obtained from the pool.
// It is lent to exactly one caller and must be handed back with Release.
type Conn struct {
	inner *sqlx.Conn
	m     *Manager
	acq   time.Time
	done  bool
	// ownsSlot is set when Acquire registered in-flight work on the caller's behalf.
	ownsSlot bool
}

// WithConn acquires a connection, calls fn, and always gives the connection back.
// A connection-fatal error returned by fn discards the connection instead of
// returning it to service. fn must not call Close.
func (m *Manager) WithConn(ctx context.Context, fn func(*Conn) error) error {
	if err := m.begin(); err != nil { return err }
	defer m.end()
	return m.withConn(ctx, fn)
}

func (m *Manager) withConn(ctx context.Context, fn func(*Conn) error) (err error) {
	conn, err := m.acquire(ctx)
	if err != nil { return err }
	defer func() { conn.Release(err) }()
	return fn(conn)
}

// Acquire gets a connection from the pool, waiting while all PoolSize
// connections are checked out. Callers must call Release, and Close waits
// until they do.
func (m *Manager) Acquire(ctx context.Context) (*Conn, error) {
	if err := m.begin(); err != nil { return nil, err }
	c, err := m.acquire(ctx)
	if err != nil {
		m.end()
		return nil, err
	}
	c.ownsSlot = true
	return c, nil
}

// acquire is Acquire for callers that already registered in-flight work.
func (m *Manager) acquire(ctx context.Context) (*Conn, error) {
	db, err := m.pool()
	if err != nil { return nil, err }

	start := time.Now()
	inner, err := db.Connx(ctx)
	wait := time.Since(start)
	if err != nil {
		err = newError("acquire", ConnectFailure, err)
		m.logConnection(ctx, "acquire", wait, err)
		return nil, err
	}
	m.onCheckout()
	m.recordConnectionAcquired(ctx, wait)
	m.logConnection(ctx, "acquire", wait, nil)
	return &Conn{inner: inner, m: m, acq: time.Now()}, nil
}

// Release hands the connection back. cause is the error of the work done on the
// connection, if any: connection-fatal causes discard the connection so the pool
// replaces it on the next acquisition. Release is idempotent.
func (c *Conn) Release(cause error) {
	if c == nil || c.done { return }
	c.done = true
	held := time.Since(c.acq)
	ctx := context.Background()
	// Uncount before the connection becomes available to the next waiter.
	c.m.onReturn()

	if IsConnFatal(cause) {
		c.discard()
		c.m.discarded.Add(1)
		c.m.recordConnectionDiscarded(ctx)
		c.m.logConnection(ctx, "discard", held, cause)
	} else {
		err := c.inner.Close()
		c.m.logConnection(ctx, "release", held, err)
	}
	c.m.recordConnectionReleased(ctx, held)
	if c.ownsSlot { c.m.end() }
}

// discard tells database/sql the driver connection is bad; the pool closes it
// instead of putting it back on the idle list.
func (c *Conn) discard() {
	_ = c.inner.Raw(func(any) error { return driver.ErrBadConn })
	// Raw already released the connection; Close only marks the wrapper done.
	_ = c.inner.Close()
}

func (m *Manager) onCheckout() {
	n := m.checkedOut.Add(1)
	for {
		hi := m.maxCheckedOut.Load()
		if n <= hi || m.maxCheckedOut.CompareAndSwap(hi, n) { return }
	}
}

func (m *Manager) onReturn() { m.checkedOut.Add(-1) }
