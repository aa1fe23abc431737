package ygggo_mysqlpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysql "github.com/go-sql-driver/mysql"
)

// countingDriver is a database/sql driver that only tracks how many
// connections exist at once. Queries return a single row {"1": 1} after delay.
//   - "BREAK" fails with mysql.ErrInvalidConn (connection-fatal)
//   - "FAIL" fails with a server error (connection stays usable)
type countingDriver struct {
	mu      sync.Mutex
	open    int
	maxOpen int
	opened  int

	delay time.Duration
	// failOpens makes the first N Open calls fail.
	failOpens int
	pingErr   error
}

var driverSeq atomic.Int64

// registerCountingDriver registers d under a fresh name and returns the name.
func registerCountingDriver(d *countingDriver) string {
	name := fmt.Sprintf("counting-%d", driverSeq.Add(1))
	sql.Register(name, d)
	return name
}

func (d *countingDriver) Open(string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOpens > 0 {
		d.failOpens--
		return nil, &mysql.MySQLError{Number: 1045, Message: "Access denied"}
	}
	d.open++
	d.opened++
	if d.open > d.maxOpen { d.maxOpen = d.open }
	return &countingConn{d: d}, nil
}

func (d *countingDriver) snapshot() (open, maxOpen, opened int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open, d.maxOpen, d.opened
}

type countingConn struct {
	d      *countingDriver
	closed bool
}

func (c *countingConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *countingConn) Begin() (driver.Tx, error)           { return nil, errors.New("tx not supported") }

func (c *countingConn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.d.open--
	}
	return nil
}

func (c *countingConn) Ping(context.Context) error { return c.d.pingErr }

func (c *countingConn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	select {
	case <-time.After(c.d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	switch query {
	case "BREAK":
		return nil, mysql.ErrInvalidConn
	case "FAIL":
		return nil, &mysql.MySQLError{Number: 1146, Message: "Table 'd.missing' doesn't exist"}
	}
	return &countingRows{}, nil
}

type countingRows struct{ done bool }

func (r *countingRows) Columns() []string { return []string{"1"} }
func (r *countingRows) Close() error      { return nil }
func (r *countingRows) Next(dest []driver.Value) error {
	if r.done { return io.EOF }
	r.done = true
	dest[0] = int64(1)
	return nil
}

// newCountingManager returns a Manager wired to a fresh counting driver.
func newCountingManager(t *testing.T, d *countingDriver, cfg Config) *Manager {
	t.Helper()
	cfg.Driver = registerCountingDriver(d)
	cfg.DSN = "counting"
	m, err := New(cfg)
	if err != nil { t.Fatalf("New: %v", err) }
	m.SetLogger(quietLogger())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// newMockManager returns a Manager whose pool talks to a sqlmock connection.
// The mock matches SQL text exactly.
func newMockManager(t *testing.T, cfg Config) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	dsn := fmt.Sprintf("sqlmock_%s_%d", t.Name(), driverSeq.Add(1))
	db, mock, err := sqlmock.NewWithDSN(dsn,
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	if err != nil { t.Fatalf("sqlmock.NewWithDSN: %v", err) }
	cfg.Driver = "sqlmock"
	cfg.DSN = dsn
	m, err := New(cfg)
	if err != nil { t.Fatalf("New: %v", err) }
	m.SetLogger(quietLogger())
	// Cleanups run last-in first-out: the manager closes before the mock db.
	t.Cleanup(func() { _ = db.Close() })
	t.Cleanup(func() { _ = m.Close() })
	return m, mock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitTimeout fails the test if ch does not deliver within d.
func waitTimeout[T any](t *testing.T, ch <-chan T, d time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		t.Fatalf("timed out after %v", d)
	}
	var zero T
	return zero
}
