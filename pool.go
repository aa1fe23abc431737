package ygggo_mysqlpool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/metric"
)

// Manager owns one lazily created connection pool and runs queries against it.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	db       *sqlx.DB
	closed   bool // no new work accepted
	dbClosed bool // pool torn down
	inflight sync.WaitGroup

	logger             *slog.Logger
	loggingEnabled     bool
	slowQueryThreshold time.Duration

	telemetryEnabled bool

	metricsEnabled bool
	meterProvider  metric.MeterProvider
	metrics        *Metrics

	checkedOut    atomic.Int64
	maxCheckedOut atomic.Int64
	discarded     atomic.Int64
	queries       atomic.Int64
	failures      atomic.Int64
}

// New captures cfg and returns a Manager. No connection is opened here.
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Manager{
		cfg:                cfg,
		logger:             defaultLogger,
		loggingEnabled:     true,
		slowQueryThreshold: cfg.SlowQueryThreshold,
	}, nil
}

// Config returns the effective (defaulted) configuration.
func (m *Manager) Config() Config { return m.cfg }

// Pool returns the connection pool, creating it on first use. The same pool is
// returned for the lifetime of the Manager.
func (m *Manager) Pool() (*sqlx.DB, error) {
	if m.isClosed() { return nil, ErrClosed }
	return m.pool()
}

func (m *Manager) pool() (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dbClosed { return nil, ErrClosed }
	if m.db != nil { return m.db, nil }

	start := time.Now()
	db, err := m.openDB()
	if err != nil {
		err = newError("pool_open", ConnectFailure, err)
		m.logConnection(context.Background(), "pool_open", time.Since(start), err)
		return nil, err
	}
	db.SetMaxOpenConns(m.cfg.PoolSize)
	db.SetMaxIdleConns(m.cfg.MaxIdle)
	db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(m.cfg.ConnMaxIdleTime)
	m.db = sqlx.NewDb(db, m.cfg.Driver)
	m.logConnection(context.Background(), "pool_open", time.Since(start), nil)
	return m.db, nil
}

// openDB prepares a *sql.DB; sql.OpenDB and sql.Open do not dial.
func (m *Manager) openDB() (*sql.DB, error) {
	if !m.cfg.usesMySQLDriver() {
		return sql.Open(m.cfg.Driver, m.cfg.DSN)
	}
	mc, err := m.cfg.mysqlConfig()
	if err != nil { return nil, err }
	connector, err := mysql.NewConnector(mc)
	if err != nil { return nil, err }
	return sql.OpenDB(connector), nil
}

// Close stops accepting work, waits for in-flight queries and checked-out
// connections, then closes every pooled connection. It is safe to call more than once.
// Close must not be called from inside a WithConn callback or while holding a
// Conn from Acquire: it would wait for that work, which waits for Close.
// ExecuteQuery handlers may call it.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.inflight.Wait()

	m.mu.Lock()
	db := m.db
	m.dbClosed = true
	m.mu.Unlock()
	if db == nil { return nil }

	start := time.Now()
	err := db.Close()
	m.logConnection(context.Background(), "pool_close", time.Since(start), err)
	return err
}

// Stats represents connection pool statistics.
type Stats struct {
	PoolSize     int
	MaxIdle      int
	Open         int
	InUse        int
	Idle         int
	WaitCount    int64
	WaitDuration time.Duration

	// CheckedOut is the number of connections currently lent to callers and
	// MaxCheckedOut its high-water mark.
	CheckedOut    int
	MaxCheckedOut int
	Discarded     int64
	Queries       int64
	Failures      int64
}

// Stats returns current pool statistics. Driver-level fields are zero until
// the pool has been created.
func (m *Manager) Stats() Stats {
	s := Stats{
		PoolSize:      m.cfg.PoolSize,
		MaxIdle:       m.cfg.MaxIdle,
		CheckedOut:    int(m.checkedOut.Load()),
		MaxCheckedOut: int(m.maxCheckedOut.Load()),
		Discarded:     m.discarded.Load(),
		Queries:       m.queries.Load(),
		Failures:      m.failures.Load(),
	}
	m.mu.Lock()
	db := m.db
	m.mu.Unlock()
	if db == nil { return s }
	ds := db.Stats()
	s.Open = ds.OpenConnections
	s.InUse = ds.InUse
	s.Idle = ds.Idle
	s.WaitCount = ds.WaitCount
	s.WaitDuration = ds.WaitDuration
	return s
}

// begin registers one unit of in-flight work; end must follow.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed { return ErrClosed }
	m.inflight.Add(1)
	return nil
}

func (m *Manager) end() { m.inflight.Done() }

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
