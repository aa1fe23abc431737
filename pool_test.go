package ygggo_mysqlpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_CreatedOnceAndReused(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 3})

	if _, _, opened := d.snapshot(); opened != 0 { t.Fatalf("no connection expected before first use, opened=%d", opened) }

	p1, err := m.Pool()
	if err != nil { t.Fatalf("Pool: %v", err) }
	p2, err := m.Pool()
	if err != nil { t.Fatalf("Pool: %v", err) }
	if p1 != p2 { t.Fatalf("expected the same pool on every call") }
	if got := p1.Stats().MaxOpenConnections; got != 3 { t.Fatalf("MaxOpenConnections=%d want 3", got) }
}

func TestPool_ErrClosedAfterClose(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{})
	if _, err := m.Query(context.Background(), "SELECT 1"); err != nil { t.Fatalf("Query: %v", err) }

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "Close must be idempotent")

	_, err := m.Pool()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.WithConn(context.Background(), func(*Conn) error { return nil }), ErrClosed)
	assert.ErrorIs(t, m.OpenTestConnection(context.Background()), ErrClosed)

	open, _, _ := d.snapshot()
	assert.Equal(t, 0, open, "Close must close every pooled connection")
}

func TestPool_CloseWithoutUse(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{})
	require.NoError(t, m.Close())
	_, _, opened := d.snapshot()
	assert.Equal(t, 0, opened)
}

func TestPool_SequentialQueriesReuseOneConnection(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 4})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rows, err := m.Query(ctx, "SELECT 1")
		if err != nil { t.Fatalf("Query %d: %v", i, err) }
		if len(rows) != 1 || rows[0]["1"] != int64(1) { t.Fatalf("rows=%v", rows) }
	}
	_, _, opened := d.snapshot()
	if opened != 1 { t.Fatalf("expected one physical connection, opened=%d", opened) }
	if s := m.Stats(); s.CheckedOut != 0 || s.Queries != 5 { t.Fatalf("stats=%+v", s) }
}

func TestPool_ConcurrencyNeverExceedsPoolSize(t *testing.T) {
	d := &countingDriver{delay: 30 * time.Millisecond}
	m := newCountingManager(t, d, Config{PoolSize: 2})

	const n = 8
	results := make(chan Result, n)
	for i := 0; i < n; i++ {
		m.ExecuteQuery(context.Background(), "SELECT 1", nil, func(r Result) { results <- r })
	}
	for i := 0; i < n; i++ {
		r := waitTimeout(t, results, 5*time.Second)
		if r.Err != nil { t.Fatalf("query %d: %v", i, r.Err) }
	}

	_, maxOpen, _ := d.snapshot()
	if maxOpen > 2 { t.Fatalf("driver saw %d simultaneous connections, pool size is 2", maxOpen) }
	s := m.Stats()
	if s.MaxCheckedOut > 2 { t.Fatalf("MaxCheckedOut=%d", s.MaxCheckedOut) }
	if s.CheckedOut != 0 { t.Fatalf("CheckedOut=%d after all queries finished", s.CheckedOut) }
}

func TestPool_ThreeQueriesTwoConnections(t *testing.T) {
	d := &countingDriver{delay: 20 * time.Millisecond}
	m := newCountingManager(t, d, Config{PoolSize: 2})

	var mu sync.Mutex
	calls := 0
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		m.ExecuteQuery(context.Background(), "SELECT 1", nil, func(r Result) {
			defer wg.Done()
			mu.Lock()
			calls++
			mu.Unlock()
			if r.Err != nil { t.Errorf("unexpected error: %v", r.Err) }
			if len(r.Rows) != 1 { t.Errorf("rows=%v", r.Rows) }
		})
	}
	wg.Wait()

	if calls != 3 { t.Fatalf("expected 3 callbacks, got %d", calls) }
	if _, maxOpen, _ := d.snapshot(); maxOpen > 2 { t.Fatalf("maxOpen=%d", maxOpen) }
}

func TestPool_ExtraQueryWaitsForRelease(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 1})
	ctx := context.Background()

	held, err := m.Acquire(ctx)
	if err != nil { t.Fatalf("Acquire: %v", err) }

	done := m.QueryAsync(ctx, "SELECT 1")
	select {
	case r := <-done:
		t.Fatalf("query completed while the only connection was checked out: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	held.Release(nil)
	r := waitTimeout(t, done, 2*time.Second)
	if r.Err != nil { t.Fatalf("query after release: %v", r.Err) }
	if s := m.Stats(); s.WaitCount < 1 { t.Fatalf("expected a recorded wait, stats=%+v", s) }
}

func TestPool_AcquireHonorsContext(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 1})

	held, err := m.Acquire(context.Background())
	if err != nil { t.Fatalf("Acquire: %v", err) }
	defer held.Release(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx)
	if !IsKind(err, ConnectFailure) { t.Fatalf("expected ConnectFailure, got %v", err) }
	if !errors.Is(err, context.DeadlineExceeded) { t.Fatalf("expected deadline cause, got %v", err) }
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 1})

	c, err := m.Acquire(context.Background())
	if err != nil { t.Fatalf("Acquire: %v", err) }
	c.Release(nil)
	c.Release(nil)
	if s := m.Stats(); s.CheckedOut != 0 { t.Fatalf("CheckedOut=%d", s.CheckedOut) }
	if _, err := c.Query(context.Background(), "SELECT 1"); !IsKind(err, ProtocolFailure) {
		t.Fatalf("query on a released connection must fail, got %v", err)
	}
	require.NoError(t, m.Close())
}

func TestPool_CloseWaitsForInFlightQueries(t *testing.T) {
	d := &countingDriver{delay: 80 * time.Millisecond}
	m := newCountingManager(t, d, Config{PoolSize: 2})

	results := make(chan Result, 2)
	m.ExecuteQuery(context.Background(), "SELECT 1", nil, func(r Result) { results <- r })
	m.ExecuteQuery(context.Background(), "SELECT 1", nil, func(r Result) { results <- r })

	if err := m.Close(); err != nil { t.Fatalf("Close: %v", err) }
	for i := 0; i < 2; i++ {
		if r := waitTimeout(t, results, 2*time.Second); r.Err != nil {
			t.Fatalf("in-flight query was cut off: %v", r.Err)
		}
	}
	if open, _, _ := d.snapshot(); open != 0 { t.Fatalf("open=%d after Close", open) }

	// new work after Close is rejected synchronously
	var got error
	m.ExecuteQuery(context.Background(), "SELECT 1", nil, func(r Result) { got = r.Err })
	if !errors.Is(got, ErrClosed) { t.Fatalf("expected ErrClosed, got %v", got) }
}

func TestPool_CloseWaitsForCheckedOutConnection(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 1})

	c, err := m.Acquire(context.Background())
	if err != nil { t.Fatalf("Acquire: %v", err) }

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case <-closed:
		t.Fatalf("Close returned while a connection was checked out")
	case <-time.After(50 * time.Millisecond):
	}

	// the borrowed connection stays usable until it is released
	if _, err := c.Query(context.Background(), "SELECT 1"); err != nil { t.Fatalf("Query on held conn: %v", err) }
	c.Release(nil)
	if err := waitTimeout(t, closed, 2*time.Second); err != nil { t.Fatalf("Close: %v", err) }
}

func TestPool_CloseWaitsForWithConnCallback(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{PoolSize: 1})

	inside := make(chan struct{})
	leave := make(chan struct{})
	withConnDone := make(chan error, 1)
	go func() {
		withConnDone <- m.WithConn(context.Background(), func(c *Conn) error {
			close(inside)
			<-leave
			_, err := c.Query(context.Background(), "SELECT 1")
			return err
		})
	}()
	<-inside

	// Close runs on its own goroutine; it may not run inside the callback.
	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case <-closed:
		t.Fatalf("Close returned while a WithConn callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(leave)
	if err := waitTimeout(t, withConnDone, 2*time.Second); err != nil { t.Fatalf("WithConn: %v", err) }
	if err := waitTimeout(t, closed, 2*time.Second); err != nil { t.Fatalf("Close: %v", err) }
	if open, _, _ := d.snapshot(); open != 0 { t.Fatalf("open=%d after Close", open) }
}

func TestPool_CloseFromCompletionHandler(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{})

	done := make(chan error, 1)
	m.ExecuteQuery(context.Background(), "SELECT 1", nil, func(Result) {
		done <- m.Close()
	})
	if err := waitTimeout(t, done, 2*time.Second); err != nil { t.Fatalf("Close: %v", err) }
}

func TestPool_NilCallbackIsAllowed(t *testing.T) {
	d := &countingDriver{}
	m := newCountingManager(t, d, Config{})
	m.ExecuteQuery(context.Background(), "SELECT 1", nil, nil)
	// Close waits for the query to finish.
	require.NoError(t, m.Close())
	assert.Equal(t, int64(1), m.Stats().Queries)
}
