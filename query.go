package ygggo_mysqlpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result carries either the rows of a query or the typed reason it failed.
type Result struct {
	Rows []Row
	Err  error
}

// Query runs query on this connection with args bound positionally by the driver.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if c == nil || c.inner == nil || c.done { return nil, newError("query", ProtocolFailure, sql.ErrConnDone) }
	rs, err := c.inner.QueryxContext(ctx, query, args...)
	if err != nil { return nil, queryError(err) }
	defer rs.Close()

	out := make([]Row, 0)
	for rs.Next() {
		row := make(map[string]any)
		if err := rs.MapScan(row); err != nil { return nil, queryError(err) }
		out = append(out, normalizeRow(row))
	}
	if err := rs.Err(); err != nil { return nil, queryError(err) }
	return out, nil
}

// queryError classifies an error raised after the connection was obtained.
// A query interrupted by its context leaves the session in an unknown state,
// so it is treated as connection-fatal.
func queryError(err error) error {
	kind := Classify(err)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = ProtocolFailure
	case kind == UnknownFailure, kind == ConnectFailure:
		kind = QueryFailure
	}
	return newError("query", kind, err)
}

// normalizeRow turns text-protocol []byte values into strings.
func normalizeRow(row map[string]any) Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok { row[k] = string(b) }
	}
	return Row(row)
}

// Query acquires a pooled connection, runs query and releases the connection.
// The number of ? placeholders must equal len(params); otherwise nothing is sent.
func (m *Manager) Query(ctx context.Context, query string, params ...any) ([]Row, error) {
	if err := m.begin(); err != nil { return nil, err }
	defer m.end()
	return m.query(ctx, query, params)
}

func (m *Manager) query(ctx context.Context, query string, params []any) (rows []Row, err error) {
	id := uuid.NewString()
	start := time.Now()
	ctx, span := m.startSpan(ctx, "query", query, id)
	defer func() {
		d := time.Since(start)
		m.queries.Add(1)
		if err != nil {
			m.failures.Add(1)
			rows = nil
		}
		m.finishSpan(span, err)
		m.recordQuery(ctx, "query", d, err)
		m.logQuery(ctx, id, "query", query, params, d, err)
	}()

	if want := countPlaceholders(query); want != len(params) {
		return nil, &Error{
			Kind: QueryFailure,
			Op:   "bind",
			Err:  fmt.Errorf("%w: %d placeholders, %d params", ErrParamCount, want, len(params)),
		}
	}
	err = m.withConn(ctx, func(c *Conn) error {
		var qerr error
		rows, qerr = c.Query(ctx, query, params...)
		return qerr
	})
	return rows, err
}

// ExecuteQuery runs query asynchronously and calls onComplete exactly once with
// either the rows or a typed *Error. After Close, onComplete is called
// immediately, on the caller's goroutine, with ErrClosed. onComplete may be nil.
func (m *Manager) ExecuteQuery(ctx context.Context, query string, params []any, onComplete func(Result)) {
	if onComplete == nil { onComplete = func(Result) {} }
	if err := m.begin(); err != nil {
		onComplete(Result{Err: err})
		return
	}
	go func() {
		onComplete(m.runRegistered(ctx, query, params))
	}()
}

// runRegistered executes work already counted by begin and releases the count
// before the result is delivered, so a handler may safely call Close.
func (m *Manager) runRegistered(ctx context.Context, query string, params []any) Result {
	defer m.end()
	rows, err := m.query(ctx, query, params)
	return Result{Rows: rows, Err: err}
}

// QueryAsync is ExecuteQuery with a channel: exactly one Result is sent, then
// the channel is closed.
func (m *Manager) QueryAsync(ctx context.Context, query string, params ...any) <-chan Result {
	ch := make(chan Result, 1)
	m.ExecuteQuery(ctx, query, params, func(r Result) {
		ch <- r
		close(ch)
	})
	return ch
}
