package ygggo_mysqlpool

import "context"

// QueryRunner is the query surface of Manager, for callers that want to
// substitute a fake in their own tests.
type QueryRunner interface {
	Query(ctx context.Context, query string, params ...any) ([]Row, error)
	ExecuteQuery(ctx context.Context, query string, params []any, onComplete func(Result))
	QueryAsync(ctx context.Context, query string, params ...any) <-chan Result
}

// ConnPool defines connection lifecycle management.
type ConnPool interface {
	WithConn(ctx context.Context, fn func(*Conn) error) error
	Acquire(ctx context.Context) (*Conn, error)
	OpenTestConnection(ctx context.Context) error
	Stats() Stats
	Close() error
}

// Ensure our concrete types implement the interfaces at compile time
var (
	_ QueryRunner = (*Manager)(nil)
	_ ConnPool    = (*Manager)(nil)
)
