// Package ygggo_mysqlpool manages a bounded MySQL connection pool and runs
// parameterized queries against it.
//
// # Overview
//
// A Manager captures a Config, creates its pool on first use and reuses that
// pool until Close. Every query borrows one connection, binds its parameters
// positionally through the driver and gives the connection back, or discards
// it when the failure left the connection unusable.
//
//	m, err := ygggo_mysqlpool.New(ygggo_mysqlpool.Config{
//		Host:     "localhost",
//		Port:     3306,
//		Username: "app",
//		Password: "secret",
//		Database: "shop",
//		PoolSize: 5,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.OpenTestConnection(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	rows, err := m.Query(ctx, "SELECT id, name FROM users WHERE id = ?", 42)
//
// # Asynchronous queries
//
// ExecuteQuery runs in the background and calls its handler exactly once,
// with rows on success and a typed *Error on failure:
//
//	m.ExecuteQuery(ctx, "SELECT 1", nil, func(r ygggo_mysqlpool.Result) {
//		if r.Err != nil {
//			// ConnectFailure, QueryFailure or ProtocolFailure
//			return
//		}
//		use(r.Rows)
//	})
//
// # Errors
//
// Failures are classified as ConnectFailure, QueryFailure or ProtocolFailure.
// A ProtocolFailure discards the connection that produced it so the pool
// never hands a broken connection to the next caller.
//
// # Configuration
//
// Config can be built in code, loaded from YAML with LoadConfig, and
// overridden by YGGGO_MYSQLPOOL_* environment variables.
package ygggo_mysqlpool

// Version returns the current library version.
func Version() string { return "v0.1.0" }
