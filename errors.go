package ygggo_mysqlpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	mysql "github.com/go-sql-driver/mysql"
)

// ErrorKind classifies failures by what went wrong and what it means for the connection.
type ErrorKind int

const (
	UnknownFailure ErrorKind = iota
	// ConnectFailure: handshake, authentication or timeout while obtaining a connection.
	ConnectFailure
	// QueryFailure: the server (or local binding) rejected the statement.
	QueryFailure
	// ProtocolFailure: the connection broke mid-query. The connection is discarded.
	ProtocolFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectFailure:
		return "ConnectFailure"
	case QueryFailure:
		return "QueryFailure"
	case ProtocolFailure:
		return "ProtocolFailure"
	default:
		return "UnknownFailure"
	}
}

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("ygggo_mysqlpool: manager is closed")
	// ErrParamCount is wrapped when placeholders and params disagree.
	ErrParamCount = errors.New("ygggo_mysqlpool: placeholder/parameter count mismatch")
)

// Error is the typed failure delivered to callers.
type Error struct {
	Kind ErrorKind
	Op   string
	// Code is the MySQL server error number, 0 when not applicable.
	Code uint16
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s (mysql %d): %v", e.Kind, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err with its classification. kind overrides Classify when non-zero.
func newError(op string, kind ErrorKind, err error) error {
	if err == nil { return nil }
	var existing *Error
	if errors.As(err, &existing) { return err }
	if errors.Is(err, ErrClosed) { return err }
	if kind == UnknownFailure { kind = Classify(err) }
	e := &Error{Kind: kind, Op: op, Err: err}
	var me *mysql.MySQLError
	if errors.As(err, &me) { e.Code = me.Number }
	return e
}

// Server error numbers that mean the session could not be established.
var connectCodes = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1049: true, // ER_BAD_DB_ERROR
	1129: true, // ER_HOST_IS_BLOCKED
	1130: true, // ER_HOST_NOT_PRIVILEGED
	1203: true, // ER_TOO_MANY_USER_CONNECTIONS
}

// Classify maps an error returned by the driver to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil { return UnknownFailure }
	var typed *Error
	if errors.As(err, &typed) { return typed.Kind }
	if errors.Is(err, ErrParamCount) { return QueryFailure }

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		if connectCodes[me.Number] { return ConnectFailure }
		return QueryFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" { return ConnectFailure }

	switch {
	case errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, mysql.ErrMalformPkt),
		errors.Is(err, mysql.ErrPktSync),
		errors.Is(err, mysql.ErrPktSyncMul),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ProtocolFailure
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ConnectFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) { return ProtocolFailure }
	return UnknownFailure
}

// IsConnFatal reports whether the connection that produced err must not be reused.
func IsConnFatal(err error) bool {
	if err == nil { return false }
	var typed *Error
	if errors.As(err, &typed) { return typed.Kind == ProtocolFailure }
	return Classify(err) == ProtocolFailure
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Kind == kind
}
