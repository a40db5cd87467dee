package driftdb

import (
	"errors"
	"fmt"

	"github.com/driftdb/driftdb-go/internal/codec"
)

var (
	// ErrConnectionClosed resolves every caller still waiting when the
	// stream fails or the connection is closed.
	ErrConnectionClosed = errors.New("driftdb: connection closed")

	// ErrCursorEnd signals natural exhaustion of a cursor.
	ErrCursorEnd = errors.New("driftdb: cursor end")

	// ErrQueryTooLarge reports a query whose encoded payload exceeds the
	// connection's frame limit. Nothing is written; the connection and
	// every in-flight query stay usable.
	ErrQueryTooLarge = errors.New("driftdb: query too large")
)

// Runtime error kinds reported by the server.
const (
	RuntimeErrorInternal        = 1000000
	RuntimeErrorResourceLimit   = 2000000
	RuntimeErrorQueryLogic      = 3000000
	RuntimeErrorNonExistence    = 3100000
	RuntimeErrorOpFailed        = 4100000
	RuntimeErrorOpIndeterminate = 4200000
	RuntimeErrorUser            = 5000000
	RuntimeErrorPermission      = 6000000
)

// ClientError reports a malformed client request as judged by the
// server. Not connection-fatal.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return "driftdb: client error: " + e.Message
}

// CompileError reports a query the server could not compile. Not
// connection-fatal.
type CompileError struct {
	Message   string
	Backtrace []any
}

func (e *CompileError) Error() string {
	return "driftdb: compile error: " + e.Message
}

// RuntimeError reports a query that failed during evaluation. Not
// connection-fatal; only the issuing caller sees it.
type RuntimeError struct {
	Kind      int
	Message   string
	Backtrace []any
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("driftdb: runtime error (kind %d): %s", e.Kind, e.Message)
}

// responseError maps a server error response to its typed form.
func responseError(resp *codec.Response) error {
	switch resp.Type {
	case codec.ResponseClientError:
		return &ClientError{Message: resp.ErrorMessage}
	case codec.ResponseCompileError:
		return &CompileError{Message: resp.ErrorMessage, Backtrace: resp.Backtrace}
	case codec.ResponseRuntimeError:
		return &RuntimeError{Kind: resp.ErrorKind, Message: resp.ErrorMessage, Backtrace: resp.Backtrace}
	}
	return nil
}
