package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed query.
type ErrorKind string

const (
	// ErrorKindSchema means a referenced table or column does not exist.
	ErrorKindSchema ErrorKind = "schema"
	// ErrorKindTimeout means the query ran past its deadline.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindOther covers everything else (syntax, permissions, connectivity).
	ErrorKindOther ErrorKind = "other"
)

// schemaErrorCodes are driver error codes for missing tables or columns.
var schemaErrorCodes = map[string]bool{
	"1146":  true, // MySQL ER_NO_SUCH_TABLE
	"1054":  true, // MySQL ER_BAD_FIELD_ERROR
	"1051":  true, // MySQL ER_BAD_TABLE_ERROR
	"42P01": true, // PostgreSQL undefined_table
	"42703": true, // PostgreSQL undefined_column
}

// timeoutErrorCodes are driver error codes for statements cut off by the server.
var timeoutErrorCodes = map[string]bool{
	"3024":  true, // MySQL ER_QUERY_TIMEOUT (max_execution_time)
	"1317":  true, // MySQL ER_QUERY_INTERRUPTED
	"57014": true, // PostgreSQL query_canceled (statement_timeout)
}

var schemaErrorPhrases = []string{
	"doesn't exist",
	"does not exist",
	"unknown column",
	"unknown table",
	"no such table",
	"no such column",
}

// QueryError is a classified driver error.
type QueryError struct {
	Kind  ErrorKind
	Code  string // Driver error code, when the driver exposes one
	Cause error
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s query error [%s]: %v", e.Kind, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s query error: %v", e.Kind, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError classifies cause using the driver code, the context state and,
// as a last resort, the error text.
func NewQueryError(ctx context.Context, cause error, code string) *QueryError {
	return &QueryError{Kind: classify(ctx, cause, code), Code: code, Cause: cause}
}

func classify(ctx context.Context, cause error, code string) ErrorKind {
	if errors.Is(cause, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return ErrorKindTimeout
	}
	if timeoutErrorCodes[code] {
		return ErrorKindTimeout
	}
	if schemaErrorCodes[code] {
		return ErrorKindSchema
	}
	if cause == nil {
		return ErrorKindOther
	}
	msg := strings.ToLower(cause.Error())
	for _, phrase := range schemaErrorPhrases {
		if strings.Contains(msg, phrase) {
			return ErrorKindSchema
		}
	}
	return ErrorKindOther
}

// KindOf returns the classification of err, or ErrorKindOther when err is
// not a *QueryError.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	return ErrorKindOther
}
