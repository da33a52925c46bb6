package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"askdb-backend/internal/sqlcheck"
)

// ExecErrorKind classifies an execution failure
type ExecErrorKind string

const (
	ExecErrSyntax        ExecErrorKind = "syntax_error"
	ExecErrTimedOut      ExecErrorKind = "timed_out"
	ExecErrTooLarge      ExecErrorKind = "too_large"
	ExecErrStoreInternal ExecErrorKind = "store_internal"
)

// ExecError describes a failed execution. Execution failures are terminal
// for the turn, never retried.
type ExecError struct {
	Kind    ExecErrorKind `json:"kind"`
	Message string        `json:"message"`
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execution failed (%s): %s", e.Kind, e.Message)
}

// Limits bounds the resources a single query execution may consume
type Limits struct {
	MaxRows  int
	Timeout  time.Duration
	MaxBytes int
}

// DefaultLimits returns the execution bounds used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxRows:  1000,
		Timeout:  30 * time.Second,
		MaxBytes: 8 << 20,
	}
}

// Execute runs a validated query against the read-only handle under the
// given limits. The query has already been proven read-only; the handle's
// read-only open mode is the second line of defense.
func (s *Source) Execute(ctx context.Context, vq *sqlcheck.ValidatedQuery, limits Limits) (*ResultSet, *ExecError) {
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultLimits().MaxRows
	}
	if limits.Timeout <= 0 {
		limits.Timeout = DefaultLimits().Timeout
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits().MaxBytes
	}

	queryCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(queryCtx, vq.SQL())
	if err != nil {
		return nil, classifyError(err, queryCtx)
	}
	defer rows.Close()

	result, execErr := scanBounded(rows, limits)
	if execErr != nil {
		if queryCtx.Err() == context.DeadlineExceeded {
			return nil, &ExecError{Kind: ExecErrTimedOut, Message: "query exceeded the configured timeout"}
		}
		return nil, execErr
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// scanBounded materializes rows under the row and byte caps. Scanning
// stops at MaxRows, with one extra fetch to learn whether the result was
// truncated.
func scanBounded(rows *sql.Rows, limits Limits) (*ResultSet, *ExecError) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{Kind: ExecErrStoreInternal, Message: err.Error()}
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &ExecError{Kind: ExecErrStoreInternal, Message: err.Error()}
	}

	result := &ResultSet{Columns: make([]Column, len(columns))}
	for i, col := range columns {
		result.Columns[i] = Column{
			Name: col,
			Type: mapSQLTypeToValueType(columnTypes[i].DatabaseTypeName()),
		}
	}

	bytes := 0
	for rows.Next() {
		if len(result.Rows) >= limits.MaxRows {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, &ExecError{Kind: ExecErrStoreInternal, Message: err.Error()}
		}

		row := Row{Values: make([]Value, len(columns))}
		for i, val := range values {
			v := convertSQLValue(val, result.Columns[i].Type)
			bytes += v.approxSize()
			row.Values[i] = v
		}
		if bytes > limits.MaxBytes {
			return nil, &ExecError{
				Kind:    ExecErrTooLarge,
				Message: fmt.Sprintf("result exceeds the %d byte limit", limits.MaxBytes),
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Kind: ExecErrStoreInternal, Message: err.Error()}
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// classifyError folds an underlying store error into the executor's
// error taxonomy
func classifyError(err error, ctx context.Context) *ExecError {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return &ExecError{Kind: ExecErrTimedOut, Message: "query exceeded the configured timeout"}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "syntax"),
		strings.Contains(msg, "no such column"),
		strings.Contains(msg, "no such function"),
		strings.Contains(msg, "no such table"),
		strings.Contains(msg, "unknown column"),
		strings.Contains(msg, "does not exist"):
		return &ExecError{Kind: ExecErrSyntax, Message: err.Error()}
	default:
		return &ExecError{Kind: ExecErrStoreInternal, Message: err.Error()}
	}
}
