package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldError reports a client-input validation failure keyed by field
// name: an instruction referenced a column outside the exposed set, a
// property outside the excludable set, or an unknown formatted label.
type FieldError struct {
	// Fields maps each offending field to its messages.
	Fields map[string][]string
}

func (e *FieldError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], "; ")))
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func newFieldError(field, msg string) *FieldError {
	return &FieldError{Fields: map[string][]string{field: {msg}}}
}

// IsFieldError reports whether err is (or wraps) a FieldError.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

// ConstructionError reports a query that could not be built or run:
// an operator invalid for a column's type, an unknown operator or order
// column, or a storage-layer rejection surfaced during pagination.
type ConstructionError struct {
	// Keys are the offending argument keys or operator names.
	Keys []string
	// Args are the offending values or underlying storage messages.
	Args []string
}

func (e *ConstructionError) Error() string {
	switch {
	case len(e.Keys) > 0 && len(e.Args) > 0:
		return fmt.Sprintf("query construction: keys=%v args=%v", e.Keys, e.Args)
	case len(e.Keys) > 0:
		return fmt.Sprintf("query construction: keys=%v", e.Keys)
	default:
		return fmt.Sprintf("query construction: args=%v", e.Args)
	}
}

func newConstructionError(keys ...string) *ConstructionError {
	return &ConstructionError{Keys: keys}
}

// IsConstructionError reports whether err is (or wraps) a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// translateStorageError converts a storage-layer failure during the
// pagination round trip into a ConstructionError. Engine errors pass
// through unchanged; a raw driver error is never leaked to callers.
func translateStorageError(err error) error {
	if err == nil || IsFieldError(err) || IsConstructionError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ConstructionError{Args: []string{"Invalid Value: " + err.Error()}}
}
