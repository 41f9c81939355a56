// Package datastore provides error handling helpers for database operations
package datastore

import (
	"github.com/pavewatch/pavewatch-go/internal/errors"
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	// Add context pairs
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error with field context. A negative
// index means the value is not part of a batch.
func validationError(message, field string, value any, index int) error {
	builder := errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value)
	if index >= 0 {
		builder = builder.Context("index", index)
	}
	return builder.Build()
}

// queryError creates a read-only query execution error
func queryError(err error, query string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryQueryExecution).
		Context("operation", "execute_read_only").
		Context("query", query).
		Build()
}
