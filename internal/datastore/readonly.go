// readonly.go: guarded execution of model-generated SQL
package datastore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/errors"
)

// DefaultQueryRowLimit caps read-only query results when the caller does not
// supply a limit.
const DefaultQueryRowLimit = 100

// forbiddenKeyword matches statement keywords that mutate data or schema.
// Word boundaries keep column names like created_at from tripping the CREATE
// check.
var forbiddenKeyword = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|REPLACE|ATTACH|DETACH|PRAGMA|GRANT|REVOKE|VACUUM|EXEC)\b`)

// ValidateReadOnlyQuery enforces the read-only contract on generated SQL:
// one statement, starting with SELECT, containing no write or DDL keywords
// anywhere. The check is textual and deliberately conservative; a false
// rejection costs one chat answer, a false acceptance would cost data.
func ValidateReadOnlyQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	// A single trailing semicolon is tolerated.
	trimmed = strings.TrimSuffix(trimmed, ";")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return rejectQuery(query, "empty", "empty query")
	}
	if strings.Contains(trimmed, ";") {
		return rejectQuery(query, "multiple_statements", "query must be a single statement")
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return rejectQuery(query, "not_select", "query must begin with SELECT")
	}
	if match := forbiddenKeyword.FindString(trimmed); match != "" {
		return rejectQuery(query, "forbidden_keyword",
			fmt.Sprintf("query uses forbidden keyword %s", strings.ToUpper(match)))
	}
	return nil
}

// rejectQuery records the rejection and builds the validation error.
func rejectQuery(query, reason, message string) error {
	recordRejectedQuery(reason)
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("reason", reason).
		Context("query", query).
		Build()
}

// QueryResult is the stringified result of a read-only query, ordered the
// way the database returned it.
type QueryResult struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// RowCount returns the number of returned rows.
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ExecuteReadOnly runs a validated SELECT with a hard row cap. The textual
// gate is re-checked here so the executor stays safe even when called
// outside the chat workflow. The query is wrapped in a derived table to
// enforce the cap regardless of what the inner statement selects.
func (ds *DataStore) ExecuteReadOnly(ctx context.Context, query string, limit int) (*QueryResult, error) {
	if ds.DB == nil {
		return nil, dbError(errNotOpen, "execute_read_only", errors.PriorityHigh)
	}
	if err := ValidateReadOnlyQuery(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultQueryRowLimit
	}

	inner := strings.TrimSpace(query)
	inner = strings.TrimSuffix(inner, ";")
	// One row beyond the cap detects truncation.
	wrapped := "SELECT * FROM (" + inner + ") AS q LIMIT " + strconv.Itoa(limit+1)

	start := time.Now()
	rows, err := ds.DB.WithContext(ctx).Raw(wrapped).Rows()
	if err != nil {
		recordDbOperation("execute_read_only", "error", time.Since(start).Seconds())
		return nil, queryError(err, query)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, queryError(err, query)
	}

	result := &QueryResult{Columns: columns}
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, queryError(err, query)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = formatQueryValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err, query)
	}

	if len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
		result.Truncated = true
	}

	recordDbOperation("execute_read_only", "success", time.Since(start).Seconds())
	recordQueryRows(len(result.Rows))
	return result, nil
}

// formatQueryValue renders a scanned driver value as display text.
func formatQueryValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
