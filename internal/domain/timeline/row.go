package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one raw result row keyed by lower-case column name.
type Row map[string]any

// NormalizeRow lower-cases column names so rows from warehouses that return
// upper-case identifiers look the same as rows from Postgres.
func NormalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[strings.ToLower(k)] = v
	}
	return row
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time returns the column as a time. ok is false when the column is absent
// or null.
func (r Row) Time(col string) (t time.Time, ok bool, err error) {
	switch v := r[col].(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false, nil
		}
		for _, layout := range timeLayouts {
			if parsed, perr := time.Parse(layout, s); perr == nil {
				return parsed, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("column %s: unparseable time %q", col, s)
	default:
		return time.Time{}, false, fmt.Errorf("column %s: unsupported time type %T", col, v)
	}
}

// String returns the column formatted as text, or "" when null.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer.
func (r Row) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Float64 returns the column as a float.
func (r Row) Float64(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the column as a boolean; null and unknown values are false.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case int64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// OptTime is Time for nullable columns; unparseable values are treated as
// null.
func (r Row) OptTime(col string) *time.Time {
	t, ok, err := r.Time(col)
	if err != nil || !ok {
		return nil
	}
	return &t
}

// OptInt64 is Int64 for nullable columns.
func (r Row) OptInt64(col string) *int64 {
	n, ok := r.Int64(col)
	if !ok {
		return nil
	}
	return &n
}
