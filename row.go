package strata

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Row is an ordered mapping from column name to a decoded scalar value.
// It is the universal currency between SQL execution and entity
// reconstruction: one Row is produced per fetched database row and is
// immutable after construction. Attaching preloaded associations returns a
// new, enriched Row.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow constructs a Row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		if i < len(values) {
			m[c] = values[i]
		}
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Row{columns: cols, values: m}
}

// Columns returns the column names in their original order.
func (r Row) Columns() []string {
	cols := make([]string, len(r.columns))
	copy(cols, r.columns)
	return cols
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	return len(r.columns)
}

// Has reports whether the row contains the given column.
func (r Row) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Value returns the raw value of the given column.
func (r Row) Value(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// With returns a copy of the row with the given column set.
// The receiver is left unchanged.
func (r Row) With(column string, value any) Row {
	m := make(map[string]any, len(r.values)+1)
	for k, v := range r.values {
		m[k] = v
	}
	cols := r.columns
	if _, ok := r.values[column]; !ok {
		cols = append(r.Columns(), column)
	}
	m[column] = value
	return Row{columns: cols, values: m}
}

// String returns the value of the given column as a string.
func (r Row) String(column string) (string, error) {
	v, ok := r.values[column]
	if !ok {
		return "", fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Int64 returns the value of the given column as an int64.
func (r Row) Int64(column string) (int64, error) {
	v, ok := r.values[column]
	if !ok {
		return 0, fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("strata: column %q holds %T, not an integer", column, v)
	}
}

// Float64 returns the value of the given column as a float64.
func (r Row) Float64(column string) (float64, error) {
	v, ok := r.values[column]
	if !ok {
		return 0, fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("strata: column %q holds %T, not a float", column, v)
	}
}

// Bool returns the value of the given column as a bool.
func (r Row) Bool(column string) (bool, error) {
	v, ok := r.values[column]
	if !ok {
		return false, fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("strata: column %q holds %T, not a bool", column, v)
	}
}

// Time returns the value of the given column as a time.Time.
func (r Row) Time(column string) (time.Time, error) {
	v, ok := r.values[column]
	if !ok {
		return time.Time{}, fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return time.Parse(time.RFC3339Nano, string(v))
	case string:
		return time.Parse(time.RFC3339Nano, v)
	default:
		return time.Time{}, fmt.Errorf("strata: column %q holds %T, not a timestamp", column, v)
	}
}

// UUID returns the value of the given column as a uuid.UUID.
func (r Row) UUID(column string) (uuid.UUID, error) {
	v, ok := r.values[column]
	if !ok {
		return uuid.Nil, fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.Parse(string(v))
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("strata: column %q holds %T, not a uuid", column, v)
	}
}

// Bytes returns the value of the given column as a byte slice.
func (r Row) Bytes(column string) ([]byte, error) {
	v, ok := r.values[column]
	if !ok {
		return nil, fmt.Errorf("strata: row has no column %q", column)
	}
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("strata: column %q holds %T, not bytes", column, v)
	}
}

// IsNull reports whether the given column holds NULL.
func (r Row) IsNull(column string) bool {
	v, ok := r.values[column]
	return ok && v == nil
}

// Map returns the row as a plain column-to-value map. The map is a copy;
// mutating it does not affect the row.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}
