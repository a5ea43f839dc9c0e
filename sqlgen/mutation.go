package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davrick/strata"
	"github.com/davrick/strata/query"
	"github.com/davrick/strata/schema"
)

// DefaultBatchSize is the maximum number of rows per multi-row INSERT and
// the maximum number of values per batched IN list. It keeps statements
// under typical protocol parameter-count ceilings.
const DefaultBatchSize = 1000

// Stmt is one compiled statement with its ordered parameter list.
type Stmt struct {
	SQL  string
	Args []any
}

// Insert compiles a single-row INSERT ... RETURNING * statement.
// Columns are emitted in sorted order for deterministic output.
func Insert(t *schema.Type, values map[string]any) (string, []any, error) {
	cols, err := sortedColumns(t, values)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", t.Table), nil, nil
	}
	f := &fragment{}
	for i, c := range cols {
		if i > 0 {
			f.raw(", ")
		}
		f.arg(values[c])
	}
	texts, args := flattenAll([]*fragment{f})
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		t.Table, strings.Join(cols, ", "), texts[0])
	return sql, args, nil
}

// InsertBatch compiles multi-row INSERT ... RETURNING * statements, one per
// batch of at most batchSize rows. All rows share the union of the supplied
// columns; absent values are sent as NULL.
func InsertBatch(t *schema.Type, rows []map[string]any, batchSize int) ([]Stmt, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		for c := range row {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	for _, c := range cols {
		if err := checkColumn(t, c); err != nil {
			return nil, err
		}
	}
	if len(cols) == 0 {
		return nil, strata.NewInvalidSchemaError("%s: batch insert with no columns", t.Name)
	}

	var stmts []Stmt
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		f := &fragment{}
		for i, row := range rows[start:end] {
			if i > 0 {
				f.raw(", ")
			}
			f.raw("(")
			for j, c := range cols {
				if j > 0 {
					f.raw(", ")
				}
				f.arg(row[c])
			}
			f.raw(")")
		}
		texts, args := flattenAll([]*fragment{f})
		stmts = append(stmts, Stmt{
			SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *",
				t.Table, strings.Join(cols, ", "), texts[0]),
			Args: args,
		})
	}
	return stmts, nil
}

// Update compiles an UPDATE by primary key with RETURNING *.
func Update(t *schema.Type, id any, changes map[string]any) (string, []any, error) {
	cols, err := sortedColumns(t, changes)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, strata.NewInvalidSchemaError("%s: update with no changes", t.Name)
	}
	f := &fragment{}
	for i, c := range cols {
		if i > 0 {
			f.raw(", ")
		}
		f.raw(c).raw(" = ").arg(changes[c])
	}
	f.raw(" WHERE ").raw(t.ID).raw(" = ").arg(id)
	texts, args := flattenAll([]*fragment{f})
	sql := fmt.Sprintf("UPDATE %s SET %s RETURNING *", t.Table, texts[0])
	return sql, args, nil
}

// Conflict describes the conflict target and update set of an upsert.
// Exactly one of Columns or Constraint must be set.
type Conflict struct {
	// Columns is the conflict target column list.
	Columns []string
	// Constraint is the named constraint, for the ON CONSTRAINT form.
	Constraint string
	// SetColumns are the columns rewritten from EXCLUDED on conflict.
	// An empty list is a compile-time error, not "update nothing".
	SetColumns []string
}

// Upsert compiles an INSERT ... ON CONFLICT ... DO UPDATE SET statement
// with RETURNING *.
func Upsert(t *schema.Type, values map[string]any, conflict Conflict) (string, []any, error) {
	if len(conflict.Columns) == 0 && conflict.Constraint == "" {
		return "", nil, strata.NewInvalidSchemaError("%s: upsert without a conflict target", t.Name)
	}
	if len(conflict.Columns) > 0 && conflict.Constraint != "" {
		return "", nil, strata.NewInvalidSchemaError("%s: upsert with both conflict columns and a constraint", t.Name)
	}
	if len(conflict.SetColumns) == 0 {
		return "", nil, strata.NewInvalidSchemaError("%s: upsert with an empty update-column list", t.Name)
	}
	cols, err := sortedColumns(t, values)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, strata.NewInvalidSchemaError("%s: upsert with no values", t.Name)
	}
	for _, c := range conflict.Columns {
		if err := checkColumn(t, c); err != nil {
			return "", nil, err
		}
	}
	if conflict.Constraint != "" && !isValidIdentifier(conflict.Constraint) {
		return "", nil, strata.NewInvalidSchemaError("%s: invalid constraint name %q", t.Name, conflict.Constraint)
	}
	setParts := make([]string, len(conflict.SetColumns))
	for i, c := range conflict.SetColumns {
		if err := checkColumn(t, c); err != nil {
			return "", nil, err
		}
		setParts[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}

	f := &fragment{}
	for i, c := range cols {
		if i > 0 {
			f.raw(", ")
		}
		f.arg(values[c])
	}
	texts, args := flattenAll([]*fragment{f})

	target := ""
	if conflict.Constraint != "" {
		target = "ON CONSTRAINT " + conflict.Constraint
	} else {
		target = "(" + strings.Join(conflict.Columns, ", ") + ")"
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT %s DO UPDATE SET %s RETURNING *",
		t.Table, strings.Join(cols, ", "), texts[0], target, strings.Join(setParts, ", "))
	return sql, args, nil
}

// Delete compiles a DELETE statement from the query's conditions. Joins are
// not supported in DELETE.
func Delete(reg *schema.Registry, q query.Query) (string, []any, error) {
	t, err := reg.TypeByTable(q.Table())
	if err != nil {
		return "", nil, err
	}
	if q.HasJoins() {
		return "", nil, fmt.Errorf("sqlgen: DELETE does not support joins")
	}
	where, args, err := whereClause(reg, t, q)
	if err != nil {
		return "", nil, err
	}
	sql := "DELETE FROM " + t.Table
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, args, nil
}

// sortedColumns validates the value map's columns against the descriptor
// table and returns them sorted for deterministic statement text.
func sortedColumns(t *schema.Type, values map[string]any) ([]string, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if err := checkColumn(t, c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

// checkColumn validates that the column is declared on the type.
func checkColumn(t *schema.Type, column string) error {
	if !isValidIdentifier(column) {
		return strata.NewInvalidSchemaError("%s: invalid column name %q", t.Name, column)
	}
	if !t.HasColumn(column) {
		return strata.NewInvalidSchemaError("%s: unknown column %q", t.Name, column)
	}
	return nil
}
