package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/davrick/strata/query"
	"github.com/davrick/strata/schema"
)

// operators is the fixed whitelist of condition operators. Anything else is
// a compile-time error, never a passthrough into statement text.
var operators = map[string]struct{}{
	query.OpEQ:        {},
	query.OpNEQ:       {},
	query.OpGT:        {},
	query.OpGTE:       {},
	query.OpLT:        {},
	query.OpLTE:       {},
	query.OpLike:      {},
	query.OpILike:     {},
	query.OpIn:        {},
	query.OpNotIn:     {},
	query.OpBetween:   {},
	query.OpIsNull:    {},
	query.OpIsNotNull: {},
}

// Select compiles the query specification into a SELECT statement plus its
// ordered parameter list.
func Select(reg *schema.Registry, q query.Query) (string, []any, error) {
	t, err := reg.TypeByTable(q.Table())
	if err != nil {
		return "", nil, err
	}

	selectList, err := selectionList(t, q)
	if err != nil {
		return "", nil, err
	}

	joins, err := joinClauses(reg, t, q)
	if err != nil {
		return "", nil, err
	}

	where, args, err := whereClause(reg, t, q)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString(" FROM ")
	sb.WriteString(t.Table)
	for _, j := range joins {
		sb.WriteByte(' ')
		sb.WriteString(j)
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if err := writeOrderBy(&sb, t, q); err != nil {
		return "", nil, err
	}
	// LIMIT and OFFSET are caller-controlled integers, not raw strings, so
	// they are emitted as literals rather than parameters.
	if n, ok := q.GetLimit(); ok {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(n))
	}
	if n, ok := q.GetOffset(); ok {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String(), args, nil
}

// Count compiles the query specification into a SELECT COUNT(*) statement.
// Ordering, limit, and offset are ignored: they do not change the count.
func Count(reg *schema.Registry, q query.Query) (string, []any, error) {
	t, err := reg.TypeByTable(q.Table())
	if err != nil {
		return "", nil, err
	}
	joins, err := joinClauses(reg, t, q)
	if err != nil {
		return "", nil, err
	}
	where, args, err := whereClause(reg, t, q)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(t.Table)
	for _, j := range joins {
		sb.WriteByte(' ')
		sb.WriteString(j)
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	return sb.String(), args, nil
}

// selectionList resolves the selected columns per the re-identifiability
// rule: explicit selections always include the primary key, and any
// selection under a join is table-qualified to avoid ambiguous columns.
func selectionList(t *schema.Type, q query.Query) (string, error) {
	sel := q.Selections()
	if len(sel) == 0 {
		if !q.HasJoins() {
			return "*", nil
		}
		cols := t.Columns()
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = t.Table + "." + c
		}
		return strings.Join(parts, ", "), nil
	}
	hasID := false
	for _, c := range sel {
		if c == t.ID {
			hasID = true
			break
		}
	}
	if !hasID {
		sel = append([]string{t.ID}, sel...)
	}
	parts := make([]string, len(sel))
	for i, c := range sel {
		if !isValidIdentifier(c) {
			return "", fmt.Errorf("sqlgen: invalid column name %q", c)
		}
		if q.HasJoins() && !strings.Contains(c, ".") {
			parts[i] = t.Table + "." + c
		} else {
			parts[i] = c
		}
	}
	return strings.Join(parts, ", "), nil
}

// joinClauses builds the JOIN clauses, deriving each ON predicate from the
// resolved relationship's key columns.
func joinClauses(reg *schema.Registry, t *schema.Type, q query.Query) ([]string, error) {
	joins := q.Joins()
	if len(joins) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(joins))
	for _, j := range joins {
		rel, err := reg.Relationship(t, j.Relationship)
		if err != nil {
			return nil, err
		}
		kind := j.Kind
		if kind == "" {
			kind = query.InnerJoin
		}
		out = append(out, fmt.Sprintf("%s %s ON %s.%s = %s.%s",
			kind, rel.RelatedTable, t.Table, rel.LocalKey, rel.RelatedTable, rel.ForeignKey))
	}
	return out, nil
}

// whereClause compiles the primary conditions, the composite groups, and
// the relationship groups into one WHERE clause. Each group compiles to its
// own fragment; flattening assigns the continuous placeholder sequence.
func whereClause(reg *schema.Registry, t *schema.Type, q query.Query) (string, []any, error) {
	qualifier := ""
	if q.HasJoins() {
		qualifier = t.Table
	}

	var frags []*fragment
	if len(q.Conditions()) > 0 {
		f, err := conditionsFragment(q.Conditions(), qualifier, false)
		if err != nil {
			return "", nil, err
		}
		frags = append(frags, f)
	}
	for _, group := range q.Groups() {
		if len(group) == 0 {
			continue
		}
		f, err := conditionsFragment(group, qualifier, true)
		if err != nil {
			return "", nil, err
		}
		frags = append(frags, f)
	}
	for _, rc := range q.RelConditions() {
		if len(rc.Conditions) == 0 {
			continue
		}
		rel, err := reg.Relationship(t, rc.Relationship)
		if err != nil {
			return "", nil, err
		}
		f, err := conditionsFragment(rc.Conditions, rel.RelatedTable, true)
		if err != nil {
			return "", nil, err
		}
		frags = append(frags, f)
	}
	if len(frags) == 0 {
		return "", nil, nil
	}
	texts, args := flattenAll(frags)
	return strings.Join(texts, " AND "), args, nil
}

// conditionsFragment compiles a condition list ANDed together. Grouped
// fragments of more than one condition are parenthesized so they merge with
// siblings without changing precedence.
func conditionsFragment(conds []query.Condition, qualifier string, grouped bool) (*fragment, error) {
	f := &fragment{}
	if grouped && len(conds) > 1 {
		f.raw("(")
	}
	for i, c := range conds {
		if i > 0 {
			f.raw(" AND ")
		}
		if err := appendCondition(f, c, qualifier); err != nil {
			return nil, err
		}
	}
	if grouped && len(conds) > 1 {
		f.raw(")")
	}
	return f, nil
}

// appendCondition compiles one condition into the fragment.
func appendCondition(f *fragment, c query.Condition, qualifier string) error {
	if _, ok := operators[c.Operator]; !ok {
		return fmt.Errorf("sqlgen: unsupported operator %q", c.Operator)
	}
	field := c.Field
	if qualifier != "" && !strings.Contains(field, ".") {
		field = qualifier + "." + field
	}
	if !isValidIdentifier(field) {
		return fmt.Errorf("sqlgen: invalid field name %q", c.Field)
	}
	switch c.Operator {
	case query.OpIsNull, query.OpIsNotNull:
		f.raw(field).raw(" ").raw(c.Operator)
	case query.OpIn, query.OpNotIn:
		vs, err := valueList(c)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			// An empty membership test can never match (or never fail).
			if c.Operator == query.OpIn {
				f.raw("FALSE")
			} else {
				f.raw("TRUE")
			}
			return nil
		}
		f.raw(field).raw(" ").raw(c.Operator).raw(" (")
		for i, v := range vs {
			if i > 0 {
				f.raw(", ")
			}
			f.arg(v)
		}
		f.raw(")")
	case query.OpBetween:
		vs, err := valueList(c)
		if err != nil {
			return err
		}
		if len(vs) != 2 {
			return fmt.Errorf("sqlgen: BETWEEN on %q requires exactly 2 values, got %d", c.Field, len(vs))
		}
		f.raw(field).raw(" BETWEEN ").arg(vs[0]).raw(" AND ").arg(vs[1])
	default:
		f.raw(field).raw(" ").raw(c.Operator).raw(" ").arg(c.Value)
	}
	return nil
}

// valueList extracts the value slice of a list-valued condition.
func valueList(c query.Condition) ([]any, error) {
	switch vs := c.Value.(type) {
	case []any:
		return vs, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("sqlgen: %s on %q requires a value list, got %T", c.Operator, c.Field, c.Value)
	}
}

// writeOrderBy appends the ORDER BY clause.
func writeOrderBy(sb *strings.Builder, t *schema.Type, q query.Query) error {
	orders := q.Orders()
	if len(orders) == 0 {
		return nil
	}
	sb.WriteString(" ORDER BY ")
	for i, o := range orders {
		if i > 0 {
			sb.WriteString(", ")
		}
		field := o.Field
		if q.HasJoins() && !strings.Contains(field, ".") {
			field = t.Table + "." + field
		}
		if !isValidIdentifier(field) {
			return fmt.Errorf("sqlgen: invalid order field %q", o.Field)
		}
		sb.WriteString(field)
		switch o.Direction {
		case "", query.Asc:
			sb.WriteString(" ASC")
		case query.Desc:
			sb.WriteString(" DESC")
		default:
			return fmt.Errorf("sqlgen: invalid order direction %q", o.Direction)
		}
	}
	return nil
}
