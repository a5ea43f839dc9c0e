// Package query defines the immutable, chainable query specification that
// the SQL compiler turns into parameterized statements. Every builder
// method returns a new value; the receiver is never altered, so
// specifications can be shared and composed freely.
package query

import "strings"

// Direction is an ORDER BY direction.
type Direction string

// Order directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ORDER BY entry.
type Order struct {
	Field     string
	Direction Direction
}

// JoinKind is the kind of a JOIN clause.
type JoinKind string

// Join kinds.
const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
	RightJoin JoinKind = "RIGHT JOIN"
)

// Join references a declared relationship to be joined into the statement.
// The ON predicate is derived from the relationship's key columns at
// compile time.
type Join struct {
	Relationship string
	Kind         JoinKind
}

// RelCondition is a group of conditions applied to a joined relationship's
// table. The group compiles independently and is merged with renumbered
// placeholders.
type RelCondition struct {
	Relationship string
	Conditions   []Condition
}

// Query is an immutable specification of a statement over one target table:
// selected columns, filters, joins, ordering, limit/offset, and preload
// directives.
//
// The zero value is not useful; start with From.
type Query struct {
	table      string
	selections []string
	conditions []Condition
	groups     [][]Condition
	relConds   []RelCondition
	joins      []Join
	orders     []Order
	limit      *int
	offset     *int
	preloads   []string
}

// From returns a Query targeting the given table, selecting all declared
// columns of the mapped entity type.
func From(table string) Query {
	return Query{table: table}
}

// Select replaces the selected columns. The compiler prepends the primary
// key column if it is not listed, so every row stays re-identifiable.
func (q Query) Select(columns ...string) Query {
	q.selections = append([]string(nil), columns...)
	return q
}

// Where appends filter conditions ANDed with the existing ones.
func (q Query) Where(conds ...Condition) Query {
	q.conditions = append(q.conditions[:len(q.conditions):len(q.conditions)], conds...)
	return q
}

// WhereGroup appends a self-contained condition group. The group compiles
// independently and is merged into the statement with its parameter
// placeholders renumbered.
func (q Query) WhereGroup(conds ...Condition) Query {
	group := append([]Condition(nil), conds...)
	q.groups = append(q.groups[:len(q.groups):len(q.groups)], group)
	return q
}

// WhereRelated appends conditions on a joined relationship's table. Field
// names are qualified with the related table at compile time.
func (q Query) WhereRelated(relationship string, conds ...Condition) Query {
	rc := RelCondition{Relationship: relationship, Conditions: append([]Condition(nil), conds...)}
	q.relConds = append(q.relConds[:len(q.relConds):len(q.relConds)], rc)
	return q
}

// Join appends a join on the named relationship.
func (q Query) Join(relationship string, kind JoinKind) Query {
	q.joins = append(q.joins[:len(q.joins):len(q.joins)], Join{Relationship: relationship, Kind: kind})
	return q
}

// Order appends an ORDER BY entry.
func (q Query) Order(field string, dir Direction) Query {
	q.orders = append(q.orders[:len(q.orders):len(q.orders)], Order{Field: field, Direction: dir})
	return q
}

// Limit sets the LIMIT clause.
func (q Query) Limit(n int) Query {
	q.limit = &n
	return q
}

// Offset sets the OFFSET clause.
func (q Query) Offset(n int) Query {
	q.offset = &n
	return q
}

// Preload appends association names to eagerly load after execution.
// Dotted names ("posts.comments") preload nested associations.
func (q Query) Preload(names ...string) Query {
	q.preloads = append(q.preloads[:len(q.preloads):len(q.preloads)], names...)
	return q
}

// Table returns the target table.
func (q Query) Table() string { return q.table }

// Selections returns the explicitly selected columns, or nil when all
// declared columns are selected.
func (q Query) Selections() []string { return q.selections }

// Conditions returns the primary filter conditions.
func (q Query) Conditions() []Condition { return q.conditions }

// Groups returns the composite condition groups.
func (q Query) Groups() [][]Condition { return q.groups }

// RelConditions returns the per-relationship condition groups.
func (q Query) RelConditions() []RelCondition { return q.relConds }

// Joins returns the join specifications.
func (q Query) Joins() []Join { return q.joins }

// Orders returns the ORDER BY entries.
func (q Query) Orders() []Order { return q.orders }

// GetLimit returns the LIMIT value and whether one was set.
func (q Query) GetLimit() (int, bool) {
	if q.limit == nil {
		return 0, false
	}
	return *q.limit, true
}

// GetOffset returns the OFFSET value and whether one was set.
func (q Query) GetOffset() (int, bool) {
	if q.offset == nil {
		return 0, false
	}
	return *q.offset, true
}

// Preloads returns the association names to eagerly load.
func (q Query) Preloads() []string { return q.preloads }

// HasJoins reports whether the query declares any joins.
func (q Query) HasJoins() bool { return len(q.joins) > 0 }

// SimplePreloads returns the preload names without a dot.
func (q Query) SimplePreloads() []string {
	var out []string
	for _, p := range q.preloads {
		if !strings.Contains(p, ".") {
			out = append(out, p)
		}
	}
	return out
}

// NestedPreloads returns the dotted preload names.
func (q Query) NestedPreloads() []string {
	var out []string
	for _, p := range q.preloads {
		if strings.Contains(p, ".") {
			out = append(out, p)
		}
	}
	return out
}
