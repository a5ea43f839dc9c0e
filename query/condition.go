package query

// Supported condition operators. The SQL compiler rejects anything outside
// this set, so user input can never splice operator text into a statement.
const (
	OpEQ        = "="
	OpNEQ       = "!="
	OpGT        = ">"
	OpGTE       = ">="
	OpLT        = "<"
	OpLTE       = "<="
	OpLike      = "LIKE"
	OpILike     = "ILIKE"
	OpIn        = "IN"
	OpNotIn     = "NOT IN"
	OpBetween   = "BETWEEN"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
)

// Condition is a single filter: a field, a whitelisted operator, and a
// value (scalar, or a list for IN / NOT IN / BETWEEN).
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// Column is a typed expression builder over a column name.
//
//	query.F("age").GTE(18)
//	query.F("email").Like("%@example.com")
type Column string

// F returns a Column expression builder for the given column name.
func F(name string) Column { return Column(name) }

// EQ returns a "field = value" condition.
func (c Column) EQ(v any) Condition {
	return Condition{Field: string(c), Operator: OpEQ, Value: v}
}

// NEQ returns a "field != value" condition.
func (c Column) NEQ(v any) Condition {
	return Condition{Field: string(c), Operator: OpNEQ, Value: v}
}

// GT returns a "field > value" condition.
func (c Column) GT(v any) Condition {
	return Condition{Field: string(c), Operator: OpGT, Value: v}
}

// GTE returns a "field >= value" condition.
func (c Column) GTE(v any) Condition {
	return Condition{Field: string(c), Operator: OpGTE, Value: v}
}

// LT returns a "field < value" condition.
func (c Column) LT(v any) Condition {
	return Condition{Field: string(c), Operator: OpLT, Value: v}
}

// LTE returns a "field <= value" condition.
func (c Column) LTE(v any) Condition {
	return Condition{Field: string(c), Operator: OpLTE, Value: v}
}

// Like returns a case-sensitive pattern-match condition.
func (c Column) Like(pattern string) Condition {
	return Condition{Field: string(c), Operator: OpLike, Value: pattern}
}

// ILike returns a case-insensitive pattern-match condition.
func (c Column) ILike(pattern string) Condition {
	return Condition{Field: string(c), Operator: OpILike, Value: pattern}
}

// In returns a "field IN (...)" condition.
func (c Column) In(vs ...any) Condition {
	return Condition{Field: string(c), Operator: OpIn, Value: vs}
}

// NotIn returns a "field NOT IN (...)" condition.
func (c Column) NotIn(vs ...any) Condition {
	return Condition{Field: string(c), Operator: OpNotIn, Value: vs}
}

// Between returns a "field BETWEEN lo AND hi" condition.
func (c Column) Between(lo, hi any) Condition {
	return Condition{Field: string(c), Operator: OpBetween, Value: []any{lo, hi}}
}

// IsNull returns a "field IS NULL" condition.
func (c Column) IsNull() Condition {
	return Condition{Field: string(c), Operator: OpIsNull}
}

// NotNull returns a "field IS NOT NULL" condition.
func (c Column) NotNull() Condition {
	return Condition{Field: string(c), Operator: OpIsNotNull}
}
