// Package schema holds the per-entity descriptor tables consumed by the SQL
// compiler and the relationship preloader: table name, declared fields with
// database column names and semantic kinds, the primary key, and the named
// relationships to other entity types.
//
// Descriptors are built once at registration time; row-to-entity mapping is
// a static loop over the field table rather than runtime introspection.
package schema

// A Kind is the semantic type of a field.
type Kind int

// Field kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindUUID
	KindBytes
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Field describes one persisted field of an entity.
type Field struct {
	// Name is the logical field name.
	Name string
	// Column is the database column name. Defaults to Name.
	Column string
	// Kind is the semantic type of the field.
	Kind Kind
	// Required reports whether the column is NOT NULL.
	Required bool
}

// fieldBuilder builds a Field descriptor.
type fieldBuilder struct {
	f Field
}

// String returns a builder for a string field.
func String(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindString}}
}

// Int returns a builder for an integer field.
func Int(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindInt}}
}

// Float returns a builder for a float field.
func Float(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindFloat}}
}

// Bool returns a builder for a boolean field.
func Bool(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindBool}}
}

// Time returns a builder for a timestamp field.
func Time(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindTime}}
}

// UUID returns a builder for a UUID field.
func UUID(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindUUID}}
}

// Bytes returns a builder for a byte-sequence field.
func Bytes(name string) *fieldBuilder {
	return &fieldBuilder{f: Field{Name: name, Column: name, Kind: KindBytes}}
}

// Column overrides the database column name.
func (b *fieldBuilder) Column(name string) *fieldBuilder {
	b.f.Column = name
	return b
}

// Required marks the field as NOT NULL.
func (b *fieldBuilder) Required() *fieldBuilder {
	b.f.Required = true
	return b
}

// Descriptor returns the built Field.
func (b *fieldBuilder) Descriptor() Field {
	return b.f
}
