package schema

import (
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/davrick/strata"
)

// Type is the descriptor table of one entity: table name, primary key,
// declared fields, and named relationships. Descriptors are normalized and
// validated once, when the type is registered.
type Type struct {
	// Name is the entity type name, e.g. "User".
	Name string
	// Table is the database table name. Defaults to the pluralized
	// snake_case form of Name ("User" -> "users").
	Table string
	// ID is the primary key column. Defaults to "id".
	ID string
	// Fields are the persisted fields, in declaration order.
	Fields []Field
	// Relationships are the declared edges to other entity types.
	Relationships []Relationship

	fields map[string]Field
	rels   map[string]Relationship
}

// Columns returns the database column names in declaration order.
func (t *Type) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Column
	}
	return cols
}

// HasColumn reports whether the type declares the given column.
func (t *Type) HasColumn(column string) bool {
	_, ok := t.fields[column]
	return ok
}

// FieldByColumn returns the field declared for the given column.
func (t *Type) FieldByColumn(column string) (Field, bool) {
	f, ok := t.fields[column]
	return f, ok
}

// Registry holds the registered entity types and resolves relationship
// names to fully-populated descriptors.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*Type
	byTable map[string]*Type
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:   make(map[string]*Type),
		byTable: make(map[string]*Type),
	}
}

// Register normalizes, validates, and registers the given types.
// Registration order does not matter: relationship targets are resolved
// lazily at lookup time.
func (r *Registry) Register(types ...*Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if t.Name == "" {
			return strata.NewInvalidSchemaError("entity type with empty name")
		}
		if t.Table == "" {
			t.Table = inflect.Pluralize(inflect.Underscore(t.Name))
		}
		if t.ID == "" {
			t.ID = "id"
		}
		t.fields = make(map[string]Field, len(t.Fields))
		for i, f := range t.Fields {
			if f.Column == "" {
				f.Column = f.Name
				t.Fields[i] = f
			}
			t.fields[f.Column] = f
		}
		if _, ok := t.fields[t.ID]; !ok {
			return strata.NewInvalidSchemaError("%s: primary key column %q is not declared", t.Name, t.ID)
		}
		t.rels = make(map[string]Relationship, len(t.Relationships))
		for _, rel := range t.Relationships {
			if rel.Name == "" {
				return strata.NewInvalidSchemaError("%s: relationship with empty name", t.Name)
			}
			if _, ok := t.rels[rel.Name]; ok {
				return strata.NewInvalidSchemaError("%s: duplicate relationship %q", t.Name, rel.Name)
			}
			t.rels[rel.Name] = rel
		}
		r.types[t.Name] = t
		r.byTable[t.Table] = t
	}
	return nil
}

// Type returns the registered type with the given entity name.
func (r *Registry) Type(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, strata.NewInvalidSchemaError("unregistered entity type %q", name)
	}
	return t, nil
}

// TypeByTable returns the registered type mapped to the given table.
func (r *Registry) TypeByTable(table string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byTable[table]
	if !ok {
		return nil, strata.NewInvalidSchemaError("no entity type registered for table %q", table)
	}
	return t, nil
}

// Relationship resolves the named edge on the owner type to a
// fully-populated descriptor: key columns defaulted from the naming
// convention and the related table filled in from the registry.
//
// An unknown name fails with an InvalidRelationshipError; a known name
// whose target type is unregistered fails with an InvalidSchemaError.
func (r *Registry) Relationship(owner *Type, name string) (Relationship, error) {
	rel, ok := owner.rels[name]
	if !ok {
		return Relationship{}, strata.NewInvalidRelationshipError(owner.Name, name)
	}
	related, err := r.Type(rel.RelatedType)
	if err != nil {
		return Relationship{}, strata.NewInvalidSchemaError(
			"%s.%s: related type %q is not registered", owner.Name, name, rel.RelatedType)
	}
	rel.RelatedTable = related.Table
	switch rel.Kind {
	case HasMany, HasOne:
		if rel.LocalKey == "" {
			rel.LocalKey = owner.ID
		}
		if rel.ForeignKey == "" {
			rel.ForeignKey = inflect.Underscore(owner.Name) + "_id"
		}
	case BelongsTo:
		if rel.LocalKey == "" {
			rel.LocalKey = inflect.Underscore(rel.RelatedType) + "_id"
		}
		if rel.ForeignKey == "" {
			rel.ForeignKey = related.ID
		}
	}
	return rel, nil
}
