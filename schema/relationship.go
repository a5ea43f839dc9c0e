package schema

// RelKind is the kind of a relationship edge between two entity types.
type RelKind int

// Relationship kinds.
const (
	HasMany RelKind = iota
	HasOne
	BelongsTo
	ManyToMany
)

// String returns the relationship kind name.
func (k RelKind) String() string {
	switch k {
	case HasMany:
		return "hasMany"
	case HasOne:
		return "hasOne"
	case BelongsTo:
		return "belongsTo"
	case ManyToMany:
		return "manyToMany"
	default:
		return "unknown"
	}
}

// Relationship describes exactly one edge in the entity graph.
//
// LocalKey is the column on the owning entity whose values drive the lookup;
// ForeignKey is the column on the related table those values are matched
// against. For hasMany/hasOne edges LocalKey defaults to the owner's primary
// key and ForeignKey to "<owner>_id"; for belongsTo edges LocalKey defaults
// to "<related>_id" and ForeignKey to the related primary key.
type Relationship struct {
	Name         string
	Kind         RelKind
	LocalKey     string
	ForeignKey   string
	RelatedType  string
	RelatedTable string
}

// Unique reports whether the edge attaches at most one related row.
func (r Relationship) Unique() bool {
	return r.Kind == HasOne || r.Kind == BelongsTo
}

// relBuilder builds a Relationship descriptor.
type relBuilder struct {
	r Relationship
}

// ToMany declares a hasMany edge to the named related entity type.
func ToMany(name, relatedType string) *relBuilder {
	return &relBuilder{r: Relationship{Name: name, Kind: HasMany, RelatedType: relatedType}}
}

// ToOne declares a hasOne edge to the named related entity type.
func ToOne(name, relatedType string) *relBuilder {
	return &relBuilder{r: Relationship{Name: name, Kind: HasOne, RelatedType: relatedType}}
}

// From declares a belongsTo edge to the named related entity type.
func From(name, relatedType string) *relBuilder {
	return &relBuilder{r: Relationship{Name: name, Kind: BelongsTo, RelatedType: relatedType}}
}

// Through declares a manyToMany edge. Preloading such an edge is not
// supported and fails with a NotImplementedError.
func Through(name, relatedType string) *relBuilder {
	return &relBuilder{r: Relationship{Name: name, Kind: ManyToMany, RelatedType: relatedType}}
}

// LocalKey overrides the column on the owning entity.
func (b *relBuilder) LocalKey(column string) *relBuilder {
	b.r.LocalKey = column
	return b
}

// ForeignKey overrides the column on the related table.
func (b *relBuilder) ForeignKey(column string) *relBuilder {
	b.r.ForeignKey = column
	return b
}

// Descriptor returns the built Relationship.
func (b *relBuilder) Descriptor() Relationship {
	return b.r
}
