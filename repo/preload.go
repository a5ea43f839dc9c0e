package repo

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/davrick/strata"
	"github.com/davrick/strata/internal/batch"
	"github.com/davrick/strata/query"
	"github.com/davrick/strata/schema"
)

// Preload eagerly loads the named associations for the given rows of the
// table and returns new rows with the related data attached under the
// association names. Dotted names ("posts.comments") load nested
// associations level by level.
//
// The number of issued queries is bounded by the number of distinct
// association paths (times the IN-list chunking), never by the number of
// rows. Independent top-level associations load concurrently; a failure in
// one cancels the rest and fails the whole call, so rows are never returned
// partially preloaded.
func (r *Repo) Preload(ctx context.Context, table string, rows []strata.Row, names ...string) ([]strata.Row, error) {
	t, err := r.registry.TypeByTable(table)
	if err != nil {
		return nil, err
	}
	return r.preloadType(ctx, t, rows, names)
}

func (r *Repo) preloadType(ctx context.Context, t *schema.Type, rows []strata.Row, names []string) ([]strata.Row, error) {
	if len(names) == 0 {
		return rows, nil
	}

	// Group paths by their first segment: "posts" and "posts.comments"
	// share one posts query.
	var order []string
	rests := make(map[string][]string)
	for _, name := range names {
		first, rest, _ := strings.Cut(name, ".")
		if _, ok := rests[first]; !ok {
			order = append(order, first)
			rests[first] = nil
		}
		if rest != "" {
			rests[first] = append(rests[first], rest)
		}
	}

	// Resolve every association up front so an unknown name fails before
	// any query is issued.
	rels := make(map[string]schema.Relationship, len(order))
	for _, first := range order {
		rel, err := r.registry.Relationship(t, first)
		if err != nil {
			return nil, err
		}
		if rel.Kind == schema.ManyToMany {
			return nil, strata.NewNotImplementedError("manyToMany preloading")
		}
		rels[first] = rel
	}
	if len(rows) == 0 {
		return rows, nil
	}

	// Each group resolves to a lookup table keyed by the owning rows'
	// local-key values. Groups are independent, so they load concurrently;
	// inside a transaction they run sequentially on the single connection.
	lookups := make([]map[any]any, len(order))
	load := func(ctx context.Context, i int) error {
		rel := rels[order[i]]
		related, err := r.loadRelated(ctx, rel, rows)
		if err != nil {
			return err
		}
		if rest := rests[order[i]]; len(rest) > 0 {
			relatedType, err := r.registry.Type(rel.RelatedType)
			if err != nil {
				return err
			}
			related, err = r.preloadType(ctx, relatedType, related, rest)
			if err != nil {
				return err
			}
		}
		lookups[i] = buildLookup(rel, related)
		return nil
	}
	if r.inTx || len(order) == 1 {
		for i := range order {
			if err := load(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i := range order {
			i := i
			g.Go(func() error { return load(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Attach in declaration order. Every attach returns a new Row; the
	// input rows are left untouched.
	out := make([]strata.Row, len(rows))
	copy(out, rows)
	for i, first := range order {
		rel := rels[first]
		for j := range out {
			out[j] = out[j].With(first, attachment(rel, lookups[i], out[j]))
		}
	}
	return out, nil
}

// loadRelated issues the bounded association queries for one relationship:
// the distinct local-key values of the owning rows, chunked to the batch
// size, matched against the related table's foreign-key column.
func (r *Repo) loadRelated(ctx context.Context, rel schema.Relationship, rows []strata.Row) ([]strata.Row, error) {
	var keys []any
	for _, row := range rows {
		v, ok := row.Value(rel.LocalKey)
		if !ok || v == nil {
			continue
		}
		keys = append(keys, normalizeKey(v))
	}
	keys = batch.Dedupe(keys)
	if len(keys) == 0 {
		return nil, nil
	}
	var related []strata.Row
	for _, chunk := range batch.Chunk(keys, r.batchSize) {
		q := query.From(rel.RelatedTable).Where(query.F(rel.ForeignKey).In(chunk...))
		part, err := r.All(ctx, q)
		if err != nil {
			return nil, err
		}
		related = append(related, part...)
	}
	return related, nil
}

// buildLookup builds the hash-join side of the association: related rows
// grouped by their foreign-key value, collapsed to a single row for unique
// edges.
func buildLookup(rel schema.Relationship, related []strata.Row) map[any]any {
	groups := batch.GroupByKey(related, func(row strata.Row) any {
		v, _ := row.Value(rel.ForeignKey)
		return normalizeKey(v)
	})
	lookup := make(map[any]any, len(groups))
	for k, g := range groups {
		if rel.Unique() {
			lookup[k] = g[0]
		} else {
			lookup[k] = g
		}
	}
	return lookup
}

// attachment computes the value attached to one owning row: the matched
// list for hasMany, the single match or nil for hasOne/belongsTo.
func attachment(rel schema.Relationship, lookup map[any]any, row strata.Row) any {
	v, ok := row.Value(rel.LocalKey)
	if ok && v != nil {
		if m, ok := lookup[normalizeKey(v)]; ok {
			return m
		}
	}
	if rel.Unique() {
		return nil
	}
	return []strata.Row{}
}

// normalizeKey folds driver value representations onto comparable map keys.
func normalizeKey(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}
