// Package repo executes compiled statements against a dialect driver and
// reassembles the results: row decoding, eager relationship loading, and
// transaction scoping. A Repo holds no global state; every operation takes
// a context and runs against the repo's driver (or the transaction the repo
// is bound to).
package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/davrick/strata"
	"github.com/davrick/strata/dialect"
	dsql "github.com/davrick/strata/dialect/sql"
	"github.com/davrick/strata/query"
	"github.com/davrick/strata/schema"
	"github.com/davrick/strata/sqlgen"
)

// Repo is the entry point for executing query specifications.
type Repo struct {
	drv       dialect.Driver
	registry  *schema.Registry
	log       *slog.Logger
	batchSize int
	cache     strata.Cache
	cacheTTL  time.Duration

	// inTx marks a transaction-scoped repo: statements run on the single
	// connection owned by the transaction, so association loads must not
	// fan out concurrently, and nested Transaction calls join the active
	// span instead of opening a new one.
	inTx bool

	// touched collects tables written inside a transaction. The shared
	// cache is invalidated for them after COMMIT; rolled-back writes
	// never reach it.
	touched map[string]struct{}
}

// Option configures a Repo.
type Option func(*Repo)

// WithLogger sets the structured logger used for secondary failures
// (rollback errors, cache invalidation errors).
func WithLogger(log *slog.Logger) Option {
	return func(r *Repo) { r.log = log }
}

// WithBatchSize sets the maximum number of values per batched IN list and
// rows per multi-row INSERT. Default is 1000.
func WithBatchSize(n int) Option {
	return func(r *Repo) { r.batchSize = n }
}

// WithCache enables read-through caching of query results. Cached entries
// for a table are invalidated whenever the table is written through this
// repo.
func WithCache(c strata.Cache, ttl time.Duration) Option {
	return func(r *Repo) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// New returns a Repo executing against the given driver and registry.
func New(drv dialect.Driver, registry *schema.Registry, opts ...Option) *Repo {
	r := &Repo{
		drv:       drv,
		registry:  registry,
		log:       slog.Default(),
		batchSize: sqlgen.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the schema registry the repo compiles against.
func (r *Repo) Registry() *schema.Registry {
	return r.registry
}

// All compiles and executes the query, returning one Row per result. When
// the specification carries preload directives, the named associations are
// eagerly loaded and attached before the rows are returned.
func (r *Repo) All(ctx context.Context, q query.Query) ([]strata.Row, error) {
	sql, args, err := sqlgen.Select(r.registry, q)
	if err != nil {
		return nil, err
	}
	rows, err := r.cachedQuery(ctx, q.Table(), sql, args)
	if err != nil {
		return nil, err
	}
	if preloads := q.Preloads(); len(preloads) > 0 {
		rows, err = r.Preload(ctx, q.Table(), rows, preloads...)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// One executes the query and returns exactly one Row. Zero rows fail with
// a NotFoundError; more than one fails with an UnexpectedResultCountError.
func (r *Repo) One(ctx context.Context, q query.Query) (strata.Row, error) {
	t, err := r.registry.TypeByTable(q.Table())
	if err != nil {
		return strata.Row{}, err
	}
	rows, err := r.All(ctx, q.Limit(2))
	if err != nil {
		return strata.Row{}, err
	}
	switch len(rows) {
	case 1:
		return rows[0], nil
	case 0:
		return strata.Row{}, strata.NewNotFoundError(t.Name)
	default:
		return strata.Row{}, strata.NewUnexpectedResultCountError(t.Name, "one", len(rows))
	}
}

// Count executes a COUNT(*) over the query's filters.
func (r *Repo) Count(ctx context.Context, q query.Query) (int64, error) {
	sql, args, err := sqlgen.Count(r.registry, q)
	if err != nil {
		return 0, err
	}
	rows, err := r.queryRows(ctx, sql, args)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || rows[0].Len() == 0 {
		return 0, strata.NewDatabaseError(sql, errors.New("count returned no rows"))
	}
	return rows[0].Int64(rows[0].Columns()[0])
}

// Exists reports whether the query matches at least one row.
func (r *Repo) Exists(ctx context.Context, q query.Query) (bool, error) {
	n, err := r.Count(ctx, q)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert applies a valid changeset as a single-row INSERT ... RETURNING *
// and returns the stored row.
func (r *Repo) Insert(ctx context.Context, cs *strata.Changeset) (strata.Row, error) {
	if err := cs.Err(); err != nil {
		return strata.Row{}, err
	}
	t, err := r.registry.TypeByTable(cs.Table())
	if err != nil {
		return strata.Row{}, err
	}
	sql, args, err := sqlgen.Insert(t, cs.Changes())
	if err != nil {
		return strata.Row{}, err
	}
	return r.execReturningOne(ctx, t, "insert", sql, args)
}

// InsertAll inserts the rows with multi-row VALUES statements, one per
// batch of at most the configured batch size, and returns the stored rows.
func (r *Repo) InsertAll(ctx context.Context, table string, values []map[string]any) ([]strata.Row, error) {
	t, err := r.registry.TypeByTable(table)
	if err != nil {
		return nil, err
	}
	stmts, err := sqlgen.InsertBatch(t, values, r.batchSize)
	if err != nil {
		return nil, err
	}
	var out []strata.Row
	for _, stmt := range stmts {
		rows, err := r.queryRows(ctx, stmt.SQL, stmt.Args)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if len(out) != len(values) {
		return nil, strata.NewUnexpectedResultCountError(t.Name, "insert", len(out))
	}
	r.invalidate(ctx, t.Table)
	return out, nil
}

// Update applies a valid changeset as an UPDATE by primary key and returns
// the stored row. Zero returned rows fail with a NotFoundError.
func (r *Repo) Update(ctx context.Context, id any, cs *strata.Changeset) (strata.Row, error) {
	if err := cs.Err(); err != nil {
		return strata.Row{}, err
	}
	t, err := r.registry.TypeByTable(cs.Table())
	if err != nil {
		return strata.Row{}, err
	}
	sql, args, err := sqlgen.Update(t, id, cs.Changes())
	if err != nil {
		return strata.Row{}, err
	}
	rows, err := r.queryRows(ctx, sql, args)
	if err != nil {
		return strata.Row{}, err
	}
	switch len(rows) {
	case 1:
		r.invalidate(ctx, t.Table)
		return rows[0], nil
	case 0:
		return strata.Row{}, strata.NewNotFoundErrorWithID(t.Name, id)
	default:
		return strata.Row{}, strata.NewUnexpectedResultCountError(t.Name, "update", len(rows))
	}
}

// Upsert applies a valid changeset as INSERT ... ON CONFLICT DO UPDATE and
// returns the stored row. Only the conflict's update columns are rewritten
// on conflict; other columns of the existing row are left unchanged.
func (r *Repo) Upsert(ctx context.Context, cs *strata.Changeset, conflict sqlgen.Conflict) (strata.Row, error) {
	if err := cs.Err(); err != nil {
		return strata.Row{}, err
	}
	t, err := r.registry.TypeByTable(cs.Table())
	if err != nil {
		return strata.Row{}, err
	}
	sql, args, err := sqlgen.Upsert(t, cs.Changes(), conflict)
	if err != nil {
		return strata.Row{}, err
	}
	return r.execReturningOne(ctx, t, "upsert", sql, args)
}

// Delete executes a DELETE over the query's filters and returns the number
// of removed rows.
func (r *Repo) Delete(ctx context.Context, q query.Query) (int64, error) {
	sql, args, err := sqlgen.Delete(r.registry, q)
	if err != nil {
		return 0, err
	}
	var res dsql.Result
	if err := r.drv.Exec(ctx, sql, args, &res); err != nil {
		return 0, r.translate(sql, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, strata.NewDatabaseError(sql, err)
	}
	r.invalidate(ctx, q.Table())
	return n, nil
}

// execReturningOne runs a RETURNING * statement that must yield exactly one
// row.
func (r *Repo) execReturningOne(ctx context.Context, t *schema.Type, op, sql string, args []any) (strata.Row, error) {
	rows, err := r.queryRows(ctx, sql, args)
	if err != nil {
		return strata.Row{}, err
	}
	if len(rows) != 1 {
		return strata.Row{}, strata.NewUnexpectedResultCountError(t.Name, op, len(rows))
	}
	r.invalidate(ctx, t.Table)
	return rows[0], nil
}

// queryRows is the single point where raw driver values are decoded into
// the Row model.
func (r *Repo) queryRows(ctx context.Context, sql string, args []any) ([]strata.Row, error) {
	var rows dsql.Rows
	if err := r.drv.Query(ctx, sql, args, &rows); err != nil {
		return nil, r.translate(sql, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, strata.NewDatabaseError(sql, err)
	}
	var out []strata.Row
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, strata.NewDatabaseError(sql, err)
		}
		out = append(out, strata.NewRow(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, strata.NewDatabaseError(sql, err)
	}
	return out, nil
}

// cachedQuery reads rows through the cache when one is configured.
func (r *Repo) cachedQuery(ctx context.Context, table, sql string, args []any) ([]strata.Row, error) {
	if r.cache == nil {
		return r.queryRows(ctx, sql, args)
	}
	key := strata.CacheKey(table, sql, args)
	if data, err := r.cache.Get(ctx, key); err != nil {
		r.log.Warn("cache read failed", "table", table, "error", err)
	} else if data != nil {
		rows, err := strata.DecodeRows(data)
		if err == nil {
			return rows, nil
		}
		r.log.Warn("cache decode failed", "table", table, "error", err)
	}
	rows, err := r.queryRows(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	if data, err := strata.EncodeRows(rows); err != nil {
		r.log.Warn("cache encode failed", "table", table, "error", err)
	} else if err := r.cache.Set(ctx, key, data, r.cacheTTL); err != nil {
		r.log.Warn("cache write failed", "table", table, "error", err)
	}
	return rows, nil
}

// invalidate drops all cached reads of the table. Best effort: a cache
// failure is logged, never surfaced.
func (r *Repo) invalidate(ctx context.Context, table string) {
	if r.touched != nil {
		r.touched[table] = struct{}{}
		return
	}
	if r.cache == nil {
		return
	}
	if err := r.cache.DeletePrefix(ctx, strata.CacheTablePrefix(table)); err != nil {
		r.log.Warn("cache invalidation failed", "table", table, "error", err)
	}
}

// translate maps driver failures onto the error taxonomy, keeping the
// originating statement for context.
func (r *Repo) translate(sql string, err error) error {
	if err == nil {
		return nil
	}
	if dsql.IsConstraintError(err) {
		msg := err.Error()
		if name := dsql.ConstraintName(err); name != "" {
			msg = name
		}
		return strata.NewConstraintError(msg, err)
	}
	return strata.NewDatabaseError(sql, err)
}
