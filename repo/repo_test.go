package repo_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrick/strata"
	"github.com/davrick/strata/dialect"
	dsql "github.com/davrick/strata/dialect/sql"
	"github.com/davrick/strata/query"
	"github.com/davrick/strata/repo"
	"github.com/davrick/strata/schema"
	"github.com/davrick/strata/sqlgen"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(
		&schema.Type{
			Name: "User",
			Fields: []schema.Field{
				schema.Int("id").Descriptor(),
				schema.String("name").Descriptor(),
				schema.String("email").Descriptor(),
				schema.Int("age").Descriptor(),
			},
			Relationships: []schema.Relationship{
				schema.ToMany("posts", "Post").Descriptor(),
				schema.ToOne("profile", "Profile").Descriptor(),
				schema.Through("groups", "Group").Descriptor(),
			},
		},
		&schema.Type{
			Name: "Post",
			Fields: []schema.Field{
				schema.Int("id").Descriptor(),
				schema.String("title").Descriptor(),
				schema.Int("user_id").Descriptor(),
			},
			Relationships: []schema.Relationship{
				schema.From("author", "User").Descriptor(),
				schema.ToMany("comments", "Comment").Descriptor(),
			},
		},
		&schema.Type{
			Name: "Comment",
			Fields: []schema.Field{
				schema.Int("id").Descriptor(),
				schema.String("body").Descriptor(),
				schema.Int("post_id").Descriptor(),
			},
		},
		&schema.Type{
			Name: "Profile",
			Fields: []schema.Field{
				schema.Int("id").Descriptor(),
				schema.Int("user_id").Descriptor(),
			},
		},
		&schema.Type{
			Name:   "Group",
			Fields: []schema.Field{schema.Int("id").Descriptor()},
		},
	))
	return reg
}

// newTestRepo returns a repo backed by a sqlmock connection matching
// statements by exact text.
func newTestRepo(t *testing.T, opts ...repo.Option) (*repo.Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	drv := dsql.OpenDB(dialect.Postgres, db)
	return repo.New(drv, testRegistry(t), opts...), mock
}

func TestAll(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT * FROM users WHERE age >= $1 AND email LIKE $2 LIMIT 10").
		WithArgs(18, "%@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "age"}).
			AddRow(int64(1), "ariel", "a@x.com", int64(30)).
			AddRow(int64(2), "nati", "n@x.com", int64(25)))

	rows, err := r.All(context.Background(), query.From("users").
		Where(query.F("age").GTE(18)).
		Where(query.F("email").Like("%@x.com")).
		Limit(10))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	name, err := rows[0].String("name")
	require.NoError(t, err)
	assert.Equal(t, "ariel", name)
	age, err := rows[1].Int64("age")
	require.NoError(t, err)
	assert.Equal(t, int64(25), age)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllDatabaseError(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT * FROM users").
		WillReturnError(pq.ErrSSLNotSupported)

	_, err := r.All(context.Background(), query.From("users"))
	require.Error(t, err)
	assert.True(t, strata.IsDatabaseError(err))
	assert.ErrorContains(t, err, "SELECT * FROM users")
}

func TestOne(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)
	ctx := context.Background()

	// One always queries with LIMIT 2 so multiple matches are detectable.
	mock.ExpectQuery("SELECT * FROM users WHERE id = $1 LIMIT 2").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "ariel"))

	row, err := r.One(ctx, query.From("users").Where(query.F("id").EQ(7)))
	require.NoError(t, err)
	id, err := row.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	mock.ExpectQuery("SELECT * FROM users WHERE id = $1 LIMIT 2").
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err = r.One(ctx, query.From("users").Where(query.F("id").EQ(8)))
	require.Error(t, err)
	assert.True(t, strata.IsNotFound(err))

	mock.ExpectQuery("SELECT * FROM users WHERE email = $1 LIMIT 2").
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	_, err = r.One(ctx, query.From("users").Where(query.F("email").EQ("a@x.com")))
	require.Error(t, err)
	assert.True(t, strata.IsUnexpectedResultCount(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAndExists(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT(*) FROM users WHERE age >= $1").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	n, err := r.Count(ctx, query.From("users").Where(query.F("age").GTE(18)))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	mock.ExpectQuery("SELECT COUNT(*) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	ok, err := r.Exists(ctx, query.From("users"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectQuery("INSERT INTO users (age, email, name) VALUES ($1, $2, $3) RETURNING *").
		WithArgs(30, "a@x.com", "ariel").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "age"}).
			AddRow(int64(10), "ariel", "a@x.com", int64(30)))

	cs := strata.Cast("users", map[string]any{"name": "ariel", "email": "a@x.com", "age": 30})
	row, err := r.Insert(context.Background(), cs)
	require.NoError(t, err)
	id, err := row.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertInvalidChangeset(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	// Validation failures never reach the database.
	cs := strata.Cast("users", map[string]any{"name": ""}).ValidateRequired("name")
	_, err := r.Insert(context.Background(), cs)
	require.Error(t, err)
	assert.True(t, strata.IsInvalidChangeset(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertConstraintError(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectQuery("INSERT INTO users (email) VALUES ($1) RETURNING *").
		WithArgs("a@x.com").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	cs := strata.Cast("users", map[string]any{"email": "a@x.com"})
	_, err := r.Insert(context.Background(), cs)
	require.Error(t, err)
	assert.True(t, strata.IsConstraintError(err))
	assert.ErrorContains(t, err, "users_email_key")
}

func TestInsertAll(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectQuery("INSERT INTO users (email, name) VALUES ($1, $2), ($3, $4) RETURNING *").
		WithArgs("a@x.com", "a", nil, "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), "b"))

	rows, err := r.InsertAll(context.Background(), "users", []map[string]any{
		{"name": "a", "email": "a@x.com"},
		{"name": "b"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE users SET name = $1 WHERE id = $2 RETURNING *").
		WithArgs("nati", 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "nati"))

	cs := strata.Cast("users", map[string]any{"name": "nati"})
	row, err := r.Update(ctx, 7, cs)
	require.NoError(t, err)
	name, err := row.String("name")
	require.NoError(t, err)
	assert.Equal(t, "nati", name)

	// An update matching no row is a not-found, not a silent no-op.
	mock.ExpectQuery("UPDATE users SET name = $1 WHERE id = $2 RETURNING *").
		WithArgs("nati", 999).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err = r.Update(ctx, 999, strata.Cast("users", map[string]any{"name": "nati"}))
	require.Error(t, err)
	assert.True(t, strata.IsNotFound(err))
	assert.ErrorContains(t, err, "id=999")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectQuery("INSERT INTO users (email, name) VALUES ($1, $2) ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name RETURNING *").
		WithArgs("a@x.com", "ariel").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(int64(1), "ariel", "a@x.com"))

	cs := strata.Cast("users", map[string]any{"email": "a@x.com", "name": "ariel"})
	row, err := r.Upsert(context.Background(), cs, sqlgen.Conflict{
		Columns:    []string{"email"},
		SetColumns: []string{"name"},
	})
	require.NoError(t, err)
	id, err := row.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Parallel()
	r, mock := newTestRepo(t)

	mock.ExpectExec("DELETE FROM users WHERE age < $1").
		WithArgs(18).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := r.Delete(context.Background(), query.From("users").Where(query.F("age").LT(18)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// memCache is an in-memory strata.Cache for exercising the read-through
// path.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *memCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}

func TestAllReadThroughCache(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	r, mock := newTestRepo(t, repo.WithCache(cache, time.Minute))
	ctx := context.Background()
	q := query.From("users").Where(query.F("age").GTE(18))

	// First read misses the cache and hits the database.
	mock.ExpectQuery("SELECT * FROM users WHERE age >= $1").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ariel"))

	rows, err := r.All(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Second read is served from the cache: no query expected.
	rows, err = r.All(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, err := rows[0].String("name")
	require.NoError(t, err)
	assert.Equal(t, "ariel", name)

	// A write invalidates the table, so the next read hits the database.
	mock.ExpectExec("DELETE FROM users WHERE id = $1").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT * FROM users WHERE age >= $1").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err = r.Delete(ctx, query.From("users").Where(query.F("id").EQ(1)))
	require.NoError(t, err)
	rows, err = r.All(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
