package strata_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrick/strata"
)

func TestCacheKey(t *testing.T) {
	t.Parallel()

	k1 := strata.CacheKey("users", "SELECT * FROM users WHERE age >= $1", []any{18})
	k2 := strata.CacheKey("users", "SELECT * FROM users WHERE age >= $1", []any{18})
	k3 := strata.CacheKey("users", "SELECT * FROM users WHERE age >= $1", []any{21})
	k4 := strata.CacheKey("users", "SELECT * FROM users WHERE age > $1", []any{18})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.True(t, strings.HasPrefix(k1, strata.CacheTablePrefix("users")))
	assert.False(t, strings.HasPrefix(k1, strata.CacheTablePrefix("posts")))
}

func TestEncodeDecodeRows(t *testing.T) {
	t.Parallel()

	rows := []strata.Row{
		strata.NewRow([]string{"id", "name", "score", "active", "bio"}, []any{int64(1), "ariel", 98.5, true, nil}),
		strata.NewRow([]string{"id", "name", "score", "active", "bio"}, []any{int64(2), "nati", 55.0, false, "hi"}),
	}

	data, err := strata.EncodeRows(rows)
	require.NoError(t, err)

	decoded, err := strata.DecodeRows(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, rows[0].Columns(), decoded[0].Columns())

	id, err := decoded[0].Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	name, err := decoded[1].String("name")
	require.NoError(t, err)
	assert.Equal(t, "nati", name)

	score, err := decoded[0].Float64("score")
	require.NoError(t, err)
	assert.Equal(t, 98.5, score)

	active, err := decoded[1].Bool("active")
	require.NoError(t, err)
	assert.False(t, active)

	assert.True(t, decoded[0].IsNull("bio"))

	// A decoded empty set stays an empty set.
	empty, err := strata.EncodeRows(nil)
	require.NoError(t, err)
	decoded, err = strata.DecodeRows(empty)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeRowsCorrupt(t *testing.T) {
	t.Parallel()

	_, err := strata.DecodeRows([]byte{0xc1})
	assert.ErrorContains(t, err, "decode rows")
}
