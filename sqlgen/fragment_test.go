package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragmentFlatten(t *testing.T) {
	t.Parallel()

	f := &fragment{}
	f.raw("age >= ").arg(18).raw(" AND email LIKE ").arg("%@x.com")
	g := &fragment{}
	g.raw("(id IN (").arg(1).raw(", ").arg(2).raw("))")

	texts, args := flattenAll([]*fragment{f, g})
	assert.Equal(t, []string{"age >= $1 AND email LIKE $2", "(id IN ($3, $4))"}, texts)
	assert.Equal(t, []any{18, "%@x.com", 1, 2}, args)

	// Flattening is a pure rendering step; a second pass yields the same text.
	text, next := f.flatten(1)
	assert.Equal(t, "age >= $1 AND email LIKE $2", text)
	assert.Equal(t, 3, next)
}

func TestFragmentJoin(t *testing.T) {
	t.Parallel()

	f := &fragment{}
	f.raw("a = ").arg(1)
	g := &fragment{}
	g.raw(" AND b = ").arg(2)
	f.join(g)

	text, next := f.flatten(1)
	assert.Equal(t, "a = $1 AND b = $2", text)
	assert.Equal(t, 3, next)
	assert.False(t, f.empty())
	assert.True(t, (&fragment{}).empty())
}

func TestIsValidIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"age", true},
		{"user_id", true},
		{"users.age", true},
		{"_private", true},
		{"Col9", true},
		{"", false},
		{"9col", false},
		{"age; DROP TABLE users", false},
		{"name, password", false},
		{"a-b", false},
		{"users.*", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isValidIdentifier(tt.in), tt.in)
	}
}
