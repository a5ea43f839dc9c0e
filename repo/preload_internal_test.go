package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	// Every integer width a driver may hand back folds onto one
	// comparable key, so owning and related rows group together even
	// when their columns decode to different Go types.
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", int(7), int64(7)},
		{"int8", int8(7), int64(7)},
		{"int16", int16(7), int64(7)},
		{"int32", int32(7), int64(7)},
		{"int64", int64(7), int64(7)},
		{"uint", uint(7), int64(7)},
		{"uint8", uint8(7), int64(7)},
		{"uint16", uint16(7), int64(7)},
		{"uint32", uint32(7), int64(7)},
		{"uint64", uint64(7), int64(7)},
		{"float32", float32(1.5), float64(1.5)},
		{"bytes", []byte("k7"), "k7"},
		{"string", "k7", "k7"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeKey(tt.in))
		})
	}
}
