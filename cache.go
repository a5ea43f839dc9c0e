package strata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Implement it with your preferred caching backend (Redis, Memcached,
// in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies one compiled statement in the cache. Keys share a
// table prefix so that writes can invalidate all cached reads of a table
// with a single DeletePrefix call.
func CacheKey(table, sql string, args []any) string {
	h := sha256.New()
	h.Write([]byte(sql))
	for _, a := range args {
		fmt.Fprintf(h, "|%v", a)
	}
	return table + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// CacheTablePrefix returns the key prefix shared by all cached statements
// of the given table.
func CacheTablePrefix(table string) string {
	return table + ":"
}

// rowPayload is the msgpack wire form of one Row.
type rowPayload struct {
	Columns []string `msgpack:"c"`
	Values  []any    `msgpack:"v"`
}

// EncodeRows serializes rows for cache storage using msgpack.
func EncodeRows(rows []Row) ([]byte, error) {
	payload := make([]rowPayload, len(rows))
	for i, r := range rows {
		cols := r.Columns()
		vals := make([]any, len(cols))
		for j, c := range cols {
			vals[j], _ = r.Value(c)
		}
		payload[i] = rowPayload{Columns: cols, Values: vals}
	}
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("strata: encode rows: %w", err)
	}
	return b, nil
}

// DecodeRows deserializes rows previously encoded with EncodeRows.
func DecodeRows(data []byte) ([]Row, error) {
	var payload []rowPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("strata: decode rows: %w", err)
	}
	rows := make([]Row, len(payload))
	for i, p := range payload {
		vals := make([]any, len(p.Values))
		for j, v := range p.Values {
			vals[j] = normalizeCached(v)
		}
		rows[i] = NewRow(p.Columns, vals)
	}
	return rows, nil
}

// normalizeCached folds the integer widths msgpack may decode into onto the
// types the Row accessors expect.
func normalizeCached(v any) any {
	switch v := v.(type) {
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
