// Package batch provides the generic key-set helpers shared by the
// relationship preloader and the batch writer: deduplication, chunking to a
// bounded size, and hash-join-style grouping.
package batch

// Dedupe returns the distinct values, preserving first-seen order.
func Dedupe[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Chunk splits values into consecutive slices of at most size elements.
// A size of zero or less yields a single chunk.
func Chunk[T any](values []T, size int) [][]T {
	if len(values) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{values}
	}
	chunks := make([][]T, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// GroupByKey groups values by a key function. Useful for one-to-many
// associations where multiple rows share the same foreign key.
func GroupByKey[K comparable, V any](values []V, keyFn func(V) K) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}
