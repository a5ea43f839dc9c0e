// Package sqlgen compiles query specifications into parameterized SQL for a
// PostgreSQL-protocol backend: $n placeholders, RETURNING clauses.
//
// Clauses are built as fragments holding symbolic parameter slots. Fragments
// compile independently (primary conditions, each composite group, each
// relationship group) and are flattened to numbered placeholders in a single
// final pass, so merged statements always carry the placeholder set
// {$1..$k} with no gaps or duplicates.
package sqlgen

import (
	"regexp"
	"strconv"
	"strings"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores,
// dots for table.column).
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// part is one element of a fragment: literal SQL text, or a parameter slot.
type part struct {
	text string
	slot bool
}

// fragment is a clause with symbolic parameter slots. Slots are assigned
// their final $n index only when the fragment is flattened.
type fragment struct {
	parts []part
	args  []any
}

// raw appends literal SQL text.
func (f *fragment) raw(s string) *fragment {
	f.parts = append(f.parts, part{text: s})
	return f
}

// arg appends a parameter slot bound to the given value.
func (f *fragment) arg(v any) *fragment {
	f.parts = append(f.parts, part{slot: true})
	f.args = append(f.args, v)
	return f
}

// join appends another fragment's parts and arguments.
func (f *fragment) join(other *fragment) *fragment {
	f.parts = append(f.parts, other.parts...)
	f.args = append(f.args, other.args...)
	return f
}

// empty reports whether the fragment holds no SQL at all.
func (f *fragment) empty() bool {
	return len(f.parts) == 0
}

// flatten renders the fragment to SQL text, numbering parameter slots
// sequentially starting at next. It returns the text and the next unused
// placeholder index.
func (f *fragment) flatten(next int) (string, int) {
	var sb strings.Builder
	for _, p := range f.parts {
		if p.slot {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(next))
			next++
		} else {
			sb.WriteString(p.text)
		}
	}
	return sb.String(), next
}

// flattenAll renders the fragments in order with one continuous placeholder
// sequence and returns the texts plus the combined argument list.
func flattenAll(frags []*fragment) ([]string, []any) {
	var (
		texts = make([]string, 0, len(frags))
		args  []any
		next  = 1
	)
	for _, f := range frags {
		var text string
		text, next = f.flatten(next)
		texts = append(texts, text)
		args = append(args, f.args...)
	}
	return texts, args
}
