package strata

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Changeset represents a pending write plus accumulated validation errors.
// It is created before an insert or update, validated, consumed once by the
// repository, then discarded.
type Changeset struct {
	table   string
	changes map[string]any
	errs    map[string]string
}

// Cast creates a Changeset for the given table, copying only the permitted
// fields out of params. With no permitted fields, all params are taken.
func Cast(table string, params map[string]any, permitted ...string) *Changeset {
	cs := &Changeset{
		table:   table,
		changes: make(map[string]any, len(params)),
		errs:    make(map[string]string),
	}
	if len(permitted) == 0 {
		for k, v := range params {
			cs.changes[k] = v
		}
		return cs
	}
	for _, f := range permitted {
		if v, ok := params[f]; ok {
			cs.changes[f] = v
		}
	}
	return cs
}

// Table returns the target table of the changeset.
func (c *Changeset) Table() string {
	return c.table
}

// Put sets a change directly, bypassing casting.
func (c *Changeset) Put(field string, value any) *Changeset {
	c.changes[field] = value
	return c
}

// Changes returns the pending field-to-value changes.
func (c *Changeset) Changes() map[string]any {
	return c.changes
}

// Get returns a pending change value.
func (c *Changeset) Get(field string) (any, bool) {
	v, ok := c.changes[field]
	return v, ok
}

// AddError records a validation error for the given field. The first error
// per field wins.
func (c *Changeset) AddError(field, message string) *Changeset {
	if _, ok := c.errs[field]; !ok {
		c.errs[field] = message
	}
	return c
}

// Errors returns the accumulated field-to-message validation errors.
func (c *Changeset) Errors() map[string]string {
	return c.errs
}

// Valid reports whether the changeset has no validation errors.
func (c *Changeset) Valid() bool {
	return len(c.errs) == 0
}

// Err returns an *InvalidChangesetError if the changeset is invalid,
// otherwise nil.
func (c *Changeset) Err() error {
	if c.Valid() {
		return nil
	}
	fields := make(map[string]string, len(c.errs))
	for k, v := range c.errs {
		fields[k] = v
	}
	return &InvalidChangesetError{Table: c.table, Fields: fields}
}

// ValidateRequired adds an error for every named field that is absent or nil.
func (c *Changeset) ValidateRequired(fields ...string) *Changeset {
	for _, f := range fields {
		v, ok := c.changes[f]
		if !ok || v == nil {
			c.AddError(f, "can't be blank")
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			c.AddError(f, "can't be blank")
		}
	}
	return c
}

// ValidateLength validates that a string field length is within [min, max].
// A max of 0 means unbounded. Absent fields pass.
func (c *Changeset) ValidateLength(field string, min, max int) *Changeset {
	v, ok := c.changes[field]
	if !ok {
		return c
	}
	s, ok := v.(string)
	if !ok {
		c.AddError(field, "is not a string")
		return c
	}
	n := utf8.RuneCountInString(s)
	switch {
	case n < min:
		c.AddError(field, fmt.Sprintf("should be at least %d character(s)", min))
	case max > 0 && n > max:
		c.AddError(field, fmt.Sprintf("should be at most %d character(s)", max))
	}
	return c
}

// ValidateFormat validates that a string field matches the given pattern.
// Absent fields pass.
func (c *Changeset) ValidateFormat(field string, re *regexp.Regexp) *Changeset {
	v, ok := c.changes[field]
	if !ok {
		return c
	}
	s, ok := v.(string)
	if !ok {
		c.AddError(field, "is not a string")
		return c
	}
	if !re.MatchString(s) {
		c.AddError(field, "has invalid format")
	}
	return c
}

// ValidateInclusion validates that a field value is one of the allowed values.
// Absent fields pass.
func (c *Changeset) ValidateInclusion(field string, allowed ...any) *Changeset {
	v, ok := c.changes[field]
	if !ok {
		return c
	}
	for _, a := range allowed {
		if v == a {
			return c
		}
	}
	c.AddError(field, "is invalid")
	return c
}

// ValidateNumber validates that a numeric field is within [min, max].
// Absent fields pass.
func (c *Changeset) ValidateNumber(field string, min, max float64) *Changeset {
	v, ok := c.changes[field]
	if !ok {
		return c
	}
	var n float64
	switch v := v.(type) {
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	default:
		c.AddError(field, "is not a number")
		return c
	}
	switch {
	case n < min:
		c.AddError(field, fmt.Sprintf("must be greater than or equal to %v", min))
	case n > max:
		c.AddError(field, fmt.Sprintf("must be less than or equal to %v", max))
	}
	return c
}
