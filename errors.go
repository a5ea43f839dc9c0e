package strata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("strata: entity not found")

	// ErrNotSingular is returned when a statement that expects exactly one
	// result row returns zero or multiple rows.
	ErrNotSingular = errors.New("strata: entity not singular")

	// ErrNotImplemented is returned for operations the layer deliberately
	// does not support, such as many-to-many preloading.
	ErrNotImplemented = errors.New("strata: not implemented")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("strata: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("strata: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// UnexpectedResultCountError represents an error when a statement that must
// return exactly one row returned a different number of rows.
type UnexpectedResultCountError struct {
	label string
	op    string // Operation (e.g., "insert", "update")
	count int    // Number of rows returned
}

// Error returns the error string.
func (e *UnexpectedResultCountError) Error() string {
	return fmt.Sprintf("strata: %s %s returned %d rows, expected 1", e.op, e.label, e.count)
}

// Is reports whether the target error matches UnexpectedResultCountError.
func (e *UnexpectedResultCountError) Is(err error) bool {
	return err == ErrNotSingular
}

// Count returns the number of rows the statement returned.
func (e *UnexpectedResultCountError) Count() int {
	return e.count
}

// NewUnexpectedResultCountError returns a new UnexpectedResultCountError.
func NewUnexpectedResultCountError(label, op string, count int) *UnexpectedResultCountError {
	return &UnexpectedResultCountError{label: label, op: op, count: count}
}

// IsUnexpectedResultCount returns true if the error is an UnexpectedResultCountError.
func IsUnexpectedResultCount(err error) bool {
	if err == nil {
		return false
	}
	var e *UnexpectedResultCountError
	return errors.As(err, &e)
}

// InvalidRelationshipError represents an error when a preload or join
// references an association name that is not declared on the entity.
type InvalidRelationshipError struct {
	entity string
	name   string
}

// Error returns the error string.
func (e *InvalidRelationshipError) Error() string {
	return fmt.Sprintf("strata: %s has no relationship %q", e.entity, e.name)
}

// Name returns the unresolved association name.
func (e *InvalidRelationshipError) Name() string {
	return e.name
}

// NewInvalidRelationshipError returns a new InvalidRelationshipError.
func NewInvalidRelationshipError(entity, name string) *InvalidRelationshipError {
	return &InvalidRelationshipError{entity: entity, name: name}
}

// IsInvalidRelationship returns true if the error is an InvalidRelationshipError.
func IsInvalidRelationship(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidRelationshipError
	return errors.As(err, &e)
}

// InvalidSchemaError represents a structural misconfiguration, such as a
// missing primary key or an empty upsert update-list.
type InvalidSchemaError struct {
	msg string
}

// Error returns the error string.
func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("strata: invalid schema: %s", e.msg)
}

// NewInvalidSchemaError returns a new InvalidSchemaError with the given message.
func NewInvalidSchemaError(format string, args ...any) *InvalidSchemaError {
	return &InvalidSchemaError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalidSchema returns true if the error is an InvalidSchemaError.
func IsInvalidSchema(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidSchemaError
	return errors.As(err, &e)
}

// InvalidChangesetError represents a pending write that failed validation.
// It carries the accumulated field to message map.
type InvalidChangesetError struct {
	Table  string
	Fields map[string]string
}

// Error returns the error string.
func (e *InvalidChangesetError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("strata: changeset for %s is invalid", e.Table)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	fmt.Fprintf(&sb, "strata: changeset for %s is invalid:", e.Table)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s: %s;", k, e.Fields[k])
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// IsInvalidChangeset returns true if the error is an InvalidChangesetError.
func IsInvalidChangeset(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidChangesetError
	return errors.As(err, &e)
}

// NotImplementedError represents an operation the layer deliberately does
// not support.
type NotImplementedError struct {
	feature string
}

// Error returns the error string.
func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("strata: %s is not implemented", e.feature)
}

// Is reports whether the target error matches NotImplementedError.
func (e *NotImplementedError) Is(err error) bool {
	return err == ErrNotImplemented
}

// NewNotImplementedError returns a new NotImplementedError for the given feature.
func NewNotImplementedError(feature string) *NotImplementedError {
	return &NotImplementedError{feature: feature}
}

// IsNotImplemented returns true if the error is a NotImplementedError.
func IsNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var e *NotImplementedError
	return errors.As(err, &e) || errors.Is(err, ErrNotImplemented)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// DatabaseError wraps an opaque failure from the driver layer with the
// originating SQL statement.
type DatabaseError struct {
	SQL string // Statement that failed
	Err error  // Underlying driver error
}

// Error returns the error string.
func (e *DatabaseError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("strata: database error: %v (sql: %s)", e.Err, e.SQL)
	}
	return fmt.Sprintf("strata: database error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError returns a new DatabaseError wrapping the driver failure.
func NewDatabaseError(sql string, err error) *DatabaseError {
	return &DatabaseError{SQL: sql, Err: err}
}

// IsDatabaseError returns true if the error is a DatabaseError.
func IsDatabaseError(err error) bool {
	if err == nil {
		return false
	}
	var e *DatabaseError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("strata: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
