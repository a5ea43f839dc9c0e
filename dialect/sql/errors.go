package sql

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// IsConstraintError reports whether the error resulted from any database
// constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		sqlState(err) == pgNotNullViolation
}

// IsUniqueConstraintError reports whether the error resulted from a
// uniqueness constraint violation, e.g. a duplicate value in a unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), "violates unique constraint")
}

// IsForeignKeyConstraintError reports whether the error resulted from a
// foreign-key constraint violation, e.g. a referenced row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgForeignKeyViolation {
		return true
	}
	return strings.Contains(err.Error(), "violates foreign key constraint")
}

// IsCheckConstraintError reports whether the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "violates check constraint")
}

// ConstraintName returns the name of the violated constraint, if the driver
// reported one.
func ConstraintName(err error) string {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Constraint
	}
	return ""
}

// sqlState extracts the SQLSTATE code from the error chain. It understands
// *pq.Error directly and falls back to the SQLState method implemented by
// other postgres drivers.
func sqlState(err error) string {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	var se interface{ SQLState() string }
	if errors.As(err, &se) {
		return se.SQLState()
	}
	return ""
}
