package dialect

import (
	"context"
)

// Postgres is the name of the PostgreSQL dialect. It is the only dialect
// strata compiles for: generated statements use $n placeholders and
// RETURNING clauses.
const Postgres = "postgres"

// ExecQuerier wraps the two basic statement operations.
//
// For Exec, the v argument is either nil or a *sql.Result destination.
// For Query, the v argument must be a *sql.Rows destination.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transaction behavior. Statements issued on a Tx run on the
// single connection owned by the transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback.
// It is used when a unit of work joins an already-active transaction.
func NopTx(d Driver) Tx {
	return nopTx{d}
}
