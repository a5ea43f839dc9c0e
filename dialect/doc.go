// Package dialect defines the boundary between strata and the database
// driver. Everything above this package works in terms of SQL text plus an
// ordered argument list; everything below it is database/sql plumbing.
//
// # Driver Interface
//
// The Driver interface is the row-oriented collaborator consumed by the
// executor and the transaction manager:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback. A Tx owns
// exactly one connection for its lifetime; statements issued through it
// execute sequentially on that connection.
//
// The dialect/sql subpackage provides the standard implementation backed by
// database/sql and github.com/lib/pq.
package dialect
