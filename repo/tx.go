package repo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/davrick/strata"
	"github.com/davrick/strata/dialect"
	dsql "github.com/davrick/strata/dialect/sql"
)

// txDriver adapts a dialect.Tx to the dialect.Driver interface for a
// transaction-scoped repo. Its Tx method hands back the active transaction,
// so nested Transaction calls join the open span instead of beginning a new
// one.
type txDriver struct {
	span dialect.Tx
	name string
}

func (d txDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.span.Exec(ctx, query, args, v)
}

func (d txDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.span.Query(ctx, query, args, v)
}

func (d txDriver) Tx(context.Context) (dialect.Tx, error) { return dialect.NopTx(d), nil }
func (d txDriver) Close() error                           { return nil }
func (d txDriver) Dialect() string                        { return d.name }

var _ dialect.Driver = txDriver{}

// Transaction runs work atomically: BEGIN, the work closure with a
// transaction-scoped repo, then COMMIT on success or ROLLBACK on error or
// panic. The original error is always the one returned; a rollback failure
// is logged, never surfaced in its place.
//
// Calling Transaction on an already transaction-scoped repo joins the
// active transaction: there is exactly one BEGIN...COMMIT span per
// outermost call, and inner calls are no-ops with respect to transaction
// boundaries. Use Savepoint for partial rollback.
func (r *Repo) Transaction(ctx context.Context, work func(context.Context, *Repo) error) error {
	return r.TransactionWithOptions(ctx, nil, work)
}

// TransactionWithOptions is Transaction with explicit transaction options,
// such as an isolation level.
func (r *Repo) TransactionWithOptions(ctx context.Context, opts *dsql.TxOptions, work func(context.Context, *Repo) error) (err error) {
	if r.inTx {
		return work(ctx, r)
	}
	tx, err := r.begin(ctx, opts)
	if err != nil {
		return strata.NewDatabaseError("BEGIN", err)
	}
	txr := r.scoped(tx)
	defer func() {
		if v := recover(); v != nil {
			r.rollback(tx)
			panic(v)
		}
	}()
	if err := work(ctx, txr); err != nil {
		r.rollback(tx)
		return err
	}
	if err := tx.Commit(); err != nil {
		return strata.NewDatabaseError("COMMIT", err)
	}
	for table := range txr.touched {
		r.invalidate(ctx, table)
	}
	return nil
}

// begin starts the transaction, passing options through when the driver
// supports them.
func (r *Repo) begin(ctx context.Context, opts *dsql.TxOptions) (dialect.Tx, error) {
	type beginner interface {
		BeginTx(context.Context, *dsql.TxOptions) (dialect.Tx, error)
	}
	if b, ok := r.drv.(beginner); ok && opts != nil {
		return b.BeginTx(ctx, opts)
	}
	return r.drv.Tx(ctx)
}

// scoped returns a copy of the repo bound to the transaction. Reads inside
// the span bypass the cache so an uncommitted view is never stored; written
// tables are recorded in touched and invalidated only after COMMIT.
func (r *Repo) scoped(tx dialect.Tx) *Repo {
	txr := *r
	txr.drv = txDriver{span: tx, name: r.drv.Dialect()}
	txr.inTx = true
	txr.cache = nil
	txr.touched = make(map[string]struct{})
	return &txr
}

// rollback rolls the transaction back, logging a secondary failure.
func (r *Repo) rollback(tx dialect.Tx) {
	if rerr := tx.Rollback(); rerr != nil {
		r.log.Error("transaction rollback failed", "error", &strata.RollbackError{Err: rerr})
	}
}

// savepointNameRe restricts user-supplied savepoint names to plain
// identifiers; the generated suffix keeps concurrent nested calls on the
// same connection from colliding.
var savepointNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Savepoint runs work inside a savepoint of the active transaction:
// SAVEPOINT, the work closure, then RELEASE on success or ROLLBACK TO
// followed by RELEASE on error. The sub-unit of work rolls back without
// aborting the enclosing transaction, and the original error is rethrown.
func (r *Repo) Savepoint(ctx context.Context, name string, work func(context.Context, *Repo) error) error {
	if !r.inTx {
		return fmt.Errorf("repo: savepoint %q outside a transaction", name)
	}
	if !savepointNameRe.MatchString(name) {
		return fmt.Errorf("repo: invalid savepoint name %q", name)
	}
	sp := name + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if err := r.drv.Exec(ctx, "SAVEPOINT "+sp, []any{}, nil); err != nil {
		return strata.NewDatabaseError("SAVEPOINT "+sp, err)
	}
	if err := work(ctx, r); err != nil {
		if rerr := r.drv.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp, []any{}, nil); rerr != nil {
			r.log.Error("savepoint rollback failed", "savepoint", sp, "error", rerr)
			return err
		}
		if rerr := r.drv.Exec(ctx, "RELEASE SAVEPOINT "+sp, []any{}, nil); rerr != nil {
			r.log.Error("savepoint release failed", "savepoint", sp, "error", rerr)
		}
		return err
	}
	if err := r.drv.Exec(ctx, "RELEASE SAVEPOINT "+sp, []any{}, nil); err != nil {
		return strata.NewDatabaseError("RELEASE SAVEPOINT "+sp, err)
	}
	return nil
}
