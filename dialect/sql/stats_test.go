package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDriver(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t)
	ctx := context.Background()

	stats := NewStatsDriver(drv, WithSlowThreshold(time.Minute))

	mock.ExpectQuery("SELECT * FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("DELETE FROM users WHERE id = $1").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT * FROM broken").
		WillReturnError(errors.New("relation does not exist"))

	var rows Rows
	require.NoError(t, stats.Query(ctx, "SELECT * FROM users", []any{}, &rows))
	rows.Close()
	require.NoError(t, stats.Exec(ctx, "DELETE FROM users WHERE id = $1", []any{int64(1)}, nil))
	require.Error(t, stats.Query(ctx, "SELECT * FROM broken", []any{}, &rows))

	snap := stats.QueryStats().Stats()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.TotalExecs)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(0), snap.SlowQueries)
	assert.Greater(t, snap.TotalDuration, time.Duration(0))
	assert.Contains(t, snap.String(), "queries=2")

	stats.QueryStats().Reset()
	assert.Equal(t, int64(0), stats.QueryStats().Stats().TotalQueries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriverSlowHook(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t)

	var (
		mu   sync.Mutex
		slow []string
	)
	stats := NewStatsDriver(drv,
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			mu.Lock()
			slow = append(slow, query)
			mu.Unlock()
		}),
	)
	assert.Equal(t, time.Duration(0), stats.SlowThreshold())

	mock.ExpectQuery("SELECT * FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var rows Rows
	require.NoError(t, stats.Query(context.Background(), "SELECT * FROM users", []any{}, &rows))
	rows.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, slow, 1)
	assert.Equal(t, "SELECT * FROM users", slow[0])
	assert.Equal(t, int64(1), stats.QueryStats().Stats().SlowQueries)
}

func TestStatsTx(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t)
	ctx := context.Background()
	stats := NewStatsDriver(drv, WithSlowThreshold(time.Minute))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET age = $1").
		WithArgs(31).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := stats.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "UPDATE users SET age = $1", []any{31}, nil))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(1), stats.QueryStats().Stats().TotalExecs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriverBeginTx(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t)
	ctx := context.Background()
	stats := NewStatsDriver(drv, WithSlowThreshold(time.Minute))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET age = $1").
		WithArgs(31).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Statements in an options-bearing transaction are recorded too.
	tx, err := stats.BeginTx(ctx, &TxOptions{ReadOnly: false})
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "UPDATE users SET age = $1", []any{31}, nil))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(1), stats.QueryStats().Stats().TotalExecs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebugDriver(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t)
	ctx := context.Background()

	var logs []string
	debug := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		logs = append(logs, fmt.Sprint(v...))
	}))

	mock.ExpectQuery("SELECT * FROM users WHERE id = $1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var rows Rows
	require.NoError(t, debug.Query(ctx, "SELECT * FROM users WHERE id = $1", []any{int64(7)}, &rows))
	rows.Close()

	tx, err := debug.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "DELETE FROM users", []any{}, nil))
	require.NoError(t, tx.Commit())

	require.Len(t, logs, 4)
	assert.Contains(t, logs[0], "query: SELECT * FROM users WHERE id = $1")
	assert.Contains(t, logs[1], "begin transaction")
	assert.Contains(t, logs[2], "tx exec: DELETE FROM users")
	assert.Contains(t, logs[3], "commit transaction")
	assert.True(t, strings.HasPrefix(logs[0], "query:"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebugDriverBeginTx(t *testing.T) {
	t.Parallel()
	drv, mock := mockDriver(t)
	ctx := context.Background()

	var logs []string
	debug := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		logs = append(logs, fmt.Sprint(v...))
	}))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := debug.BeginTx(ctx, &TxOptions{ReadOnly: false})
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "DELETE FROM users", []any{}, nil))
	require.NoError(t, tx.Commit())

	require.Len(t, logs, 3)
	assert.Contains(t, logs[0], "begin transaction")
	assert.Contains(t, logs[1], "tx exec: DELETE FROM users")
	assert.Contains(t, logs[2], "commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}
