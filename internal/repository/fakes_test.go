package repository

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

var discardLog = zerolog.New(io.Discard)

type testCall struct {
	method string
	sql    string
	args   []any
	inTx   bool
}

type testExecResult struct {
	tag string
	err error
}

type testQueryResult struct {
	rows    [][]any
	err     error
	iterErr error
}

type testRowResult struct {
	values []any
	err    error
}

// fakeDB replays scripted results in call order and records every
// statement it receives.
type fakeDB struct {
	mu      sync.Mutex
	execs   []testExecResult
	queries []testQueryResult
	rows    []testRowResult
	eIdx    int
	qIdx    int
	rIdx    int
	calls   []testCall

	beginErr    error
	commitErr   error
	rollbackErr error

	begun      int
	committed  int
	rolledBack int
	// rollbackCtxErr is ctx.Err() observed by the last Rollback.
	rollbackCtxErr error
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begun++
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(sql, args, false)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.query(sql, args, false)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(sql, args, false)
}

func (f *fakeDB) exec(sql string, args []any, inTx bool) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, testCall{method: "Exec", sql: sql, args: args, inTx: inTx})
	if f.eIdx >= len(f.execs) {
		return pgconn.CommandTag{}, fmt.Errorf("no more exec results")
	}
	r := f.execs[f.eIdx]
	f.eIdx++
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag(r.tag), nil
}

func (f *fakeDB) query(sql string, args []any, inTx bool) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, testCall{method: "Query", sql: sql, args: args, inTx: inTx})
	if f.qIdx >= len(f.queries) {
		return nil, fmt.Errorf("no more query results")
	}
	r := f.queries[f.qIdx]
	f.qIdx++
	if r.err != nil {
		return nil, r.err
	}
	return &fakeRows{data: r.rows, err: r.iterErr}, nil
}

func (f *fakeDB) queryRow(sql string, args []any, inTx bool) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, testCall{method: "QueryRow", sql: sql, args: args, inTx: inTx})
	if f.rIdx >= len(f.rows) {
		return &fakeRow{err: fmt.Errorf("no more row results")}
	}
	r := f.rows[f.rIdx]
	f.rIdx++
	return &fakeRow{values: r.values, err: r.err}
}

// fakeTx embeds pgx.Tx so it satisfies the interface; only the methods the
// repositories call are implemented.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.exec(sql, args, true)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.query(sql, args, true)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.queryRow(sql, args, true)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	t.db.committed++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.rolledBack++
	t.db.rollbackCtxErr = ctx.Err()
	return t.db.rollbackErr
}

type fakeRows struct {
	pgx.Rows
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignValues(dest, r.data[r.pos-1])
}

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Close() { r.closed = true }

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignValues(dest, r.values)
}

// assignValues copies src into the dest pointers. A nil source zeroes the
// destination; a value scanned into a pointer-to-pointer is boxed.
func assignValues(dest []any, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(src), len(dest))
	}
	for i, v := range src {
		dv := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		sv := reflect.ValueOf(v)
		if dv.Kind() == reflect.Ptr && sv.Type() != dv.Type() {
			p := reflect.New(dv.Type().Elem())
			p.Elem().Set(sv)
			dv.Set(p)
			continue
		}
		if !sv.Type().AssignableTo(dv.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, sv.Type(), dv.Type())
		}
		dv.Set(sv)
	}
	return nil
}
