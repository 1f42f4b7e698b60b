package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func migrationTx(marker, name string) *mockTx {
	return &mockTx{execs: []execExpectation{
		{expect: regexp.MustCompile(regexp.QuoteMeta(marker))},
		{expect: regexp.MustCompile("INSERT INTO schema_migrations"), args: []any{name}},
	}}
}

func appliedQuery(name string, applied bool) queryExpectation {
	return queryExpectation{expect: regexp.MustCompile(`schema_migrations WHERE version=\$1`), args: []any{name}, value: applied}
}

func TestApplyMigrationsEmptyDatabase(t *testing.T) {
	tx1 := migrationTx("-- Initial schema for calhub", "001_init.sql")
	tx2 := migrationTx("-- Calendar shares", "002_calendar_shares.sql")

	pool := &mockPool{
		t: t,
		queries: []queryExpectation{
			{expect: regexp.MustCompile("schema_migrations"), value: false},
			{expect: regexp.MustCompile(`COUNT\(\*\) FROM information_schema.tables`), value: 0},
			appliedQuery("001_init.sql", false),
			appliedQuery("002_calendar_shares.sql", false),
		},
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
		},
		txs: []*mockTx{tx1, tx2},
	}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("expected migrations to apply, got error: %v", err)
	}

	pool.assertDone()
	tx1.assertDone()
	tx2.assertDone()
	if !tx1.committed || !tx2.committed {
		t.Fatalf("expected both migration transactions to commit")
	}
}

func TestApplyMigrationsPopulatedWithoutTracking(t *testing.T) {
	tx2 := migrationTx("-- Calendar shares", "002_calendar_shares.sql")

	pool := &mockPool{
		t: t,
		queries: []queryExpectation{
			{expect: regexp.MustCompile("schema_migrations"), value: false},
			{expect: regexp.MustCompile(`COUNT\(\*\) FROM information_schema.tables`), value: 3},
			// baseline recorded for the populated database
			appliedQuery("001_init.sql", true),
			appliedQuery("002_calendar_shares.sql", false),
		},
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
			{expect: regexp.MustCompile("INSERT INTO schema_migrations"), args: []any{"001_init.sql"}},
		},
		txs: []*mockTx{tx2},
	}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("expected migrations to apply without replaying init, got error: %v", err)
	}

	pool.assertDone()
	tx2.assertDone()
}

func TestApplyMigrationsAllAlreadyApplied(t *testing.T) {
	pool := &mockPool{
		t: t,
		queries: []queryExpectation{
			{expect: regexp.MustCompile("schema_migrations"), value: true},
			appliedQuery("001_init.sql", true),
			appliedQuery("002_calendar_shares.sql", true),
		},
	}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("expected no-op migrations, got error: %v", err)
	}

	pool.assertDone()
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	tx1 := &mockTx{execs: []execExpectation{
		{expect: regexp.MustCompile("-- Initial schema for calhub"), err: errors.New("syntax error")},
	}}
	pool := &mockPool{
		t: t,
		queries: []queryExpectation{
			{expect: regexp.MustCompile("schema_migrations"), value: true},
			appliedQuery("001_init.sql", false),
		},
		txs: []*mockTx{tx1},
	}

	err := ApplyMigrations(context.Background(), pool)
	if err == nil || !strings.Contains(err.Error(), "apply migration 001_init.sql") {
		t.Fatalf("expected apply error, got %v", err)
	}
	if !tx1.rolled || tx1.committed {
		t.Fatalf("expected failed migration to roll back")
	}
}

type queryExpectation struct {
	expect *regexp.Regexp
	args   []any
	value  any
	err    error
}

type execExpectation struct {
	expect *regexp.Regexp
	args   []any
	tag    string
	err    error
}

type rowsExpectation struct {
	expect *regexp.Regexp
	args   []any
	rows   [][]any
	err    error
}

type mockPool struct {
	t       *testing.T
	queries []queryExpectation
	execs   []execExpectation
	selects []rowsExpectation
	txs     []*mockTx
	txIdx   int
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(m.queries) == 0 {
		m.t.Fatalf("unexpected query: %s", sql)
	}
	exp := m.queries[0]
	m.queries = m.queries[1:]
	if !exp.expect.MatchString(sql) {
		m.t.Fatalf("query mismatch: %s", sql)
	}
	assertArgs(m.t, exp.args, args)
	return exp.row()
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if len(m.selects) == 0 {
		m.t.Fatalf("unexpected select: %s", sql)
	}
	exp := m.selects[0]
	m.selects = m.selects[1:]
	if !exp.expect.MatchString(sql) {
		m.t.Fatalf("select mismatch: %s", sql)
	}
	assertArgs(m.t, exp.args, args)
	if exp.err != nil {
		return nil, exp.err
	}
	return &mockRows{rows: exp.rows}, nil
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if len(m.execs) == 0 {
		m.t.Fatalf("unexpected exec: %s", sql)
	}
	exp := m.execs[0]
	m.execs = m.execs[1:]
	if !exp.expect.MatchString(sql) {
		m.t.Fatalf("exec mismatch: %s", sql)
	}
	assertArgs(m.t, exp.args, arguments)
	return exp.commandTag(), exp.err
}

func (m *mockPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if m.txIdx >= len(m.txs) {
		m.t.Fatalf("unexpected begin tx (no more transactions)")
	}
	tx := m.txs[m.txIdx]
	m.txIdx++
	tx.started = true
	return tx, nil
}
func (m *mockPool) Ping(ctx context.Context) error { return nil }

func (m *mockPool) assertDone() {
	if len(m.queries) != 0 {
		m.t.Fatalf("pending queries: %v", m.queries)
	}
	if len(m.execs) != 0 {
		m.t.Fatalf("pending execs: %v", m.execs)
	}
	if len(m.selects) != 0 {
		m.t.Fatalf("pending selects: %v", m.selects)
	}
	if m.txIdx != len(m.txs) {
		m.t.Fatalf("expected %d transactions, got %d", len(m.txs), m.txIdx)
	}
}

func (q queryExpectation) row() mockRow {
	if values, ok := q.value.([]any); ok {
		return mockRow{values: values, err: q.err}
	}
	return mockRow{values: []any{q.value}, err: q.err}
}

func (e execExpectation) commandTag() pgconn.CommandTag {
	if e.tag == "" {
		return pgconn.NewCommandTag("MOCK")
	}
	return pgconn.NewCommandTag(e.tag)
}

type mockRow struct {
	values []any
	err    error
}

func (m mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	return assignValues(m.values, dest)
}

// assignValues copies each value into the matching pointer destination; nil
// values leave the destination at its zero value.
func assignValues(values, dest []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("unexpected dest count: %d (have %d values)", len(dest), len(values))
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer {
			return fmt.Errorf("destination %d is not a pointer", i)
		}
		src := reflect.ValueOf(v)
		if !src.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("cannot assign %T to %s", v, target.Elem().Type())
		}
		target.Elem().Set(src)
	}
	return nil
}

type mockRows struct {
	rows   [][]any
	idx    int
	closed bool
}

func (m *mockRows) Close()                                       { m.closed = true }
func (m *mockRows) Err() error                                   { return nil }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func (m *mockRows) Next() bool {
	if m.idx >= len(m.rows) {
		return false
	}
	m.idx++
	return true
}

func (m *mockRows) Scan(dest ...any) error {
	return assignValues(m.rows[m.idx-1], dest)
}

func (m *mockRows) Values() ([]any, error) {
	return m.rows[m.idx-1], nil
}

type mockTx struct {
	execs     []execExpectation
	queries   []queryExpectation
	started   bool
	committed bool
	rolled    bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, fmt.Errorf("unexpected nested begin")
}
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolled = true
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, fmt.Errorf("unexpected CopyFrom")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return emptyBatchResults{}
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, fmt.Errorf("unexpected Prepare")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if len(m.execs) == 0 {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected tx exec: %s", sql)
	}
	exp := m.execs[0]
	m.execs = m.execs[1:]
	if !exp.expect.MatchString(sql) {
		return pgconn.CommandTag{}, fmt.Errorf("exec mismatch: %s", sql)
	}
	if err := assertArgs(nil, exp.args, arguments); err != nil {
		return pgconn.CommandTag{}, err
	}
	return exp.commandTag(), exp.err
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(m.queries) == 0 {
		return mockRow{err: fmt.Errorf("unexpected queryrow: %s", sql)}
	}
	exp := m.queries[0]
	m.queries = m.queries[1:]
	if !exp.expect.MatchString(sql) {
		return mockRow{err: fmt.Errorf("queryrow mismatch: %s", sql)}
	}
	if err := assertArgs(nil, exp.args, args); err != nil {
		return mockRow{err: err}
	}
	return exp.row()
}
func (m *mockTx) Conn() *pgx.Conn { return nil }

func (m *mockTx) assertDone() {
	if len(m.execs) != 0 {
		panic(fmt.Sprintf("pending tx execs: %v", m.execs))
	}
	if len(m.queries) != 0 {
		panic(fmt.Sprintf("pending tx queries: %v", m.queries))
	}
	if !m.committed && !m.rolled {
		panic("transaction not finished")
	}
}

func assertArgs(t *testing.T, expected, actual []any) error {
	if len(expected) == 0 {
		return nil
	}
	if len(expected) != len(actual) {
		if t != nil {
			t.Fatalf("argument length mismatch: expected %d got %d", len(expected), len(actual))
		}
		return fmt.Errorf("argument length mismatch")
	}
	for i, exp := range expected {
		if exp == nil {
			continue
		}
		if exp != actual[i] {
			if t != nil {
				t.Fatalf("argument mismatch at %d: expected %v got %v", i, exp, actual[i])
			}
			return fmt.Errorf("argument mismatch")
		}
	}
	return nil
}

type emptyBatchResults struct{}

func (emptyBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, fmt.Errorf("unexpected batch exec")
}
func (emptyBatchResults) Query() (pgx.Rows, error) { return nil, fmt.Errorf("unexpected batch query") }
func (emptyBatchResults) QueryRow() pgx.Row {
	return mockRow{err: fmt.Errorf("unexpected batch queryrow")}
}
func (emptyBatchResults) Close() error { return nil }
