// Package testutil provides an in-memory database/sql driver that stands in for
// a Postgres server in store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// FakeServer records the statements the postgres store sends and keeps the
// inserted rows per table. SELECTs ignore their WHERE clause and return every
// row of the table.
type FakeServer struct {
	Execs  []string
	Tables map[string][]map[string]any

	FailPing   bool
	FailBegin  bool
	FailExec   bool
	FailCommit bool
	// FailTables rejects any statement touching the named table.
	FailTables map[string]error

	Commits   int
	Rollbacks int
}

var driverSeq atomic.Int64

// NewFakeDB registers a fresh driver and returns a pool bound to it.
func NewFakeDB() (*sql.DB, *FakeServer) {
	srv := &FakeServer{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("reefcore-fakepg-%d", driverSeq.Add(1))
	sql.Register(name, fakeDriver{srv: srv})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, srv
}

type fakeDriver struct{ srv *FakeServer }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.srv, nil }

// Prepare implements driver.Conn. The store only issues direct statements.
func (s *FakeServer) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fakepg: prepared statements unsupported")
}

// Close implements driver.Conn.
func (s *FakeServer) Close() error { return nil }

// Begin implements driver.Conn.
func (s *FakeServer) Begin() (driver.Tx, error) {
	return s.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (s *FakeServer) Ping(context.Context) error {
	if s.FailPing {
		return errors.New("fakepg: ping refused")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (s *FakeServer) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if s.FailBegin {
		return nil, errors.New("fakepg: begin refused")
	}
	return fakeTx{srv: s}, nil
}

// ExecContext implements driver.ExecerContext.
func (s *FakeServer) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	stmt := parse(query)
	s.Execs = append(s.Execs, stmt.text)
	if s.FailExec {
		return nil, errors.New("fakepg: exec refused")
	}
	if err := s.FailTables[stmt.table]; err != nil {
		return nil, err
	}
	switch stmt.verb {
	case "INSERT":
		if len(stmt.cols) != len(args) {
			return nil, fmt.Errorf("fakepg: %d columns, %d args for %s", len(stmt.cols), len(args), stmt.table)
		}
		row := make(map[string]any, len(stmt.cols))
		for i, col := range stmt.cols {
			row[col] = args[i].Value
		}
		if stmt.upsert {
			s.remove(stmt.table, stmt.cols[0], row[stmt.cols[0]])
		}
		s.Tables[stmt.table] = append(s.Tables[stmt.table], row)
	case "DELETE":
		if len(args) > 0 && len(stmt.cols) > 0 {
			s.remove(stmt.table, stmt.cols[0], args[0].Value)
		}
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (s *FakeServer) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	stmt := parse(query)
	if stmt.verb != "SELECT" {
		return nil, fmt.Errorf("fakepg: cannot query %q", stmt.text)
	}
	if err := s.FailTables[stmt.table]; err != nil {
		return nil, err
	}
	rows := &fakeRows{cols: stmt.cols}
	for _, row := range s.Tables[stmt.table] {
		vals := make([]driver.Value, len(stmt.cols))
		for i, col := range stmt.cols {
			vals[i] = row[col]
		}
		rows.data = append(rows.data, vals)
	}
	return rows, nil
}

func (s *FakeServer) remove(table, col string, key any) {
	kept := s.Tables[table][:0]
	for _, row := range s.Tables[table] {
		if fmt.Sprint(row[col]) != fmt.Sprint(key) {
			kept = append(kept, row)
		}
	}
	s.Tables[table] = kept
}

type fakeTx struct{ srv *FakeServer }

func (t fakeTx) Commit() error {
	if t.srv.FailCommit {
		return errors.New("fakepg: commit refused")
	}
	t.srv.Commits++
	return nil
}

func (t fakeTx) Rollback() error {
	t.srv.Rollbacks++
	return nil
}

type fakeRows struct {
	cols []string
	data [][]driver.Value
	next int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.next])
	r.next++
	return nil
}

// statement is the shape of the few statements the store issues:
// INSERT INTO t (cols) ..., SELECT cols FROM t ..., DELETE FROM t WHERE col = $1.
type statement struct {
	text   string
	verb   string
	table  string
	cols   []string
	upsert bool
}

func parse(query string) statement {
	stmt := statement{text: strings.Join(strings.Fields(query), " ")}
	upper := strings.ToUpper(stmt.text)
	verb, _, _ := strings.Cut(upper, " ")
	stmt.verb = verb
	switch verb {
	case "INSERT":
		rest := stmt.text[len("INSERT INTO "):]
		table, cols, _ := strings.Cut(rest, "(")
		cols, _, _ = strings.Cut(cols, ")")
		stmt.table = strings.ToLower(strings.TrimSpace(table))
		stmt.cols = columns(cols)
		stmt.upsert = strings.Contains(upper, " ON CONFLICT ")
	case "SELECT":
		from := strings.Index(upper, " FROM ")
		if from < 0 {
			stmt.cols = columns(stmt.text[len("SELECT "):])
			break
		}
		stmt.cols = columns(stmt.text[len("SELECT "):from])
		stmt.table = strings.ToLower(strings.Fields(stmt.text[from+len(" FROM "):])[0])
	case "DELETE":
		fields := strings.Fields(stmt.text)
		if len(fields) >= 5 {
			stmt.table = strings.ToLower(fields[2])
			col, _, _ := strings.Cut(fields[4], "=")
			stmt.cols = []string{strings.ToLower(col)}
		}
	}
	return stmt
}

func columns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
