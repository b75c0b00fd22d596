// Package testutil provides a stub database/sql driver for the postgres
// store. It understands CREATE TABLE, TRUNCATE TABLE, INSERT INTO t (cols)
// and SELECT cols FROM t, which is every statement the store issues.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"
)

var (
	insertPattern   = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+(\w+)\s*\(([^)]*)\)`)
	selectPattern   = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+(\w+)`)
	truncatePattern = regexp.MustCompile(`(?is)^\s*TRUNCATE\s+TABLE\s+(.+)$`)
	stubSeq         atomic.Int64
)

// StubConn records statements and keeps inserted rows per table. The Fail
// toggles make the matching driver call return an error.
type StubConn struct {
	Execs     []string
	Truncates int
	Tables    map[string][]map[string]any

	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailTables map[string]bool
}

// NewStubDB registers a fresh stub driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: map[string][]map[string]any{}}
	name := fmt.Sprintf("flightcore-stubpg-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Rows returns the stored rows of table.
func (c *StubConn) Rows(table string) []map[string]any {
	return c.Tables[strings.ToLower(table)]
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; every statement goes through the
// context-aware fast paths instead.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("stub: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// Ping implements driver.Pinger. It fails together with FailExec.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return fmt.Errorf("stub: ping failed")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("stub: exec failed")
	}
	if m := truncatePattern.FindStringSubmatch(query); m != nil {
		c.Truncates++
		for _, table := range splitNames(m[1]) {
			delete(c.Tables, table)
		}
		return driver.RowsAffected(0), nil
	}
	m := insertPattern.FindStringSubmatch(query)
	if m == nil {
		return driver.RowsAffected(0), nil
	}
	table, cols := strings.ToLower(m[1]), splitNames(m[2])
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: insert into %s failed", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("stub: %s has %d columns but %d args", table, len(cols), len(args))
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	m := selectPattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("stub: cannot parse query %q", query)
	}
	cols, table := splitNames(m[1]), strings.ToLower(m[2])
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: select from %s failed", table)
	}
	out := &stubRows{cols: cols}
	for _, row := range c.Tables[table] {
		values := make([]driver.Value, len(cols))
		for i, col := range cols {
			values[i] = row[col]
		}
		out.rows = append(out.rows, values)
	}
	return out, nil
}

func splitNames(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("stub: commit failed")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	next int
}

func (r *stubRows) Columns() []string { return r.cols }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
