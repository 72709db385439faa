// Package meta builds and queries the sqlite database of BOSS observation
// metadata that is derived from the spAll summary file.
package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	TableName = "meta"

	// DefaultMaxRows caps SelectAll when no limit is given.
	DefaultMaxRows = 100000
)

var ErrInvalidColumn = errors.New("invalid column name")

type Column struct {
	Name string
	// Type is one of INTEGER, REAL or TEXT.
	Type string
}

type Database struct {
	db      *sql.DB
	columns []Column
	index   map[string]int
}

// LitePath derives the database path that sits next to a mirrored lite
// spAll file: spAll-v5_7_0.dat.gz becomes spAll-v5_7_0-lite.db.
func LitePath(spAllPath string) (string, error) {
	if !strings.HasSuffix(spAllPath, ".dat.gz") {
		return "", fmt.Errorf("expected .dat.gz extension for %s", spAllPath)
	}
	return strings.TrimSuffix(spAllPath, ".dat.gz") + "-lite.db", nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	return db, nil
}

// Open connects to an existing metadata database and loads its column
// definitions.
func Open(ctx context.Context, dbPath string) (*Database, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("metadata database %s: %w", dbPath, err)
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	d := &Database{db: db, index: make(map[string]int)}
	if err := d.loadColumns(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) loadColumns(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, "PRAGMA table_info(`"+TableName+"`)")
	if err != nil {
		return fmt.Errorf("failed to read column definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		d.index[name] = len(d.columns)
		d.columns = append(d.columns, Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(d.columns) == 0 {
		return fmt.Errorf("no %s table in metadata database", TableName)
	}
	return nil
}

func (d *Database) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// PrepareColumns validates a comma-separated column list, or "*" for all
// columns, and returns the matching definitions in the requested order.
func (d *Database) PrepareColumns(what string) ([]Column, error) {
	what = strings.TrimSpace(what)
	if what == "" || what == "*" {
		return d.Columns(), nil
	}

	var cols []Column
	for _, name := range strings.Split(what, ",") {
		name = strings.TrimSpace(name)
		i, ok := d.index[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrInvalidColumn, name)
		}
		cols = append(cols, d.columns[i])
	}
	return cols, nil
}

func (d *Database) selectSQL(cols []Column, where string, limit int) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "`" + c.Name + "`"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(quoted, ","), TableName)
	if where = strings.TrimSpace(where); where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	return sb.String()
}

// SelectEach streams the rows matching where to fn without loading the
// whole result. Reserved column names such as PRIMARY must be escaped with
// backticks in the where clause.
func (d *Database) SelectEach(ctx context.Context, what, where string, fn func(row Row) error) error {
	cols, err := d.PrepareColumns(what)
	if err != nil {
		return err
	}

	rows, err := d.db.QueryContext(ctx, d.selectSQL(cols, where, 0))
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SelectAll loads at most maxRows matching rows into memory. A
// non-positive maxRows uses DefaultMaxRows.
func (d *Database) SelectAll(ctx context.Context, what, where string, maxRows int) ([]Row, error) {
	cols, err := d.PrepareColumns(what)
	if err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	rows, err := d.db.QueryContext(ctx, d.selectSQL(cols, where, maxRows))
	if err != nil {
		return nil, fmt.Errorf("select failed: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Row maps column names to values (int64, float64 or string).
type Row map[string]any

// Int returns an INTEGER column value.
func (r Row) Int(name string) (int, bool) {
	v, ok := r[name].(int64)
	return int(v), ok
}

func scanRow(rows *sql.Rows, cols []Column) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, c := range cols {
		row[c.Name] = vals[i]
	}
	return row, nil
}
