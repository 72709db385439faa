package meta

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/datallboy/bossfetch/internal/infra/logger"
)

// primaryKey columns must be present in the spAll file.
var primaryKey = []string{"PLATE", "MJD", "FIBER"}

// CreateLite builds the lite metadata database at dbPath from a locally
// mirrored, gzipped ASCII spAll file. The first non-blank line is the
// header of column names; column types are inferred from the data.
func CreateLite(ctx context.Context, spAllPath, dbPath string, log *logger.Logger) (int, error) {
	log.Info("Reading %s", spAllPath)

	header, records, err := readTable(spAllPath)
	if err != nil {
		return 0, err
	}

	cols, err := inferColumns(header, records)
	if err != nil {
		return 0, err
	}

	if _, err := os.Stat(dbPath); err == nil {
		return 0, fmt.Errorf("metadata database %s already exists", dbPath)
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, createTableSQL(cols)); err != nil {
		return 0, fmt.Errorf("failed to create %s table: %w", TableName, err)
	}

	log.Info("Writing %d rows to %s", len(records), dbPath)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", TableName, placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for n, rec := range records {
		for i, c := range cols {
			args[i] = convert(rec[i], c.Type)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", n+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit metadata: %w", err)
	}
	return len(records), nil
}

func readTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var header []string
	var records [][]string
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if header == nil {
			header = splitFields(strings.TrimLeft(text, "# "))
			continue
		}
		if strings.HasPrefix(text, "#") {
			continue
		}

		fields := splitFields(text)
		if len(fields) != len(header) {
			return nil, nil, fmt.Errorf("%s line %d: got %d values for %d columns", path, line, len(fields), len(header))
		}
		records = append(records, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if header == nil {
		return nil, nil, fmt.Errorf("%s has no header line", path)
	}

	return header, records, nil
}

// splitFields splits on whitespace, keeping double-quoted values intact.
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuote, started := false, false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				fields = append(fields, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		fields = append(fields, cur.String())
	}
	return fields
}

func inferColumns(header []string, records [][]string) ([]Column, error) {
	seen := make(map[string]bool, len(header))
	cols := make([]Column, len(header))

	for i, name := range header {
		seen[name] = true

		typ := "INTEGER"
		for _, rec := range records {
			v := rec[i]
			if typ == "INTEGER" {
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					continue
				}
				typ = "REAL"
			}
			if typ == "REAL" {
				if _, err := strconv.ParseFloat(v, 64); err == nil {
					continue
				}
				typ = "TEXT"
				break
			}
		}
		cols[i] = Column{Name: name, Type: typ}
	}

	for _, key := range primaryKey {
		if !seen[key] {
			return nil, fmt.Errorf("spAll file has no %s column", key)
		}
	}
	return cols, nil
}

func createTableSQL(cols []Column) string {
	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("`%s` %s", c.Name, c.Type))
	}
	defs = append(defs, "PRIMARY KEY ("+strings.Join(primaryKey, ",")+")")
	return fmt.Sprintf("CREATE TABLE `%s` (%s)", TableName, strings.Join(defs, ","))
}

func convert(v, typ string) any {
	switch typ {
	case "INTEGER":
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case "REAL":
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return v
	}
}
