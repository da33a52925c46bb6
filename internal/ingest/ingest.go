// Package ingest materializes uploaded spreadsheet files into SQLite
// databases so they become queryable data sources. This is the only write
// path in the system and it only ever touches databases it created itself.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Result describes a materialized upload
type Result struct {
	Path   string   `json:"path"`
	Tables []string `json:"tables"`
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// sanitizeName normalizes a table or column name the same way for every
// upload format: trim, collapse whitespace and punctuation to underscores,
// lowercase.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = whitespaceRe.ReplaceAllString(name, "_")
	name = nonWordRe.ReplaceAllString(name, "_")
	name = strings.Trim(strings.ToLower(name), "_")
	return name
}

// tableNameFor derives a table name from an uploaded file name
func tableNameFor(fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	name := sanitizeName(stem)
	if name == "" {
		name = "data"
	}
	return name
}

// dedupeColumns sanitizes header names and disambiguates duplicates with a
// numeric suffix
func dedupeColumns(header []string) []string {
	seen := map[string]int{}
	out := make([]string, len(header))
	for i, h := range header {
		name := sanitizeName(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name] = 1
		out[i] = name
	}
	return out
}

// inferColumnTypes classifies each column as INTEGER, REAL or TEXT from the
// values actually present. Empty cells don't vote.
func inferColumnTypes(records [][]string, columns int) []string {
	types := make([]string, columns)
	for i := range types {
		types[i] = "INTEGER"
	}
	for _, rec := range records {
		for i := 0; i < columns && i < len(rec); i++ {
			cell := strings.TrimSpace(rec[i])
			if cell == "" || types[i] == "TEXT" {
				continue
			}
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err == nil {
				types[i] = "REAL"
				continue
			}
			types[i] = "TEXT"
		}
	}
	return types
}

// newDatabase creates an empty SQLite file under dir and returns a
// writable handle to it
func newDatabase(dir string) (string, *sql.DB, error) {
	f, err := os.CreateTemp(dir, "upload-*.db")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create database file: %w", err)
	}
	path := f.Name()
	f.Close()

	handle, err := sql.Open("sqlite3", path)
	if err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to open database file: %w", err)
	}
	return path, handle, nil
}

// loadTable creates the table and bulk-inserts all records inside one
// transaction
func loadTable(ctx context.Context, handle *sql.DB, table string, columns, types []string, records [][]string) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%q %s", col, types[i])
	}
	createStmt := fmt.Sprintf("CREATE TABLE %q (%s)", table, strings.Join(defs, ", "))
	if _, err := handle.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	tx, err := handle.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %q VALUES (%s)", table, placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for _, rec := range records {
		args := make([]interface{}, len(columns))
		for i := range columns {
			var cell string
			if i < len(rec) {
				cell = strings.TrimSpace(rec[i])
			}
			args[i] = typedCell(cell, types[i])
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row into %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// typedCell converts a raw cell to the inferred column type, NULL when empty
func typedCell(cell, colType string) interface{} {
	if cell == "" {
		return nil
	}
	switch colType {
	case "INTEGER":
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
	case "REAL":
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
	}
	return cell
}
