package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ColumnSchema describes one column of a table
type ColumnSchema struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"notnull"`
	PK      bool   `json:"pk"`
}

// TableSchema describes one table with its columns in declaration order
type TableSchema struct {
	Name     string         `json:"name"`
	Columns  []ColumnSchema `json:"columns"`
	RowCount int64          `json:"row_count"`
}

// SchemaStats summarizes a snapshot for display
type SchemaStats struct {
	TotalTables  int   `json:"total_tables"`
	TotalRows    int64 `json:"total_rows"`
	TotalColumns int   `json:"total_columns"`
}

// SchemaSnapshot is a point-in-time read-only view of a source's tables
// and columns. Rebuilt whenever the active data source changes, never
// mutated in place, safe to share across concurrent validations.
type SchemaSnapshot struct {
	Tables []TableSchema `json:"tables"`

	byName map[string]*TableSchema
}

// HasTable reports whether the snapshot contains the table,
// case-insensitively. Implements sqlcheck.Schema.
func (s *SchemaSnapshot) HasTable(name string) bool {
	_, ok := s.byName[strings.ToLower(name)]
	return ok
}

// Table returns the schema of a single table
func (s *SchemaSnapshot) Table(name string) (*TableSchema, bool) {
	t, ok := s.byName[strings.ToLower(name)]
	return t, ok
}

// Stats derives summary counters from the snapshot
func (s *SchemaSnapshot) Stats() SchemaStats {
	stats := SchemaStats{TotalTables: len(s.Tables)}
	for _, t := range s.Tables {
		stats.TotalRows += t.RowCount
		stats.TotalColumns += len(t.Columns)
	}
	return stats
}

// PromptContext renders the snapshot as schema context for the AI prompt
func (s *SchemaSnapshot) PromptContext() string {
	if len(s.Tables) == 0 {
		return "No schema available"
	}
	var sb strings.Builder
	sb.WriteString("DATABASE SCHEMA:\n")
	for _, t := range s.Tables {
		fmt.Fprintf(&sb, "\nTable: %s (%d rows)\nColumns:\n", t.Name, t.RowCount)
		for _, c := range t.Columns {
			pk := ""
			if c.PK {
				pk = " [PRIMARY KEY]"
			}
			notnull := ""
			if c.NotNull {
				notnull = " [NOT NULL]"
			}
			fmt.Fprintf(&sb, "  - %s: %s%s%s\n", c.Name, c.Type, pk, notnull)
		}
	}
	return sb.String()
}

// Snapshot reads the source's table and column metadata. Only metadata
// queries and per-table row counts are issued, never user data reads.
func (s *Source) Snapshot(ctx context.Context) (*SchemaSnapshot, error) {
	var tables []TableSchema
	var err error

	switch s.config.SourceType {
	case SourceTypeSQLite:
		tables, err = s.sqliteTables(ctx)
	case SourceTypePostgreSQL:
		tables, err = s.informationSchemaTables(ctx, "public", "$1")
	case SourceTypeMySQL:
		tables, err = s.informationSchemaTables(ctx, "", "?")
	default:
		return nil, fmt.Errorf("%w: unsupported source type %q", ErrSourceUnavailable, s.config.SourceType)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	snap := &SchemaSnapshot{Tables: tables, byName: make(map[string]*TableSchema, len(tables))}
	for i := range snap.Tables {
		snap.byName[strings.ToLower(snap.Tables[i].Name)] = &snap.Tables[i]
	}
	return snap, nil
}

func (s *Source) sqliteTables(ctx context.Context) ([]TableSchema, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	tables := make([]TableSchema, 0, len(names))
	for _, name := range names {
		table := TableSchema{Name: name}

		colRows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", s.quoteIdent(name)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		for colRows.Next() {
			var (
				cid     int
				colName string
				colType *string
				notNull int
				dflt    interface{}
				pk      int
			)
			if err := colRows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			}
			declared := "TEXT"
			if colType != nil && *colType != "" {
				declared = *colType
			}
			table.Columns = append(table.Columns, ColumnSchema{
				Name:    colName,
				Type:    declared,
				NotNull: notNull != 0,
				PK:      pk != 0,
			})
		}
		colRows.Close()

		if err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", s.quoteIdent(name))).Scan(&table.RowCount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}

		tables = append(tables, table)
	}
	return tables, nil
}

// informationSchemaTables introspects server databases through the
// standard information_schema views.
func (s *Source) informationSchemaTables(ctx context.Context, schemaName, placeholder string) ([]TableSchema, error) {
	schemaFilter := "table_schema = " + placeholder
	args := []interface{}{schemaName}
	if schemaName == "" {
		// MySQL scopes information_schema by the current database
		schemaFilter = "table_schema = DATABASE()"
		args = nil
	}

	query := fmt.Sprintf(`SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE %s
		ORDER BY table_name, ordinal_position`, schemaFilter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	byTable := map[string]*TableSchema{}
	var order []string
	for rows.Next() {
		var tableName, colName, dataType, nullable string
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		t, ok := byTable[tableName]
		if !ok {
			t = &TableSchema{Name: tableName}
			byTable[tableName] = t
			order = append(order, tableName)
		}
		t.Columns = append(t.Columns, ColumnSchema{
			Name:    colName,
			Type:    strings.ToUpper(dataType),
			NotNull: strings.EqualFold(nullable, "NO"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	tables := make([]TableSchema, 0, len(order))
	for _, name := range order {
		t := byTable[name]
		if err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", s.quoteIdent(name))).Scan(&t.RowCount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		tables = append(tables, *t)
	}
	return tables, nil
}

// quoteIdent quotes an identifier for the source's dialect, doubling any
// embedded quote
func (s *Source) quoteIdent(name string) string {
	if s.config.SourceType == SourceTypeMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
