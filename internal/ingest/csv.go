package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// MaterializeCSV reads a CSV stream into a fresh SQLite database with a
// single table named after the uploaded file
func MaterializeCSV(ctx context.Context, dir, fileName string, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// tolerate malformed lines, matching a forgiving import
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		records = append(records, rec)
	}

	columns := dedupeColumns(header)
	types := inferColumnTypes(records, len(columns))

	path, handle, err := newDatabase(dir)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	table := tableNameFor(fileName)
	if err := loadTable(ctx, handle, table, columns, types, records); err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Result{Path: path, Tables: []string{table}}, nil
}
