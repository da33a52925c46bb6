package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// MaterializeExcel reads an XLSX stream into a fresh SQLite database with
// one table per non-empty sheet
func MaterializeExcel(ctx context.Context, dir, fileName string, r io.Reader) (*Result, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	path, handle, err := newDatabase(dir)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	var tables []string
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			// header only or empty sheet, nothing to load
			continue
		}

		columns := dedupeColumns(rows[0])
		records := rows[1:]
		types := inferColumnTypes(records, len(columns))

		table := sanitizeName(sheet)
		if table == "" {
			table = fmt.Sprintf("sheet_%d", len(tables)+1)
		}
		if err := loadTable(ctx, handle, table, columns, types, records); err != nil {
			os.Remove(path)
			return nil, err
		}
		tables = append(tables, table)
	}

	if len(tables) == 0 {
		os.Remove(path)
		return nil, fmt.Errorf("workbook %s has no data rows", fileName)
	}

	return &Result{Path: path, Tables: tables}, nil
}
