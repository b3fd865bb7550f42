// Package xlsx stores ledger tables as sheets of a local Excel workbook.
//
// It serves offline runs and exports. The workbook is kept open and written to
// disk after every mutation; it is not safe to share the file between processes.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"pricewatch/internal/logger"
	"pricewatch/internal/store"
)

const defaultSheet = "Sheet1"

// Workbook implements store.Store on an .xlsx file.
type Workbook struct {
	path string
	log  zerolog.Logger

	mu    sync.Mutex
	file  *excelize.File
	fresh bool
}

// Open opens the workbook at path, or starts a new one that is created on the
// first write.
func Open(path string) (*Workbook, error) {
	const op = "Open"

	log := logger.WithComponent("xlsx")

	w := &Workbook{path: path, log: log}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		w.file = excelize.NewFile()
		w.fresh = true
		log.Info().Str("path", path).Msg("Starting new workbook")
		return w, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s: %w", op, path, err)
	}
	w.file = f
	return w, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) save() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", w.path, err)
	}
	return nil
}

func (w *Workbook) exists(table string) (bool, error) {
	idx, err := w.file.GetSheetIndex(table)
	if err != nil {
		return false, err
	}
	return idx != -1, nil
}

// rows returns the sheet's rows or ErrNotFound if the sheet is missing.
func (w *Workbook) rows(op, table string) ([][]string, error) {
	ok, err := w.exists(table)
	if err != nil {
		return nil, store.NewError(op, table, err)
	}
	if !ok {
		return nil, store.NewError(op, table, store.ErrNotFound)
	}
	rows, err := w.file.GetRows(table)
	if err != nil {
		return nil, store.NewError(op, table, err)
	}
	return rows, nil
}

func (w *Workbook) setRow(table string, index int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, index+1)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return w.file.SetSheetRow(table, cell, &row)
}

func (w *Workbook) boldHeader(table string, columns int) error {
	if columns == 0 {
		return nil
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(table, "A1", last, style)
}

// EnsureTable adds the sheet if missing and writes a bold header into an empty one.
func (w *Workbook) EnsureTable(_ context.Context, table string, header []string) error {
	const op = "EnsureTable"

	w.mu.Lock()
	defer w.mu.Unlock()

	ok, err := w.exists(table)
	if err != nil {
		return store.NewError(op, table, err)
	}
	if !ok {
		if _, err := w.file.NewSheet(table); err != nil {
			return store.NewError(op, table, err)
		}
		if w.fresh && table != defaultSheet {
			if err := w.file.DeleteSheet(defaultSheet); err != nil {
				return store.NewError(op, table, err)
			}
		}
		w.fresh = false
		w.log.Info().Str("sheet", table).Msg("Creating new sheet")
	}

	rows, err := w.file.GetRows(table)
	if err != nil {
		return store.NewError(op, table, err)
	}
	if ok && len(rows) > 0 {
		return nil
	}
	if len(rows) == 0 {
		if err := w.setRow(table, 0, header); err != nil {
			return store.NewError(op, table, err)
		}
		if err := w.boldHeader(table, len(header)); err != nil {
			w.log.Warn().Err(err).Str("sheet", table).Msg("Failed to format headers, continuing anyway")
		}
	}

	if err := w.save(); err != nil {
		return store.NewError(op, table, err)
	}
	return nil
}

// ReadRows returns every row of the sheet. Trailing empty cells are omitted.
func (w *Workbook) ReadRows(_ context.Context, table string) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rows("ReadRows", table)
}

// AppendRow writes row below the last row of the sheet.
func (w *Workbook) AppendRow(_ context.Context, table string, row []string) error {
	const op = "AppendRow"

	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.rows(op, table)
	if err != nil {
		return err
	}
	if err := w.setRow(table, len(rows), row); err != nil {
		return store.NewError(op, table, err)
	}
	if err := w.save(); err != nil {
		return store.NewError(op, table, err)
	}
	return nil
}

// UpdateRow overwrites the row at index, blanking cells the new row does not cover.
func (w *Workbook) UpdateRow(_ context.Context, table string, index int, row []string) error {
	const op = "UpdateRow"

	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.rows(op, table)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return store.NewError(op, table, fmt.Errorf("row %d: %w", index, store.ErrNotFound))
	}

	values := row
	if extra := len(rows[index]) - len(row); extra > 0 {
		values = append(append([]string{}, row...), make([]string, extra)...)
	}
	if err := w.setRow(table, index, values); err != nil {
		return store.NewError(op, table, err)
	}
	if err := w.save(); err != nil {
		return store.NewError(op, table, err)
	}
	return nil
}

// DeleteRow removes the row at index; rows below shift up.
func (w *Workbook) DeleteRow(_ context.Context, table string, index int) error {
	const op = "DeleteRow"

	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.rows(op, table)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return store.NewError(op, table, fmt.Errorf("row %d: %w", index, store.ErrNotFound))
	}
	if err := w.file.RemoveRow(table, index+1); err != nil {
		return store.NewError(op, table, err)
	}
	if err := w.save(); err != nil {
		return store.NewError(op, table, err)
	}
	return nil
}

// ReplaceRows clears the sheet and writes rows from the first row on.
// The first row is styled as a header.
func (w *Workbook) ReplaceRows(_ context.Context, table string, rows [][]string) error {
	const op = "ReplaceRows"

	w.mu.Lock()
	defer w.mu.Unlock()

	existing, err := w.rows(op, table)
	if err != nil {
		return err
	}
	for i := len(existing); i > 0; i-- {
		if err := w.file.RemoveRow(table, i); err != nil {
			return store.NewError(op, table, err)
		}
	}

	for i, row := range rows {
		if err := w.setRow(table, i, row); err != nil {
			return store.NewError(op, table, err)
		}
	}
	if len(rows) > 0 {
		if err := w.boldHeader(table, len(rows[0])); err != nil {
			w.log.Warn().Err(err).Str("sheet", table).Msg("Failed to format headers, continuing anyway")
		}
	}

	if err := w.save(); err != nil {
		return store.NewError(op, table, err)
	}
	return nil
}
