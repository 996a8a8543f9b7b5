// Package export writes agenda rows to Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Writer writes tabular data to a workbook.
type Writer interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	Close() error
}

// ExcelizeWriter implements Writer using excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewExcelizeWriter creates a new Excel writer.
func NewExcelizeWriter() *ExcelizeWriter {
	return &ExcelizeWriter{
		file: excelize.NewFile(),
	}
}

// AddSheet adds a new sheet with the given name.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers and freezes them.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      w.currentRow,
		TopLeftCell: fmt.Sprintf("A%d", w.currentRow+1),
		ActivePane:  "bottomLeft",
	})

	w.currentRow++
	return nil
}

// WriteRow writes a data row to current sheet.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

// Save writes the Excel file to the writer.
func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
