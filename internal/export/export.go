// Package export renders call sheets and learner transcripts as XLSX
// workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ContentType is the media type of the workbooks this package writes.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04 UTC"

// workbook wraps an excelize file with a shared header style.
type workbook struct {
	f      *excelize.File
	header int
	used   bool
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F2937"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	return &workbook{f: f, header: header}, nil
}

// sheet adds a sheet with a frozen header row followed by rows. The first
// call renames the default sheet.
func (w *workbook) sheet(name string, header []string, rows [][]any) error {
	if !w.used {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
		w.used = true
	} else if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := w.f.SetSheetRow(name, "A1", &cells); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(name, "A1", last, w.header); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}
	if err := w.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return w.f.SetColWidth(name, "A", lastCol, 22)
}

// keyValue adds a two-column sheet of labelled values.
func (w *workbook) keyValue(name string, pairs [][2]string) error {
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		rows[i] = []any{p[0], p[1]}
	}
	return w.sheet(name, []string{"Field", "Value"}, rows)
}

func (w *workbook) props(title, creator string) error {
	if err := w.f.SetDocProps(&excelize.DocProperties{Title: title, Creator: creator}); err != nil {
		return fmt.Errorf("set document properties: %w", err)
	}
	return nil
}

func (w *workbook) close() { _ = w.f.Close() }

func (w *workbook) writeTo(out io.Writer) error {
	w.f.SetActiveSheet(0)
	if err := w.f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
