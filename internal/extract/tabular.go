package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// extractExcel renders every sheet of a workbook as a "# Sheet: <name>"
// header followed by an aligned plain-text dump of its rows. Sheets are
// joined by a blank line.
func extractExcel(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("reading sheet %s: %w", name, err)
		}
		sheets = append(sheets, fmt.Sprintf("# Sheet: %s\n%s", name, renderRows(rows)))
	}
	return strings.Join(sheets, "\n\n"), nil
}

// extractXLS renders a legacy BIFF workbook the same way extractExcel
// renders OOXML ones. excelize cannot read the old format, so .xls goes
// through a dedicated reader.
func extractXLS(ctx context.Context, path string) (string, error) {
	wb, err := xls.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}

	var sheets []string
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sh, err := wb.GetSheet(i)
		if err != nil {
			return "", fmt.Errorf("reading sheet %d: %w", i, err)
		}

		var rows [][]string
		for r := 0; r <= sh.GetNumberRows(); r++ {
			rowData, err := sh.GetRow(r)
			if err != nil {
				continue
			}
			var cells []string
			for _, cell := range rowData.GetCols() {
				cells = append(cells, cell.GetString())
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, fmt.Sprintf("# Sheet: %s\n%s", sh.GetName(), renderRows(rows)))
	}
	return strings.Join(sheets, "\n\n"), nil
}

// extractCSV renders a CSV file as an aligned plain-text table, no
// sheet header.
func extractCSV(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are data, not errors
	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parsing csv: %w", err)
	}
	return renderRows(rows), nil
}

// renderRows aligns rows into columns the way a plain-text table dump
// reads: cells padded with spaces, one row per line.
func renderRows(rows [][]string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
