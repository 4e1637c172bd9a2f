// internal/export/excel.go
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var exportLogger = utils.NewComponentLogger("export")

// Excel cell limits.
const (
	maxCellLength      = 32767
	defaultColumnWidth = 15.0
)

// ExcelOptions tunes workbook generation.
type ExcelOptions struct {
	SheetName    string
	AutoFilter   bool
	FreezeHeader bool
	ColumnWidths map[string]float64
}

// WriteExcel writes job results to an xlsx workbook, one row per result.
// Columns are the union of flattened keys so sparse results still line up.
func WriteExcel(path string, results []types.Result, opts ExcelOptions) error {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return fmt.Errorf("excel export path must end with .xlsx")
	}
	if opts.SheetName == "" {
		opts.SheetName = "Results"
	}

	rows := make([]map[string]interface{}, 0, len(results))
	for i := range results {
		rows = append(rows, Flatten(&results[i]))
	}
	columns := Columns(rows)

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), opts.SheetName)

	if err := writeHeaderRow(f, opts.SheetName, columns); err != nil {
		return err
	}

	for i, row := range rows {
		rowNum := i + 2
		for col, header := range columns {
			cell := columnName(col+1) + strconv.Itoa(rowNum)
			if err := f.SetCellValue(opts.SheetName, cell, cellValue(row[header])); err != nil {
				return err
			}
		}
	}

	for col, header := range columns {
		width := defaultColumnWidth
		if w, ok := opts.ColumnWidths[header]; ok {
			width = w
		}
		name := columnName(col + 1)
		if err := f.SetColWidth(opts.SheetName, name, name, width); err != nil {
			return err
		}
	}

	if opts.AutoFilter && len(rows) > 0 {
		ref := "A1:" + columnName(len(columns)) + strconv.Itoa(len(rows)+1)
		if err := f.AutoFilter(opts.SheetName, ref, nil); err != nil {
			return err
		}
	}
	if opts.FreezeHeader {
		if err := f.SetPanes(opts.SheetName, &excelize.Panes{
			Freeze: true,
			YSplit: 1,
		}); err != nil {
			return err
		}
	}

	exportLogger.Infof("wrote %d results to %s", len(rows), path)
	return f.SaveAs(path)
}

func writeHeaderRow(f *excelize.File, sheet string, columns []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for col, header := range columns {
		cell := columnName(col+1) + "1"
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// cellValue clamps oversized strings and passes times through so excelize
// formats them natively.
func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t
	case string:
		if len(t) > maxCellLength {
			exportLogger.Warnf("truncating cell from %d to %d characters", len(t), maxCellLength)
			return t[:maxCellLength]
		}
		return t
	default:
		return v
	}
}

// columnName converts a 1-based column number to its Excel name (A..Z,
// AA, AB, ...).
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
