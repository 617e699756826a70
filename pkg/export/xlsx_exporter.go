package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes an optional merged title row, a styled header row and the body.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := sheetName(title)
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create body style: %w", err)
	}

	row := 1
	lastCol := columnName(len(data.Headers))
	if title != "" {
		if err := f.SetCellValue(sheet, cellName(1, row), title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		if len(data.Headers) > 1 {
			if err := f.MergeCell(sheet, "A1", fmt.Sprintf("%s1", lastCol)); err != nil {
				return nil, fmt.Errorf("merge title: %w", err)
			}
		}
		_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)
		row++
	}

	headerRow := make([]interface{}, len(data.Headers))
	for i, header := range data.Headers {
		headerRow[i] = header
	}
	if err := f.SetSheetRow(sheet, cellName(1, row), &headerRow); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	_ = f.SetCellStyle(sheet, cellName(1, row), cellName(len(data.Headers), row), headerStyle)
	row++

	firstBody := row
	for _, record := range data.Rows {
		values := make([]interface{}, len(data.Headers))
		for i, header := range data.Headers {
			values[i] = record[header]
		}
		if err := f.SetSheetRow(sheet, cellName(1, row), &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}
	if row > firstBody {
		_ = f.SetCellStyle(sheet, cellName(1, firstBody), cellName(len(data.Headers), row-1), bodyStyle)
	}
	_ = f.SetColWidth(sheet, "A", "A", 14)
	if len(data.Headers) > 1 {
		_ = f.SetColWidth(sheet, "B", lastCol, 22)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func sheetName(title string) string {
	if title == "" {
		return defaultSheet
	}
	replacer := strings.NewReplacer(":", " ", "\\", " ", "/", "-", "?", "", "*", "", "[", "(", "]", ")")
	name := strings.TrimSpace(replacer.Replace(title))
	if len(name) > 31 {
		name = name[:31]
	}
	if name == "" {
		return defaultSheet
	}
	return name
}

func columnName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx)
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
