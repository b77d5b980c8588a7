package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Seat Plan"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType of the rendered payload.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension of the rendered payload.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the title row, meta rows, a styled header row and the table body.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("column name: %w", err)
	}
	if err := f.SetColWidth(xlsxSheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	row := 1
	if data.Title != "" {
		if err := f.SetCellValue(xlsxSheet, cellName(1, row), data.Title); err != nil {
			return nil, err
		}
		if err := f.MergeCell(xlsxSheet, cellName(1, row), cellName(len(data.Headers), row)); err != nil {
			return nil, fmt.Errorf("merge title: %w", err)
		}
		row++
	}
	for _, line := range data.Meta {
		if err := f.SetCellValue(xlsxSheet, cellName(1, row), line); err != nil {
			return nil, err
		}
		row++
	}
	if row > 1 {
		row++
	}

	for i, header := range data.Headers {
		if err := f.SetCellValue(xlsxSheet, cellName(i+1, row), header); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(xlsxSheet, cellName(1, row), cellName(len(data.Headers), row), headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	row++

	for _, record := range data.Rows {
		values := make([]interface{}, len(record))
		for i, v := range record {
			values[i] = v
		}
		if err := f.SetSheetRow(xlsxSheet, cellName(1, row), &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
