package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into an Excel workbook with a single sheet.
type XLSXExporter struct {
	SheetName string
}

// NewXLSXExporter constructs an XLSX exporter writing to the named sheet.
func NewXLSXExporter(sheetName string) *XLSXExporter {
	if sheetName == "" {
		sheetName = "Summary"
	}
	return &XLSXExporter{SheetName: sheetName}
}

// Render writes title, headers, body and footer rows. Cells in Numeric columns are stored as numbers.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := e.SheetName
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	row := 1
	if data.Title != "" {
		if err := f.SetCellValue(sheet, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
			return nil, fmt.Errorf("style title: %w", err)
		}
		row++
	}
	if data.Subtitle != "" {
		if err := f.SetCellValue(sheet, cell(1, row), data.Subtitle); err != nil {
			return nil, fmt.Errorf("write subtitle: %w", err)
		}
		row++
	}
	if row > 1 {
		row++
	}

	headerRow := row
	for i, header := range data.Headers {
		if err := f.SetCellValue(sheet, cell(i+1, row), header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, cell(1, headerRow), cell(len(data.Headers), headerRow), bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	row++

	numeric := data.numericColumns()
	write := func(values []string) error {
		for i, value := range values {
			var v interface{} = value
			if numeric[i] {
				v = typed(value)
			}
			if err := f.SetCellValue(sheet, cell(i+1, row), v); err != nil {
				return fmt.Errorf("write cell: %w", err)
			}
		}
		row++
		return nil
	}
	for _, r := range data.Rows {
		if err := write(data.record(r)); err != nil {
			return nil, err
		}
	}
	footerStart := row
	for _, r := range data.Footer {
		if err := write(data.record(r)); err != nil {
			return nil, err
		}
	}
	if len(data.Footer) > 0 {
		if err := f.SetCellStyle(sheet, cell(1, footerStart), cell(len(data.Headers), row-1), bold); err != nil {
			return nil, fmt.Errorf("style footer: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}

func typed(value string) interface{} {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
