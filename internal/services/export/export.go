// Package export writes a processed dataset back out as CSV or Excel.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"csvdash/internal/models"
	"csvdash/internal/services/planner"
)

const (
	// CSVFilename is the download name of the processed CSV
	CSVFilename = "processed_data.csv"
	// XLSXFilename is the download name of the processed workbook
	XLSXFilename = "processed_data.xlsx"

	dataSheet    = "Data"
	summarySheet = "Summary"
)

// WriteCSV serializes the table with a header row and no index column.
// Missing values are written as empty fields. Output is deterministic for a
// given table.
func WriteCSV(w io.Writer, t *models.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		if err := writer.Write(t.Row(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the dataset as a workbook: a Data sheet holding the table
// and, when type and amount are present, a Summary sheet of per-type and
// per-category totals
func WriteXLSX(w io.Writer, ds *models.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4A6FA5"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	t := ds.Table
	for j, name := range t.ColumnNames() {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		f.SetCellValue(dataSheet, cell, name)
	}
	if t.Width() > 0 {
		last, _ := excelize.CoordinatesToCellName(t.Width(), 1)
		f.SetCellStyle(dataSheet, "A1", last, headerStyle)
	}

	for j, col := range t.Columns {
		for i, c := range col.Cells {
			if !c.Valid {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(dataSheet, cell, cellValue(col.Kind, c)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := writeSummary(f, ds, headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("cannot create Excel: %w", err)
	}
	return nil
}

// cellValue picks the native Excel value for a cell. Dates keep their
// normalized text so the workbook matches the CSV export.
func cellValue(kind models.ColumnKind, c models.Cell) interface{} {
	switch kind {
	case models.KindNumber:
		return c.Num.InexactFloat64()
	case models.KindInteger:
		return c.Num.IntPart()
	default:
		return c.Raw
	}
}

func writeSummary(f *excelize.File, ds *models.Dataset, headerStyle int) error {
	byType, ok := planner.SumByType(ds)
	if !ok {
		return nil
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	row := 1
	f.SetCellValue(summarySheet, "A1", "Type")
	f.SetCellValue(summarySheet, "B1", "Total")
	f.SetCellStyle(summarySheet, "A1", "B1", headerStyle)
	for _, gt := range byType {
		row++
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), gt.Key)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), gt.Total.InexactFloat64())
	}

	if byCategory, ok := planner.ExpensesByCategory(ds); ok {
		row += 2
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Expense Category")
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Total")
		f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), headerStyle)
		for _, gt := range byCategory {
			row++
			f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), gt.Key)
			f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), gt.Total.InexactFloat64())
		}
	}

	f.SetColWidth(summarySheet, "A", "A", 20)
	f.SetColWidth(summarySheet, "B", "B", 14)
	return nil
}
