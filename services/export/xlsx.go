package exportsvc

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/ratiba/core/timetable"
)

const (
	gridSheet    = "Timetable"
	entriesSheet = "Entries"
)

// WriteXLSX writes a workbook with the section grid on a first sheet and the flat entry list on a second one.
func WriteXLSX(w io.Writer, tt Timetable) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", gridSheet); err != nil {
		return errors.Wrap(err, "naming grid sheet")
	}
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return errors.Wrap(err, "adding entries sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return errors.Wrap(err, "creating cell style")
	}

	if err = writeGridSheet(f, tt, headerStyle, cellStyle); err != nil {
		return err
	}
	if err = writeEntriesSheet(f, tt, headerStyle); err != nil {
		return err
	}
	return errors.Wrap(f.Write(w), "writing workbook")
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeGridSheet(f *excelize.File, tt Timetable, headerStyle, cellStyle int) error {
	days := tt.days()

	if err := f.SetCellValue(gridSheet, "A1", tt.Title); err != nil {
		return errors.Wrap(err, "writing title")
	}
	header := []interface{}{"Period"}
	for _, d := range days {
		header = append(header, d.String())
	}
	if err := setRow(f, gridSheet, 2, header); err != nil {
		return errors.Wrap(err, "writing grid header")
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(header), 2)
	if err := f.SetCellStyle(gridSheet, "A2", lastCol, headerStyle); err != nil {
		return errors.Wrap(err, "styling grid header")
	}

	for i, row := range tt.grid().Rows(days) {
		values := []interface{}{periodHeading(row.Period)}
		for _, cell := range row.Cells {
			values = append(values, strings.Join(tt.cellLines(cell), "\n"))
		}
		if err := setRow(f, gridSheet, i+3, values); err != nil {
			return errors.Wrap(err, "writing grid row")
		}
		first, _ := excelize.CoordinatesToCellName(2, i+3)
		last, _ := excelize.CoordinatesToCellName(len(values), i+3)
		if err := f.SetCellStyle(gridSheet, first, last, cellStyle); err != nil {
			return errors.Wrap(err, "styling grid row")
		}
	}

	lastColName, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetColWidth(gridSheet, "A", "A", 24); err != nil {
		return errors.Wrap(err, "sizing grid")
	}
	if len(header) > 1 {
		if err := f.SetColWidth(gridSheet, "B", lastColName, 20); err != nil {
			return errors.Wrap(err, "sizing grid")
		}
	}
	return nil
}

func writeEntriesSheet(f *excelize.File, tt Timetable, headerStyle int) error {
	header := make([]interface{}, len(timetable.FlatRowHeaders))
	for i, h := range timetable.FlatRowHeaders {
		header[i] = h
	}
	if err := setRow(f, entriesSheet, 1, header); err != nil {
		return errors.Wrap(err, "writing entries header")
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(entriesSheet, "A1", lastCol, headerStyle); err != nil {
		return errors.Wrap(err, "styling entries header")
	}

	for i, row := range tt.flatRows() {
		vals := row.Values()
		values := make([]interface{}, len(vals))
		for j, v := range vals {
			values[j] = v
		}
		if err := setRow(f, entriesSheet, i+2, values); err != nil {
			return errors.Wrap(err, "writing entry row")
		}
	}
	return nil
}
