package exportsvc

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/escolar/core/school"
)

var ErrNoSheet = errors.New("the workbook does not contain any sheet")

// ParseGrades reads the grade rows of the first sheet of an excel workbook.
// The first row must be the GradesHeader (column order is free, unknown columns are ignored).
// Cells that cannot be parsed are reported as row errors, the row being skipped.
func ParseGrades(r io.Reader) ([]school.GradeRow, []school.RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading sheet %q", sheetName)
	}
	if len(rows) == 0 {
		return []school.GradeRow{}, []school.RowError{}, nil
	}

	cols, err := headerColumns(rows[0])
	if err != nil {
		return nil, nil, err
	}

	grades := make([]school.GradeRow, 0, len(rows)-1)
	rowErrs := make([]school.RowError, 0)
	for i, cells := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		if isBlank(cells) {
			continue
		}
		row, errs := parseRow(rowNum, cols, cells)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		grades = append(grades, row)
	}
	return grades, rowErrs, nil
}

func headerColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	missing := make([]string, 0)
	for _, h := range GradesHeader {
		if _, ok := cols[h]; !ok && h != "comment" && h != "weight" {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(rowNum int, cols map[string]int, cells []string) (school.GradeRow, []school.RowError) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	row := school.GradeRow{
		Row:             rowNum,
		StudentUsername: cell("student_username"),
		Type:            cell("type"),
		Comment:         cell("comment"),
	}
	var errs []school.RowError
	parseFloat := func(name string, dst *float64, optional bool) {
		raw := cell(name)
		if raw == "" && optional {
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, school.RowError{Row: rowNum, Field: name, Error: fmt.Sprintf("invalid number %q", raw)})
			return
		}
		*dst = v
	}
	parseFloat("value", &row.Value, false)
	parseFloat("max_value", &row.MaxValue, false)
	parseFloat("weight", &row.Weight, true)

	date, err := parseDate(cell("date"))
	if err != nil {
		errs = append(errs, school.RowError{Row: rowNum, Field: "date", Error: err.Error()})
	}
	row.GradedOn = date
	return row, errs
}

// parseDate accepts ISO dates and excel date serials.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", raw)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", raw)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
