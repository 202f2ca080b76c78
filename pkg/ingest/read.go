package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/floats/scalar"

	"tracerfit/internal/models"
)

// monthLayouts are the accepted date formats of input records
var monthLayouts = []string{"2006-01", "2006-01-02", "2006/01", "2006/01/02", "2006-01-02 15:04:05"}

// dayLayouts are the accepted date formats of observation records
var dayLayouts = []string{"2006-01-02", "2006/01/02", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00"}

// ReadInputSeries reads monthly input records from a CSV file or the first
// sheet of an .xlsx workbook, each with a header row and the columns date,
// concentration, precipitation.
//
// Files with another extension fail with models.ErrFileFormat. Missing,
// malformed or non-consecutive records fail with models.ErrDataValidity.
func ReadInputSeries(path string) (MonthlyInput, error) {
	rows, err := readRows("read input", path, 3)
	if err != nil {
		return MonthlyInput{}, err
	}

	in := MonthlyInput{
		Dates:         make([]time.Time, 0, len(rows)),
		Concentration: make([]float64, 0, len(rows)),
		Precipitation: make([]float64, 0, len(rows)),
	}
	for i, row := range rows {
		line := i + 2
		d, err := parseDate(row[0], monthLayouts)
		if err != nil {
			return MonthlyInput{}, invalid("read input", path, line, err)
		}
		c, err := parseValue(row[1])
		if err != nil {
			return MonthlyInput{}, invalid("read input", path, line, err)
		}
		p, err := parseValue(row[2])
		if err != nil {
			return MonthlyInput{}, invalid("read input", path, line, err)
		}
		in.Dates = append(in.Dates, time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC))
		in.Concentration = append(in.Concentration, c)
		in.Precipitation = append(in.Precipitation, p)
	}

	if err := in.Validate(); err != nil {
		return MonthlyInput{}, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// ReadObservations reads dated observations from a CSV file or the first sheet
// of an .xlsx workbook, with a header row and the columns date, concentration.
// Dates are converted with YearFraction.
func ReadObservations(path string) (models.ObservationSet, error) {
	rows, err := readRows("read observations", path, 2)
	if err != nil {
		return models.ObservationSet{}, err
	}

	obs := models.ObservationSet{
		Time:          make([]float64, 0, len(rows)),
		Concentration: make([]float64, 0, len(rows)),
	}
	for i, row := range rows {
		line := i + 2
		d, err := parseDate(row[0], dayLayouts)
		if err != nil {
			return models.ObservationSet{}, invalid("read observations", path, line, err)
		}
		c, err := parseValue(row[1])
		if err != nil {
			return models.ObservationSet{}, invalid("read observations", path, line, err)
		}
		obs.Time = append(obs.Time, YearFraction(d))
		obs.Concentration = append(obs.Concentration, c)
	}
	return obs, nil
}

// YearFraction converts a date to its year plus the elapsed part of the
// year, dayOfYear/365, rounded to 2 decimals: 1974-05-30 becomes 1974.41.
func YearFraction(d time.Time) float64 {
	return scalar.Round(float64(d.Year())+float64(d.YearDay())/365, 2)
}

// readRows returns the data rows of a CSV file or of the first sheet of an
// Excel workbook, header excluded, each with at least cols fields.
func readRows(op, path string, cols int) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(op, path)
	case ".xlsx", ".xlsm":
		rows, err = readSheet(op, path)
	case ".xls":
		// excelize only reads the OOXML container
		return nil, models.NewOpError(op, models.ErrFileFormat, fmt.Errorf("%s: legacy binary workbook, save it as .xlsx", path))
	default:
		return nil, models.NewOpError(op, models.ErrFileFormat, fmt.Errorf("%s: not supported extension %q", path, ext))
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, models.NewOpError(op, models.ErrDataValidity, fmt.Errorf("%s: no records after header", path))
	}
	for i, row := range rows {
		if len(row) < cols {
			return nil, invalid(op, path, i+2, fmt.Errorf("expected %d columns, got %d", cols, len(row)))
		}
	}
	return rows, nil
}

func readCSV(op, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, models.NewOpError(op, models.ErrDataValidity, fmt.Errorf("%s: empty file", path))
		}
		return nil, models.NewOpError(op, models.ErrFileFormat, fmt.Errorf("%s: %w", path, err))
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, models.NewOpError(op, models.ErrFileFormat, fmt.Errorf("%s: %w", path, err))
	}
	return rows, nil
}

// readSheet reads the first sheet of a workbook. Cells are read raw, so a
// date cell arrives as its serial day number and is rewritten as ISO text
// before it reaches parseDate.
func readSheet(op, path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, models.NewOpError(op, models.ErrFileFormat, fmt.Errorf("%s: %w", path, err))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.NewOpError(op, models.ErrDataValidity, fmt.Errorf("%s: workbook has no sheets", path))
	}
	all, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, models.NewOpError(op, models.ErrFileFormat, fmt.Errorf("%s: sheet %q: %w", path, sheets[0], err))
	}

	// trailing blank rows are dropped, blank rows inside the data are kept so
	// they fail validation on their own line
	for len(all) > 0 && blankRow(all[len(all)-1]) {
		all = all[:len(all)-1]
	}
	if len(all) == 0 {
		return nil, models.NewOpError(op, models.ErrDataValidity, fmt.Errorf("%s: empty file", path))
	}

	rows := all[1:]
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if serial, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64); err == nil {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				row[0] = t.Format("2006-01-02 15:04:05")
			}
		}
	}
	return rows, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing date")
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func invalid(op, path string, line int, err error) error {
	return models.NewOpError(op, models.ErrDataValidity, fmt.Errorf("%s:%d: %w", path, line, err))
}
