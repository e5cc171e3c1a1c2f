// Package csvsource reads the load, solar and battery tables from CSV files.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/peakopt/core/model"
)

// ErrFormat is wrapped by every parse failure.
var ErrFormat = errors.New("malformed csv")

// missing lists the cell values read as NaN.
var missing = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "NaN": true, "nan": true, "-NaN": true, "-nan": true,
	"NULL": true, "null": true, "None": true, "<NA>": true, "#N/A": true, "#NA": true,
}

type layout struct {
	format    string
	hasOffset bool
}

var layouts = []layout{
	{time.RFC3339Nano, true},
	{"2006-01-02 15:04:05.999999999Z07:00", true},
	{"2006-01-02 15:04:05.999999999-0700", true},
	{"2006-01-02T15:04:05.999999999-0700", true},
	{"2006-01-02 15:04Z07:00", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02 15:04", false},
	{"2006-01-02", false},
}

// ParseTimestamp parses s in the ISO-like forms pandas accepts. Zero offsets
// are normalised to time.UTC. Other offsets keep a fixed zone and naive
// timestamps are read in time.Local, so neither passes a UTC check.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if l.hasOffset {
			t, err := time.Parse(l.format, s)
			if err != nil {
				continue
			}
			if _, off := t.Zone(); off == 0 {
				t = t.UTC()
			}
			return t, nil
		}
		if t, err := time.ParseInLocation(l.format, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrFormat, s)
}

// ParseValue parses a numeric cell. Missing markers read as NaN.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missing[s] {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrFormat, s)
	}
	return v, nil
}

// ReadFrame reads a table whose first column holds timestamps and whose
// remaining columns are unit IDs. Only the syntax is checked here; index
// alignment, time zone and duplicate columns are left to preprocessing.
func ReadFrame(r io.Reader) (model.Frame, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return model.Frame{}, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}
	if len(header) < 2 {
		return model.Frame{}, fmt.Errorf("%w: expected a timestamp column and at least one unit column", ErrFormat)
	}
	units := make([]model.UnitID, len(header)-1)
	for i, h := range header[1:] {
		units[i] = model.UnitID(strings.TrimSpace(h))
	}

	f := model.Frame{IndexName: strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")), Units: units}
	line := 1
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Frame{}, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
		}
		ts, err := ParseTimestamp(rec[0])
		if err != nil {
			return model.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, len(units))
		for j, cell := range rec[1:] {
			if row[j], err = ParseValue(cell); err != nil {
				return model.Frame{}, fmt.Errorf("line %d, column %s: %w", line, units[j], err)
			}
		}
		f.Index = append(f.Index, ts)
		f.Values = append(f.Values, row)
	}
	return f, nil
}

// ReadFrameFile reads the table at path.
func ReadFrameFile(path string) (model.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.Frame{}, err
	}
	defer func() { _ = file.Close() }()
	f, err := ReadFrame(file)
	if err != nil {
		return model.Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
