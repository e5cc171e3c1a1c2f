// Package solution turns the solver's JSON result back into calendar-indexed
// schedules.
package solution

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kilianp07/peakopt/core/model"
)

// Result document keys.
const (
	FieldBatteryLoad   = "battery_load"
	FieldStateOfCharge = "state_of_charge_kWh"
)

// ErrDecoding matches every *DecodingError.
var ErrDecoding = errors.New("decoding failed")

// DecodingError reports a result document that does not match the instance.
type DecodingError struct {
	Field string
	Msg   string
}

func (e *DecodingError) Error() string {
	if e.Field == "" {
		return "decoding failed: " + e.Msg
	}
	return fmt.Sprintf("decoding failed (%s): %s", e.Field, e.Msg)
}

// Is lets errors.Is(err, ErrDecoding) match.
func (e *DecodingError) Is(target error) bool { return target == ErrDecoding }

// Decode reads the first JSON value from r and reshapes its battery load
// against index and units. With withSoC the state of charge is decoded as
// well, against index extended by one step.
func Decode(r io.Reader, index []time.Time, units []model.UnitID, withSoC bool) (model.Schedule, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return model.Schedule{}, &DecodingError{Msg: fmt.Sprintf("malformed result document: %v", err)}
	}

	dispatch, err := reshape(doc, FieldBatteryLoad, index, units)
	if err != nil {
		return model.Schedule{}, err
	}
	sched := model.Schedule{Dispatch: dispatch}
	if !withSoC {
		return sched, nil
	}

	extended, err := ExtendIndex(index, 1)
	if err != nil {
		return model.Schedule{}, err
	}
	soc, err := reshape(doc, FieldStateOfCharge, extended, units)
	if err != nil {
		return model.Schedule{}, err
	}
	sched.SoC = &soc
	return sched, nil
}

// DecodeFile decodes the result document at path.
func DecodeFile(path string, index []time.Time, units []model.UnitID, withSoC bool) (model.Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Schedule{}, &DecodingError{Msg: fmt.Sprintf("open result: %v", err)}
	}
	defer func() { _ = f.Close() }()
	return Decode(f, index, units, withSoC)
}

// ExtendIndex appends n timestamps to index, continuing its step size.
func ExtendIndex(index []time.Time, n int) ([]time.Time, error) {
	if len(index) < 2 {
		return nil, &DecodingError{Msg: "need at least two timestamps to infer the step size"}
	}
	step := index[1].Sub(index[0])
	out := make([]time.Time, len(index), len(index)+n)
	copy(out, index)
	last := index[len(index)-1]
	for i := 1; i <= n; i++ {
		out = append(out, last.Add(time.Duration(i)*step))
	}
	return out, nil
}

func reshape(doc map[string]json.RawMessage, field string, index []time.Time, units []model.UnitID) (model.Frame, error) {
	raw, ok := doc[field]
	if !ok {
		return model.Frame{}, &DecodingError{Field: field, Msg: "missing from result document"}
	}
	var cells [][]*float64
	if err := json.Unmarshal(raw, &cells); err != nil {
		return model.Frame{}, &DecodingError{Field: field, Msg: fmt.Sprintf("not a 2-D numeric array: %v", err)}
	}
	if len(cells) != len(index) {
		return model.Frame{}, &DecodingError{Field: field, Msg: fmt.Sprintf("got %d rows, expected %d timesteps", len(cells), len(index))}
	}
	values := make([][]float64, len(cells))
	for i, row := range cells {
		if len(row) != len(units) {
			return model.Frame{}, &DecodingError{Field: field, Msg: fmt.Sprintf("row %d has %d columns, expected %d units", i, len(row), len(units))}
		}
		values[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				return model.Frame{}, &DecodingError{Field: field, Msg: fmt.Sprintf("row %d, column %d (unit %v) is null", i, j, units[j])}
			}
			values[i][j] = *v
		}
	}
	return model.Frame{
		Index:  append([]time.Time(nil), index...),
		Units:  append([]model.UnitID(nil), units...),
		Values: values,
	}, nil
}
