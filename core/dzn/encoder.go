// Package dzn writes optimisation instances in the MiniZinc data format
// expected by the peak-shaving model.
package dzn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/peakopt/core/preprocess"
)

// ErrEncoding matches every *EncodingError.
var ErrEncoding = errors.New("encoding failed")

// EncodingError reports a value that has no representation in the data file.
type EncodingError struct {
	Field string
	Index int // position within the array, -1 for scalars
	Value float64
}

func (e *EncodingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("encoding failed: %s is not finite (%v)", e.Field, e.Value)
	}
	return fmt.Sprintf("encoding failed: %s[%d] is not finite (%v)", e.Field, e.Index, e.Value)
}

// Is lets errors.Is(err, ErrEncoding) match.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// Array index sets declared by the model.
const (
	timesteps = "TIMESTEPS"
	units     = "UNITS"
)

// Encode writes inst and the weighting parameter alpha to w.
// Battery quantities are converted from W/Wh to kW/kWh and the round-trip
// efficiency to a one-way efficiency assuming symmetric losses.
func Encode(w io.Writer, inst *preprocess.Instance, alpha float64) error {
	fleet := inst.Fleet
	capacity := make([]float64, len(fleet))
	state := make([]float64, len(fleet))
	charge := make([]float64, len(fleet))
	discharge := make([]float64, len(fleet))
	eff := make([]float64, len(fleet))
	for i, b := range fleet {
		capacity[i] = b.CapacityWh
		state[i] = b.InitialWh
		charge[i] = b.ChargeW
		discharge[i] = b.DischargeW
		eff[i] = math.Sqrt(b.Efficiency)
	}
	for _, v := range [][]float64{capacity, state, charge, discharge} {
		for i := range v {
			v[i] /= 1000
		}
	}

	solar := inst.Solar.Flatten()
	floats.Scale(-1, solar)

	e := &encoder{w: bufio.NewWriter(w)}
	e.scalar("num_timesteps", strconv.Itoa(len(inst.Index)))
	e.scalar("num_units", strconv.Itoa(len(inst.Units)))
	e.scalar("step_minutes", strconv.Itoa(inst.StepMinutes()))
	e.array1d("uncontrollable_forecast", timesteps, inst.Uncontrolled)
	e.array2d("base_load_forecast", inst.Load.Flatten())
	e.array2d("solar_load_forecast", solar)
	e.array1d("capacity_kWh", units, capacity)
	e.array1d("charge_kWh", units, state)
	e.array1d("max_charge_kW", units, charge)
	e.array1d("max_discharge_kW", units, discharge)
	e.array1d("tariff", timesteps, inst.Tariff.Import)
	e.array1d("feed_in", timesteps, inst.Tariff.Export)
	e.array1d("efficiency", units, eff)
	if s, err := FormatFloat(alpha); err != nil {
		e.fail(&EncodingError{Field: "alpha", Index: -1, Value: alpha})
	} else {
		e.scalar("alpha", s)
	}
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// WriteFile encodes inst into path, replacing any existing content.
func WriteFile(path string, inst *preprocess.Instance, alpha float64) error {
	var sb strings.Builder
	if err := Encode(&sb, inst, alpha); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) scalar(name, value string) {
	if e.err != nil {
		return
	}
	if _, err := fmt.Fprintf(e.w, "%s = %s;\n", name, value); err != nil {
		e.fail(err)
	}
}

func (e *encoder) array1d(name, set string, values []float64) {
	list, err := formatList(name, values)
	if err != nil {
		e.fail(err)
		return
	}
	e.scalar(name, fmt.Sprintf("array1d(%s, %s)", set, list))
}

func (e *encoder) array2d(name string, values []float64) {
	list, err := formatList(name, values)
	if err != nil {
		e.fail(err)
		return
	}
	e.scalar(name, fmt.Sprintf("array2d(%s, %s, %s)", timesteps, units, list))
}

func formatList(field string, values []float64) (string, error) {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		s, err := FormatFloat(v)
		if err != nil {
			return "", &EncodingError{Field: field, Index: i, Value: v}
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s)
	}
	sb.WriteByte(']')
	return sb.String(), nil
}

// FormatFloat renders v as the shortest decimal that parses back to the
// same float64. The result always reads as a float literal: integral values
// get a ".0" suffix and exponents are used below 1e-4 and from 1e16 upwards.
func FormatFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", &EncodingError{Field: "value", Index: -1, Value: v}
	}
	if v != 0 {
		es := strconv.FormatFloat(v, 'e', -1, 64)
		exp, err := strconv.Atoi(es[strings.IndexByte(es, 'e')+1:])
		if err != nil {
			return "", err
		}
		if exp < -4 || exp >= 16 {
			return es, nil
		}
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}
