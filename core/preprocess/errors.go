package preprocess

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// Names of the individual input checks.
const (
	CheckShape      = "shape"
	CheckAlignment  = "index_alignment"
	CheckLength     = "index_length"
	CheckTimezone   = "timezone"
	CheckStep       = "step_constant"
	CheckStepMinute = "step_whole_minutes"
	CheckMissing    = "missing_values"
	CheckBattery    = "battery_spec"
	CheckTariff     = "tariff"
)

// ValidationError reports an input precondition that does not hold.
type ValidationError struct {
	Check string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Check, e.Msg)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(check, format string, args ...any) error {
	return &ValidationError{Check: check, Msg: fmt.Sprintf(format, args...)}
}
