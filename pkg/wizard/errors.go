package wizard

import (
	"errors"
	"fmt"
)

// Controller errors.
var (
	ErrMissingElement = errors.New("required wizard element missing")
	ErrStepOutOfRange = errors.New("step index out of range")
	ErrInvalidStep    = errors.New("persisted step is not an integer")
	ErrNotBound       = errors.New("wizard is not bound to a host")
	ErrBusy           = errors.New("wizard is handling another event")
)

// StepRangeError reports an attempt to activate a step that does not exist.
type StepRangeError struct {
	Step  int
	Total int
}

func (e *StepRangeError) Error() string {
	return fmt.Sprintf("step %d not in [0, %d)", e.Step, e.Total)
}

func (e *StepRangeError) Unwrap() error {
	return ErrStepOutOfRange
}
