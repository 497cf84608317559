package repositories

import "fmt"

// CounterErrorCode enumerates failure reasons for counter operations.
type CounterErrorCode string

const (
	// CounterErrorInvalidInput indicates the caller supplied invalid arguments.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted indicates the counter reached its configured max value.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
)

// CounterError wraps counter-specific failures with machine readable codes.
type CounterError struct {
	Code    CounterErrorCode
	Message string
	Err     error
}

func (e *CounterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CounterError) Unwrap() error { return e.Err }

// IsNotFound implements RepositoryError.
func (e *CounterError) IsNotFound() bool { return false }

// IsConflict reports exhaustion as a conflict so callers can map it to 409.
func (e *CounterError) IsConflict() bool { return e.Code == CounterErrorExhausted }

// IsUnavailable implements RepositoryError.
func (e *CounterError) IsUnavailable() bool { return false }

// NewCounterError constructs a typed counter error.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{Code: code, Message: message, Err: err}
}

// NextCounterValue applies the step and bound rules shared by every backend.
// current and stored are the persisted state; a missing counter passes zero values.
func NextCounterValue(counterID string, current int64, stored CounterConfig, step int64) (next int64, usedStep int64, err error) {
	if step < 0 {
		return 0, 0, NewCounterError(CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}
	usedStep = step
	if usedStep == 0 {
		usedStep = stored.Step
	}
	if usedStep <= 0 {
		usedStep = 1
	}
	next = current + usedStep
	if stored.MaxValue != nil && next > *stored.MaxValue {
		return 0, 0, NewCounterError(CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", counterID, *stored.MaxValue), nil)
	}
	return next, usedStep, nil
}
