package booking

import "fmt"

// ValidationError reports missing or malformed client input on a
// reservation request. Handlers translate it into an HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SoldOutError reports that an event cannot absorb the requested
// quantity. Available carries the number of tickets still sellable so
// the buyer can adjust. Handlers translate it into an HTTP 409.
type SoldOutError struct {
	Available uint32
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("not enough tickets available, only %d left", e.Available)
}
