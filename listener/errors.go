package listener

import (
	"fmt"
	"runtime/debug"
)

// RecoveredPanicError is returned when a listener method panics.
// The delivery is nacked like for any other listener error.
type RecoveredPanicError struct {
	V          interface{}
	Stacktrace string
}

func newRecoveredPanicError(v interface{}) RecoveredPanicError {
	return RecoveredPanicError{V: v, Stacktrace: string(debug.Stack())}
}

func (p RecoveredPanicError) Error() string {
	return fmt.Sprintf("panic occurred: %#v, stacktrace: \n%s", p.V, p.Stacktrace)
}

// ConversionError is returned when the converter cannot produce the listener argument.
// Deliveries failing conversion are never requeued, as they would fail again.
type ConversionError struct {
	Err error
}

func (e ConversionError) Error() string {
	return "message conversion failed: " + e.Err.Error()
}

func (e ConversionError) Unwrap() error {
	return e.Err
}
