// File: internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

// AutomationError marks a failure that originated in the browser automation
// layer (CDP command failures, element lookup failures, deadline expiry while
// driving the page). The classifier uses this boundary to fence off
// unknown_error: anything not wrapped here did not come from the browser.
type AutomationError struct {
	Op  string // The high-level operation, e.g. "click", "navigate".
	Err error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// wrapAutomation tags err as an automation-layer failure. Nil passes through.
func wrapAutomation(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AutomationError{Op: op, Err: err}
}

// IsAutomation reports whether err (anywhere in its chain) came from the
// automation layer.
func IsAutomation(err error) bool {
	var ae *AutomationError
	return errors.As(err, &ae)
}

// ErrElementNotFound is returned when a lowered query matches nothing on the
// page at evaluation time.
var ErrElementNotFound = errors.New("element not found")
