package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error is returned for every failed provider call. Status is 0 when no
// response was received (timeout, DNS, connection reset); Cause is set then.
type Error struct {
	Target string
	Status int
	Body   string // truncated response body
	Cause  error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream %s unreachable: %v", e.Target, e.Cause)
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream %s returned %d", e.Target, e.Status)
	}
	return fmt.Sprintf("upstream %s returned %d: %s", e.Target, e.Status, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call failed because it ran out of time.
func (e *Error) Timeout() bool {
	if e.Cause == nil {
		return false
	}
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// StatusOf extracts the HTTP status from an upstream error, 0 if none.
func StatusOf(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
