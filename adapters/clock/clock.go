// Package clock provides time implementations.
package clock

import (
	"time"

	"github.com/planora/planora/ports"
)

// System uses the real system clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Ensure interface compliance.
var _ ports.Clock = System{}

// Fixed returns a fixed time (for testing).
type Fixed struct {
	T time.Time
}

// Now returns the fixed time.
func (f Fixed) Now() time.Time {
	return f.T
}

// Ensure interface compliance.
var _ ports.Clock = Fixed{}
