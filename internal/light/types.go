// Package light contains the pure ambient-light model and theme derivation.
// This package has NO external dependencies (no sensors, HTTP, OS, or clocks).
package light

import (
	"errors"
	"strconv"
)

// ErrUnsupported reports that no ambient light capability is available.
// The subscription itself never stores it; it is an exit condition for probes.
var ErrUnsupported = errors.New("ambient light sensor not supported")

// Reading is the last known illuminance, or unknown.
type Reading struct {
	Lux   float64
	Known bool
}

// Unknown returns the reading used before any sample has arrived.
func Unknown() Reading {
	return Reading{}
}

// Lux returns a known reading of v lux.
func Lux(v float64) Reading {
	return Reading{Lux: v, Known: true}
}

// String renders the reading the way the status page shows it.
func (r Reading) String() string {
	if !r.Known {
		return "Unknown"
	}
	return strconv.FormatFloat(r.Lux, 'f', -1, 64) + " lux"
}

// Status is the tri-state result of probing for a sensor.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusSupported   Status = "supported"
	StatusUnsupported Status = "unsupported"
)

// IsSupported maps the status onto a nullable boolean (nil while unknown).
func (s Status) IsSupported() *bool {
	var b bool
	switch s {
	case StatusSupported:
		b = true
	case StatusUnsupported:
		b = false
	default:
		return nil
	}
	return &b
}

// State is the read-only triple exposed to presentation layers.
type State struct {
	Reading Reading
	Err     error
	Status  Status
}

// NewState returns the state before the subscription has started.
func NewState() State {
	return State{Status: StatusUnknown}
}

// ErrString returns the error text, or "" when no error has been seen.
func (s State) ErrString() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Counts tracks how many events the subscription delivered since startup.
type Counts struct {
	Readings int
	Errors   int
}
