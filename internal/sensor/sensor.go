// Package sensor abstracts a host-provided ambient light capability and the
// single subscription that consumes it.
// Real capabilities live in internal/iio, internal/gpio and internal/mqtt.
// The fake implementation allows testing without hardware.
package sensor

import (
	"fmt"
	"time"

	"github.com/sweeney/ambient-theme/internal/light"
)

// Provider exposes an ambient light capability that may be absent.
type Provider interface {
	// Probe reports whether the capability exists. Absence is a normal
	// outcome, not a fault.
	Probe() bool

	// Open constructs a sensor handle. It must not start the stream.
	Open() (Handle, error)
}

// Handle is an acquired sensor. Callbacks are invoked serially, from any goroutine.
type Handle interface {
	// SetOnReading registers the callback for illuminance samples.
	SetOnReading(fn func(lux float64))

	// SetOnError registers the callback for asynchronous sensor errors.
	SetOnError(fn func(err error))

	// Start begins delivering events.
	Start() error

	// Close stops the stream. No callbacks are invoked after Close returns.
	Close() error
}

// AcquisitionError reports that opening or starting the sensor failed.
type AcquisitionError struct {
	Op  string // "open" or "start"
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("sensor %s: %v", e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// UpdateKind says which part of the state an Update changed.
type UpdateKind string

const (
	UpdateReading UpdateKind = "reading"
	UpdateError   UpdateKind = "error"
	UpdateStatus  UpdateKind = "status"
)

// Update is pushed to the subscription's consumer after every state change.
type Update struct {
	Kind   UpdateKind
	State  light.State
	Counts light.Counts
	Time   time.Time
}

// Unavailable is a Provider for hosts without any light sensor.
type Unavailable struct{}

// Probe always reports the capability as absent.
func (Unavailable) Probe() bool { return false }

// Open always fails; Subscription never calls it because Probe is false.
func (Unavailable) Open() (Handle, error) {
	return nil, light.ErrUnsupported
}
