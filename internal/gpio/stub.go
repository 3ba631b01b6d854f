//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/ambient-theme/internal/sensor"
)

// Provider is not available on non-Linux platforms.
type Provider struct {
	cfg Config
}

// New creates a Provider that never finds a chip.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg.withDefaults()}
}

// Probe always reports the capability as absent.
func (p *Provider) Probe() bool {
	return false
}

// Open returns an error on non-Linux platforms.
func (p *Provider) Open() (sensor.Handle, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
