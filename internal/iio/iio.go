// Package iio reads ambient light from the Linux Industrial I/O subsystem.
// Light sensors (tsl2561, bh1750, apds9960, ...) expose illuminance under
// /sys/bus/iio/devices/iio:deviceN as either a processed value in lux or a
// raw count with a scale.
package iio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/ambient-theme/internal/sensor"
)

// DefaultRoot is where the kernel publishes IIO devices.
const DefaultRoot = "/sys/bus/iio/devices"

// ErrNoDevice indicates no IIO device exposes an illuminance channel.
var ErrNoDevice = errors.New("iio: no illuminance device found")

// ErrNotFinite indicates a channel reported NaN or an infinity.
var ErrNotFinite = errors.New("value is not finite")

// sysfs attribute names
const (
	attrInput  = "in_illuminance_input"
	attrRaw    = "in_illuminance_raw"
	attrScale  = "in_illuminance_scale"
	attrOffset = "in_illuminance_offset"
	attrName   = "name"
)

// Config selects the device and polling interval.
type Config struct {
	Root     string        // sysfs root, DefaultRoot when empty
	Device   string        // directory (iio:device0) or driver name (bh1750); first match when empty
	Interval time.Duration // polling interval, 1s when zero
}

// Provider implements sensor.Provider for IIO light sensors.
type Provider struct {
	cfg Config
}

// New creates a Provider. Nothing is touched until Probe or Open.
func New(cfg Config) *Provider {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Provider{cfg: cfg}
}

// Probe reports whether an illuminance channel exists.
func (p *Provider) Probe() bool {
	_, err := findDevice(p.cfg.Root, p.cfg.Device)
	return err == nil
}

// Open resolves the device directory. The stream starts with Start.
func (p *Provider) Open() (sensor.Handle, error) {
	dir, err := findDevice(p.cfg.Root, p.cfg.Device)
	if err != nil {
		return nil, err
	}
	return &Handle{dev: device{dir: dir}, interval: p.cfg.Interval}, nil
}

// device is one IIO device directory.
type device struct {
	dir string
}

func (d device) has(attr string) bool {
	_, err := os.Stat(filepath.Join(d.dir, attr))
	return err == nil
}

func (d device) hasIlluminance() bool {
	return d.has(attrInput) || d.has(attrRaw)
}

func (d device) name() string {
	b, err := os.ReadFile(filepath.Join(d.dir, attrName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (d device) readFloat(attr string) (float64, error) {
	b, err := os.ReadFile(filepath.Join(d.dir, attr))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", attr, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse %s: %w", attr, ErrNotFinite)
	}
	return v, nil
}

// readLux prefers the processed channel and falls back to (raw + offset) * scale.
func (d device) readLux() (float64, error) {
	if d.has(attrInput) {
		return d.readFloat(attrInput)
	}

	raw, err := d.readFloat(attrRaw)
	if err != nil {
		return 0, err
	}

	scale := 1.0
	if d.has(attrScale) {
		if scale, err = d.readFloat(attrScale); err != nil {
			return 0, err
		}
	}
	offset := 0.0
	if d.has(attrOffset) {
		if offset, err = d.readFloat(attrOffset); err != nil {
			return 0, err
		}
	}
	lux := (raw + offset) * scale
	if math.IsInf(lux, 0) {
		return 0, fmt.Errorf("%s: %w", attrRaw, ErrNotFinite)
	}
	return lux, nil
}

// findDevice returns the first device under root with an illuminance channel.
// A non-empty want matches either the directory name or the driver name.
func findDevice(root, want string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", fmt.Errorf("iio: scan %s: %w", root, err)
	}
	sort.Strings(matches)

	for _, dir := range matches {
		d := device{dir: dir}
		if want != "" && filepath.Base(dir) != want && d.name() != want {
			continue
		}
		if d.hasIlluminance() {
			return dir, nil
		}
	}
	if want != "" {
		return "", fmt.Errorf("%w: %q", ErrNoDevice, want)
	}
	return "", ErrNoDevice
}

// Handle polls one device.
type Handle struct {
	dev      device
	interval time.Duration

	onReading func(float64)
	onError   func(error)

	stop chan struct{}
	wg   sync.WaitGroup
}

// SetOnReading registers the reading callback.
func (h *Handle) SetOnReading(fn func(float64)) { h.onReading = fn }

// SetOnError registers the error callback.
func (h *Handle) SetOnError(fn func(error)) { h.onError = fn }

// Start reads once to confirm the channel is readable, then polls.
func (h *Handle) Start() error {
	lux, err := h.dev.readLux()
	if err != nil {
		return fmt.Errorf("read %s: %w", h.dev.dir, err)
	}

	log.Info().
		Str("device", h.dev.dir).
		Str("driver", h.dev.name()).
		Dur("interval", h.interval).
		Msg("iio light sensor started")

	h.stop = make(chan struct{})
	h.wg.Add(1)
	go h.loop(lux)
	return nil
}

func (h *Handle) loop(first float64) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.deliver(first)
	for {
		select {
		case <-ticker.C:
			lux, err := h.dev.readLux()
			if err != nil {
				if h.onError != nil {
					h.onError(fmt.Errorf("read %s: %w", h.dev.dir, err))
				}
				continue
			}
			h.deliver(lux)
		case <-h.stop:
			return
		}
	}
}

func (h *Handle) deliver(lux float64) {
	if h.onReading != nil {
		h.onReading(lux)
	}
}

// Close stops polling and waits for the loop to exit.
func (h *Handle) Close() error {
	if h.stop != nil {
		close(h.stop)
		h.wg.Wait()
		h.stop = nil
	}
	return nil
}
