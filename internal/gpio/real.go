//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/ambient-theme/internal/sensor"
)

const consumer = "ambient-theme"

// Provider implements sensor.Provider for a light module on a GPIO line.
type Provider struct {
	cfg Config
}

// New creates a Provider for the given wiring.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg.withDefaults()}
}

// Probe reports whether the chip is an accessible GPIO character device.
func (p *Provider) Probe() bool {
	return gpiocdev.IsChip(p.cfg.Chip) == nil
}

// Open opens the chip. The line is requested by Start.
func (p *Provider) Open() (sensor.Handle, error) {
	chip, err := gpiocdev.NewChip(p.cfg.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Handle{chip: chip, cfg: p.cfg}, nil
}

// Handle watches one line for edges.
type Handle struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	cfg  Config

	// mu serialises callbacks between Start and the gpiocdev event goroutine.
	mu        sync.Mutex
	onReading func(float64)
	onError   func(error)
	closed    bool
	sawEdge   bool // an edge has been delivered; the initial level is stale
}

// SetOnReading registers the reading callback.
func (h *Handle) SetOnReading(fn func(float64)) {
	h.mu.Lock()
	h.onReading = fn
	h.mu.Unlock()
}

// SetOnError registers the error callback.
func (h *Handle) SetOnError(fn func(error)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

// Start requests the line with edge detection and delivers the current level.
func (h *Handle) Start() error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(h.handleEvent),
	}
	if h.cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(h.cfg.Debounce))
	}

	line, err := h.chip.RequestLine(h.cfg.Line, opts...)
	if err != nil {
		return fmt.Errorf("request line %d: %w", h.cfg.Line, err)
	}
	h.line = line

	level, err := line.Value()
	if err != nil {
		return fmt.Errorf("read line %d: %w", h.cfg.Line, err)
	}

	log.Info().
		Str("chip", h.cfg.Chip).
		Int("line", h.cfg.Line).
		Int("level", level).
		Msg("gpio light sensor started")

	h.deliverInitial(level)
	return nil
}

// handleEvent runs on the gpiocdev watcher goroutine.
func (h *Handle) handleEvent(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		h.deliverEdge(1)
	case gpiocdev.LineEventFallingEdge:
		h.deliverEdge(0)
	default:
		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.closed && h.onError != nil {
			h.onError(fmt.Errorf("line %d: unexpected event type %v", evt.Offset, evt.Type))
		}
	}
}

// deliverInitial reports the level read at Start unless an edge handled
// since the request has already reported a newer one.
func (h *Handle) deliverInitial(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sawEdge {
		return
	}
	h.deliverLocked(level)
}

func (h *Handle) deliverEdge(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sawEdge = true
	h.deliverLocked(level)
}

func (h *Handle) deliverLocked(level int) {
	if h.closed || h.onReading == nil {
		return
	}
	h.onReading(h.cfg.LuxForLevel(level))
}

// Close releases the line and chip. No callbacks run after it returns.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.onReading = nil
	h.onError = nil
	h.mu.Unlock()

	var errs []error
	if h.line != nil {
		if err := h.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
