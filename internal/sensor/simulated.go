package sensor

import (
	"math/rand"
	"sync"
	"time"
)

// Simulated is a development Provider that produces readings around a base value.
type Simulated struct {
	Base      float64       // average lux (e.g. 500 for indoor lighting)
	Variation float64       // +/- range (e.g. 100 means 400-600)
	Interval  time.Duration // time between samples
}

// Probe always reports the simulated sensor as present.
func (s Simulated) Probe() bool { return true }

// Open returns a handle that samples on s.Interval once started.
func (s Simulated) Open() (Handle, error) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &simulatedHandle{
		base:      s.Base,
		variation: s.Variation,
		interval:  interval,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

type simulatedHandle struct {
	base      float64
	variation float64
	interval  time.Duration
	rnd       *rand.Rand

	onReading func(float64)
	onError   func(error)

	stop chan struct{}
	wg   sync.WaitGroup
}

func (h *simulatedHandle) SetOnReading(fn func(float64)) { h.onReading = fn }
func (h *simulatedHandle) SetOnError(fn func(error))     { h.onError = fn }

func (h *simulatedHandle) Start() error {
	h.stop = make(chan struct{})
	h.wg.Add(1)
	go h.loop()
	return nil
}

func (h *simulatedHandle) loop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.sample()
	for {
		select {
		case <-ticker.C:
			h.sample()
		case <-h.stop:
			return
		}
	}
}

// sample emits base +/- variation, clamped at zero.
func (h *simulatedHandle) sample() {
	lux := h.base + (h.rnd.Float64()-0.5)*2*h.variation
	if lux < 0 {
		lux = 0
	}
	if h.onReading != nil {
		h.onReading(lux)
	}
}

func (h *simulatedHandle) Close() error {
	if h.stop != nil {
		close(h.stop)
		h.wg.Wait()
		h.stop = nil
	}
	return nil
}
