package sensor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sweeney/ambient-theme/internal/light"
)

// ErrNotFinite is recorded in place of a NaN or infinite sample.
var ErrNotFinite = errors.New("sensor reading is not finite")

// DefaultBuffer is the capacity of the update channel.
const DefaultBuffer = 16

// Subscription owns the one sensor handle of a process and the state it feeds.
// Start runs at most once; Release unregisters the callbacks and stops the stream.
type Subscription struct {
	provider Provider
	now      func() time.Time

	// lifecycle serialises acquisition against Release.
	lifecycle sync.Mutex

	mu       sync.Mutex
	state    light.State
	counts   light.Counts
	handle   Handle
	released bool

	// sendMu keeps channel order identical to mutation order.
	sendMu   sync.Mutex
	updates  chan Update
	done     chan struct{}
	inflight sync.WaitGroup

	startOnce   sync.Once
	releaseOnce sync.Once
	releaseErr  error
}

// Option configures a Subscription.
type Option func(*Subscription)

// WithClock sets the time source used to stamp updates.
func WithClock(now func() time.Time) Option {
	return func(s *Subscription) { s.now = now }
}

// WithBuffer sets the update channel capacity.
func WithBuffer(n int) Option {
	return func(s *Subscription) {
		if n >= 0 {
			s.updates = make(chan Update, n)
		}
	}
}

// NewSubscription creates an unstarted subscription to p.
func NewSubscription(p Provider, opts ...Option) *Subscription {
	s := &Subscription{
		provider: p,
		now:      time.Now,
		state:    light.NewState(),
		updates:  make(chan Update, DefaultBuffer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Updates returns the single-consumer stream of state changes. It is closed by Release.
func (s *Subscription) Updates() <-chan Update {
	return s.updates
}

// State returns the current reading, error and status.
func (s *Subscription) State() light.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counts returns how many readings and errors have been delivered.
func (s *Subscription) Counts() light.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Start probes the capability and, when present, acquires and starts it.
// Failures are recorded in the state, never returned.
func (s *Subscription) Start() {
	s.startOnce.Do(s.subscribe)
}

func (s *Subscription) subscribe() {
	s.lifecycle.Lock()
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		s.lifecycle.Unlock()
		return
	}

	if !s.provider.Probe() {
		s.lifecycle.Unlock()
		s.apply(UpdateStatus, func(st *light.State) { st.Status = light.StatusUnsupported })
		return
	}

	h, err := openHandle(s.provider)
	if err != nil {
		s.lifecycle.Unlock()
		s.fail(&AcquisitionError{Op: "open", Err: err})
		return
	}

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	h.SetOnReading(s.onReading)
	h.SetOnError(s.onError)

	err = startHandle(h)
	s.lifecycle.Unlock()
	if err != nil {
		// Status is deliberately left as it was.
		s.fail(&AcquisitionError{Op: "start", Err: err})
		return
	}

	s.apply(UpdateStatus, func(st *light.State) { st.Status = light.StatusSupported })
}

func (s *Subscription) onReading(lux float64) {
	if math.IsNaN(lux) || math.IsInf(lux, 0) {
		s.fail(fmt.Errorf("%w: %v", ErrNotFinite, lux))
		return
	}
	s.apply(UpdateReading, func(st *light.State) {
		st.Reading = light.Lux(lux)
		s.counts.Readings++
	})
}

func (s *Subscription) onError(err error) {
	s.fail(err)
}

func (s *Subscription) fail(err error) {
	s.apply(UpdateError, func(st *light.State) {
		st.Err = err
		s.counts.Errors++
	})
}

// apply mutates the state and forwards a copy to the consumer.
func (s *Subscription) apply(kind UpdateKind, mutate func(*light.State)) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	mutate(&s.state)
	u := Update{Kind: kind, State: s.state, Counts: s.counts, Time: s.now()}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case s.updates <- u:
	case <-s.done:
	}
}

// Release stops the stream, drops later callbacks and closes Updates.
// It is safe to call more than once and before Start.
func (s *Subscription) Release() error {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()

		// Closing done first unblocks senders inside a Start in progress.
		close(s.done)

		s.lifecycle.Lock()
		s.mu.Lock()
		h := s.handle
		s.mu.Unlock()
		if h != nil {
			if err := h.Close(); err != nil {
				s.releaseErr = fmt.Errorf("close sensor: %w", err)
			}
		}
		s.lifecycle.Unlock()

		s.inflight.Wait()
		close(s.updates)
	})
	return s.releaseErr
}

func openHandle(p Provider) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	h, err = p.Open()
	if err == nil && h == nil {
		err = fmt.Errorf("provider returned no handle")
	}
	return h, err
}

func startHandle(h Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Start()
}
