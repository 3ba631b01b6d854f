package sensor

import "errors"

// FakeProvider is a test double with a scripted probe and acquisition outcome.
type FakeProvider struct {
	// Available is returned by Probe.
	Available bool

	// OpenError, if set, is returned by Open.
	OpenError error

	// Handle is returned by Open. A fresh FakeHandle is created when nil.
	Handle *FakeHandle

	// Probes and Opens count calls.
	Probes int
	Opens  int
}

// NewFakeProvider creates an available provider backed by a new FakeHandle.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Available: true, Handle: NewFakeHandle()}
}

// Probe reports the scripted availability.
func (f *FakeProvider) Probe() bool {
	f.Probes++
	return f.Available
}

// Open returns the scripted handle or error.
func (f *FakeProvider) Open() (Handle, error) {
	f.Opens++
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	if f.Handle == nil {
		f.Handle = NewFakeHandle()
	}
	return f.Handle, nil
}

// FakeHandle records registration and lets tests drive sensor events.
type FakeHandle struct {
	onReading func(float64)
	onError   func(error)

	// StartError, if set, is returned by Start (after callbacks are registered).
	StartError error

	// Started and Closed track lifecycle calls.
	Started bool
	Closed  bool

	// CloseError, if set, is returned by Close.
	CloseError error
}

// NewFakeHandle creates an unstarted FakeHandle.
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{}
}

// SetOnReading registers the reading callback.
func (f *FakeHandle) SetOnReading(fn func(float64)) { f.onReading = fn }

// SetOnError registers the error callback.
func (f *FakeHandle) SetOnError(fn func(error)) { f.onError = fn }

// Start marks the handle as started unless StartError is set.
func (f *FakeHandle) Start() error {
	if f.StartError != nil {
		return f.StartError
	}
	f.Started = true
	return nil
}

// Close unregisters both callbacks.
func (f *FakeHandle) Close() error {
	f.Closed = true
	f.onReading = nil
	f.onError = nil
	return f.CloseError
}

// Registered reports whether both callbacks are set.
func (f *FakeHandle) Registered() bool {
	return f.onReading != nil && f.onError != nil
}

// Emit delivers a reading synchronously.
func (f *FakeHandle) Emit(lux float64) error {
	if f.onReading == nil {
		return errors.New("no reading callback registered")
	}
	f.onReading(lux)
	return nil
}

// Fail delivers an asynchronous sensor error synchronously.
func (f *FakeHandle) Fail(err error) error {
	if f.onError == nil {
		return errors.New("no error callback registered")
	}
	f.onError(err)
	return nil
}
