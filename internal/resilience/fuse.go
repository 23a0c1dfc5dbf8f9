package resilience

import "sync"

// Fuse is a one-way circuit breaker scoped to a single run. It starts
// closed and, once tripped, stays tripped for the remainder of the process.
// There is no half-open state: an authorization failure against a provider
// does not recover within a run, so probing again would only burn quota.
type Fuse struct {
	mu      sync.Mutex
	tripped bool
	reason  string

	// onTrip is invoked exactly once, on the first Trip call.
	onTrip func(reason string)
}

// NewFuse creates a closed fuse. onTrip may be nil.
func NewFuse(onTrip func(reason string)) *Fuse {
	return &Fuse{onTrip: onTrip}
}

// NewTrippedFuse creates a fuse that is already tripped, for providers that
// are unusable from the start (e.g. no API key configured). The onTrip hook
// still fires once so the suppression is visible in the logs.
func NewTrippedFuse(reason string, onTrip func(reason string)) *Fuse {
	f := &Fuse{onTrip: onTrip}
	f.Trip(reason)
	return f
}

// Trip opens the fuse permanently. Only the first call takes effect.
func (f *Fuse) Trip(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tripped {
		return
	}
	f.tripped = true
	f.reason = reason
	if f.onTrip != nil {
		f.onTrip(reason)
	}
}

// Tripped reports whether the fuse has been tripped.
func (f *Fuse) Tripped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tripped
}

// Reason returns the reason recorded by the first Trip call.
func (f *Fuse) Reason() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}
