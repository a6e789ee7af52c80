package camera

import "sync"

// State is the monitoring state machine: Disabled (initial) or Enabled, plus
// the baseline size of the last periodic capture. The poll loop and the
// command consumer both go through the same mutex.
type State struct {
	mu       sync.Mutex
	active   bool
	lastSize uint64
}

// NewState returns a disabled state with no baseline.
func NewState() *State {
	return &State{}
}

// Enable turns monitoring on and resets the baseline, so the first periodic
// capture afterwards only establishes a new baseline.
func (s *State) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.lastSize = 0
}

// Disable turns monitoring off. The baseline is left untouched.
func (s *State) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Active reports whether monitoring is enabled.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Observe records size as the new baseline and returns the previous one.
// Callers must only pass sizes from periodic captures.
func (s *State) Observe(size uint64) (previous uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.lastSize
	s.lastSize = size
	return previous
}

// Snapshot returns both fields under one lock.
func (s *State) Snapshot() (active bool, lastSize uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.lastSize
}
