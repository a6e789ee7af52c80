package camera

import (
	"context"
	"sync"
)

// Exclusive serializes access to a Source so that a one-shot command capture
// and a periodic capture never overlap on the sensor.
type Exclusive struct {
	mu  sync.Mutex
	src Source
}

// NewExclusive wraps src.
func NewExclusive(src Source) *Exclusive {
	return &Exclusive{src: src}
}

// Capture holds the sensor for the duration of one capture only. The lock is
// released before the caller uploads or analyzes, and on every error path.
func (e *Exclusive) Capture(ctx context.Context) (Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src.Capture(ctx)
}
