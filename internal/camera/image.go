// Package camera wraps the still-image sensor and holds the monitoring state
// shared between the poll loop and the command channel.
package camera

import (
	"context"
	"time"
)

// Image is one captured JPEG still.
type Image struct {
	Data       []byte
	CapturedAt time.Time
}

// Size returns the encoded size in bytes; the change detector compares sizes.
func (i Image) Size() uint64 {
	return uint64(len(i.Data))
}

// Source produces a fresh Image on every call.
type Source interface {
	Capture(ctx context.Context) (Image, error)
}
