// Package change decides whether a new capture differs enough from the
// previous one to be worth a remote analysis. The signal is the relative
// change in encoded JPEG size, which tracks scene content cheaply.
package change

import "math"

// DefaultThreshold is the ratio above which a periodic capture is analyzed.
const DefaultThreshold = 0.005

// Metric describes the size change between two consecutive periodic captures.
type Metric struct {
	PreviousSize uint64
	CurrentSize  uint64
	// Ratio is |1 - current/previous|, or 0 when there is no baseline.
	Ratio float64
}

// Detect computes the change metric. A zero previous size means no baseline
// exists yet and yields a zero ratio instead of dividing by zero.
func Detect(previous, current uint64) Metric {
	m := Metric{PreviousSize: previous, CurrentSize: current}
	if previous > 0 {
		m.Ratio = math.Abs(1 - float64(current)/float64(previous))
	}
	return m
}

// Triggered reports whether analysis should run: always for one-shot
// captures, otherwise only when the ratio strictly exceeds threshold.
func Triggered(m Metric, threshold float64, oneShot bool) bool {
	return oneShot || m.Ratio > threshold
}
