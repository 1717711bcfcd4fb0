package viewport

import (
	"time"

	"liner-layout/pkg/geometry"
)

// ZoomThrottle coalesces bursts of wheel events into at most one camera
// change per frame interval. Factors multiply; the latest pivot wins.
type ZoomThrottle struct {
	interval time.Duration
	last     time.Time
	factor   float64
	pivot    geometry.Point2D
	pending  bool
}

// NewZoomThrottle creates a throttle applying at most once per interval.
func NewZoomThrottle(interval time.Duration) *ZoomThrottle {
	return &ZoomThrottle{interval: interval, factor: 1}
}

// Add queues a zoom step.
func (z *ZoomThrottle) Add(pivot geometry.Point2D, factor float64) {
	if !geometry.IsFinite(factor) || factor <= 0 {
		return
	}
	z.factor *= factor
	z.pivot = pivot
	z.pending = true
}

// Pending reports whether a zoom is waiting to be applied.
func (z *ZoomThrottle) Pending() bool {
	return z.pending
}

// Flush applies the queued zoom to c if at least one interval has passed
// since the previous application. It reports whether the camera changed.
func (z *ZoomThrottle) Flush(now time.Time, c *Controller) bool {
	if !z.pending {
		return false
	}
	if !z.last.IsZero() && now.Sub(z.last) < z.interval {
		return false
	}
	changed := c.ZoomAt(z.pivot, z.factor)
	z.last = now
	z.factor = 1
	z.pending = false
	return changed
}
