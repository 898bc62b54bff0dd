// Package track keeps a bounded movement history per live event and
// answers whether the tracked object is effectively stationary.
package track

import (
	"time"

	"github.com/rgregg/frigate-event-processor/internal/event"
)

// DefaultMaxSamples bounds the per-event history. Eight most recent
// centers are enough to cover the dwell window at Frigate's update rate.
const DefaultMaxSamples = 8

type sample struct {
	center event.Point
	at     time.Time
}

// History is a bounded FIFO of bounding box centers for one event.
// It is owned by the engine goroutine and not safe for concurrent use.
type History struct {
	samples []sample
	max     int
}

// NewHistory creates a history bounded to DefaultMaxSamples entries.
func NewHistory() *History {
	return &History{max: DefaultMaxSamples}
}

// Observe appends a center sample. Samples that move backwards in time
// are ignored; frames without a center never reach this method.
func (h *History) Observe(center event.Point, at time.Time) {
	if n := len(h.samples); n > 0 && at.Before(h.samples[n-1].at) {
		return
	}
	h.samples = append(h.samples, sample{center: center, at: at})
	if len(h.samples) > h.max {
		h.samples = h.samples[len(h.samples)-h.max:]
	}
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return len(h.samples)
}

// Span returns the time covered by the retained samples.
func (h *History) Span() time.Duration {
	if len(h.samples) < 2 {
		return 0
	}
	return h.samples[len(h.samples)-1].at.Sub(h.samples[0].at)
}

// MaxDisplacement returns the largest pairwise distance between any two
// retained centers.
func (h *History) MaxDisplacement() float64 {
	var max float64
	for i := 0; i < len(h.samples); i++ {
		for j := i + 1; j < len(h.samples); j++ {
			if d := h.samples[i].center.Distance(h.samples[j].center); d > max {
				max = d
			}
		}
	}
	return max
}

// Stationary reports whether the object has stayed within threshold for a
// window of at least minSpan. Fewer than two samples never count as
// stationary, so a brand new event cannot be suppressed off a single frame.
func (h *History) Stationary(minSpan time.Duration, threshold float64) bool {
	if len(h.samples) < 2 {
		return false
	}
	if h.Span() < minSpan {
		return false
	}
	return h.MaxDisplacement() < threshold
}
