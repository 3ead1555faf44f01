// Package interp buffers timestamped snapshots of a remotely simulated entity
// and reconstructs a smoothed render position a fixed delay behind real time.
package interp

import "time"

const (
	// Capacity is the number of samples kept per entity; the oldest is evicted first.
	Capacity = 20
	// DefaultDelay is how far behind wall time remote entities are rendered.
	DefaultDelay = 100 * time.Millisecond
)

type Sample struct {
	At     time.Time
	X, Y   float64
	VX, VY float64
}

// Buffer is a FIFO of samples ordered by arrival. The zero value is ready to use.
// It is not safe for concurrent use; the owning frame loop serializes access.
type Buffer struct {
	samples []Sample
}

func (b *Buffer) Push(s Sample) {
	b.samples = append(b.samples, s)
	if len(b.samples) > Capacity {
		// shift instead of reslicing so the backing array does not grow forever
		copy(b.samples, b.samples[1:])
		b.samples = b.samples[:Capacity]
	}
}

func (b *Buffer) Len() int { return len(b.samples) }

func (b *Buffer) Reset() { b.samples = b.samples[:0] }

func (b *Buffer) Latest() (Sample, bool) {
	if len(b.samples) == 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Samples returns a copy of the buffered samples, oldest first.
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// At reconstructs the position at renderTime. ok is false only when the
// buffer is empty.
//
// The newest sample not after renderTime is blended toward the sample that
// arrived right after it. Without such a pair the bracketing sample is held
// as-is, and when renderTime predates every sample the newest one is used.
// No extrapolation is performed.
func (b *Buffer) At(renderTime time.Time) (x, y float64, ok bool) {
	n := len(b.samples)
	if n == 0 {
		return 0, 0, false
	}

	idx := -1
	for i := n - 1; i >= 0; i-- {
		if !b.samples[i].At.After(renderTime) {
			idx = i
			break
		}
	}

	if idx == -1 {
		newest := b.samples[n-1]
		return newest.X, newest.Y, true
	}

	s1 := b.samples[idx]
	if idx+1 >= n {
		return s1.X, s1.Y, true
	}

	s2 := b.samples[idx+1]
	span := s2.At.Sub(s1.At)
	if span <= 0 {
		return s1.X, s1.Y, true
	}
	t := float64(renderTime.Sub(s1.At)) / float64(span)
	t = clamp01(t)
	return s1.X + (s2.X-s1.X)*t, s1.Y + (s2.Y-s1.Y)*t, true
}

// Position renders at now-delay, falling back to (fx, fy) when nothing has
// been received yet.
func (b *Buffer) Position(now time.Time, delay time.Duration, fx, fy float64) (float64, float64) {
	x, y, ok := b.At(now.Add(-delay))
	if !ok {
		return fx, fy
	}
	return x, y
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
