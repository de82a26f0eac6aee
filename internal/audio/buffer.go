// Package audio loads recordings as mono float32 PCM and cuts them into
// window-sized clips for transcription.
package audio

import (
	"sync"
	"time"
)

// Buffer holds a whole recording as mono float32 samples in [-1.0, 1.0].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the recording.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// offset converts a timeline position to a sample index clamped to the buffer.
func (b *Buffer) offset(d time.Duration) int {
	i := int(d * time.Duration(b.SampleRate) / time.Second)
	return min(max(i, 0), len(b.Samples))
}

var clipPool = sync.Pool{
	New: func() any { return new([]float32) },
}

// Clip is a copy of part of a Buffer. It must be released once the samples
// are no longer referenced.
type Clip struct {
	Samples []float32
	buf     *[]float32
}

// Clip copies the samples in [start, end) into a pooled buffer.
func (b *Buffer) Clip(start, end time.Duration) *Clip {
	from, to := b.offset(start), b.offset(end)
	if to < from {
		to = from
	}
	n := to - from

	p := clipPool.Get().(*[]float32)
	if cap(*p) < n {
		*p = make([]float32, n)
	}
	*p = (*p)[:n]
	copy(*p, b.Samples[from:to])
	return &Clip{Samples: *p, buf: p}
}

// Duration returns the clip length at the given sample rate.
func (c *Clip) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(sampleRate)
}

// Release returns the clip's storage to the pool. It is safe to call more
// than once.
func (c *Clip) Release() {
	if c.buf == nil {
		return
	}
	clipPool.Put(c.buf)
	c.buf = nil
	c.Samples = nil
}
