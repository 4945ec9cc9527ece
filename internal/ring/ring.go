// Package ring implements a lock-free single-producer/single-consumer ring
// buffer of interleaved stereo float32 samples.
package ring

import "sync/atomic"

// Channels is the number of interleaved samples per frame. The pipeline is
// stereo throughout.
const Channels = 2

// SampleRing is a fixed-capacity SPSC ring of stereo frames. One goroutine
// (the audio-thread side) may call Write/WriteSilence; a single different
// goroutine (the worker) may call Read/AcquireReadRegions/ReleaseReadRegions.
// Every method is safe to call without additional locking as long as that
// single-producer/single-consumer contract is respected.
type SampleRing struct {
	buf      []float32 // capacity() * Channels samples
	capacity uint64    // frames

	writeCursor atomic.Uint64 // monotonically increasing, never wraps
	readCursor  atomic.Uint64 // monotonically increasing, never wraps

	overflow atomic.Uint64
}

// NewSampleRing allocates a ring able to hold capacityFrames stereo frames.
func NewSampleRing(capacityFrames int) *SampleRing {
	if capacityFrames <= 0 {
		capacityFrames = 1
	}
	return &SampleRing{
		buf:      make([]float32, capacityFrames*Channels),
		capacity: uint64(capacityFrames),
	}
}

// NetworkLatencyFrames is the base unit ring capacity is sized from:
// 8192 frames at 44.1kHz (~185ms), scaled to 4x for ~743ms of headroom.
const NetworkLatencyFrames = 8192

// CapacityForSampleRate returns the ring's frame capacity
// (networkLatencyFrames * 4), independent of sample rate: this treats
// networkLatencyFrames as a fixed frame count, not a fixed duration.
func CapacityForSampleRate(sampleRate int) int {
	return NetworkLatencyFrames * 4
}

// inFlight returns frames that have been written but not yet read.
func (r *SampleRing) inFlight() uint64 {
	return r.writeCursor.Load() - r.readCursor.Load()
}

// WriteAvailable returns how many frames can currently be written without
// overwriting unread data.
func (r *SampleRing) WriteAvailable() int {
	return int(r.capacity - r.inFlight())
}

// ReadAvailable returns how many frames are available to read.
func (r *SampleRing) ReadAvailable() int {
	return int(r.inFlight())
}

// OverflowCount returns the number of overflowing writes so far: one
// overflow event per Write call that could not fit in full, regardless of
// how many frames that call had to drop.
func (r *SampleRing) OverflowCount() uint64 {
	return r.overflow.Load()
}

// Write copies up to n frames from src (interleaved stereo float32, length
// >= n*Channels) into the ring. It never blocks. If write_available() < n,
// the shortfall is dropped and OverflowCount is incremented by one; the
// caller is responsible for surfacing that as a logged overflow event.
func (r *SampleRing) Write(src []float32, n int) (written int) {
	avail := r.WriteAvailable()
	if n > avail {
		r.overflow.Add(1)
		n = avail
	}
	if n <= 0 {
		return 0
	}

	start := r.writeCursor.Load() % r.capacity
	r.copyIn(src, start, n)
	r.writeCursor.Add(uint64(n))
	return n
}

// WriteSilence writes n frames of zero-valued samples, used by drift
// correction to pad a worker ring back up to sync.
func (r *SampleRing) WriteSilence(n int) (written int) {
	avail := r.WriteAvailable()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	start := r.writeCursor.Load() % r.capacity
	end := start + uint64(n)
	if end <= r.capacity {
		clearRange(r.buf[start*Channels : end*Channels])
	} else {
		firstLen := r.capacity - start
		clearRange(r.buf[start*Channels:])
		clearRange(r.buf[0 : (uint64(n)-firstLen)*Channels])
	}
	r.writeCursor.Add(uint64(n))
	return n
}

func clearRange(s []float32) {
	for i := range s {
		s[i] = 0
	}
}

// copyIn writes n frames from src starting at the ring position start,
// wrapping as necessary.
func (r *SampleRing) copyIn(src []float32, start uint64, n int) {
	end := start + uint64(n)
	if end <= r.capacity {
		copy(r.buf[start*Channels:end*Channels], src[:n*Channels])
		return
	}
	firstLen := r.capacity - start
	copy(r.buf[start*Channels:], src[:firstLen*Channels])
	copy(r.buf[0:(uint64(n)-firstLen)*Channels], src[firstLen*Channels:n*Channels])
}

// Read copies up to n frames into dst (which must have room for
// n*Channels samples) and advances the read cursor. It never blocks.
func (r *SampleRing) Read(dst []float32, n int) (read int) {
	a, b := r.AcquireReadRegions(n)
	copy(dst, a)
	copy(dst[len(a):], b)
	read = (len(a) + len(b)) / Channels
	r.ReleaseReadRegions(read)
	return read
}

// AcquireReadRegions returns up to two contiguous slices covering at most n
// frames of unread data. The second slice is non-empty only when the region
// wraps past the end of the backing array. The caller must not hold these
// slices across a call to ReleaseReadRegions, and must call
// ReleaseReadRegions with however many frames it actually consumed.
func (r *SampleRing) AcquireReadRegions(n int) (a, b []float32) {
	avail := r.ReadAvailable()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil, nil
	}

	start := r.readCursor.Load() % r.capacity
	end := start + uint64(n)
	if end <= r.capacity {
		return r.buf[start*Channels : end*Channels], nil
	}
	firstLen := r.capacity - start
	return r.buf[start*Channels:], r.buf[0 : (uint64(n)-firstLen)*Channels]
}

// ReleaseReadRegions advances the read cursor by k frames, which must be <=
// the number of frames returned by the most recent AcquireReadRegions call.
func (r *SampleRing) ReleaseReadRegions(k int) {
	if k <= 0 {
		return
	}
	r.readCursor.Add(uint64(k))
}
