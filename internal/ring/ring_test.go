package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	r := NewSampleRing(8)

	src := make([]float32, 4*Channels)
	for i := range src {
		src[i] = float32(i + 1)
	}

	n := r.Write(src, 4)
	require.Equal(t, 4, n)
	require.Equal(t, 4, r.ReadAvailable())
	require.Equal(t, 4, r.WriteAvailable())

	dst := make([]float32, 4*Channels)
	read := r.Read(dst, 4)
	require.Equal(t, 4, read)
	assert.Equal(t, src, dst)
	assert.Equal(t, 0, r.ReadAvailable())
	assert.Equal(t, 8, r.WriteAvailable())
}

// TestOverflowDropsExcessAndKeepsFirstFrames covers: C=8, producer writes
// 10 frames -> first 8 accepted, write_available=0, overflow_count
// increments by 1 (one overflow event, regardless of how many frames that
// write had to drop), and the consumer reads exactly the first 8 values
// written.
func TestOverflowDropsExcessAndKeepsFirstFrames(t *testing.T) {
	r := NewSampleRing(8)

	src := make([]float32, 10*Channels)
	for i := range src {
		src[i] = float32(i)
	}

	n := r.Write(src, 10)
	require.Equal(t, 8, n)
	assert.Equal(t, 0, r.WriteAvailable())
	assert.EqualValues(t, 1, r.OverflowCount())

	dst := make([]float32, 8*Channels)
	read := r.Read(dst, 8)
	require.Equal(t, 8, read)
	assert.Equal(t, src[:8*Channels], dst)
}

// TestOverflowCountsEventsNotFrames covers two separate overflowing writes
// counting as two events even though the second drops far more frames than
// the first.
func TestOverflowCountsEventsNotFrames(t *testing.T) {
	r := NewSampleRing(4)

	r.Write(make([]float32, 6*Channels), 6)
	assert.EqualValues(t, 1, r.OverflowCount())

	r.Read(make([]float32, 4*Channels), 4)
	r.Write(make([]float32, 50*Channels), 50)
	assert.EqualValues(t, 2, r.OverflowCount())
}

func TestAcquireReadRegionsSplitsOnWrap(t *testing.T) {
	r := NewSampleRing(4)

	// Fill then drain then refill so the write cursor wraps mid-buffer.
	full := make([]float32, 4*Channels)
	r.Write(full, 4)
	drained := make([]float32, 2*Channels)
	r.Read(drained, 2)

	more := make([]float32, 2*Channels)
	for i := range more {
		more[i] = float32(100 + i)
	}
	r.Write(more, 2)

	a, b := r.AcquireReadRegions(4)
	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b, "expected the read region to wrap and split")
	assert.Equal(t, 4, (len(a)+len(b))/Channels)
	r.ReleaseReadRegions((len(a) + len(b)) / Channels)
	assert.Equal(t, 0, r.ReadAvailable())
}

func TestWriteSilenceAdvancesWriteCursorWithZeros(t *testing.T) {
	r := NewSampleRing(4)
	n := r.WriteSilence(2)
	require.Equal(t, 2, n)

	dst := make([]float32, 2*Channels)
	for i := range dst {
		dst[i] = 42 // poison to make sure Read overwrites with zeros
	}
	r.Read(dst, 2)
	for _, v := range dst {
		assert.Zero(t, v)
	}
}

// TestInvariantReadPlusWriteEqualsCapacity exercises the core ring
// invariant (read_available + write_available == capacity) under an
// interleaved producer/consumer schedule.
func TestInvariantReadPlusWriteEqualsCapacity(t *testing.T) {
	r := NewSampleRing(16)
	frame := make([]float32, 1*Channels)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.Write(frame, 1)
		}
	}()
	go func() {
		defer wg.Done()
		dst := make([]float32, 1*Channels)
		for i := 0; i < 1000; i++ {
			r.Read(dst, 1)
		}
	}()
	wg.Wait()

	assert.Equal(t, 16, r.ReadAvailable()+r.WriteAvailable())
}
