package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denpacast/broadcast/internal/ring"
)

type fakeWorker struct {
	r        *ring.SampleRing
	outChunk int
}

func newFakeWorker(capacityFrames, outChunk int) *fakeWorker {
	return &fakeWorker{r: ring.NewSampleRing(capacityFrames), outChunk: outChunk}
}

func (w *fakeWorker) Ring() *ring.SampleRing { return w.r }
func (w *fakeWorker) OutChunkFrames() int    { return w.outChunk }

func TestWriteFansOutToAllWorkers(t *testing.T) {
	s := New()
	s.StartStream(44100)

	w1 := newFakeWorker(64, 8)
	w2 := newFakeWorker(64, 8)
	s.AddWorker("dest-a", w1)
	s.AddWorker("dest-b", w2)

	buf := make([]float32, 4*ring.Channels)
	s.Write(buf, 4)

	// Both rings start empty, so writeAvailable (64) >= outChunk*2 (16) on
	// this first write: drift correction pads each ring with outChunk (8)
	// frames of silence on top of the 4 real frames written.
	assert.Equal(t, 12, w1.r.ReadAvailable())
	assert.Equal(t, 12, w2.r.ReadAvailable())
}

func TestWriteOverflowsOneWorkerWithoutAffectingAnother(t *testing.T) {
	s := New()
	s.StartStream(44100)

	small := newFakeWorker(4, 2)
	large := newFakeWorker(64, 2)
	s.AddWorker("small", small)
	s.AddWorker("large", large)

	buf := make([]float32, 10*ring.Channels)
	s.Write(buf, 10)

	assert.EqualValues(t, 1, small.r.OverflowCount())
	assert.EqualValues(t, 0, large.r.OverflowCount())
	// large's ring starts empty, so the same write also triggers the
	// near-empty pad branch: 10 real frames plus outChunk (2) of silence.
	assert.Equal(t, 12, large.r.ReadAvailable())
}

func TestRemoveWorkerStopsFanOut(t *testing.T) {
	s := New()
	s.StartStream(44100)
	w := newFakeWorker(16, 4)
	s.AddWorker("only", w)
	s.RemoveWorker("only")

	require.Equal(t, 0, s.WorkerCount())

	buf := make([]float32, 2*ring.Channels)
	s.Write(buf, 2) // must not panic with zero workers
}

func TestDriftCorrectionPadsNearEmptyRing(t *testing.T) {
	s := New()
	s.StartStream(44100)
	w := newFakeWorker(64, 4)
	s.AddWorker("w", w)

	buf := make([]float32, 1*ring.Channels)
	s.Write(buf, 1)

	// writeAvailable (64, checked before the write) >= outChunk*2 (8) so correction should pad with
	// silence, growing read-availability beyond the single frame written.
	assert.Greater(t, w.r.ReadAvailable(), 1)
	assert.False(t, s.IsDrifting("w"))
}

func TestStreamTimeFramesScalesWithSampleRate(t *testing.T) {
	s := New()
	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }
	s.StartStream(48000)

	fakeNow = fakeNow.Add(1 * time.Second)
	frames := s.streamTimeFrames()
	assert.EqualValues(t, 48000, frames)
}
