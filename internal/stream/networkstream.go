// Package stream fans the audio engine's real-time PCM stream out to every
// registered broadcast worker, matching each worker's per-destination ring
// buffer and correcting for long-term clock drift between the audio
// producer and the much slower encoder/network consumers.
package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/denpacast/broadcast/internal/ring"
)

// maxWorkers is the initial size hint of the worker map. AddWorker does not
// enforce it as a limit; registering more workers grows the map.
const maxWorkers = 64

// Worker is anything NetworkStream can fan audio frames into. *shout.Connection
// satisfies this via its ring.
type Worker interface {
	Ring() *ring.SampleRing
	OutChunkFrames() int
}

type workerState struct {
	worker        Worker
	framesWritten uint64
	drifting      bool
}

// NetworkStream owns the fan-out clock and the set of registered workers.
// Write is called from the audio thread and must never block or allocate in
// steady state.
type NetworkStream struct {
	mu         sync.RWMutex
	workers    map[string]*workerState
	sampleRate int
	startedAt  time.Time
	started    bool

	now func() time.Time // overridable for deterministic tests
}

// New creates an empty NetworkStream. Call StartStream before the first
// Write.
func New() *NetworkStream {
	return &NetworkStream{
		workers: make(map[string]*workerState, maxWorkers),
		now:     time.Now,
	}
}

// StartStream latches the sample rate and records the stream start time from
// the monotonic clock. Safe to call again to restart the clock (e.g. after
// the audio engine's sample rate changes).
func (s *NetworkStream) StartStream(sampleRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	s.startedAt = s.now()
	s.started = true
}

// AddWorker registers a destination under name. Re-registering the same name
// replaces the previous entry.
func (s *NetworkStream) AddWorker(name string, w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[name] = &workerState{worker: w}
}

// RemoveWorker unregisters a destination. No-op if not present.
func (s *NetworkStream) RemoveWorker(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workers, name)
}

// WorkerCount returns the number of currently registered workers.
func (s *NetworkStream) WorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

// streamTimeUs returns elapsed microseconds since StartStream, using a
// process-wide monotonic clock.
func (s *NetworkStream) streamTimeUs() int64 {
	if !s.started {
		return 0
	}
	return s.now().Sub(s.startedAt).Microseconds()
}

// streamTimeFrames converts the elapsed stream time into frames at the
// latched sample rate: stream_time_frames = stream_time_us * sample_rate / 1e6.
func (s *NetworkStream) streamTimeFrames() int64 {
	return s.streamTimeUs() * int64(s.sampleRate) / 1_000_000
}

// Write pushes frames of interleaved stereo float32 samples into every
// registered worker's ring. It never blocks: any worker whose ring cannot
// accept the full write has the shortfall counted as an overflow and
// logged.
func (s *NetworkStream) Write(buf []float32, frames int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, ws := range s.workers {
		r := ws.worker.Ring()
		before := r.OverflowCount()

		written, dropped := s.correctDrift(ws, buf, frames)
		ws.framesWritten += uint64(written)

		if after := r.OverflowCount(); after > before {
			slog.Warn("worker ring overflow",
				"worker", name,
				"dropped_frames", dropped,
				"overflow_events", after,
			)
		}
	}
}

// WriteSilence writes n frames of silence to every registered worker. Drift
// correction does not call it: correctDrift pads a single worker's ring
// through SampleRing.WriteSilence directly.
func (s *NetworkStream) WriteSilence(frames int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ws := range s.workers {
		n := ws.worker.Ring().WriteSilence(frames)
		ws.framesWritten += uint64(n)
	}
}

// correctDrift writes buf into ws's ring, applying whatever drift
// correction the ring's current fill level calls for, and returns the
// number of frames actually accounted for plus how many were dropped to
// overflow. It must be called with at least a read lock held.
func (s *NetworkStream) correctDrift(ws *workerState, buf []float32, frames int) (written, dropped int) {
	r := ws.worker.Ring()
	outChunk := ws.worker.OutChunkFrames()
	if outChunk <= 0 {
		outChunk = 1
	}

	writeAvail := r.WriteAvailable()
	readAvail := r.ReadAvailable()

	switch {
	case writeAvail >= outChunk*2:
		// Ring nearly empty: write the cycle normally, then pad with
		// silence until sync is restored.
		n := r.Write(buf, frames)
		dropped += frames - n
		written += n
		written += r.WriteSilence(outChunk)
		ws.drifting = false

	case writeAvail > readAvail+outChunk/2 && !ws.drifting:
		// Ring running low relative to the other workers: duplicate the
		// last frame this cycle to slow this worker's effective drain
		// rate and let it catch back up.
		n := r.Write(buf, frames)
		dropped += frames - n
		written += n
		if frames > 0 {
			last := buf[(frames-1)*ring.Channels : frames*ring.Channels]
			written += r.Write(last, 1)
		}
		ws.drifting = true

	case writeAvail < outChunk/2 && !ws.drifting:
		// Ring backing up relative to the other workers: drop the last
		// frame this cycle to relieve the buildup.
		if frames > 0 {
			n := r.Write(buf, frames-1)
			dropped += (frames - 1) - n
			written += n
		}
		ws.drifting = true

	default:
		n := r.Write(buf, frames)
		dropped += frames - n
		written += n
		ws.drifting = false
	}
	return written, dropped
}

// IsDrifting reports whether the named worker was last marked as drifting by
// the correction pass. Exposed for tests and diagnostics.
func (s *NetworkStream) IsDrifting(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workers[name]
	if !ok {
		return false
	}
	return ws.drifting
}
