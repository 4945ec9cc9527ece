package encoder

import (
	"fmt"
	"sync"

	"github.com/denpacast/broadcast/internal/ogg"
)

// CodecBackend performs the actual DSP encode step for one Ogg-packetized
// codec frame. It is a pluggable seam: there is no tagged, importable
// pure-Go libopus/libvorbis binding, so the shipped implementation is the
// ffmpeg-based NewFfmpegCodecBackend, and a cgo-backed implementation can
// be substituted for it.
type CodecBackend interface {
	// EncodeFrame encodes one codec frame's worth of interleaved samples
	// (frameSamples per channel; shorter for the residual frame Flush
	// passes) and returns the compressed packet bytes, or an error which
	// the caller wraps and returns from EncodeBuffer or Flush.
	EncodeFrame(pcm []float32) ([]byte, error)
	// Close releases backend resources.
	Close() error
}

// NewCodecBackendFunc constructs a CodecBackend for the given Ogg variant,
// sample rate and channel count. internal/shout passes
// NewFfmpegCodecBackend by default; oggBackedEncoder.Init returns
// ErrCodecInit if nil.
type NewCodecBackendFunc func(kind Kind, sampleRate, channels int) (CodecBackend, error)

// oggBackedEncoder is the shared state machine for Opus and Vorbis: an
// input FIFO of interleaved float32 samples, a CodecBackend that turns one
// full codec frame into compressed bytes, and an ogg.Packetizer that wraps
// each compressed packet into Ogg pages with the granule position advanced
// by samples-per-channel.
type oggBackedEncoder struct {
	kind         Kind
	frameSamples int // samples per channel per codec frame
	requireRate  int // 0 = any rate accepted
	newBackend   NewCodecBackendFunc
	identHeader  func(channels uint8, sampleRate uint32) ogg.IdentHeader
	vendor       string

	settings   Settings
	backend    CodecBackend
	packet     *ogg.Packetizer
	channels   int
	sampleRate int

	mu         sync.Mutex
	fifo       []float32
	artist     string
	title      string
	album      string
	eosFlushed bool
}

func (e *oggBackedEncoder) Kind() Kind { return e.kind }

func (e *oggBackedEncoder) SetSettings(s Settings) { e.settings = s }

func (e *oggBackedEncoder) Init(sampleRate int) error {
	if e.requireRate != 0 && sampleRate != e.requireRate {
		return fmt.Errorf("%w: %s requires %d Hz, got %d", ErrConfigInvalid, e.kind, e.requireRate, sampleRate)
	}
	if e.kind == Vorbis && sampleRate == 96000 {
		return fmt.Errorf("%w: vorbis does not support 96000 Hz", ErrConfigInvalid)
	}
	if e.newBackend == nil {
		return fmt.Errorf("%w: no codec backend configured for %s", ErrCodecInit, e.kind)
	}
	channels := channelCount(e.settings.Channels)
	backend, err := e.newBackend(e.kind, sampleRate, channels)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodecInit, err)
	}
	e.backend = backend
	e.channels = channels
	e.sampleRate = sampleRate
	e.packet = ogg.NewPacketizer()
	return nil
}

// ensureStreamStarted emits the ident/comment bookkeeping packets the first
// time a codec frame is about to be pushed.
func (e *oggBackedEncoder) ensureStreamStarted(cb Callback) {
	if e.packet.PacketNumber() > 0 {
		return
	}
	ident := e.identHeader(uint8(e.channels), uint32(e.sampleRate))
	comment := ogg.BuildOpusCommentHeader(e.vendor, e.artist, e.title, e.album)
	e.packet.InitStream(ident, comment, ogg.Callback(cb))
}

func (e *oggBackedEncoder) EncodeBuffer(samples []float32, cb Callback) error {
	if e.backend == nil {
		return ErrCodecInit
	}
	e.mu.Lock()
	e.fifo = append(e.fifo, samples...)
	e.mu.Unlock()

	frameLen := e.frameSamples * e.channels
	for {
		e.mu.Lock()
		if len(e.fifo) < frameLen {
			e.mu.Unlock()
			return nil
		}
		frame := append([]float32(nil), e.fifo[:frameLen]...)
		e.fifo = e.fifo[frameLen:]
		e.mu.Unlock()

		packet, err := e.backend.EncodeFrame(frame)
		if err != nil {
			return fmt.Errorf("encoder(%s): encode frame: %w", e.kind, err)
		}
		e.ensureStreamStarted(cb)
		e.packet.Push(packet, uint64(e.frameSamples), ogg.Callback(cb))
	}
}

func (e *oggBackedEncoder) UpdateMetadata(artist, title, album string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Metadata takes effect only in the stream header, so a mid-stream
	// call here only matters for the next logical stream (reconnect), not
	// the current one.
	e.artist, e.title, e.album = artist, title, album
}

// Flush drains any residual buffered samples as one final (short) codec
// frame, then closes out the Ogg logical stream with a terminal EOS page.
// Safe to call more than once: the EOS page is only emitted the first time.
func (e *oggBackedEncoder) Flush(cb Callback) error {
	if e.backend == nil || e.packet == nil {
		return nil
	}
	e.mu.Lock()
	residual := e.fifo
	e.fifo = nil
	already := e.eosFlushed
	e.eosFlushed = true
	e.mu.Unlock()
	if already {
		return nil
	}

	if len(residual) > 0 {
		packet, err := e.backend.EncodeFrame(residual)
		if err != nil {
			return fmt.Errorf("encoder(%s): flush residual: %w", e.kind, err)
		}
		e.ensureStreamStarted(cb)
		e.packet.Push(packet, uint64(e.frameSamples), ogg.Callback(cb))
	}

	if e.packet.PacketNumber() > 0 {
		e.packet.PushEOS(ogg.Callback(cb))
	}
	return nil
}

// Close releases the codec backend. Callers must call Flush first to emit
// the terminal EOS page; Close alone leaves the Ogg logical stream open.
func (e *oggBackedEncoder) Close() error {
	if e.backend == nil {
		return nil
	}
	return e.backend.Close()
}
