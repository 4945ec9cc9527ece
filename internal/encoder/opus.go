package encoder

import "github.com/denpacast/broadcast/internal/ogg"

// opusFrameSamples is 40 ms at 48 kHz, the mandated Opus frame size
// (1920 samples/channel).
const opusFrameSamples = 1920

// opusPreSkip is the encoder's reported pre-skip in samples at 48 kHz,
// queried from the codec in the original source; fixed here since the
// backend interface does not (yet) surface per-encoder pre-skip.
const opusPreSkip = 312

// newOpusEncoder builds the Opus variant: native Ogg packetization via
// internal/ogg.Packetizer, frame-level DSP delegated to a CodecBackend.
// Requires 48 kHz input.
func newOpusEncoder(newBackend NewCodecBackendFunc, vendor string) Encoder {
	e := &oggBackedEncoder{
		kind:         Opus,
		frameSamples: opusFrameSamples,
		requireRate:  48000,
		newBackend:   newBackend,
		vendor:       vendor,
	}
	e.identHeader = func(channels uint8, sampleRate uint32) ogg.IdentHeader {
		return ogg.BuildOpusIdentHeader(channels, sampleRate, opusPreSkip)
	}
	return e
}
