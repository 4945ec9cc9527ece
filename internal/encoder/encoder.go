// Package encoder implements the PCM-to-compressed-bytes transducer stage
// of the broadcast pipeline: a tagged variant instead of a base-class/
// virtual-dispatch shape.
package encoder

import "errors"

// Kind selects which codec an Encoder instance speaks. There is no
// inheritance hierarchy; callers switch on Kind where variant-specific
// behavior is needed.
type Kind int

const (
	Mp3 Kind = iota
	Vorbis
	Opus
	Aac
)

func (k Kind) String() string {
	switch k {
	case Mp3:
		return "mp3"
	case Vorbis:
		return "vorbis"
	case Opus:
		return "opus"
	case Aac:
		return "aac"
	default:
		return "unknown"
	}
}

// ChannelMode mirrors the profile's channel_mode field; Automatic resolves
// to stereo.
type ChannelMode int

const (
	ChannelAutomatic ChannelMode = iota
	ChannelMono
	ChannelStereo
)

// Settings holds the mutable knobs an Encoder accepts before Init;
// set_settings is idempotent before init.
type Settings struct {
	BitrateKbps int
	Channels    ChannelMode
}

// Error kinds, named after a semantic error taxonomy rather than Go type
// names, so callers can errors.Is against the right bucket.
var (
	ErrConfigInvalid = errors.New("encoder: config invalid")
	ErrCodecInit     = errors.New("encoder: codec init failed")
)

// Callback receives one emitted unit of encoded output. header is nil when
// the codec has no separate container header for this call (e.g. a raw MP3
// frame). body is empty for the terminal Ogg EOS page, which carries no
// payload.
type Callback func(header, body []byte)

// Encoder is the shared operation set across all four codec variants.
// The Mp3 and Aac variants own one long-lived ffmpeg subprocess and block
// only on the write to its stdin; the default Opus/Vorbis backend
// (NewFfmpegCodecBackend) runs one ffmpeg process per codec frame and
// waits for it to exit.
type Encoder interface {
	Kind() Kind

	// Init allocates codec state for sampleRate. May return ErrConfigInvalid
	// (unsupported rate) or ErrCodecInit (missing backend/library).
	Init(sampleRate int) error

	// SetSettings must be called before Init; calling it after Init is a
	// programmer error and implementations may ignore the new values.
	SetSettings(s Settings)

	// EncodeBuffer accepts any number of interleaved stereo frames,
	// buffering internally, and emits zero or more callbacks for each full
	// codec frame drained.
	EncodeBuffer(samples []float32, cb Callback) error

	// UpdateMetadata stashes artist/title/album. Opus and Vorbis put them in
	// the comment header of the next logical stream they start; there is no
	// in-band retagging. The Mp3 and Aac variants only store the values:
	// nothing is inserted into the running ffmpeg output.
	UpdateMetadata(artist, title, album string)

	// Flush drains any residual buffered input. Safe to call more than
	// once.
	Flush(cb Callback) error

	// Close releases subprocess/codec resources. Safe to call once Flush
	// has been called, or on abnormal teardown.
	Close() error
}
