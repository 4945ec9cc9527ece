// Package shout implements the per-destination broadcast worker: connection
// state machine, encoder lifecycle, reconnection policy, metadata update
// and byte transmission, plus the Profile descriptor it is built from.
package shout

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/denpacast/broadcast/internal/encoder"
)

// ServerKind is the destination's wire protocol family.
type ServerKind int

const (
	Icecast2 ServerKind = iota
	Icecast1
	Shoutcast
)

func (s ServerKind) String() string {
	switch s {
	case Icecast2:
		return "icecast2"
	case Icecast1:
		return "icecast1"
	case Shoutcast:
		return "shoutcast"
	default:
		return "unknown"
	}
}

// Format is the compressed payload format: mp3, vorbis, opus, aac, or
// heaac. HE-AAC shares AAC's ADTS transport and Encoder variant. The
// encoder is not told which of the two was chosen, so HE-AAC profiles are
// encoded with the same ffmpeg arguments as AAC.
type Format int

const (
	FormatMp3 Format = iota
	FormatVorbis
	FormatOpus
	FormatAac
	FormatHeAac
)

func (f Format) String() string {
	switch f {
	case FormatMp3:
		return "mp3"
	case FormatVorbis:
		return "vorbis"
	case FormatOpus:
		return "opus"
	case FormatAac:
		return "aac"
	case FormatHeAac:
		return "heaac"
	default:
		return "unknown"
	}
}

// EncoderKind maps the wire format onto the encoder.Kind tagged variant.
func (f Format) EncoderKind() encoder.Kind {
	switch f {
	case FormatMp3:
		return encoder.Mp3
	case FormatVorbis:
		return encoder.Vorbis
	case FormatOpus:
		return encoder.Opus
	case FormatAac, FormatHeAac:
		return encoder.Aac
	default:
		return encoder.Mp3
	}
}

// BitrateOptionsKbps lists the fixed bitrate set each format accepts.
// Opus/Vorbis use the codec's conventional quality-ladder presets;
// MP3/AAC use the conventional broadcast-quality CBR ladder.
var BitrateOptionsKbps = map[Format][]int{
	FormatMp3:    {64, 96, 128, 160, 192, 224, 256, 320},
	FormatVorbis: {64, 96, 128, 160, 192, 224, 256, 320},
	FormatOpus:   {32, 48, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	FormatAac:    {64, 96, 128, 160, 192, 256},
	FormatHeAac:  {32, 48, 64, 96},
}

// MetadataPolicy controls how ShoutConnection announces the currently
// playing track.
type MetadataPolicy struct {
	// Dynamic selects between static/custom (applied once per connection
	// session) and dynamic (applied on every change) behavior.
	Dynamic bool
	// Template is rendered via metadata.RenderTemplate for formats without
	// separate artist/title fields; ignored for Icecast2+non-MP3, which
	// sets those fields directly instead.
	Template string
	// Charset names an encoding for outgoing metadata strings. It is
	// loaded and saved with the profile, but the metadata path does not
	// read it: strings are passed on unconverted.
	Charset string
	// OggDynamicUpdate is loaded and saved with the profile, but the
	// metadata path does not read it: Ogg streams get no in-band retagging
	// whether it is set or not.
	OggDynamicUpdate bool
}

// ReconnectPolicy controls the wait/giveup behavior of the reconnect
// loop.
type ReconnectPolicy struct {
	Enabled      bool
	FirstDelay   time.Duration
	Period       time.Duration
	LimitRetries bool
	MaxRetries   int
}

// Profile is the immutable-after-apply descriptor of one broadcast
// destination, except for the mutable Enabled flag a control thread
// toggles to start/stop the associated ShoutConnection.
type Profile struct {
	Name string

	Server     ServerKind
	Host       string
	Port       int
	Mountpoint string
	Login      string
	Password   string

	StreamName        string
	StreamDescription string
	StreamGenre       string
	StreamWebsite     string
	Public            bool

	Format      Format
	BitrateKbps int
	Channels    encoder.ChannelMode

	Metadata  MetadataPolicy
	Reconnect ReconnectPolicy

	enabled atomic.Bool
}

var (
	ErrMountpointMustStartWithSlash = errors.New("shout: mountpoint must start with /")
	ErrShoutcastRequiresMp3         = errors.New("shout: shoutcast server requires mp3 format")
	ErrVorbisUnsupportedSampleRate  = errors.New("shout: vorbis does not support 96000 Hz")
	ErrOpusRequiresSampleRate48000  = errors.New("shout: opus requires 48000 Hz")
	ErrBitrateNotAllowed            = errors.New("shout: bitrate not in the format's allowed ladder")
)

// Enabled reports whether this profile is currently turned on; read
// frequently by the worker loop at suspension points.
func (p *Profile) Enabled() bool { return p.enabled.Load() }

// SetEnabled is the universal cancel: setting it to false wakes any
// worker waiting on this profile.
func (p *Profile) SetEnabled(v bool) { p.enabled.Store(v) }

// Validate checks the profile's invariants against the engine sample rate
// it will be fed at. It never inspects the network: an invalid profile
// must fail before any socket call.
func (p *Profile) Validate(engineSampleRate int) error {
	if !strings.HasPrefix(p.Mountpoint, "/") {
		return ErrMountpointMustStartWithSlash
	}
	if p.Server == Shoutcast && p.Format != FormatMp3 {
		return ErrShoutcastRequiresMp3
	}
	if p.Format == FormatVorbis && engineSampleRate == 96000 {
		return ErrVorbisUnsupportedSampleRate
	}
	if p.Format == FormatOpus && engineSampleRate != 48000 {
		return ErrOpusRequiresSampleRate48000
	}
	if p.BitrateKbps != 0 && !allowedBitrate(p.Format, p.BitrateKbps) {
		return ErrBitrateNotAllowed
	}
	return nil
}

// allowedBitrate reports whether kbps is one of format's fixed ladder
// presets. BitrateKbps == 0 bypasses this check entirely: the encoder
// applies its own default in that case.
func allowedBitrate(format Format, kbps int) bool {
	for _, v := range BitrateOptionsKbps[format] {
		if v == kbps {
			return true
		}
	}
	return false
}

// outChunkFrames returns this profile's codec frame size in stereo
// samples, used by NetworkStream's drift correction.
func (p *Profile) outChunkFrames() int {
	switch p.Format {
	case FormatOpus:
		return 1920
	case FormatVorbis:
		return 1024
	default:
		return 1152 // MP3/AAC: one conventional CBR frame's worth
	}
}

