package encoder

import "fmt"

// New constructs an Encoder for kind. mp3/aac variants need no backend
// injection (ffmpeg owns the whole codec); opus/vorbis need newBackend to
// be non-nil or Init will fail with ErrCodecInit.
func New(kind Kind, newBackend NewCodecBackendFunc, vendor string) (Encoder, error) {
	switch kind {
	case Mp3:
		return newMp3Encoder(), nil
	case Aac:
		return newAacEncoder(), nil
	case Opus:
		return newOpusEncoder(newBackend, vendor), nil
	case Vorbis:
		return newVorbisEncoder(newBackend, vendor), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrConfigInvalid, kind)
	}
}
