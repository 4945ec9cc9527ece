package encoder

import (
	"encoding/binary"

	"github.com/denpacast/broadcast/internal/ogg"
)

// vorbisFrameSamples approximates libvorbis's variable block size with a
// fixed accounting unit for granule-position bookkeeping; real block size
// is chosen internally by the codec, but the Ogg layer only needs a
// samples-per-channel count to advance granule_pos by.
const vorbisFrameSamples = 1024

// newVorbisEncoder builds the Vorbis variant. Unlike Opus, Vorbis accepts
// any sample rate except 96000, so requireRate is 0 and the 96000 check
// lives in oggBackedEncoder.Init directly.
func newVorbisEncoder(newBackend NewCodecBackendFunc, vendor string) Encoder {
	e := &oggBackedEncoder{
		kind:         Vorbis,
		frameSamples: vorbisFrameSamples,
		newBackend:   newBackend,
		vendor:       vendor,
	}
	e.identHeader = buildVorbisIdentHeader
	return e
}

// buildVorbisIdentHeader returns the standard Vorbis I identification
// header: packet type 1, "vorbis", version 0, channels, sample rate,
// bitrate_maximum/nominal/minimum (all 0 = unset, matching the CBR-only
// profile this pipeline exposes), blocksize byte, framing bit.
func buildVorbisIdentHeader(channels uint8, sampleRate uint32) ogg.IdentHeader {
	w := make([]byte, 0, 30)
	w = append(w, 0x01)
	w = append(w, []byte("vorbis")...)
	w = binary.LittleEndian.AppendUint32(w, 0) // vorbis_version
	w = append(w, channels)
	w = binary.LittleEndian.AppendUint32(w, sampleRate)
	w = binary.LittleEndian.AppendUint32(w, 0) // bitrate_maximum
	w = binary.LittleEndian.AppendUint32(w, 0) // bitrate_nominal
	w = binary.LittleEndian.AppendUint32(w, 0) // bitrate_minimum
	w = append(w, 0xB8)                        // blocksize_0=8 (256), blocksize_1=11 (2048)
	w = append(w, 0x01)                        // framing bit
	return ogg.IdentHeader(w)
}
