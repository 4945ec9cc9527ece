package encoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(Kind(99), nil, "denpacast")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestOpusInitRejectsNon48kHz(t *testing.T) {
	e, err := New(Opus, NewFfmpegCodecBackend, "denpacast")
	require.NoError(t, err)
	err = e.Init(44100)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestVorbisInitRejects96kHz(t *testing.T) {
	e, err := New(Vorbis, NewFfmpegCodecBackend, "denpacast")
	require.NoError(t, err)
	err = e.Init(96000)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestOpusInitFailsWithoutBackend(t *testing.T) {
	e, err := New(Opus, nil, "denpacast")
	require.NoError(t, err)
	err = e.Init(48000)
	assert.ErrorIs(t, err, ErrCodecInit)
}

// fakeBackend lets EncodeBuffer/Flush be exercised without spawning ffmpeg.
type fakeBackend struct {
	frames [][]float32
	fail   bool
}

func (b *fakeBackend) EncodeFrame(pcm []float32) ([]byte, error) {
	if b.fail {
		return nil, errors.New("boom")
	}
	b.frames = append(b.frames, append([]float32(nil), pcm...))
	return []byte{0xAB, byte(len(b.frames))}, nil
}

func (b *fakeBackend) Close() error { return nil }

func newFakeOpusEncoder(t *testing.T, backend *fakeBackend) Encoder {
	t.Helper()
	e, err := New(Opus, func(kind Kind, sampleRate, channels int) (CodecBackend, error) {
		return backend, nil
	}, "denpacast-test")
	require.NoError(t, err)
	require.NoError(t, e.Init(48000))
	return e
}

func TestOpusEncodeBufferEmitsIdentAndTagsBeforeFirstDataPacket(t *testing.T) {
	backend := &fakeBackend{}
	e := newFakeOpusEncoder(t, backend)

	var pageTypes []byte
	cb := func(header, body []byte) {
		pageTypes = append(pageTypes, header[5])
	}

	samples := make([]float32, opusFrameSamples*2) // one full stereo frame
	require.NoError(t, e.EncodeBuffer(samples, cb))

	require.Len(t, pageTypes, 3) // ident (bos), tags, one data page
	assert.Equal(t, byte(0x02), pageTypes[0])
	assert.Equal(t, byte(0), pageTypes[1])
	assert.Equal(t, byte(0), pageTypes[2])
	assert.Len(t, backend.frames, 1)
}

func TestOpusEncodeBufferBuffersPartialFrames(t *testing.T) {
	backend := &fakeBackend{}
	e := newFakeOpusEncoder(t, backend)

	var calls int
	cb := func(header, body []byte) { calls++ }

	half := make([]float32, opusFrameSamples)
	require.NoError(t, e.EncodeBuffer(half, cb))
	assert.Zero(t, calls, "a half frame must not emit any page yet")

	require.NoError(t, e.EncodeBuffer(half, cb))
	assert.Equal(t, 3, calls) // ident + tags + the now-complete frame
}

func TestOpusFlushEncodesResidualOnce(t *testing.T) {
	backend := &fakeBackend{}
	e := newFakeOpusEncoder(t, backend)

	var calls int
	cb := func(header, body []byte) { calls++ }

	require.NoError(t, e.EncodeBuffer(make([]float32, 10), cb))
	require.NoError(t, e.Flush(cb))
	assert.Equal(t, 4, calls) // ident + tags + the flushed residual frame + EOS

	require.NoError(t, e.Flush(cb))
	assert.Equal(t, 4, calls, "flushing twice must not emit the residual frame or EOS page again")
}

// TestOpusFlushEmitsTerminalEOSPage covers the teardown path: the last page
// Flush emits must carry the end-of-stream header flag (0x04).
func TestOpusFlushEmitsTerminalEOSPage(t *testing.T) {
	backend := &fakeBackend{}
	e := newFakeOpusEncoder(t, backend)

	var pageTypes []byte
	cb := func(header, body []byte) { pageTypes = append(pageTypes, header[5]) }

	require.NoError(t, e.EncodeBuffer(make([]float32, opusFrameSamples*2), cb))
	require.NoError(t, e.Flush(cb))

	require.NotEmpty(t, pageTypes)
	assert.Equal(t, byte(0x04), pageTypes[len(pageTypes)-1])
}

func TestOpusEncodeBufferPropagatesBackendError(t *testing.T) {
	backend := &fakeBackend{fail: true}
	e := newFakeOpusEncoder(t, backend)

	err := e.EncodeBuffer(make([]float32, opusFrameSamples*2), func(header, body []byte) {})
	require.Error(t, err)
}

func TestVorbisIdentHeaderHasFramingBit(t *testing.T) {
	h := buildVorbisIdentHeader(2, 44100)
	require.NotEmpty(t, h)
	assert.Equal(t, byte(0x01), h[0])
	assert.Equal(t, []byte("vorbis"), []byte(h[1:7]))
	assert.Equal(t, byte(0x01), h[len(h)-1])
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "mp3", Mp3.String())
	assert.Equal(t, "vorbis", Vorbis.String())
	assert.Equal(t, "opus", Opus.String())
	assert.Equal(t, "aac", Aac.String())
}
