package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// ffmpegPath is overridable (config.FFmpegPath) so tests and deployments can
// point at a non-default binary without touching this package.
var ffmpegPath = "ffmpeg"

// SetFFmpegPath overrides the ffmpeg binary used by subprocess-backed
// encoder variants. Called once at startup from the composition root.
func SetFFmpegPath(path string) {
	if path != "" {
		ffmpegPath = path
	}
}

// subprocessTranscoder owns one long-lived ffmpeg process fed raw
// little-endian int16 PCM on stdin and emitting the target codec's raw
// bytes on stdout. Built around exec.CommandContext with StdoutPipe /
// StderrPipe and a background stderr-logging goroutine, generalized from
// "transcode one input file" to "transcode a continuously-fed live PCM
// stream."
type subprocessTranscoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc

	mu  sync.Mutex
	out bytes.Buffer
}

func startSubprocessTranscoder(args []string) (*subprocessTranscoder, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrCodecInit, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrCodecInit, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrCodecInit, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrCodecInit, err)
	}

	t := &subprocessTranscoder{cmd: cmd, stdin: stdin, cancel: cancel}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				t.mu.Lock()
				t.out.Write(buf[:n])
				t.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				slog.Debug("ffmpeg", "output", string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	return t, nil
}

func (t *subprocessTranscoder) Write(pcm []byte) error {
	_, err := t.stdin.Write(pcm)
	return err
}

// Drain returns and clears whatever encoded bytes have arrived so far. It
// never blocks.
func (t *subprocessTranscoder) Drain() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out.Len() == 0 {
		return nil
	}
	b := append([]byte(nil), t.out.Bytes()...)
	t.out.Reset()
	return b
}

func (t *subprocessTranscoder) Close() error {
	_ = t.stdin.Close()
	t.cancel()
	return t.cmd.Wait()
}

// pcmInt16LE converts interleaved float32 samples in [-1,1] to
// little-endian int16 bytes, the format every ffmpeg-backed variant feeds
// on stdin.
func pcmInt16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func channelCount(mode ChannelMode) int {
	if mode == ChannelMono {
		return 1
	}
	return 2
}

// ffmpegEncoder is the shared plumbing for the Mp3 and Aac variants: both
// are CBR, both delegate container framing entirely to ffmpeg, and both
// differ only in the argv built by newArgs.
type ffmpegEncoder struct {
	kind     Kind
	settings Settings
	newArgs  func(sampleRate, channels, bitrateKbps int) []string

	sampleRate int
	t          *subprocessTranscoder

	mu         sync.Mutex
	artist     string
	title      string
	album      string
	metaDirty  bool
	firstCall  bool
}

func newMp3Encoder() Encoder {
	return &ffmpegEncoder{
		kind: Mp3,
		newArgs: func(sampleRate, channels, bitrateKbps int) []string {
			return []string{
				"-f", "s16le",
				"-ar", fmt.Sprint(sampleRate),
				"-ac", fmt.Sprint(channels),
				"-i", "pipe:0",
				"-f", "mp3",
				"-b:a", fmt.Sprintf("%dk", bitrateKbps),
				"-vn",
				"pipe:1",
			}
		},
	}
}

func newAacEncoder() Encoder {
	return &ffmpegEncoder{
		kind: Aac,
		newArgs: func(sampleRate, channels, bitrateKbps int) []string {
			return []string{
				"-f", "s16le",
				"-ar", fmt.Sprint(sampleRate),
				"-ac", fmt.Sprint(channels),
				"-i", "pipe:0",
				"-f", "adts",
				"-c:a", "aac",
				"-b:a", fmt.Sprintf("%dk", bitrateKbps),
				"-vn",
				"pipe:1",
			}
		},
	}
}

func (e *ffmpegEncoder) Kind() Kind { return e.kind }

func (e *ffmpegEncoder) SetSettings(s Settings) {
	e.settings = s
}

func (e *ffmpegEncoder) Init(sampleRate int) error {
	if sampleRate <= 0 {
		return ErrConfigInvalid
	}
	e.sampleRate = sampleRate
	bitrate := e.settings.BitrateKbps
	if bitrate <= 0 {
		bitrate = 128
	}
	args := e.newArgs(sampleRate, channelCount(e.settings.Channels), bitrate)
	t, err := startSubprocessTranscoder(args)
	if err != nil {
		return err
	}
	e.t = t
	e.firstCall = true
	return nil
}

func (e *ffmpegEncoder) EncodeBuffer(samples []float32, cb Callback) error {
	if e.t == nil {
		return ErrCodecInit
	}
	if err := e.t.Write(pcmInt16LE(samples)); err != nil {
		return fmt.Errorf("encoder(%s): write pcm: %w", e.kind, err)
	}
	if body := e.t.Drain(); len(body) > 0 {
		cb(nil, body)
	}
	return nil
}

func (e *ffmpegEncoder) UpdateMetadata(artist, title, album string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if artist == e.artist && title == e.title && album == e.album {
		return
	}
	e.artist, e.title, e.album = artist, title, album
	e.metaDirty = true
}

func (e *ffmpegEncoder) Flush(cb Callback) error {
	if e.t == nil {
		return nil
	}
	if body := e.t.Drain(); len(body) > 0 {
		cb(nil, body)
	}
	return nil
}

func (e *ffmpegEncoder) Close() error {
	if e.t == nil {
		return nil
	}
	return e.t.Close()
}
