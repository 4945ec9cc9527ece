package shout

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/denpacast/broadcast/internal/encoder"
	"github.com/denpacast/broadcast/internal/metadata"
	"github.com/denpacast/broadcast/internal/ring"
)

// ConnectionStatus is the observable-by-outside-world connection state.
type ConnectionStatus int32

const (
	Unconnected ConnectionStatus = iota
	Connecting
	Connected
	Failure
)

func (s ConnectionStatus) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Tunables governing reconnect timing, buffering, and teardown.
const (
	maxConnectPolls    = 30
	connectPollPeriod  = 500 * time.Millisecond
	idleAcquireTimeout = 1 * time.Second
	maxShoutFailures   = 3
	sendRetryBackoff   = 10 * time.Millisecond
	maxNetworkCache    = 491520 // bytes, ~10s at 192kbps
	metaLifeCycles     = 16
	gracefulJoin       = 4 * time.Second
)

// EventCallback is invoked on connect/disconnect transitions, for the
// BroadcastCoordinator to republish as a UI event stream.
type EventCallback func(profileName string, status ConnectionStatus, err error)

// sendChunk is one encoder callback's output, queued for the write-behind
// goroutine so a slow remote socket never stalls the encode/drift-correction
// path feeding it.
type sendChunk struct {
	header []byte
	body   []byte
}

func (c sendChunk) size() int64 { return int64(len(c.header) + len(c.body)) }

// Connection is one destination's worker: goroutine, SampleRing, encoder,
// socket, and metadata cursor. Built around the same goroutine+channel
// shape used to serve listeners pulling from a broadcaster, generalized
// from "serve listeners pulling from us" to "push to a remote
// Icecast/Shoutcast source port."
type Connection struct {
	profile *Profile
	ring    *ring.SampleRing
	oracle  metadata.Oracle
	onEvent EventCallback

	status atomic.Int32 // ConnectionStatus

	conn net.Conn
	enc  encoder.Encoder

	prevTrack      metadata.Track
	firstCallMeta  bool
	metaLifeTick   int
	consecSendFail int

	sendCh      chan sendChunk
	queuedBytes atomic.Int64
	cacheFull   atomic.Bool

	// connectFn overrides connectOnce in tests so the reconnect/giveup
	// policy can be exercised without a real socket or ffmpeg subprocess.
	connectFn func(sampleRate int) error
}

// NewConnection builds a worker for profile, backed by its own SampleRing
// sized by the ring package's capacity formula.
func NewConnection(profile *Profile, sampleRate int, oracle metadata.Oracle, onEvent EventCallback) *Connection {
	c := &Connection{
		profile:       profile,
		ring:          ring.NewSampleRing(ring.CapacityForSampleRate(sampleRate)),
		oracle:        oracle,
		onEvent:       onEvent,
		firstCallMeta: true,
	}
	c.status.Store(int32(Unconnected))
	return c
}

// Ring satisfies stream.Worker so NetworkStream can fan audio into this
// connection's buffer.
func (c *Connection) Ring() *ring.SampleRing { return c.ring }

// OutChunkFrames satisfies stream.Worker: the codec's frame size drives
// drift correction.
func (c *Connection) OutChunkFrames() int { return c.profile.outChunkFrames() }

// Status returns the current observable connection state.
func (c *Connection) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Connection) setStatus(s ConnectionStatus, err error) {
	c.status.Store(int32(s))
	if c.onEvent != nil {
		c.onEvent(c.profile.Name, s, err)
	}
}

// newCodecBackend is overridable by tests; production wiring points it at
// encoder.NewFfmpegCodecBackend.
var newCodecBackend encoder.NewCodecBackendFunc = encoder.NewFfmpegCodecBackend

// Run drives the worker state machine until ctx is cancelled or the
// profile gives up retrying. It is meant to run on
// its own goroutine, one per destination.
func (c *Connection) Run(ctx context.Context, sampleRate int) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.profile.Enabled() {
			c.setStatus(Unconnected, nil)
			return
		}

		if err := c.profile.Validate(sampleRate); err != nil {
			slog.Error("shout: profile invalid", "profile", c.profile.Name, "error", err)
			c.setStatus(Failure, err)
			c.profile.SetEnabled(false)
			return
		}

		if err := c.connectWithRetry(ctx, sampleRate); err != nil {
			// Either cancelled or gave up; either way the worker is done.
			return
		}

		c.setStatus(Connected, nil)
		c.consecSendFail = 0
		transmitErr := c.transmitLoop(ctx)
		c.teardown()

		if ctx.Err() != nil {
			return
		}
		if !c.profile.Enabled() {
			c.setStatus(Unconnected, nil)
			return
		}
		if transmitErr != nil {
			slog.Warn("shout: transmit loop ended, reconnecting", "profile", c.profile.Name, "error", transmitErr)
		}
		// Loop back to connectWithRetry.
	}
}

// connectWithRetry implements the reconnect wait/giveup policy: retry 1
// waits first_delay, subsequent retries wait period; giveup disables the
// profile once max_retries is reached under limit_retries.
func (c *Connection) connectWithRetry(ctx context.Context, sampleRate int) error {
	connect := c.connectFn
	if connect == nil {
		connect = c.connectOnce
	}

	giveUp := func(err error) error {
		slog.Error("shout: abandoning connection attempts", "profile", c.profile.Name, "error", err)
		c.setStatus(Failure, err)
		c.profile.SetEnabled(false)
		return err
	}

	// Initial attempt (t=0), not itself a retry.
	c.setStatus(Connecting, nil)
	err := connect(sampleRate)
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return giveUp(err)
	}

	retryCount := 0
	for {
		rp := c.profile.Reconnect
		if rp.LimitRetries && retryCount >= rp.MaxRetries {
			return giveUp(err)
		}

		wait := rp.Period
		if retryCount == 0 {
			wait = rp.FirstDelay
		}
		if !c.waitForRetry(ctx, wait) {
			return ctx.Err()
		}
		retryCount++

		c.setStatus(Connecting, nil)
		err = connect(sampleRate)
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return giveUp(err)
		}
	}
}

// waitForRetry sleeps for d, waking early on ctx cancellation or the
// profile being disabled mid-wait (a profile disable during wait cancels
// reconnect). Returns false if the wait was interrupted by cancellation
// rather than completing naturally.
func (c *Connection) waitForRetry(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			if !c.profile.Enabled() {
				return false
			}
		}
	}
}

// connectOnce performs one connect attempt: applies profile settings to a
// fresh encoder, dials and handshakes the socket, then polls for readiness
// up to maxConnectPolls times (30 attempts x 500ms).
func (c *Connection) connectOnce(sampleRate int) error {
	enc, err := encoder.New(c.profile.Format.EncoderKind(), newCodecBackend, "denpacast")
	if err != nil {
		return &connectError{kind: ConnectFatal, err: err}
	}
	enc.SetSettings(encoder.Settings{BitrateKbps: c.profile.BitrateKbps, Channels: c.profile.Channels})
	if err := enc.Init(sampleRate); err != nil {
		return &connectError{kind: ConnectFatal, err: err}
	}

	for poll := 0; poll < maxConnectPolls; poll++ {
		conn, err := performHandshake(c.profile)
		if err == nil {
			c.conn = conn
			c.enc = enc
			c.firstCallMeta = true
			return nil
		}
		if IsFatal(err) {
			return err
		}
		if poll == maxConnectPolls-1 {
			return err
		}
		time.Sleep(connectPollPeriod)
	}
	return &connectError{kind: ConnectTransient, err: context.DeadlineExceeded}
}

// transmitLoop drains the ring and feeds the encoder until a persistent
// send failure, a network-cache overflow, the ring owner disables the
// profile, or ctx is cancelled, writing one encoded chunk per ring drain
// cycle. Encoder output is hand off to a write-behind goroutine so a slow
// remote socket backs up the queue instead of stalling the drain cycle.
func (c *Connection) transmitLoop(ctx context.Context) error {
	frames := make([]float32, 0, 4096)
	ticker := time.NewTicker(idleAcquireTimeout)
	defer ticker.Stop()

	c.queuedBytes.Store(0)
	c.cacheFull.Store(false)
	c.sendCh = make(chan sendChunk, 256)

	writerCtx, cancelWriter := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(writerCtx)
	}()
	defer func() {
		cancelWriter()
		<-writerDone
	}()

	cb := encoder.Callback(func(header, body []byte) {
		c.enqueueSend(header, body)
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !c.profile.Enabled() {
			return nil
		}
		if c.cacheFull.Load() {
			return &connectError{kind: SendPersistent, err: errors.New("network cache overflow")}
		}

		avail := c.ring.ReadAvailable()
		if avail == 0 {
			continue
		}
		if cap(frames) < avail*2 {
			frames = make([]float32, avail*2)
		} else {
			frames = frames[:avail*2]
		}
		n := c.ring.Read(frames, avail)
		if err := c.enc.EncodeBuffer(frames[:n*2], cb); err != nil {
			return err
		}

		c.pollMetadata()

		if c.consecSendFail >= maxShoutFailures {
			return &connectError{kind: SendPersistent, err: context.Canceled}
		}
	}
}

// enqueueSend queues one encoder callback's output for the write-behind
// goroutine and tracks the cumulative queued byte count. Once that count
// exceeds maxNetworkCache (bytes the socket hasn't drained yet), the next
// transmitLoop iteration tears the connection down and reconnects rather
// than letting the queue grow without bound.
func (c *Connection) enqueueSend(header, body []byte) {
	chunk := sendChunk{header: header, body: body}
	queued := c.queuedBytes.Add(chunk.size())
	if queued > maxNetworkCache {
		if !c.cacheFull.Swap(true) {
			slog.Warn("shout: network cache overflow", "profile", c.profile.Name, "queued_bytes", queued)
		}
	}
	select {
	case c.sendCh <- chunk:
	default:
		// Write-behind goroutine is gone or the queue is pathologically
		// backed up; drop this chunk rather than block the drain cycle.
		c.queuedBytes.Add(-chunk.size())
	}
}

// writeLoop drains sendCh and writes each chunk to the socket, one at a
// time, until ctx is cancelled. It owns the only writer of c.conn for the
// lifetime of one connected session.
func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.writeChunk(chunk)
		}
	}
}

func (c *Connection) writeChunk(chunk sendChunk) {
	defer c.queuedBytes.Add(-chunk.size())
	c.sendFrame(chunk.header, chunk.body)
}

// sendFrame writes header (if any) then body, tracking consecutive
// failures, which feed the SendPersistent giveup threshold.
func (c *Connection) sendFrame(header, body []byte) {
	if c.Status() != Connected || c.conn == nil {
		return
	}
	if len(header) > 0 {
		if _, err := c.conn.Write(header); err != nil {
			c.recordSendFailure(err)
			return
		}
	}
	if _, err := c.conn.Write(body); err != nil {
		c.recordSendFailure(err)
		return
	}
	c.consecSendFail = 0
}

func (c *Connection) recordSendFailure(err error) {
	c.consecSendFail++
	slog.Warn("shout: send failed", "profile", c.profile.Name, "consecutive_failures", c.consecSendFail, "error", err)
	if c.consecSendFail < maxShoutFailures {
		time.Sleep(sendRetryBackoff)
	}
}

// pollMetadata runs once every metaLifeCycles encode_buffer calls: it asks
// the oracle for the current track and, on change, pushes it per the
// profile's MetadataPolicy.
func (c *Connection) pollMetadata() {
	if c.oracle == nil {
		return
	}
	c.metaLifeTick++
	if c.metaLifeTick%metaLifeCycles != 0 {
		return
	}

	track, err := c.oracle.Current()
	if err != nil {
		slog.Debug("shout: metadata oracle error", "profile", c.profile.Name, "error", err)
		return
	}
	if !metadata.Changed(c.prevTrack, track) {
		return
	}
	c.prevTrack = track

	policy := c.profile.Metadata
	if !policy.Dynamic && !c.firstCallMeta {
		return
	}
	c.firstCallMeta = false

	if c.profile.Server == Icecast2 && c.profile.Format != FormatMp3 {
		c.enc.UpdateMetadata(track.Artist, track.Title, track.Album)
		return
	}

	song := metadata.RenderTemplate(policy.Template, track.Artist, track.Title)
	c.enc.UpdateMetadata(track.Artist, track.Title, song)
}

// teardown flushes the encoder's residual buffer and terminal Ogg EOS page
// (if any) out over the still-open socket, then closes the encoder and the
// socket; called on every exit from transmitLoop, successful or not.
func (c *Connection) teardown() {
	if c.enc != nil {
		cb := encoder.Callback(func(header, body []byte) {
			c.sendFrame(header, body)
		})
		if err := c.enc.Flush(cb); err != nil {
			slog.Warn("shout: flush on teardown failed", "profile", c.profile.Name, "error", err)
		}
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Stop disables the profile, which wakes the worker's suspension points;
// callers should then wait up to gracefulJoin for Run to return.
func (c *Connection) Stop() {
	c.profile.SetEnabled(false)
}

// GracefulJoinTimeout exposes the teardown grace period so callers
// orchestrating shutdown can bound their wait.
const GracefulJoinTimeout = gracefulJoin
