package shout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) (*Connection, *Profile) {
	t.Helper()
	p := baseProfile()
	p.SetEnabled(true)
	p.Reconnect = ReconnectPolicy{
		Enabled:      true,
		FirstDelay:   5 * time.Millisecond,
		Period:       10 * time.Millisecond,
		LimitRetries: true,
		MaxRetries:   3,
	}
	c := NewConnection(p, 44100, nil, nil)
	return c, p
}

// TestConnectWithRetryGivesUpAfterMaxRetries covers retry giveup: with
// limit_retries=true and max_retries=3, the initial attempt plus 3 retries
// (4 connect() calls total, at t=0, t=1, t=3, t=5) must run before the
// profile is disabled and Failure is reported.
func TestConnectWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	c, p := newTestConnection(t)

	attempts := 0
	c.connectFn = func(sampleRate int) error {
		attempts++
		return &connectError{kind: ConnectTransient, err: errors.New("refused")}
	}

	err := c.connectWithRetry(context.Background(), 44100)
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.False(t, p.Enabled())
	assert.Equal(t, Failure, c.Status())
}

func TestConnectWithRetrySucceedsWithoutExhaustingRetries(t *testing.T) {
	c, p := newTestConnection(t)

	attempts := 0
	c.connectFn = func(sampleRate int) error {
		attempts++
		if attempts < 2 {
			return &connectError{kind: ConnectTransient, err: errors.New("refused")}
		}
		return nil
	}

	err := c.connectWithRetry(context.Background(), 44100)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, p.Enabled())
}

func TestConnectWithRetryAbandonsImmediatelyOnFatalError(t *testing.T) {
	c, p := newTestConnection(t)

	attempts := 0
	c.connectFn = func(sampleRate int) error {
		attempts++
		return &connectError{kind: ConnectFatal, err: errors.New("unauthorized")}
	}

	err := c.connectWithRetry(context.Background(), 44100)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, p.Enabled())
}

func TestConnectWithRetryStopsOnContextCancellation(t *testing.T) {
	c, _ := newTestConnection(t)
	c.profile.Reconnect.Period = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	c.connectFn = func(sampleRate int) error {
		cancel()
		return &connectError{kind: ConnectTransient, err: errors.New("refused")}
	}

	err := c.connectWithRetry(ctx, 44100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunExitsImmediatelyWhenProfileDisabled(t *testing.T) {
	p := baseProfile()
	c := NewConnection(p, 44100, nil, nil)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), 44100)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a disabled profile")
	}
	assert.Equal(t, Unconnected, c.Status())
}

func TestRunRejectsInvalidProfileBeforeConnecting(t *testing.T) {
	p := baseProfile()
	p.SetEnabled(true)
	p.Server = Shoutcast
	p.Format = FormatVorbis // shoutcast + vorbis is an invalid combination

	c := NewConnection(p, 44100, nil, nil)
	attempted := false
	c.connectFn = func(sampleRate int) error {
		attempted = true
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), 44100)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for an invalid profile")
	}
	assert.False(t, attempted, "no socket call must be made for an invalid profile")
	assert.Equal(t, Failure, c.Status())
	assert.False(t, p.Enabled())
}

// TestEnqueueSendFlagsNetworkCacheOverflow covers the maxNetworkCache
// backpressure trigger: once the write-behind queue's unwritten byte total
// exceeds the threshold, cacheFull latches so transmitLoop's next iteration
// tears the connection down and reconnects instead of growing the queue
// without bound.
func TestEnqueueSendFlagsNetworkCacheOverflow(t *testing.T) {
	c, _ := newTestConnection(t)
	c.sendCh = make(chan sendChunk, 16)

	body := make([]byte, maxNetworkCache/4+1)
	for i := 0; i < 3; i++ {
		c.enqueueSend(nil, body)
		assert.False(t, c.cacheFull.Load())
	}
	c.enqueueSend(nil, body)
	assert.True(t, c.cacheFull.Load())
}

// TestEnqueueSendDropsWhenQueueFull covers the channel-full safety valve:
// a pathologically backed-up queue drops the chunk rather than blocking the
// drain cycle, and correctly reverts the byte count it had just added.
func TestEnqueueSendDropsWhenQueueFull(t *testing.T) {
	c, _ := newTestConnection(t)
	c.sendCh = make(chan sendChunk) // unbuffered, nothing draining it

	before := c.queuedBytes.Load()
	c.enqueueSend([]byte("h"), []byte("body"))
	assert.Equal(t, before, c.queuedBytes.Load())
}
