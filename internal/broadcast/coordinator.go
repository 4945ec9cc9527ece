// Package broadcast implements the BroadcastCoordinator: owns the set of
// Profile → shout.Connection workers by name, starting/stopping them as
// profiles are added, removed, renamed, or the global enable flag
// changes.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/denpacast/broadcast/internal/metadata"
	"github.com/denpacast/broadcast/internal/shout"
	"github.com/denpacast/broadcast/internal/stream"
)

// Event is a broadcast connected/disconnected transition republished from
// shout.Connection's per-worker EventCallback, for an operator console's
// event stream.
type Event struct {
	ProfileName string
	Status      shout.ConnectionStatus
	Err         error
	At          time.Time
}

// MarshalJSON renders Err as a plain string so the SSE/status JSON envelope
// doesn't depend on the concrete error type's (usually unexported) fields.
func (e Event) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	return json.Marshal(struct {
		ProfileName string `json:"profileName"`
		Status      string `json:"status"`
		Error       string `json:"error,omitempty"`
		At          int64  `json:"at"`
	}{
		ProfileName: e.ProfileName,
		Status:      e.Status.String(),
		Error:       errMsg,
		At:          e.At.UnixMilli(),
	})
}

// worker bundles a Profile with its running Connection and the cancel
// function for its goroutine, the unit the Coordinator's map tracks.
type worker struct {
	profile *shout.Profile
	conn    *shout.Connection
	cancel  context.CancelFunc
	done    chan struct{}
}

// Coordinator owns a map[string]*worker guarded by a mutex: only the
// control thread mutates it, while workers read their own entry.
type Coordinator struct {
	mu         sync.RWMutex
	workers    map[string]*worker
	stream     *stream.NetworkStream
	oracle     metadata.Oracle
	sampleRate int

	globalEnabled bool

	eventsMu sync.Mutex
	events   []Event
	onEvent  func(Event)
}

// New creates a Coordinator wired to net (which the audio engine feeds) and
// oracle (the now-playing lookup each worker polls for metadata).
func New(net *stream.NetworkStream, oracle metadata.Oracle, sampleRate int) *Coordinator {
	return &Coordinator{
		workers:    make(map[string]*worker),
		stream:     net,
		oracle:     oracle,
		sampleRate: sampleRate,
	}
}

// OnEvent registers a sink for connect/disconnect events; only one sink is
// supported, matching this composition root's single SSE broadcaster.
func (c *Coordinator) OnEvent(fn func(Event)) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.onEvent = fn
}

func (c *Coordinator) publish(name string, status shout.ConnectionStatus, err error) {
	ev := Event{ProfileName: name, Status: status, Err: err, At: time.Now()}
	c.eventsMu.Lock()
	sink := c.onEvent
	c.events = append(c.events, ev)
	if len(c.events) > 256 {
		c.events = c.events[len(c.events)-256:]
	}
	c.eventsMu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

// RecentEvents returns a snapshot of the last events published, for an
// HTTP status endpoint's initial payload before an SSE client subscribes.
func (c *Coordinator) RecentEvents() []Event {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	return append([]Event(nil), c.events...)
}

// AddConnection registers profile and, if broadcasting is globally enabled
// and the profile itself is enabled, starts its worker. A no-op if the name
// is already present.
func (c *Coordinator) AddConnection(profile *shout.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.workers[profile.Name]; exists {
		return nil
	}
	if err := profile.Validate(c.sampleRate); err != nil {
		return fmt.Errorf("broadcast: profile %q invalid: %w", profile.Name, err)
	}

	w := &worker{profile: profile}
	c.workers[profile.Name] = w

	if c.globalEnabled && profile.Enabled() {
		c.startLocked(w)
	}
	return nil
}

// RemoveConnection takes the worker out of the map, disables its profile
// (waking it if running), and unregisters it from NetworkStream.
func (c *Coordinator) RemoveConnection(name string) {
	c.mu.Lock()
	w, exists := c.workers[name]
	if !exists {
		c.mu.Unlock()
		return
	}
	delete(c.workers, name)
	c.mu.Unlock()

	c.stopWorker(w)
}

// Rename moves the existing worker under a new key.
func (c *Coordinator) Rename(oldName string, profile *shout.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, exists := c.workers[oldName]
	if !exists {
		return fmt.Errorf("broadcast: no profile named %q", oldName)
	}
	if _, taken := c.workers[profile.Name]; taken && profile.Name != oldName {
		return fmt.Errorf("broadcast: profile name %q already in use", profile.Name)
	}

	delete(c.workers, oldName)
	w.profile = profile
	c.workers[profile.Name] = w
	return nil
}

// OnEnableChanged implements the global enable semantics: the control is
// a 4-state button whose values above 1.0 wrap back to 0; the Coordinator
// only cares whether v > 0.
func (c *Coordinator) OnEnableChanged(v float64) {
	enabled := v > 0

	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalEnabled = enabled

	if enabled {
		c.applySettingsToAllLocked()
	}
	// When disabling, workers observe the flag (via their profile's Enabled)
	// and exit on their own; the Coordinator does not force-stop them here.
}

// applySettingsToAllLocked re-applies profile settings to every worker
// currently Unconnected or Failure, starting them if broadcasting is on.
// It is a no-op for workers already Connecting or Connected. Caller must
// hold c.mu.
func (c *Coordinator) applySettingsToAllLocked() {
	for _, w := range c.workers {
		if !w.profile.Enabled() {
			continue
		}
		if w.conn == nil {
			c.startLocked(w)
			continue
		}
		switch w.conn.Status() {
		case shout.Unconnected, shout.Failure:
			c.stopWorkerLocked(w)
			// stopWorker disables the profile; it was enabled when checked
			// above, so turn it back on before restarting.
			w.profile.SetEnabled(true)
			c.startLocked(w)
		}
	}
}

// startLocked creates a Connection for w.profile, registers it with
// NetworkStream, and launches its goroutine. Caller must hold c.mu.
func (c *Coordinator) startLocked(w *worker) {
	conn := shout.NewConnection(w.profile, c.sampleRate, c.oracle, c.publish)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.conn = conn
	w.cancel = cancel
	w.done = done

	c.stream.AddWorker(w.profile.Name, conn)

	go func() {
		defer close(done)
		conn.Run(ctx, c.sampleRate)
	}()

	slog.Info("broadcast: worker started", "profile", w.profile.Name)
}

// stopWorker disables the profile, cancels the worker's context, waits up
// to shout.GracefulJoinTimeout, and removes it from NetworkStream.
func (c *Coordinator) stopWorker(w *worker) {
	w.profile.SetEnabled(false)
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		select {
		case <-w.done:
		case <-time.After(shout.GracefulJoinTimeout):
			slog.Warn("broadcast: worker did not exit within grace period", "profile", w.profile.Name)
		}
	}
	c.stream.RemoveWorker(w.profile.Name)
}

func (c *Coordinator) stopWorkerLocked(w *worker) {
	c.stopWorker(w)
	w.conn, w.cancel, w.done = nil, nil, nil
}

// Profiles returns a snapshot of every registered profile, for the control
// API's listing endpoint.
func (c *Coordinator) Profiles() []*shout.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*shout.Profile, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, w.profile)
	}
	return out
}

// Status returns the observable status of one named connection, or
// shout.Unconnected if no such profile is registered.
func (c *Coordinator) Status(name string) shout.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, exists := c.workers[name]
	if !exists || w.conn == nil {
		return shout.Unconnected
	}
	return w.conn.Status()
}
