// Package session implements the session controller: it consumes
// external-clock Commands plus UI-facing method calls and orchestrates
// start/stop transitions across the engine and the file writers, as a
// single goroutine ranging over the command channel a clock.Listener
// feeds.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/odaacabeef/stems/pkg/clock"
	"github.com/odaacabeef/stems/pkg/engine"
	"github.com/odaacabeef/stems/pkg/filewriter"
)

// recordingState is the controller's internal waiting-for-clock vs
// recording distinction: BeginArmed arms, the next Commit records.
type recordingState int

const (
	stateIdle recordingState = iota
	stateWaitingForClock
	stateRecording
)

// Controller owns the engine façade and the per-track/mix writers, and
// reacts to clock.Commands.
type Controller struct {
	mu sync.Mutex

	eng    *engine.Engine
	writer *filewriter.Writer
	mix    *filewriter.MixWriter

	outputDir string
	logger    *slog.Logger

	state recordingState
	tempo atomic64
}

// atomic64 holds the UI-visible tempo behind an RWMutex. Unlike
// track.AtomicF32 this value is read a couple of times a second by a
// status goroutine, never from the audio thread, so the lock-free
// bit-pattern trick buys nothing here.
type atomic64 struct {
	mu sync.RWMutex
	v  float64
}

func (a *atomic64) Store(v float64) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomic64) Load() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.v
}

// New constructs a Controller around eng, writing captured files under
// outputDir.
func New(eng *engine.Engine, outputDir string, logger *slog.Logger) *Controller {
	c := &Controller{
		eng:       eng,
		writer:    filewriter.New(eng.InputRing(), outputDir, eng.SampleRate(), logger),
		mix:       filewriter.NewMix(eng.MixRing(), outputDir, eng.SampleRate(), logger),
		outputDir: outputDir,
		logger:    logger,
	}
	return c
}

// Run ranges over cmds until it's closed, applying each clock.Command's
// transition. Intended to run in its own goroutine, fed by a
// clock.Listener.
func (c *Controller) Run(cmds <-chan clock.Command) {
	for cmd := range cmds {
		c.Handle(cmd)
	}
}

// Handle applies a single clock.Command's transition.
func (c *Controller) Handle(cmd clock.Command) {
	switch cmd.Kind {
	case clock.BeginArmed:
		c.onBeginArmed()
	case clock.Commit:
		c.onCommit()
	case clock.HaltFast:
		c.onHaltFast()
	case clock.TempoSample:
		c.tempo.Store(cmd.BPM)
	}
}

func (c *Controller) onBeginArmed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = stateWaitingForClock
	if len(c.eng.Playback()) > 0 {
		c.eng.StartPlayback()
	}
	c.logger.Debug("session: begin armed, waiting for clock commit")
}

func (c *Controller) onCommit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateWaitingForClock {
		c.logger.Debug("session: commit received outside WaitingForClock, ignoring", "state", c.state)
		return
	}

	var armedIDs []int
	for _, t := range c.eng.Tracks() {
		if t.IsArmed() {
			armedIDs = append(armedIDs, t.ID)
		}
	}

	timestamp := time.Now().UTC().Format("20060102-150405")

	if err := c.writer.Join(); err != nil {
		c.logger.Error("session: previous per-track writer finalize failed", "error", err)
	}
	if err := c.mix.Join(); err != nil {
		c.logger.Error("session: previous mix writer finalize failed", "error", err)
	}

	if err := c.writer.Start(timestamp, armedIDs); err != nil {
		c.logger.Error("session: start per-track writer failed", "error", err)
		return
	}

	mixArmed := c.eng.IsMixRecordingArmed()
	if mixArmed {
		if err := c.mix.Start(timestamp); err != nil {
			c.logger.Error("session: start mix writer failed", "error", err)
		} else {
			c.eng.SetMixRecording(true)
		}
	}

	if err := c.eng.StartRecording(armedIDs); err != nil {
		c.logger.Error("session: start recording failed", "error", err)
		return
	}

	c.state = stateRecording
	c.logger.Info("session: recording pass started", "timestamp", timestamp, "armed_tracks", armedIDs, "mix", mixArmed)
}

func (c *Controller) onHaltFast() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eng.StopPlayback()
	c.eng.StopRecording()
	c.writer.StopAsync()
	c.mix.StopAsync()

	c.state = stateIdle
	c.logger.Info("session: recording pass halted")
}

// Tempo returns the most recent tempo sample from the clock, if any.
func (c *Controller) Tempo() float64 {
	return c.tempo.Load()
}

// SetArmed sets a track's armed flag from a UI event, rejecting the change
// while the track is recording.
func (c *Controller) SetArmed(trackID int, armed bool) error {
	for _, t := range c.eng.Tracks() {
		if t.ID != trackID {
			continue
		}
		if t.IsRecording() {
			return fmt.Errorf("session: cannot change arm state of track %d while recording", trackID)
		}
		t.SetArmed(armed)
		return nil
	}
	return fmt.Errorf("session: unknown track %d", trackID)
}

// SetMixRecordingArmed sets the mix-arm flag from a UI event.
func (c *Controller) SetMixRecordingArmed(armed bool) {
	c.eng.SetMixRecordingArmed(armed)
}

// Shutdown performs a full synchronous stop, joining any outstanding
// writers, used once at process exit, where HaltFast's deferred-join
// trick no longer has a "next start" to defer to.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eng.StopPlayback()
	c.eng.StopRecording()

	var firstErr error
	if err := c.writer.Stop(); err != nil {
		firstErr = err
	}
	if err := c.mix.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
