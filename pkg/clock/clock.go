// Package clock implements the external realtime clock state machine: a
// pure state machine driven by the abstract transport vocabulary {Start,
// Stop, Continue, Tick}, with no notion of how those messages arrive on
// the wire; whatever decodes the transport feeds Messages in.
package clock

import (
	"sync"
	"time"
)

// TicksPerBeat is the external transport's pulse resolution.
const TicksPerBeat = 24

// State is one of the three clock states.
type State int

const (
	Idle State = iota
	Armed
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// CommandKind is one of the high-level commands the clock emits to the
// session controller.
type CommandKind int

const (
	BeginArmed CommandKind = iota
	Commit
	HaltFast
	TempoSample
)

// Command is a single emitted command. BPM is only meaningful for
// TempoSample.
type Command struct {
	Kind CommandKind
	BPM  float64
}

// Clock is the external clock state machine. Every method takes the
// Clock's own mutex for its duration, so callers need no lock of their
// own (see Listener for the goroutine shape that drives it on the real
// transport thread).
type Clock struct {
	mu sync.Mutex

	state        State
	tickCount    uint64
	lastTickTime time.Time
	intervals    []time.Duration // sliding window, size TicksPerBeat
	lastActivity time.Time
	timeout      time.Duration
}

// New creates a Clock in the Idle state with the default 2s timeout.
func New() *Clock {
	return &Clock{
		state:   Idle,
		timeout: 2 * time.Second,
	}
}

// State returns the current state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TickCount returns the number of ticks observed since the last Start or
// Stop, both of which clear it; Continue preserves it (see HandleContinue).
func (c *Clock) TickCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickCount
}

// IsTimedOut reports whether more than the timeout has elapsed since the
// last message while Armed or Running. It never auto-transitions the state
// machine; the caller decides what to do with a timeout.
func (c *Clock) IsTimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return false
	}
	return time.Since(c.lastActivity) > c.timeout
}

// Tempo returns the current BPM estimate from the sliding interval window,
// and false if there is not yet enough data.
func (c *Clock) Tempo() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempoLocked()
}

func (c *Clock) tempoLocked() (float64, bool) {
	if len(c.intervals) == 0 {
		return 0, false
	}
	var sum time.Duration
	for _, iv := range c.intervals {
		sum += iv
	}
	meanInterval := sum / time.Duration(len(c.intervals))
	if meanInterval <= 0 {
		return 0, false
	}
	beatSeconds := meanInterval.Seconds() * TicksPerBeat
	if beatSeconds <= 0 {
		return 0, false
	}
	return 60.0 / beatSeconds, true
}

// HandleStart processes a transport Start message: Idle -> Armed, clearing
// tick_count, the interval window and last_tick_time.
func (c *Clock) HandleStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Armed
	c.tickCount = 0
	c.intervals = nil
	c.lastTickTime = time.Time{}
	c.lastActivity = time.Now()
}

// HandleStop processes a transport Stop message: any state -> Idle,
// clearing tick_count. The interval window is left untouched (only Start
// clears it).
func (c *Clock) HandleStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.tickCount = 0
	c.lastActivity = time.Now()
}

// HandleContinue processes a transport Continue message: Idle -> Armed,
// but unlike Start, the tick count is preserved: the transport may resume
// mid-bar and a downstream quantizer (out of scope here) may rely on it.
func (c *Clock) HandleContinue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Armed
	c.lastActivity = time.Now()
}

// HandleTick processes one transport Tick and reports whether it was the
// first tick observed after Armed (i.e. the Commit instant).
func (c *Clock) HandleTick() (isFirstTick bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	isFirstTick = c.state == Armed
	c.state = Running
	c.tickCount++
	now := time.Now()

	if !c.lastTickTime.IsZero() {
		c.intervals = append(c.intervals, now.Sub(c.lastTickTime))
		if len(c.intervals) > TicksPerBeat {
			c.intervals = c.intervals[1:]
		}
	}
	c.lastTickTime = now
	c.lastActivity = now
	return isFirstTick
}

// Reset returns the clock to its construction-time state.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.tickCount = 0
	c.intervals = nil
	c.lastTickTime = time.Time{}
	c.lastActivity = time.Time{}
}

// Message is one incoming transport message, the clock's full input
// vocabulary. How these arrive on the wire is an external collaborator's
// concern.
type Message int

const (
	MessageStart Message = iota
	MessageStop
	MessageContinue
	MessageTick
)

// Step translates one incoming transport message into zero or more
// Commands, applying the corresponding Handle* transition. This is the
// single entry point Listener (and tests) drive; deriving Commit directly
// from HandleTick's isFirstTick return keeps the Commit emission
// exact-once per armed pass without a second piece of caller-side state
// to keep in sync.
func (c *Clock) Step(msg Message) []Command {
	switch msg {
	case MessageStart:
		c.HandleStart()
		return []Command{{Kind: BeginArmed}}

	case MessageStop:
		c.HandleStop()
		return []Command{{Kind: HaltFast}}

	case MessageContinue:
		c.HandleContinue()
		return []Command{{Kind: BeginArmed}}

	case MessageTick:
		isFirst := c.HandleTick()
		cmds := make([]Command, 0, 2)
		if isFirst {
			cmds = append(cmds, Command{Kind: Commit})
		}
		if c.TickCount()%TicksPerBeat == 0 {
			if bpm, ok := c.Tempo(); ok {
				cmds = append(cmds, Command{Kind: TempoSample, BPM: bpm})
			}
		}
		return cmds

	default:
		return nil
	}
}
