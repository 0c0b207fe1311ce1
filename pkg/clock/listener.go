package clock

import "sync"

// Listener drives a Clock from an external transport goroutine and
// forwards emitted Commands into an unbounded queue. The Clock's mutex is
// held only inside Step, never across the queue append, so the transport
// thread's critical section stays short. Callers feed Message values
// already decoded from the wire.
//
// The queue grows rather than drops: a Commit or HaltFast that went
// missing would start or stop a recording pass out of step with the
// transport, so Feed must never discard a command no matter how far the
// consumer lags.
type Listener struct {
	clock *Clock

	mu      sync.Mutex
	pending []Command

	// wake has capacity 1; Feed nudges it after appending so the pump
	// goroutine wakes without Feed ever blocking.
	wake chan struct{}
	out  chan Command
}

// NewListener creates a Listener around clock and starts the goroutine
// that delivers queued commands to Commands().
func NewListener(clock *Clock) *Listener {
	l := &Listener{
		clock: clock,
		wake:  make(chan struct{}, 1),
		out:   make(chan Command),
	}
	go l.pump()
	return l
}

// Commands returns the channel the session controller should range over.
func (l *Listener) Commands() <-chan Command {
	return l.out
}

// Feed steps the clock with one transport message and queues any
// resulting commands. Intended to be called from the transport's own
// goroutine; it never blocks on the reader and never drops a command.
func (l *Listener) Feed(msg Message) {
	cmds := l.clock.Step(msg)
	if len(cmds) == 0 {
		return
	}

	l.mu.Lock()
	l.pending = append(l.pending, cmds...)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
		// Pump is already due to wake; it drains everything pending.
	}
}

// pump moves queued commands onto the out channel. It runs for the
// listener's lifetime; blocking on a slow consumer is fine here, the
// backlog accumulates in pending, never on the transport thread.
func (l *Listener) pump() {
	for range l.wake {
		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.mu.Unlock()
				break
			}
			cmd := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()

			l.out <- cmd
		}
	}
}

// Clock returns the underlying state machine, for status queries
// (State, Tempo, IsTimedOut) that don't need to go through the command
// channel.
func (l *Listener) Clock() *Clock {
	return l.clock
}
