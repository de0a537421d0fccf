package hold

import (
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/clock"
)

// DefaultTTL is how long a shopper may deliberate before the hold
// expires.
const DefaultTTL = 15 * time.Minute

// Phase is the countdown's urgency level.
type Phase int

const (
	PhaseActive   Phase = iota // more than 60s left
	PhaseWarning               // 60s or less
	PhaseCritical              // 30s or less
	PhaseExpired               // nothing left
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseWarning:
		return "warning"
	case PhaseCritical:
		return "critical"
	case PhaseExpired:
		return "expired"
	}
	return "unknown"
}

// PhaseFor maps remaining seconds to a phase.
func PhaseFor(remaining int) Phase {
	switch {
	case remaining <= 0:
		return PhaseExpired
	case remaining <= 30:
		return PhaseCritical
	case remaining <= 60:
		return PhaseWarning
	default:
		return PhaseActive
	}
}

// ErrAlreadyStarted is returned by Start on a countdown that has run.
var ErrAlreadyStarted = errors.New("countdown already started")

type countdownState int

const (
	stateIdle countdownState = iota
	stateRunning
	stateStopped
	stateExpired
)

// Countdown ticks once per second from its TTL down to zero.  Each tick
// schedules the next one through the clock, so ticks never overlap and
// a stopped countdown has nothing pending.  Observers run on the
// ticking goroutine, outside the countdown's lock.
type Countdown struct {
	mu        sync.Mutex
	clock     clock.Clock
	remaining int
	phase     Phase
	state     countdownState
	timer     *clock.Timer

	onTick   []func(remaining int, phase Phase)
	onPhase  []func(phase Phase)
	onExpire []func()
}

// NewCountdown returns an idle countdown of ttl, truncated to whole
// seconds.
func NewCountdown(c clock.Clock, ttl time.Duration) *Countdown {
	secs := int(ttl / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &Countdown{clock: c, remaining: secs, phase: PhaseFor(secs)}
}

// OnTick registers fn to run after every tick.
func (c *Countdown) OnTick(fn func(remaining int, phase Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = append(c.onTick, fn)
}

// OnPhase registers fn to run when the phase changes.
func (c *Countdown) OnPhase(fn func(phase Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhase = append(c.onPhase, fn)
}

// OnExpire registers fn to run once, when remaining reaches zero.
func (c *Countdown) OnExpire(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpire = append(c.onExpire, fn)
}

// Start schedules the first tick one second from now.  A zero TTL
// expires immediately.
func (c *Countdown) Start() error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.remaining == 0 {
		c.state = stateExpired
		expire := append([]func(){}, c.onExpire...)
		c.mu.Unlock()
		for _, fn := range expire {
			fn()
		}
		return nil
	}
	c.state = stateRunning
	c.timer = c.clock.AfterFunc(time.Second, c.tick)
	c.mu.Unlock()
	return nil
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.state != stateRunning {
		c.mu.Unlock()
		return
	}
	c.remaining--
	next := PhaseFor(c.remaining)
	changed := next != c.phase
	c.phase = next
	if next == PhaseExpired {
		c.state = stateExpired
		c.timer = nil
	} else {
		c.timer = c.clock.AfterFunc(time.Second, c.tick)
	}
	remaining := c.remaining
	ticks := append([]func(int, Phase){}, c.onTick...)
	var phases []func(Phase)
	if changed {
		phases = append(phases, c.onPhase...)
	}
	var expire []func()
	if next == PhaseExpired {
		expire = append(expire, c.onExpire...)
	}
	c.mu.Unlock()

	for _, fn := range ticks {
		fn(remaining, next)
	}
	for _, fn := range phases {
		fn(next)
	}
	for _, fn := range expire {
		fn()
	}
}

// Stop deschedules the next tick.  It reports whether the countdown was
// running.
func (c *Countdown) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateRunning {
		return false
	}
	c.state = stateStopped
	c.timer.Stop()
	c.timer = nil
	return true
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Phase returns the current phase.
func (c *Countdown) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Running reports whether ticks are still being scheduled.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// Expired reports whether the countdown reached zero.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateExpired
}
