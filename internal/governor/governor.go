// internal/governor/governor.go
//
// The playback governor decouples how fast the loop can compute events
// from how fast observers see them. It drains one phase at a time into a
// buffer, then releases buffered events at an interpolated cadence.
//
// Everything runs on one cooperative task. The only suspension points are
// the inter-event delay and the unpause wait; stop requests are honored at
// those boundaries, never mid-sleep. Events within a phase are released in
// production order, and phase k+1 never starts emitting before phase k's
// buffer is fully drained.

package governor

import (
	"fmt"
	"sync"
	"time"

	"github.com/kgang/agenttown/internal/sim"
	"github.com/kgang/agenttown/internal/town"
)

// Status is the playback lifecycle state.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// Snapshot reports the governor's counters at one instant.
type Snapshot struct {
	Status          Status
	Speed           float64
	PhaseIndex      int
	EventsThisPhase int
	TotalEvents     int
	LastEmit        time.Time
}

// Sink receives each released event. Publish failures are logged and never
// interrupt playback.
type Sink interface {
	Publish(town.Event) error
}

// Logger is the minimal logging contract.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customizes governor construction.
type Option func(*Governor)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(g *Governor) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithSleep injects the wait primitive, letting tests observe delays
// without real time passing.
func WithSleep(sleep func(time.Duration)) Option {
	return func(g *Governor) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger Logger) Option {
	return func(g *Governor) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSink attaches a publish sink for released events.
func WithSink(sink Sink) Option {
	return func(g *Governor) {
		if sink != nil {
			g.sinks = append(g.sinks, sink)
		}
	}
}

// Governor paces the release of a loop's events. A governor is single-use:
// once stopped, a new instance is required to play again.
type Governor struct {
	loop   *sim.Loop
	cfg    Config
	clock  func() time.Time
	sleep  func(time.Duration)
	logger Logger
	sinks  []Sink

	// stop is closed by Stop so a pending channel send can be abandoned
	// even when no observer is reading.
	stop chan struct{}

	mu              sync.Mutex
	unpaused        *sync.Cond
	status          Status
	speed           float64
	stopRequested   bool
	started         bool
	phaseIndex      int
	eventsThisPhase int
	totalEvents     int
	lastEmit        time.Time
}

// New wraps a simulation loop. The config is normalized (clamped), never
// rejected.
func New(loop *sim.Loop, cfg Config, opts ...Option) (*Governor, error) {
	if loop == nil {
		return nil, fmt.Errorf("governor: loop is required")
	}
	cfg = cfg.Normalized()
	g := &Governor{
		loop:   loop,
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
		sleep:  time.Sleep,
		logger: nopLogger{},
		stop:   make(chan struct{}),
		status: StatusStopped,
		speed:  cfg.Speed,
	}
	g.unpaused = sync.NewCond(&g.mu)
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Run starts playback of up to numPhases phases (the loop's full length
// when numPhases <= 0) and returns the channel events are released on.
// The channel closes when playback finishes or is stopped. Run may be
// called once per governor.
func (g *Governor) Run(numPhases int) (<-chan town.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return nil, fmt.Errorf("governor: already run; a new governor is required")
	}
	if g.stopRequested {
		return nil, fmt.Errorf("governor: stopped; a new governor is required")
	}
	if numPhases <= 0 {
		numPhases = g.loop.NumPhases()
	}
	g.started = true
	g.status = StatusPlaying
	out := make(chan town.Event)
	go g.play(numPhases, out)
	return out, nil
}

// play is the single cooperative task driving release.
func (g *Governor) play(numPhases int, out chan<- town.Event) {
	defer func() {
		g.mu.Lock()
		g.status = StatusStopped
		g.mu.Unlock()
		close(out)
	}()
	for p := 0; p < numPhases; p++ {
		cursor, err := g.loop.Step()
		if err != nil {
			if err != sim.ErrComplete {
				g.logger.Printf("governor: step: %v", err)
			}
			return
		}
		// Fully drain the phase before releasing anything: computation
		// speed and release cadence stay independent.
		buffer := cursor.Drain()
		g.mu.Lock()
		g.phaseIndex = cursor.PhaseIndex()
		g.eventsThisPhase = 0
		g.mu.Unlock()

		phaseStart := g.clock()
		for i, evt := range buffer {
			if i > 0 {
				// No wait before the first event of a phase.
				g.sleep(g.currentInterval())
			}
			if !g.gate() {
				return
			}
			// The send itself is a suspension point: an observer that
			// stopped reading must not pin this task past a Stop.
			select {
			case out <- evt:
			case <-g.stop:
				return
			}
			g.publish(evt)
			g.mu.Lock()
			g.eventsThisPhase++
			g.totalEvents++
			g.lastEmit = g.clock()
			g.mu.Unlock()
		}
		if !g.gate() {
			return
		}
		if remaining := g.remainingBudget(phaseStart); remaining > 0 {
			g.sleep(remaining)
		}
		if g.stopped() {
			return
		}
	}
}

// gate blocks while paused and reports whether playback should continue.
// It is the scheduling boundary where stop requests take effect.
func (g *Governor) gate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.status == StatusPaused && !g.stopRequested {
		g.unpaused.Wait()
	}
	return !g.stopRequested
}

func (g *Governor) stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopRequested
}

func (g *Governor) currentInterval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.interval(g.speed)
}

func (g *Governor) remainingBudget(phaseStart time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.phaseBudget(g.speed) - g.clock().Sub(phaseStart)
}

func (g *Governor) publish(evt town.Event) {
	for _, sink := range g.sinks {
		if err := sink.Publish(evt); err != nil {
			g.logger.Printf("governor: publish %s: %v", evt.ID, err)
		}
	}
}

// Pause freezes delivery without discarding buffered events.
func (g *Governor) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusPlaying {
		g.status = StatusPaused
	}
}

// Resume releases a pause, continuing from where delivery left off.
func (g *Governor) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusPaused {
		g.status = StatusPlaying
		g.unpaused.Broadcast()
	}
}

// Stop requests termination. It takes effect at the next scheduling
// boundary; a sleeping wait finishes first. Irreversible.
func (g *Governor) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stopRequested {
		g.stopRequested = true
		close(g.stop)
	}
	g.unpaused.Broadcast()
}

// SetSpeed updates the playback multiplier, clamped. Already-elapsed
// waits are unaffected; the next delay computation picks the change up.
func (g *Governor) SetSpeed(speed float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speed = ClampSpeed(speed)
}

// SpeedUp raises the multiplier by 25%.
func (g *Governor) SpeedUp() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speed = ClampSpeed(g.speed * 1.25)
}

// SlowDown lowers the multiplier by 25%.
func (g *Governor) SlowDown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speed = ClampSpeed(g.speed / 1.25)
}

// Speed returns the current multiplier.
func (g *Governor) Speed() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speed
}

// Status returns the governor's counters.
func (g *Governor) Status() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Status:          g.status,
		Speed:           g.speed,
		PhaseIndex:      g.phaseIndex,
		EventsThisPhase: g.eventsThisPhase,
		TotalEvents:     g.totalEvents,
		LastEmit:        g.lastEmit,
	}
}
