// internal/sim/loop.go
//
// The simulation loop advances phase indices 0..N-1 and turns strategy
// proposals into validated, applied events. Citizens are owned here:
// nothing else mutates a citizen's phase or location while the loop runs.
//
// Step() hands out one lazy cursor per phase. Candidates are validated and
// applied as the cursor is drained, so an abandoned cursor never mutates
// citizens it did not reach. The cursor is one-shot and finite; once the
// last phase has been drained Step returns ErrComplete.

package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/grammar"
	"github.com/kgang/agenttown/internal/mesh"
	"github.com/kgang/agenttown/internal/phase"
	"github.com/kgang/agenttown/internal/town"
)

// ErrComplete signals that every phase has been produced. A fresh loop is
// required to simulate again.
var ErrComplete = errors.New("sim: simulation complete")

// ErrPhaseNotDrained is returned when Step is called while the previous
// phase's cursor still holds events. Phases never overlap.
var ErrPhaseNotDrained = errors.New("sim: previous phase not fully drained")

// Logger is the minimal logging contract the loop needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Strategy proposes candidate interactions for a phase. It owns the
// creative decision of who interacts; the loop owns whether the
// interaction is legal.
type Strategy interface {
	SelectCandidates(phaseIndex int, roster *citizen.Roster, m *mesh.Mesh) []Candidate
}

// Candidate is one proposed interaction: an operation name, ordered
// participants, and the free-text payload the signal carries.
type Candidate struct {
	Operation    string
	Participants []town.CitizenID
	Detail       string
}

// Option customizes loop construction.
type Option func(*Loop)

// WithClock injects a deterministic clock for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Loop) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLogger injects a logger for rejection diagnostics.
func WithLogger(logger Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSeed fixes the seed behind the wander and settling passes.
func WithSeed(seed int64) Option {
	return func(l *Loop) {
		l.rng = rand.New(rand.NewSource(seed))
	}
}

// WithWander toggles the between-phase wander pass.
func WithWander(enabled bool) Option {
	return func(l *Loop) {
		l.wander = enabled
	}
}

// Loop is the event-generating state machine.
type Loop struct {
	runID     string
	grammar   *grammar.Grammar
	mesh      *mesh.Mesh
	roster    *citizen.Roster
	strategy  Strategy
	numPhases int

	phaseIndex int
	current    *PhaseEvents
	metrics    Metrics
	clock      func() time.Time
	rng        *rand.Rand
	logger     Logger
	wander     bool
}

// New builds a loop over the given town. numPhases fixes N up front; the
// loop is finite by construction.
func New(g *grammar.Grammar, m *mesh.Mesh, roster *citizen.Roster, strategy Strategy, numPhases int, opts ...Option) (*Loop, error) {
	if g == nil {
		return nil, fmt.Errorf("sim: grammar is required")
	}
	if m == nil {
		return nil, fmt.Errorf("sim: mesh is required")
	}
	if roster == nil || roster.Len() == 0 {
		return nil, fmt.Errorf("sim: a non-empty roster is required")
	}
	if strategy == nil {
		return nil, fmt.Errorf("sim: strategy is required")
	}
	if numPhases < 1 {
		return nil, fmt.Errorf("sim: numPhases must be >= 1, got %d", numPhases)
	}
	l := &Loop{
		runID:     uuid.NewString(),
		grammar:   g,
		mesh:      m,
		roster:    roster,
		strategy:  strategy,
		numPhases: numPhases,
		clock:     func() time.Time { return time.Now().UTC() },
		rng:       rand.New(rand.NewSource(1)),
		logger:    nopLogger{},
		wander:    true,
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// RunID identifies this simulation run.
func (l *Loop) RunID() string { return l.runID }

// NumPhases returns N.
func (l *Loop) NumPhases() int { return l.numPhases }

// PhaseIndex returns the index the next Step call will produce.
func (l *Loop) PhaseIndex() int { return l.phaseIndex }

// Metrics returns a snapshot of the running counters.
func (l *Loop) Metrics() Metrics { return l.metrics.snapshot() }

// Step produces the lazy event cursor for the current phase and advances
// the phase index. After phase N-1 has been handed out, Step returns
// ErrComplete.
func (l *Loop) Step() (*PhaseEvents, error) {
	if l.current != nil && !l.current.done {
		return nil, ErrPhaseNotDrained
	}
	if l.phaseIndex >= l.numPhases {
		return nil, ErrComplete
	}
	idx := l.phaseIndex
	daypart := town.DaypartAt(idx)
	l.settle(daypart)
	if l.wander {
		l.wanderPass()
	}
	candidates := l.strategy.SelectCandidates(idx, l.roster, l.mesh)
	cursor := &PhaseEvents{
		loop:       l,
		phaseIndex: idx,
		daypart:    daypart,
		pending:    candidates,
	}
	l.current = cursor
	l.phaseIndex++
	return cursor, nil
}

// settle is loop-owned state maintenance outside the grammar: resting
// citizens wake at morning, and at night an industry-weighted subset
// settles to rest. The grammar itself never transitions a resting citizen.
func (l *Loop) settle(daypart town.Daypart) {
	switch daypart {
	case town.Morning:
		for _, c := range l.roster.All() {
			if c.Phase == phase.Resting {
				c.Phase = phase.Idle
			}
		}
	case town.Night:
		for _, c := range l.roster.All() {
			if c.Phase == phase.Resting {
				continue
			}
			if l.rng.Float64() > c.Archetype.Industry {
				c.Phase = phase.Resting
			}
		}
	}
}

// wanderPass moves curious awake citizens to an adjacent region. Moves go
// through the mesh so the adjacency rule is enforced in one place.
func (l *Loop) wanderPass() {
	for _, c := range l.roster.All() {
		if c.Phase == phase.Resting {
			continue
		}
		if l.rng.Float64() >= c.Archetype.Curiosity*0.5 {
			continue
		}
		neighbors := l.mesh.AdjacentTo(c.Location)
		if len(neighbors) == 0 {
			continue
		}
		dest := neighbors[l.rng.Intn(len(neighbors))]
		if err := l.mesh.Move(c.ID, dest); err != nil {
			l.metrics.moveRejected()
			l.logger.Printf("sim: wander rejected for %s: %v", c.ID, err)
			continue
		}
		c.Location = dest
		l.metrics.moved()
	}
}

// PhaseEvents is the one-shot lazy cursor over a single phase's events.
// Candidates are validated and applied only as Next is called.
type PhaseEvents struct {
	loop       *Loop
	phaseIndex int
	daypart    town.Daypart
	pending    []Candidate
	done       bool
}

// PhaseIndex returns the phase this cursor covers.
func (pe *PhaseEvents) PhaseIndex() int { return pe.phaseIndex }

// Daypart returns the daypart this cursor covers.
func (pe *PhaseEvents) Daypart() town.Daypart { return pe.daypart }

// Next validates and applies candidates until one succeeds, returning its
// event. ok is false once the phase is exhausted; rejected candidates are
// counted, never fatal.
func (pe *PhaseEvents) Next() (town.Event, bool) {
	for len(pe.pending) > 0 {
		cand := pe.pending[0]
		pe.pending = pe.pending[1:]
		evt, rejected, reason := pe.loop.apply(pe.phaseIndex, pe.daypart, cand)
		if rejected {
			pe.loop.metrics.rejected(reason)
			pe.loop.logger.Printf("sim: phase %d rejected %s(%v): %s", pe.phaseIndex, cand.Operation, cand.Participants, reason)
			continue
		}
		pe.loop.metrics.produced(cand.Operation)
		return evt, true
	}
	pe.done = true
	return town.Event{}, false
}

// Drain applies every remaining candidate and returns the produced events.
func (pe *PhaseEvents) Drain() []town.Event {
	var out []town.Event
	for {
		evt, ok := pe.Next()
		if !ok {
			return out
		}
		out = append(out, evt)
	}
}
