// internal/phase/phase.go
//
// The citizen phase machine. A citizen is always in exactly one Phase and
// moves between phases only through Transition. The function is pure:
// identical (phase, signal) pairs always return identical results, and no
// citizen-specific state is consulted inside it.

package phase

import (
	"errors"
	"fmt"

	"github.com/kgang/agenttown/internal/town"
)

// Phase is a citizen's behavioral mode. The set is fixed and cyclic; there
// is no terminal phase. Every citizen starts Idle.
type Phase string

const (
	Idle        Phase = "idle"
	Socializing Phase = "socializing"
	Working     Phase = "working"
	Reflecting  Phase = "reflecting"
	Resting     Phase = "resting"
)

// Phases returns every phase in declaration order.
func Phases() []Phase {
	return []Phase{Idle, Socializing, Working, Reflecting, Resting}
}

// Valid reports whether p names a known phase.
func (p Phase) Valid() bool {
	switch p {
	case Idle, Socializing, Working, Reflecting, Resting:
		return true
	default:
		return false
	}
}

// ErrResting is returned when a signal targets a resting citizen. Rest is
// inviolable: the caller must reject the whole interaction before applying
// any transition, never silently skip the participant.
var ErrResting = errors.New("phase: citizen is resting")

// ErrUnknownPhase is returned for phases outside the fixed set.
var ErrUnknownPhase = errors.New("phase: unknown phase")

// Transition applies one interaction signal to a phase and returns the new
// phase plus the observable outcome. Expressive operations pull any
// non-resting citizen into Socializing, introspective operations into
// Reflecting, and observational operations leave the phase untouched.
func Transition(p Phase, sig Signal) (Phase, town.Outcome, error) {
	if !p.Valid() {
		return p, town.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownPhase, p)
	}
	if sig == nil {
		return p, town.Outcome{}, errors.New("phase: nil signal")
	}
	if p == Resting {
		return p, town.Outcome{}, fmt.Errorf("%w: cannot apply %s", ErrResting, sig.Op())
	}
	switch s := sig.(type) {
	case Greet:
		return Socializing, town.Outcome{Kind: "greeting", Note: "greeted " + string(s.Target)}, nil
	case Gossip:
		return Socializing, town.Outcome{Kind: "rumor", Note: "traded gossip about " + s.Topic, Topic: s.Topic}, nil
	case Trade:
		return Socializing, town.Outcome{Kind: "exchange", Note: fmt.Sprintf("traded %d %s for %d %s", s.Offered, s.OfferedGood, s.Wanted, s.WantedGood)}, nil
	case Dispute:
		return Socializing, town.Outcome{Kind: "quarrel", Note: "argued over " + s.Subject}, nil
	case Celebrate:
		return Socializing, town.Outcome{Kind: "festivity", Note: "celebrated " + s.Occasion}, nil
	case Teach:
		return Socializing, town.Outcome{Kind: "lesson", Note: "taught " + s.Skill}, nil
	case Solo:
		return Reflecting, town.Outcome{Kind: "solitude", Note: "spent time alone " + s.Pursuit}, nil
	case Mourn:
		return Reflecting, town.Outcome{Kind: "grief", Note: "mourned " + s.Departed}, nil
	case Identity:
		return p, town.Outcome{Kind: "observation", Note: "remains " + string(p)}, nil
	case Trace:
		return p, town.Outcome{Kind: "observation", Note: "traced as " + string(p) + " [" + s.Label + "]"}, nil
	default:
		return p, town.Outcome{}, fmt.Errorf("phase: unknown signal %s", sig.Op())
	}
}
