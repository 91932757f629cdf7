// internal/sim/apply.go
//
// Candidate application. Validation happens against read-only participant
// views; transitions are computed for every participant first and only
// then committed, so an interaction either fully applies or leaves every
// citizen untouched.

package sim

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/grammar"
	"github.com/kgang/agenttown/internal/phase"
	"github.com/kgang/agenttown/internal/town"
)

const maxIterativeRounds = 3

// apply validates one candidate and, when admissible, applies the
// per-participant transitions composed under the operation's law. The
// returned reason is only meaningful when rejected is true.
func (l *Loop) apply(phaseIndex int, daypart town.Daypart, cand Candidate) (town.Event, bool, string) {
	members := make([]*citizen.Citizen, 0, len(cand.Participants))
	views := make([]grammar.Participant, 0, len(cand.Participants))
	for _, id := range cand.Participants {
		c, ok := l.roster.Get(id)
		if !ok {
			return town.Event{}, true, fmt.Sprintf("unknown-citizen: %s", id)
		}
		members = append(members, c)
		views = append(views, grammar.Participant{ID: c.ID, Phase: c.Phase, Region: c.Location})
	}
	if rej := l.grammar.ValidateInteraction(cand.Operation, views, l.mesh); rej != nil {
		return town.Event{}, true, string(rej.Reason) + ": " + rej.Detail
	}
	op, _ := l.grammar.Get(cand.Operation)

	next, outputs, err := stageTransitions(op, members, cand)
	if err != nil {
		// Validation already cleared the participants; a staging failure
		// is a programming error, but it still must not half-apply.
		return town.Event{}, true, "staging: " + err.Error()
	}

	composed := composeOutcome(op.Law, outputs)
	for i, c := range members {
		c.Phase = next[i]
		c.Remember(outputs[i])
	}

	evt := town.Event{
		ID:           uuid.NewString(),
		RunID:        l.runID,
		PhaseIndex:   phaseIndex,
		Daypart:      daypart,
		Operation:    cand.Operation,
		Participants: append([]town.CitizenID(nil), cand.Participants...),
		Region:       members[0].Location,
		Outcome:      composed,
		Timestamp:    l.clock(),
	}
	if composed.Topic != "" {
		l.spreadRumor(evt.Region, composed)
	}
	return evt, false, ""
}

// stageTransitions computes every participant's transition without
// committing any of them.
func stageTransitions(op grammar.Operation, members []*citizen.Citizen, cand Candidate) ([]phase.Phase, []town.Outcome, error) {
	next := make([]phase.Phase, len(members))
	outputs := make([]town.Outcome, len(members))
	for i, c := range members {
		sig, ok := signalFor(op.Name, cand, i)
		if !ok {
			return nil, nil, fmt.Errorf("no signal for operation %q", op.Name)
		}
		p, out, err := phase.Transition(c.Phase, sig)
		if err != nil {
			return nil, nil, err
		}
		next[i] = p
		outputs[i] = out
	}
	return next, outputs, nil
}

// signalFor builds participant i's signal. Targeted operations point each
// participant at the next one around the circle.
func signalFor(name string, cand Candidate, i int) (phase.Signal, bool) {
	var target town.CitizenID
	if len(cand.Participants) > 1 {
		target = cand.Participants[(i+1)%len(cand.Participants)]
	}
	return phase.ForOperation(name, cand.Detail, target)
}

// composeOutcome fuses per-participant outputs into the event's joint
// outcome according to the operation's composition law.
func composeOutcome(law grammar.Law, outputs []town.Outcome) town.Outcome {
	if len(outputs) == 0 {
		return town.Outcome{}
	}
	base := outputs[0]
	switch law {
	case grammar.Sequential:
		// Each participant's output feeds the next participant's context:
		// the joint note is the chain in participant order.
		notes := make([]string, len(outputs))
		for i, out := range outputs {
			notes[i] = out.Note
		}
		base.Note = strings.Join(notes, ", then ")
	case grammar.ParallelMerge:
		// Every participant ran against the same input; one merge step
		// fuses the outputs, dropping duplicates.
		seen := map[string]struct{}{}
		var notes []string
		for _, out := range outputs {
			if _, dup := seen[out.Note]; dup {
				continue
			}
			seen[out.Note] = struct{}{}
			notes = append(notes, out.Note)
		}
		base.Note = strings.Join(notes, " and ")
	case grammar.Iterative:
		// Each round, every participant folds in what its neighbor held at
		// the end of the previous round; the fixed point is reached when
		// all participants hold the same notes. The cap bounds catalogs
		// whose notes never converge.
		held := make([][]string, len(outputs))
		for i, out := range outputs {
			held[i] = []string{out.Note}
		}
		rounds := 1
		for rounds < maxIterativeRounds && !converged(held) {
			held = iterateRound(held)
			rounds++
		}
		unit := "rounds"
		if rounds == 1 {
			unit = "round"
		}
		base.Note = fmt.Sprintf("%s (settled after %d %s)", strings.Join(held[0], ", "), rounds, unit)
	}
	return base
}

// iterateRound produces the next round's state: participant i holds the
// union of its own notes and its neighbor's, sorted for determinism.
func iterateRound(held [][]string) [][]string {
	next := make([][]string, len(held))
	for i := range held {
		next[i] = unionNotes(held[i], held[(i+1)%len(held)])
	}
	return next
}

func unionNotes(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// converged reports whether every participant holds the same notes.
func converged(held [][]string) bool {
	for i := 1; i < len(held); i++ {
		if !slices.Equal(held[i], held[0]) {
			return false
		}
	}
	return true
}

// spreadRumor copies a rumor-bearing outcome into the memories of citizens
// in regions rumor-reachable from the event region. Reachability is
// directed; a quiet region hears without answering back.
func (l *Loop) spreadRumor(from town.RegionID, out town.Outcome) {
	overheard := town.Outcome{Kind: "overheard", Note: "overheard talk of " + out.Topic, Topic: out.Topic}
	for _, region := range l.mesh.RumorTargets(from) {
		for _, c := range l.roster.InRegion(region) {
			c.Remember(overheard)
		}
	}
}
