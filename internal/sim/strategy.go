// internal/sim/strategy.go
//
// The built-in selection strategy: archetype-weighted, daypart-aware, and
// deterministic for a fixed seed. It only proposes; the loop decides
// legality.

package sim

import (
	"math/rand"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/mesh"
	"github.com/kgang/agenttown/internal/phase"
	"github.com/kgang/agenttown/internal/town"
)

// RuleSet tunes the archetype strategy. Plugin files (YAML or evaluated
// Go) produce these; zero values fall back to defaults.
type RuleSet struct {
	// Topics seeds gossip/dispute/teach payloads.
	Topics []string `yaml:"topics"`
	// GroupThreshold is the sociability average above which a region
	// produces a group operation instead of a pair.
	GroupThreshold float64 `yaml:"group_threshold"`
	// ProbeEvery inserts an observational probe every k-th phase.
	ProbeEvery int `yaml:"probe_every"`
}

// DefaultRules returns the stock tuning.
func DefaultRules() RuleSet {
	return RuleSet{
		Topics:         []string{"the harvest", "the new well", "the mayor's goat", "the river toll", "the festival"},
		GroupThreshold: 0.6,
		ProbeEvery:     4,
	}
}

func (r RuleSet) withDefaults() RuleSet {
	def := DefaultRules()
	if len(r.Topics) == 0 {
		r.Topics = def.Topics
	}
	if r.GroupThreshold <= 0 {
		r.GroupThreshold = def.GroupThreshold
	}
	if r.ProbeEvery <= 0 {
		r.ProbeEvery = def.ProbeEvery
	}
	return r
}

// pairOps lists the expressive pair operations favored per daypart.
var pairOps = map[town.Daypart][]string{
	town.Morning: {"greet", "trade"},
	town.Midday:  {"trade", "teach"},
	town.Evening: {"gossip", "celebrate"},
	town.Night:   {"gossip", "dispute"},
}

// ArchetypeStrategy is the default Strategy implementation.
type ArchetypeStrategy struct {
	rng   *rand.Rand
	rules RuleSet
}

// NewArchetypeStrategy builds the default strategy with a fixed seed.
func NewArchetypeStrategy(seed int64, rules RuleSet) *ArchetypeStrategy {
	return &ArchetypeStrategy{
		rng:   rand.New(rand.NewSource(seed)),
		rules: rules.withDefaults(),
	}
}

// SelectCandidates proposes interactions region by region: pairs of the
// most sociable citizens, the occasional region-wide group operation,
// introspective time for loners, and a periodic observational probe.
func (s *ArchetypeStrategy) SelectCandidates(phaseIndex int, roster *citizen.Roster, m *mesh.Mesh) []Candidate {
	daypart := town.DaypartAt(phaseIndex)
	var out []Candidate
	for _, region := range m.Regions() {
		locals := roster.InRegion(region)
		awake := locals[:0:0]
		for _, c := range locals {
			if c.Phase != phase.Resting {
				awake = append(awake, c)
			}
		}
		switch {
		case len(awake) >= 3 && s.averageSociability(awake) >= s.rules.GroupThreshold:
			out = append(out, s.groupCandidate(daypart, awake))
		case len(awake) >= 2:
			out = append(out, s.pairCandidate(daypart, awake))
		case len(awake) == 1:
			out = append(out, Candidate{
				Operation:    "solo",
				Participants: []town.CitizenID{awake[0].ID},
				Detail:       s.topic(),
			})
		}
	}
	if s.rules.ProbeEvery > 0 && phaseIndex%s.rules.ProbeEvery == 0 {
		if all := roster.All(); len(all) > 0 {
			probe := all[s.rng.Intn(len(all))]
			out = append(out, Candidate{
				Operation:    "identity",
				Participants: []town.CitizenID{probe.ID},
			})
		}
	}
	return out
}

func (s *ArchetypeStrategy) pairCandidate(daypart town.Daypart, awake []*citizen.Citizen) Candidate {
	a, b := mostSociablePair(awake)
	ops := pairOps[daypart]
	return Candidate{
		Operation:    ops[s.rng.Intn(len(ops))],
		Participants: []town.CitizenID{a.ID, b.ID},
		Detail:       s.topic(),
	}
}

func (s *ArchetypeStrategy) groupCandidate(daypart town.Daypart, awake []*citizen.Citizen) Candidate {
	op := "celebrate"
	if daypart == town.Night || daypart == town.Evening {
		op = "gossip"
	}
	ids := make([]town.CitizenID, len(awake))
	for i, c := range awake {
		ids[i] = c.ID
	}
	return Candidate{Operation: op, Participants: ids, Detail: s.topic()}
}

func (s *ArchetypeStrategy) topic() string {
	return s.rules.Topics[s.rng.Intn(len(s.rules.Topics))]
}

func (s *ArchetypeStrategy) averageSociability(cs []*citizen.Citizen) float64 {
	if len(cs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cs {
		sum += c.Archetype.Sociability
	}
	return sum / float64(len(cs))
}

// mostSociablePair returns the two highest-sociability citizens, ties
// broken by id so selection stays deterministic.
func mostSociablePair(cs []*citizen.Citizen) (*citizen.Citizen, *citizen.Citizen) {
	first, second := cs[0], cs[1]
	if better(second, first) {
		first, second = second, first
	}
	for _, c := range cs[2:] {
		switch {
		case better(c, first):
			second = first
			first = c
		case better(c, second):
			second = c
		}
	}
	return first, second
}

func better(a, b *citizen.Citizen) bool {
	if a.Archetype.Sociability != b.Archetype.Sociability {
		return a.Archetype.Sociability > b.Archetype.Sociability
	}
	return a.ID < b.ID
}
