// internal/citizen/citizen.go
//
// Citizen entities. A citizen's phase and location are owned by the
// simulation loop: nothing else mutates them during a tick. Memory is a
// bounded ring of recent outcomes used by the selection strategy and
// rumor propagation.

package citizen

import (
	"fmt"
	"sort"

	"github.com/kgang/agenttown/internal/phase"
	"github.com/kgang/agenttown/internal/town"
)

// DefaultMemoryCap bounds how many outcomes a citizen retains.
const DefaultMemoryCap = 16

// Citizen is one inhabitant of the town.
type Citizen struct {
	ID        town.CitizenID
	Name      string
	Archetype Archetype
	Phase     phase.Phase
	Location  town.RegionID

	memory    []town.Outcome
	memoryCap int
}

// New creates a citizen in the initial Idle phase.
func New(id town.CitizenID, name string, arch Archetype, home town.RegionID) *Citizen {
	return &Citizen{
		ID:        id,
		Name:      name,
		Archetype: arch,
		Phase:     phase.Idle,
		Location:  home,
		memoryCap: DefaultMemoryCap,
	}
}

// Remember appends an outcome, evicting the oldest entry once the ring is
// full.
func (c *Citizen) Remember(out town.Outcome) {
	cap := c.memoryCap
	if cap <= 0 {
		cap = DefaultMemoryCap
	}
	c.memory = append(c.memory, out)
	if len(c.memory) > cap {
		c.memory = c.memory[len(c.memory)-cap:]
	}
}

// Memory returns a copy of the retained outcomes, oldest first.
func (c *Citizen) Memory() []town.Outcome {
	out := make([]town.Outcome, len(c.memory))
	copy(out, c.memory)
	return out
}

// Roster is a flat arena of citizens keyed by id, with stable iteration
// order.
type Roster struct {
	byID  map[town.CitizenID]*Citizen
	order []town.CitizenID
}

// NewRoster builds an empty roster.
func NewRoster() *Roster {
	return &Roster{byID: map[town.CitizenID]*Citizen{}}
}

// Add registers a citizen. Duplicate ids are an error: ids are the only
// handle the rest of the system holds.
func (r *Roster) Add(c *Citizen) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("citizen: a citizen with an id is required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return fmt.Errorf("citizen: duplicate id %q", c.ID)
	}
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

// Get returns the citizen with the given id.
func (r *Roster) Get(id town.CitizenID) (*Citizen, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns citizens in registration order.
func (r *Roster) All() []*Citizen {
	out := make([]*Citizen, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the roster size.
func (r *Roster) Len() int { return len(r.order) }

// InRegion returns the citizens currently located in a region, sorted by
// id for deterministic iteration.
func (r *Roster) InRegion(region town.RegionID) []*Citizen {
	var out []*Citizen
	for _, id := range r.order {
		if c := r.byID[id]; c.Location == region {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
