// internal/mesh/mesh.go
//
// The spatial mesh: named regions connected by symmetric adjacency and
// boundary relations plus a directed rumor-reachability relation. Regions
// and citizens live in flat maps keyed by id; edges are id sets, so there
// are no reference cycles to manage.
//
// Adjacency and shares-boundary are symmetric by construction: adding an
// edge populates both directions. Rumor reachability is directed on
// purpose — a busy plaza can reach a quiet library without the library
// broadcasting back.

package mesh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kgang/agenttown/internal/town"
)

// ErrUnknownRegion is returned whenever an operation names a region id the
// mesh has never seen. Unknown regions are reportable errors, never
// defaults.
var ErrUnknownRegion = errors.New("mesh: unknown region")

// ErrNotAdjacent is returned by Move when the destination is not adjacent
// to the citizen's current region.
var ErrNotAdjacent = errors.New("mesh: destination not adjacent")

// ErrUnplaced is returned when a citizen has never been placed.
var ErrUnplaced = errors.New("mesh: citizen not placed")

type region struct {
	adjacent map[town.RegionID]struct{}
	boundary map[town.RegionID]struct{}
	rumor    map[town.RegionID]struct{}
}

// Mesh is the town's region graph plus citizen placement. Construction and
// edge wiring happen up front; after that the mesh is read-mostly, mutated
// only through Place and Move.
type Mesh struct {
	regions   map[town.RegionID]*region
	order     []town.RegionID
	occupants map[town.CitizenID]town.RegionID
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{
		regions:   map[town.RegionID]*region{},
		occupants: map[town.CitizenID]town.RegionID{},
	}
}

// AddRegion registers a region id. Adding the same id twice is a no-op.
func (m *Mesh) AddRegion(id town.RegionID) {
	if _, ok := m.regions[id]; ok {
		return
	}
	m.regions[id] = &region{
		adjacent: map[town.RegionID]struct{}{},
		boundary: map[town.RegionID]struct{}{},
		rumor:    map[town.RegionID]struct{}{},
	}
	m.order = append(m.order, id)
}

// Regions returns region ids in insertion order.
func (m *Mesh) Regions() []town.RegionID {
	out := make([]town.RegionID, len(m.order))
	copy(out, m.order)
	return out
}

// HasRegion reports whether id is known.
func (m *Mesh) HasRegion(id town.RegionID) bool {
	_, ok := m.regions[id]
	return ok
}

func (m *Mesh) lookup(id town.RegionID) (*region, error) {
	r, ok := m.regions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, id)
	}
	return r, nil
}

// Connect adds a symmetric adjacency edge between a and b.
func (m *Mesh) Connect(a, b town.RegionID) error {
	ra, err := m.lookup(a)
	if err != nil {
		return err
	}
	rb, err := m.lookup(b)
	if err != nil {
		return err
	}
	ra.adjacent[b] = struct{}{}
	rb.adjacent[a] = struct{}{}
	return nil
}

// SetBoundary records that a and b share a boundary. Symmetric, like
// Connect, but independent of adjacency: two regions can touch without
// being walkable.
func (m *Mesh) SetBoundary(a, b town.RegionID) error {
	ra, err := m.lookup(a)
	if err != nil {
		return err
	}
	rb, err := m.lookup(b)
	if err != nil {
		return err
	}
	ra.boundary[b] = struct{}{}
	rb.boundary[a] = struct{}{}
	return nil
}

// AllowRumor opens a one-way rumor channel from -> to. The reverse
// direction is only opened by a second explicit call.
func (m *Mesh) AllowRumor(from, to town.RegionID) error {
	rf, err := m.lookup(from)
	if err != nil {
		return err
	}
	if _, err := m.lookup(to); err != nil {
		return err
	}
	rf.rumor[to] = struct{}{}
	return nil
}

// Adjacent reports whether a and b share an adjacency edge. Unknown
// regions report false; validation of region ids belongs to the wiring
// calls, which never accept them.
func (m *Mesh) Adjacent(a, b town.RegionID) bool {
	ra, ok := m.regions[a]
	if !ok {
		return false
	}
	_, ok = ra.adjacent[b]
	return ok
}

// SharesBoundary reports whether a and b share a boundary.
func (m *Mesh) SharesBoundary(a, b town.RegionID) bool {
	ra, ok := m.regions[a]
	if !ok {
		return false
	}
	_, ok = ra.boundary[b]
	return ok
}

// RumorReachable reports whether a rumor in from can reach to in one hop.
func (m *Mesh) RumorReachable(from, to town.RegionID) bool {
	rf, ok := m.regions[from]
	if !ok {
		return false
	}
	_, ok = rf.rumor[to]
	return ok
}

// RumorTargets returns the regions reachable by rumor from the given
// region, sorted for deterministic iteration.
func (m *Mesh) RumorTargets(from town.RegionID) []town.RegionID {
	rf, ok := m.regions[from]
	if !ok {
		return nil
	}
	out := make([]town.RegionID, 0, len(rf.rumor))
	for id := range rf.rumor {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AdjacentTo returns the neighbors of a region, sorted.
func (m *Mesh) AdjacentTo(id town.RegionID) []town.RegionID {
	r, ok := m.regions[id]
	if !ok {
		return nil
	}
	out := make([]town.RegionID, 0, len(r.adjacent))
	for n := range r.adjacent {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Place puts a citizen in a region, overriding any previous placement.
func (m *Mesh) Place(c town.CitizenID, id town.RegionID) error {
	if _, err := m.lookup(id); err != nil {
		return err
	}
	m.occupants[c] = id
	return nil
}

// Move relocates a citizen to an adjacent region. The move either fully
// applies or is fully rejected; a rejected move leaves placement untouched.
func (m *Mesh) Move(c town.CitizenID, to town.RegionID) error {
	if _, err := m.lookup(to); err != nil {
		return err
	}
	from, ok := m.occupants[c]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnplaced, c)
	}
	if !m.Adjacent(from, to) {
		return fmt.Errorf("%w: %q -> %q", ErrNotAdjacent, from, to)
	}
	m.occupants[c] = to
	return nil
}

// Locate returns a citizen's current region.
func (m *Mesh) Locate(c town.CitizenID) (town.RegionID, error) {
	id, ok := m.occupants[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnplaced, c)
	}
	return id, nil
}

// Occupants returns the citizens currently in a region, sorted by id.
func (m *Mesh) Occupants(id town.RegionID) []town.CitizenID {
	var out []town.CitizenID
	for c, r := range m.occupants {
		if r == id {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
