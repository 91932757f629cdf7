// internal/town/types.go
//
// Shared identifiers for the town core. Citizens and regions are always
// referenced by these stable ids; adjacency, rumor edges, and event
// participant lists are id lists, never pointers, so the object graph
// stays acyclic.

package town

// CitizenID uniquely identifies a citizen within one town.
type CitizenID string

// RegionID uniquely identifies a region of the town mesh.
type RegionID string

// Daypart names the recurring simulation phases. Phase indices cycle
// through the dayparts in declaration order.
type Daypart string

const (
	Morning Daypart = "morning"
	Midday  Daypart = "midday"
	Evening Daypart = "evening"
	Night   Daypart = "night"
)

// Dayparts returns the cycle in order.
func Dayparts() []Daypart {
	return []Daypart{Morning, Midday, Evening, Night}
}

// DaypartAt maps a phase index onto the daypart cycle.
func DaypartAt(phaseIndex int) Daypart {
	parts := Dayparts()
	if phaseIndex < 0 {
		return parts[0]
	}
	return parts[phaseIndex%len(parts)]
}
