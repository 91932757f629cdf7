package town

import "time"

// Outcome is the observable result of applying one operation. Outcomes are
// value types; once attached to an Event they are never mutated.
type Outcome struct {
	Kind string `json:"kind"`
	// Note carries the composed, human-oriented summary of the outcome.
	Note string `json:"note,omitempty"`
	// Topic is set for rumor-bearing outcomes (gossip) and drives spread.
	Topic string `json:"topic,omitempty"`
}

// Event is the immutable unit of simulation output. The SimulationLoop
// synthesizes one Event per successfully applied interaction; the
// PlaybackGovernor paces their release and subscribers consume them as-is.
type Event struct {
	ID           string      `json:"id"`
	RunID        string      `json:"run_id"`
	PhaseIndex   int         `json:"phase_index"`
	Daypart      Daypart     `json:"daypart"`
	Operation    string      `json:"operation"`
	Participants []CitizenID `json:"participants"`
	Region       RegionID    `json:"region"`
	Outcome      Outcome     `json:"outcome"`
	Timestamp    time.Time   `json:"timestamp"`
}
