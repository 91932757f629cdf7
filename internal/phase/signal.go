// internal/phase/signal.go
//
// Signal is a closed sum: exactly one variant per grammar operation,
// dispatched by exhaustive type switch in Transition. Payload fields carry
// the operation-specific data (who, what, how much); the machine itself
// only reads them to shape the outcome.

package phase

import "github.com/kgang/agenttown/internal/town"

// Signal tags one interaction operation applied to a citizen.
type Signal interface {
	// Op returns the grammar operation name this signal belongs to.
	Op() string
	isSignal()
}

// Greet addresses one other citizen directly.
type Greet struct {
	Target town.CitizenID
}

// Gossip passes a topic between citizens. The topic is what rumor
// propagation carries across the mesh.
type Gossip struct {
	Topic string
}

// Trade exchanges quantities of two goods.
type Trade struct {
	Offered     int
	OfferedGood string
	Wanted      int
	WantedGood  string
}

// Dispute is a disagreement over a named subject.
type Dispute struct {
	Subject string
}

// Celebrate marks a shared occasion.
type Celebrate struct {
	Occasion string
}

// Teach transfers a named skill.
type Teach struct {
	Skill string
}

// Solo is time spent alone on a pursuit.
type Solo struct {
	Pursuit string
}

// Mourn is grief for someone departed.
type Mourn struct {
	Departed string
}

// Identity observes a citizen without changing anything.
type Identity struct{}

// Trace observes a citizen and attaches a diagnostic label.
type Trace struct {
	Label string
}

func (Greet) Op() string     { return "greet" }
func (Gossip) Op() string    { return "gossip" }
func (Trade) Op() string     { return "trade" }
func (Dispute) Op() string   { return "dispute" }
func (Celebrate) Op() string { return "celebrate" }
func (Teach) Op() string     { return "teach" }
func (Solo) Op() string      { return "solo" }
func (Mourn) Op() string     { return "mourn" }
func (Identity) Op() string  { return "identity" }
func (Trace) Op() string     { return "trace" }

func (Greet) isSignal()     {}
func (Gossip) isSignal()    {}
func (Trade) isSignal()     {}
func (Dispute) isSignal()   {}
func (Celebrate) isSignal() {}
func (Teach) isSignal()     {}
func (Solo) isSignal()      {}
func (Mourn) isSignal()     {}
func (Identity) isSignal()  {}
func (Trace) isSignal()     {}

// ForOperation builds the canonical signal for an operation name with a
// generic payload. The selection strategy uses this when it proposes
// candidates by name; richer payloads are built directly from the variant
// structs.
func ForOperation(name string, detail string, target town.CitizenID) (Signal, bool) {
	switch name {
	case "greet":
		return Greet{Target: target}, true
	case "gossip":
		return Gossip{Topic: detail}, true
	case "trade":
		return Trade{Offered: 1, OfferedGood: detail, Wanted: 1, WantedGood: "coin"}, true
	case "dispute":
		return Dispute{Subject: detail}, true
	case "celebrate":
		return Celebrate{Occasion: detail}, true
	case "teach":
		return Teach{Skill: detail}, true
	case "solo":
		return Solo{Pursuit: detail}, true
	case "mourn":
		return Mourn{Departed: detail}, true
	case "identity":
		return Identity{}, true
	case "trace":
		return Trace{Label: detail}, true
	default:
		return nil, false
	}
}
