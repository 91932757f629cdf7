// internal/sim/metrics.go
//
// Running counters for the loop. Rejections are ordinary data here — the
// loop never aborts over one.

package sim

import "strings"

// Metrics tracks what the loop produced and what it turned away.
type Metrics struct {
	EventsProduced     int
	Rejections         int
	Moves              int
	MovesRejected      int
	PerOperation       map[string]int
	RejectionsByReason map[string]int
}

func newMetrics() Metrics {
	return Metrics{
		PerOperation:       map[string]int{},
		RejectionsByReason: map[string]int{},
	}
}

func (m *Metrics) produced(op string) {
	m.EventsProduced++
	m.PerOperation[op]++
}

func (m *Metrics) rejected(reason string) {
	m.Rejections++
	key := reason
	if i := strings.IndexByte(key, ':'); i > 0 {
		key = key[:i]
	}
	m.RejectionsByReason[key]++
}

func (m *Metrics) moved()        { m.Moves++ }
func (m *Metrics) moveRejected() { m.MovesRejected++ }

func (m Metrics) snapshot() Metrics {
	out := m
	out.PerOperation = make(map[string]int, len(m.PerOperation))
	for k, v := range m.PerOperation {
		out.PerOperation[k] = v
	}
	out.RejectionsByReason = make(map[string]int, len(m.RejectionsByReason))
	for k, v := range m.RejectionsByReason {
		out.RejectionsByReason[k] = v
	}
	return out
}
