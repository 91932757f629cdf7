// internal/grammar/grammar.go
//
// The interaction grammar is a closed catalog of named operations. Each
// operation declares how many participants it takes and how their
// individual transitions compose into one joint result. The grammar never
// applies anything itself — it answers "is this interaction admissible"
// and leaves application to the simulation loop.

package grammar

import "fmt"

// AnyCount marks an operation that accepts any participant count >= 1.
const AnyCount = -1

// Arity is the declared participant count for an operation: a fixed count,
// or AnyCount.
type Arity struct {
	n int
}

// Fixed declares an exact participant count.
func Fixed(n int) Arity { return Arity{n: n} }

// Any declares "any count >= 1".
func Any() Arity { return Arity{n: AnyCount} }

// Accepts reports whether count satisfies the arity.
func (a Arity) Accepts(count int) bool {
	if a.n == AnyCount {
		return count >= 1
	}
	return count == a.n
}

// IsAny reports whether the arity is unbounded.
func (a Arity) IsAny() bool { return a.n == AnyCount }

// Count returns the fixed count, or AnyCount.
func (a Arity) Count() int { return a.n }

func (a Arity) String() string {
	if a.n == AnyCount {
		return "any"
	}
	return fmt.Sprintf("%d", a.n)
}

// Law names how participant outputs combine into one joint outcome.
type Law string

const (
	// Sequential chains participants: the output of participant i feeds
	// the context of participant i+1.
	Sequential Law = "sequential"
	// ParallelMerge runs every participant against the same input and
	// fuses the outputs in one merge step.
	ParallelMerge Law = "parallel-merge"
	// Iterative re-applies the previous round's output as the next
	// round's input until a stop condition holds.
	Iterative Law = "iterative"
)

// Valid reports whether l names a known composition law.
func (l Law) Valid() bool {
	switch l {
	case Sequential, ParallelMerge, Iterative:
		return true
	default:
		return false
	}
}

// Operation is one named entry in the grammar.
type Operation struct {
	Name  string
	Arity Arity
	Law   Law
	// Category places the operation in the abstract Sense/Act/Reflect
	// ordering checked by the functor law.
	Category Category
}

// Grammar is an ordered, closed operation catalog. Names are unique;
// registration order is preserved for listing.
type Grammar struct {
	ops       map[string]Operation
	order     []string
	coherence CoherenceCheck
}

// Option customizes grammar construction.
type Option func(*Grammar)

// WithCoherenceCheck installs the pluggable coherence-preservation
// validator. The default check passes everything; the rule's exact
// discriminator is an open question upstream.
func WithCoherenceCheck(check CoherenceCheck) Option {
	return func(g *Grammar) {
		if check != nil {
			g.coherence = check
		}
	}
}

// New builds an empty grammar.
func New(opts ...Option) *Grammar {
	g := &Grammar{
		ops:       map[string]Operation{},
		coherence: PassCoherence,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Register adds an operation to the catalog. Duplicate names and malformed
// declarations are construction errors, not runtime validation failures.
func (g *Grammar) Register(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("grammar: operation name is required")
	}
	if _, exists := g.ops[op.Name]; exists {
		return fmt.Errorf("grammar: duplicate operation %q", op.Name)
	}
	if !op.Arity.IsAny() && op.Arity.Count() < 1 {
		return fmt.Errorf("grammar: operation %q declares arity %d", op.Name, op.Arity.Count())
	}
	if !op.Law.Valid() {
		return fmt.Errorf("grammar: operation %q declares unknown law %q", op.Name, op.Law)
	}
	if !op.Category.Valid() {
		return fmt.Errorf("grammar: operation %q declares unknown category %q", op.Name, op.Category)
	}
	g.ops[op.Name] = op
	g.order = append(g.order, op.Name)
	return nil
}

// Get returns the named operation.
func (g *Grammar) Get(name string) (Operation, bool) {
	op, ok := g.ops[name]
	return op, ok
}

// Operations returns the catalog names in registration order.
func (g *Grammar) Operations() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Validate reports whether the named operation admits the given
// participant count. Unknown operations never validate.
func (g *Grammar) Validate(name string, participants int) bool {
	op, ok := g.ops[name]
	if !ok {
		return false
	}
	return op.Arity.Accepts(participants)
}

// Default returns the town's standard catalog: six expressive operations,
// two introspective, two observational.
func Default() *Grammar {
	g := New()
	defaults := []Operation{
		{Name: "greet", Arity: Fixed(2), Law: Sequential, Category: CategoryAct},
		{Name: "gossip", Arity: Any(), Law: Iterative, Category: CategoryAct},
		{Name: "trade", Arity: Fixed(2), Law: Sequential, Category: CategoryAct},
		{Name: "dispute", Arity: Fixed(2), Law: Iterative, Category: CategoryAct},
		{Name: "celebrate", Arity: Any(), Law: ParallelMerge, Category: CategoryAct},
		{Name: "teach", Arity: Any(), Law: Sequential, Category: CategoryAct},
		{Name: "solo", Arity: Fixed(1), Law: Iterative, Category: CategoryReflect},
		{Name: "mourn", Arity: Any(), Law: ParallelMerge, Category: CategoryReflect},
		{Name: "identity", Arity: Fixed(1), Law: Sequential, Category: CategorySense},
		{Name: "trace", Arity: Fixed(1), Law: Sequential, Category: CategorySense},
	}
	for _, op := range defaults {
		if err := g.Register(op); err != nil {
			// The default catalog is a compile-time constant in all but
			// syntax; a registration failure here is a programming error.
			panic(err)
		}
	}
	return g
}
