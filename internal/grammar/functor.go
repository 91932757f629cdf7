// internal/grammar/functor.go
//
// The grammar-to-abstract-phase functor maps every operation onto one of
// three categories ordered Sense -> Act -> Reflect. Composition must
// preserve or advance that ordering; no operation sequence may undo
// reflection back into action. Sense-mapped operations are identities:
// they leave state unchanged and compose anywhere.

package grammar

// Category is the abstract phase an operation maps to.
type Category string

const (
	CategorySense   Category = "sense"
	CategoryAct     Category = "act"
	CategoryReflect Category = "reflect"
)

// Valid reports whether c names a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySense, CategoryAct, CategoryReflect:
		return true
	default:
		return false
	}
}

func (c Category) rank() int {
	switch c {
	case CategorySense:
		return 0
	case CategoryAct:
		return 1
	case CategoryReflect:
		return 2
	default:
		return -1
	}
}

// ComposeOK reports whether an operation in category `from` may be
// followed by one in category `to` within a single grammar-level
// composition. Identities (Sense targets) are always admissible; otherwise
// the ordering must be preserved or advanced. Reflect -> Act is the
// canonical rejection.
func ComposeOK(from, to Category) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == CategorySense {
		return true
	}
	return to.rank() >= from.rank()
}

// ComposeOps is ComposeOK lifted onto named operations in the catalog.
// Unknown names never compose.
func (g *Grammar) ComposeOps(first, second string) bool {
	a, ok := g.ops[first]
	if !ok {
		return false
	}
	b, ok := g.ops[second]
	if !ok {
		return false
	}
	return ComposeOK(a.Category, b.Category)
}
