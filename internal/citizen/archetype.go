// internal/citizen/archetype.go
//
// Archetypes are simple parameter presets. They never drive transitions;
// they only weight the default selection strategy's choices.

package citizen

import "fmt"

// Archetype parameterizes a citizen's tendencies on a 0..1 scale.
type Archetype struct {
	Name string `yaml:"name"`
	// Sociability weights expressive operations.
	Sociability float64 `yaml:"sociability"`
	// Industry weights staying active through the evening instead of
	// settling to rest at night.
	Industry float64 `yaml:"industry"`
	// Curiosity weights wandering to adjacent regions between phases.
	Curiosity float64 `yaml:"curiosity"`
}

// Validate checks the preset is usable.
func (a Archetype) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("citizen: archetype name is required")
	}
	for _, v := range []struct {
		field string
		val   float64
	}{
		{"sociability", a.Sociability},
		{"industry", a.Industry},
		{"curiosity", a.Curiosity},
	} {
		if v.val < 0 || v.val > 1 {
			return fmt.Errorf("citizen: archetype %q %s %.2f outside [0,1]", a.Name, v.field, v.val)
		}
	}
	return nil
}

// Presets returns the built-in archetypes keyed by name.
func Presets() map[string]Archetype {
	return map[string]Archetype{
		"gossipmonger": {Name: "gossipmonger", Sociability: 0.9, Industry: 0.4, Curiosity: 0.7},
		"merchant":     {Name: "merchant", Sociability: 0.7, Industry: 0.8, Curiosity: 0.5},
		"scholar":      {Name: "scholar", Sociability: 0.3, Industry: 0.6, Curiosity: 0.4},
		"hermit":       {Name: "hermit", Sociability: 0.1, Industry: 0.5, Curiosity: 0.2},
		"reveler":      {Name: "reveler", Sociability: 0.8, Industry: 0.2, Curiosity: 0.8},
	}
}

// Preset looks up a built-in archetype, falling back to an even-tempered
// default for unknown names.
func Preset(name string) Archetype {
	if a, ok := Presets()[name]; ok {
		return a
	}
	return Archetype{Name: "townsfolk", Sociability: 0.5, Industry: 0.5, Curiosity: 0.5}
}
