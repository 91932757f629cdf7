package plugins

import (
	"fmt"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/sim"
)

// LoadPacks discovers YAML and Go packs under dir. Duplicate pack ids
// across files are an error; later loaders never shadow earlier ones
// silently.
func LoadPacks(dir string) ([]PackFile, error) {
	yamlPacks, err := LoadPackDir(dir)
	if err != nil {
		return nil, err
	}
	goPacks, err := LoadGoPackDir(dir)
	if err != nil {
		return nil, err
	}
	all := append(yamlPacks, goPacks...)
	seen := make(map[string]string, len(all))
	for _, file := range all {
		if existing, ok := seen[file.Pack.ID]; ok {
			return nil, fmt.Errorf("pack: duplicate id %s (%s and %s)", file.Pack.ID, existing, file.Path)
		}
		seen[file.Pack.ID] = file.Path
	}
	return all, nil
}

// Merge folds packs into an archetype lookup and a rule set. Custom
// archetypes extend the built-in presets and may override them by name;
// the last pack declaring rules wins, and packs without rules leave the
// defaults untouched.
func Merge(packs []PackFile) (map[string]citizen.Archetype, sim.RuleSet) {
	archetypes := citizen.Presets()
	rules := sim.DefaultRules()
	for _, file := range packs {
		for _, a := range file.Pack.Archetypes {
			archetypes[a.Name] = a
		}
		if file.Pack.Rules != nil {
			override := *file.Pack.Rules
			if len(override.Topics) > 0 {
				rules.Topics = override.Topics
			}
			if override.GroupThreshold > 0 {
				rules.GroupThreshold = override.GroupThreshold
			}
			if override.ProbeEvery > 0 {
				rules.ProbeEvery = override.ProbeEvery
			}
		}
	}
	return archetypes, rules
}
