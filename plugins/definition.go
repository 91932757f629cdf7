package plugins

import (
	"fmt"
	"strings"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/sim"
)

// PackDefinition describes an archetype pack loaded from .town/packs.
//
// A pack contributes custom archetypes and, optionally, a rule override
// for the default strategy. The struct mirrors the on-disk schema and is
// validated before anything reaches the simulation.
type PackDefinition struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Archetypes  []citizen.Archetype `json:"archetypes,omitempty" yaml:"archetypes,omitempty"`
	Rules       *sim.RuleSet        `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// PackFile pairs a parsed pack with its on-disk source.
type PackFile struct {
	Pack PackDefinition
	Path string
}

// Normalized returns a trimmed copy of the definition.
func (def PackDefinition) Normalized() PackDefinition {
	clone := PackDefinition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Rules:       def.Rules,
	}
	if len(def.Archetypes) > 0 {
		clone.Archetypes = make([]citizen.Archetype, len(def.Archetypes))
		for i, a := range def.Archetypes {
			a.Name = strings.TrimSpace(a.Name)
			clone.Archetypes[i] = a
		}
	}
	return clone
}

// Validate ensures the pack is well-formed.
func (def PackDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("pack: id is required")
	}
	if len(normalized.Archetypes) == 0 && normalized.Rules == nil {
		return fmt.Errorf("pack %s: defines neither archetypes nor rules", normalized.ID)
	}
	seen := make(map[string]struct{}, len(normalized.Archetypes))
	for _, a := range normalized.Archetypes {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("pack %s: %w", normalized.ID, err)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("pack %s: duplicate archetype %q", normalized.ID, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	if normalized.Rules != nil {
		if normalized.Rules.GroupThreshold < 0 || normalized.Rules.GroupThreshold > 1 {
			return fmt.Errorf("pack %s: group_threshold %.2f outside [0,1]", normalized.ID, normalized.Rules.GroupThreshold)
		}
		if normalized.Rules.ProbeEvery < 0 {
			return fmt.Errorf("pack %s: probe_every must not be negative", normalized.ID)
		}
	}
	return nil
}
