package plugins

import (
	"os"
	"path/filepath"
	"testing"
)

const samplePackYAML = `
id: festival-pack
name: Festival Pack
archetypes:
  - name: bard
    sociability: 0.95
    industry: 0.3
    curiosity: 0.9
rules:
  topics: [the midsummer fair]
  group_threshold: 0.5
  probe_every: 3
`

func writePack(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParsePackYAML(t *testing.T) {
	def, err := ParsePackYAML([]byte(samplePackYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.ID != "festival-pack" || len(def.Archetypes) != 1 {
		t.Fatalf("parsed pack: %+v", def)
	}
	if def.Archetypes[0].Name != "bard" || def.Archetypes[0].Sociability != 0.95 {
		t.Fatalf("bard archetype: %+v", def.Archetypes[0])
	}
	if def.Rules == nil || def.Rules.ProbeEvery != 3 {
		t.Fatalf("rules: %+v", def.Rules)
	}
}

func TestParsePackYAMLRejections(t *testing.T) {
	cases := map[string]string{
		"empty payload":     "   ",
		"missing id":        "name: nameless\narchetypes:\n  - name: bard\n    sociability: 0.5\n",
		"no content":        "id: hollow\n",
		"bad sociability":   "id: p\narchetypes:\n  - name: bard\n    sociability: 1.5\n",
		"duplicate name":    "id: p\narchetypes:\n  - name: bard\n    sociability: 0.5\n  - name: bard\n    sociability: 0.4\n",
		"bad threshold":     "id: p\nrules:\n  group_threshold: 2.0\n",
		"negative probe":    "id: p\nrules:\n  group_threshold: 0.5\n  probe_every: -1\n",
		"malformed payload": "id: [p\n",
	}
	for name, raw := range cases {
		if _, err := ParsePackYAML([]byte(raw)); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestLoadPackDir(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "festival.yaml", samplePackYAML)
	writePack(t, dir, "notes.txt", "not a pack")
	packs, err := LoadPackDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(packs) != 1 || packs[0].Pack.ID != "festival-pack" {
		t.Fatalf("loaded packs: %+v", packs)
	}
}

func TestLoadPackDirMissingIsEmpty(t *testing.T) {
	packs, err := LoadPackDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing dir must not error: %v", err)
	}
	if packs != nil {
		t.Fatalf("expected no packs, got %+v", packs)
	}
}

func TestLoadGoPackDir(t *testing.T) {
	dir := t.TempDir()
	source := `package main

func TownPacks() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id": "night-owls",
			"archetypes": []map[string]any{
				{"name": "watchman", "sociability": 0.2, "industry": 0.9, "curiosity": 0.3},
			},
		},
	}, nil
}
`
	writePack(t, dir, "night_owls.go", source)
	packs, err := LoadGoPackDir(dir)
	if err != nil {
		t.Fatalf("load go packs: %v", err)
	}
	if len(packs) != 1 || packs[0].Pack.ID != "night-owls" {
		t.Fatalf("loaded packs: %+v", packs)
	}
	if len(packs[0].Pack.Archetypes) != 1 || packs[0].Pack.Archetypes[0].Name != "watchman" {
		t.Fatalf("watchman archetype missing: %+v", packs[0].Pack)
	}
}

func TestLoadGoPackDirRejectsMissingFunc(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "broken.go", "package main\n\nvar x = 1\n")
	if _, err := LoadGoPackDir(dir); err == nil {
		t.Fatalf("expected an error for a plugin without TownPacks")
	}
}

func TestLoadPacksRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "a.yaml", samplePackYAML)
	writePack(t, dir, "b.yaml", samplePackYAML)
	if _, err := LoadPacks(dir); err == nil {
		t.Fatalf("expected duplicate id rejection")
	}
}

func TestMergeExtendsPresetsAndOverridesRules(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "festival.yaml", samplePackYAML)
	packs, err := LoadPacks(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	archetypes, rules := Merge(packs)
	if _, ok := archetypes["bard"]; !ok {
		t.Fatalf("bard not merged: %v", archetypes)
	}
	if _, ok := archetypes["merchant"]; !ok {
		t.Fatalf("built-in presets must survive the merge")
	}
	if len(rules.Topics) != 1 || rules.Topics[0] != "the midsummer fair" {
		t.Fatalf("topics not overridden: %v", rules.Topics)
	}
	if rules.GroupThreshold != 0.5 || rules.ProbeEvery != 3 {
		t.Fatalf("rules not overridden: %+v", rules)
	}
}

func TestMergeWithoutPacksKeepsDefaults(t *testing.T) {
	archetypes, rules := Merge(nil)
	if _, ok := archetypes["gossipmonger"]; !ok {
		t.Fatalf("presets missing: %v", archetypes)
	}
	if rules.GroupThreshold != 0.6 || rules.ProbeEvery != 4 {
		t.Fatalf("defaults altered: %+v", rules)
	}
}
