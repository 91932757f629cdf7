package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kgang/agenttown/internal/town"
)

func TestInitTownDirCreatesStructure(t *testing.T) {
	dir := t.TempDir()
	if err := InitTownDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, sub := range []string{TownDir, filepath.Join(TownDir, "logs"), filepath.Join(TownDir, JournalDirName)} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			t.Fatalf("missing directory %s: %v", sub, err)
		}
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if cfg.Phases != 12 {
		t.Fatalf("default phases: %d", cfg.Phases)
	}
	if len(cfg.Regions) != 4 || len(cfg.Citizens) != 5 {
		t.Fatalf("default topology: %d regions, %d citizens", len(cfg.Regions), len(cfg.Citizens))
	}
}

func TestInitTownDirKeepsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	if err := InitTownDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	custom := []byte("version: 1\nseed: 1\nphases: 2\nregions:\n  - id: plaza\ncitizens:\n  - id: mira\n    home: plaza\n")
	path := filepath.Join(dir, TownDir, ConfigFileName)
	if err := os.WriteFile(path, custom, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := InitTownDir(dir); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Phases != 2 {
		t.Fatalf("re-init clobbered the existing config: phases=%d", cfg.Phases)
	}
}

func TestParseRejectsBrokenTopology(t *testing.T) {
	cases := map[string]string{
		"unknown adjacency": "phases: 1\nregions:\n  - id: plaza\n    adjacent: [nowhere]\ncitizens:\n  - id: mira\n    home: plaza\n",
		"unknown home":      "phases: 1\nregions:\n  - id: plaza\ncitizens:\n  - id: mira\n    home: void\n",
		"duplicate region":  "phases: 1\nregions:\n  - id: plaza\n  - id: plaza\ncitizens:\n  - id: mira\n    home: plaza\n",
		"duplicate citizen": "phases: 1\nregions:\n  - id: plaza\ncitizens:\n  - id: mira\n    home: plaza\n  - id: mira\n    home: plaza\n",
		"no phases":         "phases: 0\nregions:\n  - id: plaza\ncitizens:\n  - id: mira\n    home: plaza\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}
}

func TestBuildMeshAndRoster(t *testing.T) {
	raw := `
phases: 3
regions:
  - id: plaza
    adjacent: [library]
    rumor_to: [library]
  - id: library
citizens:
  - id: mira
    name: Mira
    archetype: scholar
    home: library
  - id: tobin
    archetype: merchant
    home: plaza
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := cfg.BuildMesh()
	if err != nil {
		t.Fatalf("build mesh: %v", err)
	}
	if !m.Adjacent("plaza", "library") {
		t.Fatalf("expected plaza adjacent to library")
	}
	if !m.RumorReachable("plaza", "library") {
		t.Fatalf("expected rumor edge plaza->library")
	}
	if m.RumorReachable("library", "plaza") {
		t.Fatalf("rumor edges must stay directed")
	}
	roster, err := cfg.BuildRoster(m)
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}
	mira, ok := roster.Get("mira")
	if !ok || mira.Name != "Mira" || mira.Location != town.RegionID("library") {
		t.Fatalf("unexpected mira: %+v", mira)
	}
	tobin, ok := roster.Get("tobin")
	if !ok || tobin.Name != "tobin" {
		t.Fatalf("citizen name must default to id: %+v", tobin)
	}
	region, err := m.Locate("tobin")
	if err != nil || region != town.RegionID("plaza") {
		t.Fatalf("tobin placement: %s %v", region, err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := InitTownDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Phases = 20
	cfg.Timing.Speed = 2.0
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Phases != 20 || reloaded.Timing.Speed != 2.0 {
		t.Fatalf("changes lost on save: %+v", reloaded)
	}
	if len(reloaded.Regions) != len(cfg.Regions) || len(reloaded.Citizens) != len(cfg.Citizens) {
		t.Fatalf("topology lost on save")
	}
}

func TestJournalPathResolution(t *testing.T) {
	dir := t.TempDir()
	if err := InitTownDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.JournalPath(""); got != "" {
		t.Fatalf("empty journal entry must stay disabled, got %q", got)
	}
	want := filepath.Join(dir, TownDir, JournalDirName, "town.db")
	if got := cfg.JournalPath("town.db"); got != want {
		t.Fatalf("relative journal path: got %q want %q", got, want)
	}
	abs := filepath.Join(dir, "elsewhere.db")
	if got := cfg.JournalPath(abs); got != abs {
		t.Fatalf("absolute journal path must pass through, got %q", got)
	}
}

func TestGovernorConfigConversion(t *testing.T) {
	timing := TimingConfig{PhaseDurationMs: 5000, EventsPerPhase: 5, Speed: 1.5, MinEventDelayMs: 50, MaxEventDelayMs: 2000}
	gc := timing.GovernorConfig()
	if gc.PhaseDuration.Milliseconds() != 5000 || gc.EventsPerPhase != 5 || gc.Speed != 1.5 {
		t.Fatalf("conversion mismatch: %+v", gc)
	}
	if gc.MinEventDelay.Milliseconds() != 50 || gc.MaxEventDelay.Milliseconds() != 2000 {
		t.Fatalf("delay conversion mismatch: %+v", gc)
	}
}
