// internal/config/config.go
//
// Configuration and the .town directory structure. Every project that
// hosts a town gets a .town/ folder with config.yaml, logs/, and journal/.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/governor"
	"github.com/kgang/agenttown/internal/mesh"
	"github.com/kgang/agenttown/internal/town"
)

const (
	// TownDir is the directory created in each hosting project.
	TownDir = ".town"
	// ConfigFileName is the config file inside TownDir.
	ConfigFileName = "config.yaml"
	// JournalDirName holds sqlite and jsonl journals.
	JournalDirName = "journal"
)

const defaultConfigYAML = `# agent-town configuration
version: 1

# Seed drives the wander/settle passes and the default strategy.
seed: 7

# Total simulation phases; dayparts cycle morning -> midday -> evening -> night.
phases: 12

regions:
  - id: plaza
    adjacent: [market, library]
    rumor_to: [library, market]
  - id: market
    adjacent: [plaza, orchard]
    rumor_to: [plaza]
  - id: library
    adjacent: [plaza]
    rumor_to: []
  - id: orchard
    adjacent: [market]
    rumor_to: []

citizens:
  - id: mira
    name: Mira
    archetype: scholar
    home: library
  - id: tobin
    name: Tobin
    archetype: merchant
    home: market
  - id: wren
    name: Wren
    archetype: gossipmonger
    home: plaza
  - id: ansel
    name: Ansel
    archetype: hermit
    home: orchard
  - id: petra
    name: Petra
    archetype: reveler
    home: plaza

timing:
  phase_duration_ms: 5000
  events_per_phase: 5
  speed: 1.0
  min_event_delay_ms: 50
  max_event_delay_ms: 2000

# Websocket observer endpoint; empty disables the stream server.
listen: ""

journal:
  # Relative paths resolve under .town/journal; empty disables a sink.
  sqlite: town.db
  jsonl_dir: ""

# Directory scanned for strategy rule plugins (yaml or go files).
plugins_dir: ""
`

// RegionConfig declares one region and its outgoing edges.
type RegionConfig struct {
	ID       string   `yaml:"id"`
	Adjacent []string `yaml:"adjacent,omitempty"`
	RumorTo  []string `yaml:"rumor_to,omitempty"`
	Boundary []string `yaml:"boundary,omitempty"`
}

// CitizenConfig declares one citizen of the roster.
type CitizenConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Archetype string `yaml:"archetype"`
	Home      string `yaml:"home"`
}

// TimingConfig mirrors the governor's tuning surface in milliseconds.
type TimingConfig struct {
	PhaseDurationMs int     `yaml:"phase_duration_ms"`
	EventsPerPhase  int     `yaml:"events_per_phase"`
	Speed           float64 `yaml:"speed"`
	MinEventDelayMs int     `yaml:"min_event_delay_ms"`
	MaxEventDelayMs int     `yaml:"max_event_delay_ms"`
}

// GovernorConfig converts the timing block; the governor clamps whatever
// comes out.
func (t TimingConfig) GovernorConfig() governor.Config {
	return governor.Config{
		PhaseDuration:  time.Duration(t.PhaseDurationMs) * time.Millisecond,
		EventsPerPhase: t.EventsPerPhase,
		Speed:          t.Speed,
		MinEventDelay:  time.Duration(t.MinEventDelayMs) * time.Millisecond,
		MaxEventDelay:  time.Duration(t.MaxEventDelayMs) * time.Millisecond,
	}
}

// JournalConfig selects persistence sinks.
type JournalConfig struct {
	SQLite   string `yaml:"sqlite,omitempty"`
	JSONLDir string `yaml:"jsonl_dir,omitempty"`
}

// Config is the parsed .town/config.yaml.
type Config struct {
	Version    int             `yaml:"version"`
	Seed       int64           `yaml:"seed"`
	Phases     int             `yaml:"phases"`
	Regions    []RegionConfig  `yaml:"regions"`
	Citizens   []CitizenConfig `yaml:"citizens"`
	Timing     TimingConfig    `yaml:"timing"`
	Listen     string          `yaml:"listen,omitempty"`
	Journal    JournalConfig   `yaml:"journal"`
	PluginsDir string          `yaml:"plugins_dir,omitempty"`

	projectDir string
}

// InitTownDir ensures .town/, logs/, journal/, and a default config file
// exist under projectDir.
func InitTownDir(projectDir string) error {
	base := filepath.Join(projectDir, TownDir)
	for _, dir := range []string{base, filepath.Join(base, "logs"), filepath.Join(base, JournalDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	path := filepath.Join(base, ConfigFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
			return fmt.Errorf("config: write default config: %w", err)
		}
	}
	return nil
}

// Load reads and validates .town/config.yaml under projectDir.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, TownDir, ConfigFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.projectDir = projectDir
	return cfg, nil
}

// Save writes the config back to .town/config.yaml under projectDir.
func (c *Config) Save(projectDir string) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	path := filepath.Join(projectDir, TownDir, ConfigFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.projectDir = projectDir
	return nil
}

// Parse decodes and validates a config payload.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Phases < 1 {
		return fmt.Errorf("phases must be >= 1, got %d", c.Phases)
	}
	if len(c.Regions) == 0 {
		return errors.New("at least one region is required")
	}
	if len(c.Citizens) == 0 {
		return errors.New("at least one citizen is required")
	}
	known := map[string]struct{}{}
	for _, r := range c.Regions {
		if r.ID == "" {
			return errors.New("region id is required")
		}
		if _, dup := known[r.ID]; dup {
			return fmt.Errorf("duplicate region %q", r.ID)
		}
		known[r.ID] = struct{}{}
	}
	for _, r := range c.Regions {
		for _, edge := range append(append(append([]string{}, r.Adjacent...), r.RumorTo...), r.Boundary...) {
			if _, ok := known[edge]; !ok {
				return fmt.Errorf("region %q references unknown region %q", r.ID, edge)
			}
		}
	}
	seen := map[string]struct{}{}
	for _, c2 := range c.Citizens {
		if c2.ID == "" {
			return errors.New("citizen id is required")
		}
		if _, dup := seen[c2.ID]; dup {
			return fmt.Errorf("duplicate citizen %q", c2.ID)
		}
		seen[c2.ID] = struct{}{}
		if _, ok := known[c2.Home]; !ok {
			return fmt.Errorf("citizen %q lives in unknown region %q", c2.ID, c2.Home)
		}
	}
	return nil
}

// JournalPath resolves a journal entry relative to .town/journal.
func (c *Config) JournalPath(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.projectDir, TownDir, JournalDirName, name)
}

// TownDirPath returns the resolved .town directory.
func (c *Config) TownDirPath() string {
	return filepath.Join(c.projectDir, TownDir)
}

// BuildMesh constructs the region graph the config describes.
func (c *Config) BuildMesh() (*mesh.Mesh, error) {
	m := mesh.New()
	for _, r := range c.Regions {
		m.AddRegion(town.RegionID(r.ID))
	}
	for _, r := range c.Regions {
		for _, other := range r.Adjacent {
			if err := m.Connect(town.RegionID(r.ID), town.RegionID(other)); err != nil {
				return nil, fmt.Errorf("config: adjacency %s-%s: %w", r.ID, other, err)
			}
		}
		for _, other := range r.Boundary {
			if err := m.SetBoundary(town.RegionID(r.ID), town.RegionID(other)); err != nil {
				return nil, fmt.Errorf("config: boundary %s-%s: %w", r.ID, other, err)
			}
		}
		for _, other := range r.RumorTo {
			if err := m.AllowRumor(town.RegionID(r.ID), town.RegionID(other)); err != nil {
				return nil, fmt.Errorf("config: rumor %s->%s: %w", r.ID, other, err)
			}
		}
	}
	return m, nil
}

// BuildRoster constructs and places the citizens the config describes,
// using the built-in archetype presets.
func (c *Config) BuildRoster(m *mesh.Mesh) (*citizen.Roster, error) {
	return c.BuildRosterWith(m, nil)
}

// BuildRosterWith builds the roster against an extended archetype lookup
// (from packs); names absent from the lookup fall back to the presets.
func (c *Config) BuildRosterWith(m *mesh.Mesh, archetypes map[string]citizen.Archetype) (*citizen.Roster, error) {
	roster := citizen.NewRoster()
	for _, spec := range c.Citizens {
		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		arch, ok := archetypes[spec.Archetype]
		if !ok {
			arch = citizen.Preset(spec.Archetype)
		}
		cz := citizen.New(town.CitizenID(spec.ID), name, arch, town.RegionID(spec.Home))
		if err := roster.Add(cz); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := m.Place(cz.ID, cz.Location); err != nil {
			return nil, fmt.Errorf("config: place %s: %w", spec.ID, err)
		}
	}
	return roster, nil
}
