// cmd/town/main.go
//
// Headless simulation runner. It initializes the .town directory, builds
// the town from config (plus any archetype packs), and plays the run to
// stdout while serving observers over the configured websocket endpoint.

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/config"
	"github.com/kgang/agenttown/internal/eventbridge"
	"github.com/kgang/agenttown/internal/governor"
	"github.com/kgang/agenttown/internal/grammar"
	"github.com/kgang/agenttown/internal/journal"
	"github.com/kgang/agenttown/internal/logging"
	"github.com/kgang/agenttown/internal/mesh"
	"github.com/kgang/agenttown/internal/narrative"
	"github.com/kgang/agenttown/internal/sim"
	"github.com/kgang/agenttown/internal/town"
	"github.com/kgang/agenttown/internal/transport/ws"
	"github.com/kgang/agenttown/plugins"
)

func main() {
	var (
		dir     = flag.String("dir", "", "project directory hosting .town (default: working directory)")
		phases  = flag.Int("phases", 0, "override the configured phase count")
		speed   = flag.Float64("speed", 0, "override the configured playback speed")
		listen  = flag.String("listen", "", "override the websocket listen address")
		verify  = flag.Bool("verify", false, "verify the interaction laws and exit")
		initCmd = flag.Bool("init", false, "initialize the .town directory and exit")
	)
	flag.Parse()

	if err := run(*dir, *phases, *speed, *listen, *verify, *initCmd); err != nil {
		fmt.Fprintf(os.Stderr, "town: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string, phases int, speed float64, listen string, verify, initOnly bool) error {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		dir = cwd
	}
	if err := config.InitTownDir(dir); err != nil {
		return err
	}
	if initOnly {
		fmt.Printf("initialized %s\n", filepath.Join(dir, config.TownDir))
		return nil
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if phases > 0 {
		cfg.Phases = phases
	}
	if speed > 0 {
		cfg.Timing.Speed = speed
	}
	if listen != "" {
		cfg.Listen = listen
	}

	if verify {
		return verifyLaws()
	}

	logger, err := logging.New(cfg.TownDirPath())
	if err != nil {
		return err
	}
	defer logger.Close()

	m, err := cfg.BuildMesh()
	if err != nil {
		return err
	}
	archetypes, rules, err := loadPacks(cfg, logger)
	if err != nil {
		return err
	}
	roster, err := cfg.BuildRosterWith(m, archetypes)
	if err != nil {
		return err
	}

	strategy := sim.NewArchetypeStrategy(cfg.Seed, rules)
	loop, err := sim.New(grammar.Default(), m, roster, strategy, cfg.Phases,
		sim.WithSeed(cfg.Seed),
		sim.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	renderer, err := narrative.NewRenderer(func(id town.CitizenID) string {
		if c, ok := roster.Get(id); ok {
			return c.Name
		}
		return ""
	})
	if err != nil {
		return err
	}

	router := eventbridge.NewRouter(eventbridge.RouterWithLogger(logger))
	opts := []governor.Option{
		governor.WithLogger(logger),
		governor.WithSink(router),
	}

	if path := cfg.JournalPath(cfg.Journal.SQLite); path != "" {
		db, err := journal.OpenSQLite(path, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, governor.WithSink(db))
	}
	if jdir := cfg.JournalPath(cfg.Journal.JSONLDir); jdir != "" {
		eventLog := journal.NewEventLog(jdir)
		defer eventLog.Close()
		opts = append(opts, governor.WithSink(eventLog))
	}

	gov, err := governor.New(loop, cfg.Timing.GovernorConfig(), opts...)
	if err != nil {
		return err
	}

	if cfg.Listen != "" {
		if err := serveObservers(cfg, m, loop, router, gov, renderer, logger); err != nil {
			return err
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Printf("town: interrupt, stopping playback")
		gov.Stop()
	}()

	events, err := gov.Run(cfg.Phases)
	if err != nil {
		return err
	}
	for evt := range events {
		fmt.Println(renderer.Render(evt))
	}

	snap := gov.Status()
	fmt.Printf("run %s finished: %d events over %d phases\n", loop.RunID(), snap.TotalEvents, snap.PhaseIndex)
	return nil
}

func loadPacks(cfg *config.Config, logger *logging.Logger) (map[string]citizen.Archetype, sim.RuleSet, error) {
	dir := cfg.PluginsDir
	if dir == "" {
		return nil, sim.DefaultRules(), nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.TownDirPath(), dir)
	}
	packs, err := plugins.LoadPacks(dir)
	if err != nil {
		return nil, sim.RuleSet{}, err
	}
	for _, p := range packs {
		logger.Printf("town: loaded pack %s from %s", p.Pack.ID, p.Path)
	}
	archetypes, rules := plugins.Merge(packs)
	return archetypes, rules, nil
}

func verifyLaws() error {
	results := grammar.Default().VerifyLaws()
	failed := false
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("%-24s %s  %s\n", r.Name, status, r.Detail)
	}
	if failed {
		return fmt.Errorf("law verification failed")
	}
	return nil
}

func serveObservers(cfg *config.Config, m *mesh.Mesh, loop *sim.Loop, router *eventbridge.Router, gov *governor.Governor, renderer *narrative.Renderer, logger *logging.Logger) error {
	regions := make([]string, 0)
	for _, id := range m.Regions() {
		regions = append(regions, string(id))
	}
	srv, err := ws.NewServer(router, gov, renderer, ws.TownInfo{
		RunID:   loop.RunID(),
		Phases:  cfg.Phases,
		Regions: regions,
	}, logger)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", srv.Handler())
	go func() {
		logger.Printf("town: observers on ws://%s/watch", cfg.Listen)
		if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
			logger.Printf("town: observer server: %v", err)
		}
	}()
	return nil
}
