package governor

import (
	"sync"
	"testing"
	"time"

	"github.com/kgang/agenttown/internal/citizen"
	"github.com/kgang/agenttown/internal/grammar"
	"github.com/kgang/agenttown/internal/mesh"
	"github.com/kgang/agenttown/internal/sim"
	"github.com/kgang/agenttown/internal/town"
)

type scriptStrategy struct {
	script map[int][]sim.Candidate
}

func (s scriptStrategy) SelectCandidates(phaseIndex int, _ *citizen.Roster, _ *mesh.Mesh) []sim.Candidate {
	return s.script[phaseIndex]
}

func greets(n int) []sim.Candidate {
	out := make([]sim.Candidate, n)
	for i := range out {
		out[i] = sim.Candidate{Operation: "greet", Participants: []town.CitizenID{"mira", "tobin"}}
	}
	return out
}

func newTestLoop(t *testing.T, script map[int][]sim.Candidate, phases int) *sim.Loop {
	t.Helper()
	m := mesh.New()
	m.AddRegion("plaza")
	roster := citizen.NewRoster()
	for _, id := range []town.CitizenID{"mira", "tobin"} {
		c := citizen.New(id, string(id), citizen.Preset("merchant"), "plaza")
		if err := roster.Add(c); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := m.Place(id, "plaza"); err != nil {
			t.Fatalf("place: %v", err)
		}
	}
	l, err := sim.New(grammar.Default(), m, roster, scriptStrategy{script: script}, phases,
		sim.WithWander(false),
		sim.WithSeed(3),
	)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	return l
}

// sleepLog records requested delays instead of waiting.
type sleepLog struct {
	mu       sync.Mutex
	delays   []time.Duration
	onSleep  func(n int)
	sleepNum int
}

func (s *sleepLog) sleep(d time.Duration) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.sleepNum++
	n := s.sleepNum
	hook := s.onSleep
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

func (s *sleepLog) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

func TestPacingNoDelayBeforeFirstEvent(t *testing.T) {
	l := newTestLoop(t, map[int][]sim.Candidate{0: greets(5)}, 1)
	log := &sleepLog{}
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g, err := New(l, Config{PhaseDuration: 5 * time.Second, EventsPerPhase: 5, Speed: 1.0},
		WithSleep(log.sleep),
		WithClock(func() time.Time { return fixed }),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ch, err := g.Run(1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var events []town.Event
	for evt := range ch {
		events = append(events, evt)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	delays := log.all()
	// 4 inter-event intervals (none before the first event) plus the
	// remaining phase budget; the clock is frozen so the full budget
	// remains.
	want := []time.Duration{time.Second, time.Second, time.Second, time.Second, 5 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("sleep %d: expected %s, got %s", i, want[i], delays[i])
		}
	}
	if got := g.Status(); got.Status != StatusStopped || got.TotalEvents != 5 {
		t.Fatalf("unexpected final status: %+v", got)
	}
}

func TestSpeedChangeAppliesToNextDelay(t *testing.T) {
	l := newTestLoop(t, map[int][]sim.Candidate{0: greets(5)}, 1)
	log := &sleepLog{}
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g, err := New(l, Config{PhaseDuration: 5 * time.Second, EventsPerPhase: 5, Speed: 1.0},
		WithSleep(log.sleep),
		WithClock(func() time.Time { return fixed }),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.onSleep = func(n int) {
		if n == 2 {
			g.SetSpeed(2.0)
		}
	}
	ch, err := g.Run(1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	count := 0
	for range ch {
		count++
	}
	if count != 5 {
		t.Fatalf("expected 5 events, got %d", count)
	}
	delays := log.all()
	// The already-computed second delay keeps the old speed; the change
	// shows up from the third delay on, and in the phase budget.
	want := []time.Duration{time.Second, time.Second, 500 * time.Millisecond, 500 * time.Millisecond, 2500 * time.Millisecond}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("sleep %d: expected %s, got %s (all: %v)", i, want[i], delays[i], delays)
		}
	}
}

func TestPauseFreezesDeliveryAndResumeContinues(t *testing.T) {
	l := newTestLoop(t, map[int][]sim.Candidate{0: greets(3)}, 1)
	log := &sleepLog{}
	g, err := New(l, Config{PhaseDuration: time.Millisecond, EventsPerPhase: 3, MinEventDelay: 0},
		WithSleep(log.sleep),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.onSleep = func(n int) {
		if n == 1 {
			g.Pause()
		}
	}
	ch, err := g.Run(1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	first := <-ch
	if first.Operation != "greet" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	waitForStatus(t, g, StatusPaused)
	select {
	case evt := <-ch:
		t.Fatalf("event released while paused: %+v", evt)
	case <-time.After(30 * time.Millisecond):
	}
	g.Resume()
	var rest []town.Event
	for evt := range ch {
		rest = append(rest, evt)
	}
	if len(rest) != 2 {
		t.Fatalf("expected the 2 buffered events after resume, got %d", len(rest))
	}
}

func TestStopTakesEffectAtNextBoundary(t *testing.T) {
	l := newTestLoop(t, map[int][]sim.Candidate{0: greets(3)}, 1)
	log := &sleepLog{}
	g, err := New(l, Config{PhaseDuration: time.Millisecond, EventsPerPhase: 3, MinEventDelay: 0},
		WithSleep(log.sleep),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.onSleep = func(n int) {
		if n == 1 {
			g.Stop()
		}
	}
	ch, err := g.Run(1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var events []town.Event
	for evt := range ch {
		events = append(events, evt)
	}
	if len(events) != 1 {
		t.Fatalf("expected playback to stop after the first event, got %d", len(events))
	}
	if got := g.Status(); got.Status != StatusStopped {
		t.Fatalf("expected stopped, got %s", got.Status)
	}
	if _, err := g.Run(1); err == nil {
		t.Fatalf("a stopped governor must not run again")
	}
}

func TestStopUnblocksAbandonedObserver(t *testing.T) {
	l := newTestLoop(t, map[int][]sim.Candidate{0: greets(3)}, 1)
	g, err := New(l, Config{PhaseDuration: time.Millisecond, EventsPerPhase: 3, MinEventDelay: 0},
		WithSleep(func(time.Duration) {}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ch, err := g.Run(1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Read a single event, then walk away without draining the channel.
	// Stop must still wind playback down even though the next send has
	// no reader.
	<-ch
	g.Stop()
	waitForStatus(t, g, StatusStopped)
}

func TestRunIsSingleUse(t *testing.T) {
	l := newTestLoop(t, nil, 1)
	g, err := New(l, Config{}, WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ch, err := g.Run(0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := g.Run(0); err == nil {
		t.Fatalf("second Run must fail")
	}
	for range ch {
	}
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Publish(town.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errSinkDown
}

var errSinkDown = errFixed("sink down")

type errFixed string

func (e errFixed) Error() string { return string(e) }

func TestSinkFailuresNeverInterruptPlayback(t *testing.T) {
	l := newTestLoop(t, map[int][]sim.Candidate{0: greets(3)}, 1)
	sink := &failingSink{}
	g, err := New(l, Config{PhaseDuration: time.Millisecond, EventsPerPhase: 3, MinEventDelay: 0},
		WithSleep(func(time.Duration) {}),
		WithSink(sink),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ch, err := g.Run(1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	count := 0
	for range ch {
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 events despite sink failures, got %d", count)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.calls != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", sink.calls)
	}
}

func TestConfigClamping(t *testing.T) {
	cfg := Config{PhaseDuration: -1, EventsPerPhase: -3, Speed: 50, MinEventDelay: -1, MaxEventDelay: -1}.Normalized()
	if cfg.PhaseDuration != DefaultPhaseDuration {
		t.Fatalf("phase duration not defaulted: %s", cfg.PhaseDuration)
	}
	if cfg.EventsPerPhase != DefaultEventsPerPhase {
		t.Fatalf("events per phase not defaulted: %d", cfg.EventsPerPhase)
	}
	if cfg.Speed != MaxSpeed {
		t.Fatalf("speed not clamped down: %f", cfg.Speed)
	}
	if ClampSpeed(-4) != MinSpeed {
		t.Fatalf("negative speed must clamp to MinSpeed")
	}
	if ClampSpeed(0.5) != 0.5 {
		t.Fatalf("in-range speed must pass through")
	}
}

func TestSpeedStepsStayClamped(t *testing.T) {
	l := newTestLoop(t, nil, 1)
	g, err := New(l, Config{Speed: 9.9}, WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	g.SpeedUp()
	if g.Speed() != MaxSpeed {
		t.Fatalf("speed up past max: %f", g.Speed())
	}
	g.SetSpeed(0.11)
	g.SlowDown()
	if g.Speed() != MinSpeed {
		t.Fatalf("slow down past min: %f", g.Speed())
	}
}

func waitForStatus(t *testing.T, g *Governor, want Status) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if g.Status().Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("governor never reached %s (now %s)", want, g.Status().Status)
}
