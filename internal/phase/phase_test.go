package phase

import (
	"errors"
	"testing"
)

func TestExpressiveSignalsMoveToSocializing(t *testing.T) {
	signals := []Signal{
		Greet{Target: "tobin"},
		Gossip{Topic: "the harvest"},
		Trade{Offered: 2, OfferedGood: "bread", Wanted: 1, WantedGood: "coin"},
		Dispute{Subject: "the fence line"},
		Celebrate{Occasion: "midsummer"},
		Teach{Skill: "weaving"},
	}
	for _, sig := range signals {
		for _, from := range []Phase{Idle, Socializing, Working, Reflecting} {
			next, out, err := Transition(from, sig)
			if err != nil {
				t.Fatalf("%s from %s: %v", sig.Op(), from, err)
			}
			if next != Socializing {
				t.Fatalf("%s from %s: expected socializing, got %s", sig.Op(), from, next)
			}
			if out.Kind == "" {
				t.Fatalf("%s: expected a non-empty outcome kind", sig.Op())
			}
		}
	}
}

func TestIntrospectiveSignalsMoveToReflecting(t *testing.T) {
	for _, sig := range []Signal{Solo{Pursuit: "whittling"}, Mourn{Departed: "old Wren"}} {
		next, _, err := Transition(Working, sig)
		if err != nil {
			t.Fatalf("%s: %v", sig.Op(), err)
		}
		if next != Reflecting {
			t.Fatalf("%s: expected reflecting, got %s", sig.Op(), next)
		}
	}
}

func TestObservationalSignalsLeavePhaseUnchanged(t *testing.T) {
	for _, from := range []Phase{Idle, Socializing, Working, Reflecting} {
		next, out, err := Transition(from, Identity{})
		if err != nil {
			t.Fatalf("identity from %s: %v", from, err)
		}
		if next != from {
			t.Fatalf("identity changed phase %s -> %s", from, next)
		}
		if out.Kind != "observation" {
			t.Fatalf("expected observation outcome, got %q", out.Kind)
		}
		next, _, err = Transition(from, Trace{Label: "probe"})
		if err != nil {
			t.Fatalf("trace from %s: %v", from, err)
		}
		if next != from {
			t.Fatalf("trace changed phase %s -> %s", from, next)
		}
	}
}

func TestRestingRejectsEverySignal(t *testing.T) {
	signals := []Signal{
		Greet{}, Gossip{}, Trade{}, Dispute{}, Celebrate{}, Teach{},
		Solo{}, Mourn{}, Identity{}, Trace{},
	}
	for _, sig := range signals {
		next, _, err := Transition(Resting, sig)
		if !errors.Is(err, ErrResting) {
			t.Fatalf("%s against resting: expected ErrResting, got %v", sig.Op(), err)
		}
		if next != Resting {
			t.Fatalf("%s mutated a resting phase to %s", sig.Op(), next)
		}
	}
}

func TestTransitionIsDeterministic(t *testing.T) {
	sig := Gossip{Topic: "the new well"}
	firstPhase, firstOut, err := Transition(Idle, sig)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	for i := 0; i < 50; i++ {
		p, out, err := Transition(Idle, sig)
		if err != nil {
			t.Fatalf("repeat %d: %v", i, err)
		}
		if p != firstPhase || out != firstOut {
			t.Fatalf("repeat %d: non-deterministic result %v %v", i, p, out)
		}
	}
}

func TestForOperationCoversCatalog(t *testing.T) {
	names := []string{"greet", "gossip", "trade", "dispute", "celebrate", "teach", "solo", "mourn", "identity", "trace"}
	for _, name := range names {
		sig, ok := ForOperation(name, "detail", "tobin")
		if !ok {
			t.Fatalf("no signal for %s", name)
		}
		if sig.Op() != name {
			t.Fatalf("signal for %s reports op %s", name, sig.Op())
		}
	}
	if _, ok := ForOperation("juggle", "", ""); ok {
		t.Fatalf("unknown operation produced a signal")
	}
}
