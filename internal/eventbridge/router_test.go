package eventbridge

import (
	"fmt"
	"testing"

	"github.com/kgang/agenttown/internal/town"
)

func evt(id string, op string, region town.RegionID, participants ...town.CitizenID) town.Event {
	return town.Event{ID: id, Operation: op, Region: region, Participants: participants}
}

func TestRouterBuffersBacklogAndFlushes(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(4))
	router.Route(evt("evt-1", "greet", "plaza", "mira", "tobin"))
	router.Route(evt("evt-2", "gossip", "plaza", "mira", "tobin"))
	sub := router.Subscribe(TopicAll)
	defer sub.Close()
	got1 := <-sub.Events
	if got1.ID != "evt-1" {
		t.Fatalf("expected first buffered event, got %s", got1.ID)
	}
	got2 := <-sub.Events
	if got2.ID != "evt-2" {
		t.Fatalf("expected second buffered event, got %s", got2.ID)
	}
}

func TestRouterDedupeByEventID(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe(TopicAll)
	defer sub.Close()
	event := evt("evt-1", "greet", "plaza", "mira")
	router.Route(event)
	router.Route(event)
	select {
	case got := <-sub.Events:
		if got.ID != "evt-1" {
			t.Fatalf("unexpected event: %s", got.ID)
		}
	default:
		t.Fatalf("expected first delivery")
	}
	select {
	case <-sub.Events:
		t.Fatalf("duplicate event delivered")
	default:
	}
}

func TestRouterTopicFiltering(t *testing.T) {
	router := NewRouter()
	plaza := router.Subscribe(RegionTopic("plaza"))
	defer plaza.Close()
	mira := router.Subscribe(CitizenTopic("mira"))
	defer mira.Close()
	router.Route(evt("evt-1", "greet", "plaza", "mira", "tobin"))
	router.Route(evt("evt-2", "solo", "library", "wren"))
	select {
	case got := <-plaza.Events:
		if got.ID != "evt-1" {
			t.Fatalf("plaza topic got %s", got.ID)
		}
	default:
		t.Fatalf("plaza subscriber missed its event")
	}
	select {
	case got := <-plaza.Events:
		t.Fatalf("plaza received foreign event %s", got.ID)
	default:
	}
	select {
	case got := <-mira.Events:
		if got.ID != "evt-1" {
			t.Fatalf("citizen topic got %s", got.ID)
		}
	default:
		t.Fatalf("citizen subscriber missed its event")
	}
}

func TestRouterDropsOldestOnOverflow(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1))
	sub := router.Subscribe(TopicAll)
	defer sub.Close()
	router.Route(evt("evt-1", "greet", "plaza", "mira"))
	router.Route(evt("evt-2", "gossip", "plaza", "mira"))
	got := <-sub.Events
	if got.ID != "evt-2" {
		t.Fatalf("expected the newest event to survive, got %s", got.ID)
	}
}

func TestRouterBacklogIsBounded(t *testing.T) {
	router := NewRouter(RouterWithBacklogLimit(2), RouterWithSubscriberCapacity(8))
	for i := 0; i < 5; i++ {
		router.Route(evt(fmt.Sprintf("evt-%d", i), "greet", "plaza", "mira"))
	}
	sub := router.Subscribe(TopicAll)
	defer sub.Close()
	first := <-sub.Events
	if first.ID != "evt-3" {
		t.Fatalf("expected oldest surviving backlog entry evt-3, got %s", first.ID)
	}
	second := <-sub.Events
	if second.ID != "evt-4" {
		t.Fatalf("expected evt-4, got %s", second.ID)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe(TopicAll)
	sub.Close()
	// Routing after close must not panic or deliver.
	router.Route(evt("evt-1", "greet", "plaza", "mira"))
	if _, ok := <-sub.Events; ok {
		t.Fatalf("closed subscription still delivered")
	}
}
