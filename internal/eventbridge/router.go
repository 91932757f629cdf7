// internal/eventbridge/router.go
//
// In-process fan-out of released town events. Observers subscribe to a
// topic — everything, one region, or one citizen — over bounded channels.
// Slow subscribers lose their oldest buffered event rather than stalling
// playback; late subscribers to the catch-all topic receive a bounded
// backlog. Delivery is best-effort by design: the governor treats the
// bridge as a sink whose failures are never fatal.

package eventbridge

import (
	"strings"
	"sync"

	"github.com/kgang/agenttown/internal/town"
)

const (
	defaultSubscriberCapacity = 100
	defaultBacklogLimit       = 50
	defaultDedupeWindow       = 1024
)

// Topic selects which events a subscription receives.
type Topic string

// TopicAll receives every released event.
const TopicAll Topic = "all"

// RegionTopic keys a subscription to events happening in one region.
func RegionTopic(id town.RegionID) Topic {
	return Topic("region:" + strings.TrimSpace(strings.ToLower(string(id))))
}

// CitizenTopic keys a subscription to events involving one citizen.
func CitizenTopic(id town.CitizenID) Topic {
	return Topic("citizen:" + strings.TrimSpace(strings.ToLower(string(id))))
}

// Logger records drop/diagnostic messages.
type Logger interface {
	Printf(format string, args ...any)
}

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// RouterWithLogger injects a logger for drop diagnostics.
func RouterWithLogger(logger Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// RouterWithSubscriberCapacity overrides the buffered channel size per
// subscriber.
func RouterWithSubscriberCapacity(capacity int) RouterOption {
	return func(r *Router) {
		if capacity > 0 {
			r.channelSize = capacity
		}
	}
}

// RouterWithBacklogLimit overrides the catch-all backlog size.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent event ids are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Router delivers released events to topic subscribers.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[Topic]map[*subscriber]struct{}
	backlog      map[Topic][]town.Event
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[Topic]map[*subscriber]struct{}{},
		backlog:      map[Topic][]town.Event{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Subscription is an active topic subscription.
type Subscription struct {
	Events <-chan town.Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Subscribe registers for events on a topic. Any backlog buffered for the
// topic is flushed to the new subscriber first.
func (r *Router) Subscribe(topic Topic) Subscription {
	sub := newSubscriber(r.channelSize, r.logger)
	var backlog []town.Event
	r.mu.Lock()
	if r.subscribers[topic] == nil {
		r.subscribers[topic] = map[*subscriber]struct{}{}
	}
	r.subscribers[topic][sub] = struct{}{}
	if existing := r.backlog[topic]; len(existing) > 0 {
		backlog = append(backlog, existing...)
		delete(r.backlog, topic)
	}
	r.mu.Unlock()
	for _, event := range backlog {
		sub.deliver(event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() { r.removeSubscriber(topic, sub) },
	}
}

// Publish satisfies the governor's Sink contract.
func (r *Router) Publish(event town.Event) error {
	r.Route(event)
	return nil
}

// Route delivers an event to every matching topic. Events seen before (by
// id) are dropped; the catch-all topic buffers a bounded backlog when no
// one is listening.
func (r *Router) Route(event town.Event) {
	if event.ID != "" && r.isDuplicate(event.ID) {
		return
	}
	for _, topic := range topicsFor(event) {
		r.routeTopic(topic, event)
	}
}

// topicsFor expands an event into the topics it matches.
func topicsFor(event town.Event) []Topic {
	topics := []Topic{TopicAll, RegionTopic(event.Region)}
	for _, id := range event.Participants {
		topics = append(topics, CitizenTopic(id))
	}
	return topics
}

func (r *Router) routeTopic(topic Topic, event town.Event) {
	r.mu.RLock()
	subs := r.snapshotSubscribers(topic)
	r.mu.RUnlock()
	if len(subs) == 0 {
		if topic == TopicAll {
			// Narrow topics would hoard events nobody asked for.
			r.bufferEvent(topic, event)
		}
		return
	}
	for _, sub := range subs {
		sub.deliver(event)
	}
}

func (r *Router) snapshotSubscribers(topic Topic) []*subscriber {
	live := r.subscribers[topic]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(topic Topic, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.subscribers[topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.subscribers, topic)
		}
	}
	sub.close()
}

func (r *Router) bufferEvent(topic Topic, event town.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.backlog[topic]
	if len(queue) >= r.backlogLimit {
		queue = queue[1:]
		if r.logger != nil {
			r.logger.Printf("eventbridge: backlog drop for %s (limit %d)", topic, r.backlogLimit)
		}
	}
	queue = append(queue, event)
	r.backlog[topic] = queue
}

func (r *Router) isDuplicate(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentIDs[eventID]; ok {
		return true
	}
	r.recentIDs[eventID] = struct{}{}
	r.recentOrder = append(r.recentOrder, eventID)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

type subscriber struct {
	ch      chan town.Event
	logger  Logger
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan town.Event, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan town.Event {
	return s.ch
}

// deliver enqueues the event, evicting the oldest buffered event when the
// subscriber is full. Playback never blocks on a slow observer.
func (s *subscriber) deliver(event town.Event) {
	if s.isClosed() {
		return
	}
	select {
	case s.ch <- event:
	default:
		oldest := <-s.ch
		s.ch <- event
		if s.logger != nil {
			s.logger.Printf("eventbridge: dropped %s/%s (queue overflow)", oldest.Operation, oldest.ID)
		}
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *subscriber) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}
