package events

import (
	"sync"
	"time"
)

// EventType names the status transitions the broker carries, mirroring
// the Event rows pkg/storage persists.
type EventType string

const (
	EventClusterCreating EventType = "cluster.creating"
	EventClusterActive   EventType = "cluster.active"
	EventClusterUpdating EventType = "cluster.updating"
	EventClusterDeleting EventType = "cluster.deleting"
	EventClusterDeleted  EventType = "cluster.deleted"
	EventClusterError    EventType = "cluster.error"

	EventNodeJoined EventType = "node.joined"
	EventNodeLeft   EventType = "node.left"
	EventNodeActive EventType = "node.active"
	EventNodeError  EventType = "node.error"

	EventActionReady     EventType = "action.ready"
	EventActionRunning   EventType = "action.running"
	EventActionSucceeded EventType = "action.succeeded"
	EventActionFailed    EventType = "action.failed"
	EventActionCancelled EventType = "action.cancelled"
	EventActionTimeout   EventType = "action.timeout"
)

// Event is a live notification broadcast to subscribers as state
// transitions occur; it is a lighter-weight cousin of types.Event, the
// durable row pkg/storage appends.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Subject   string // cluster/node/action id
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker fans out published events to every live subscriber, dropping
// delivery to any subscriber whose buffer is full rather than blocking
// the publisher.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
