package events

import "sync"

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-target pub/sub event bus with support for global subscribers.
// Game code emits structured events; each subscriber (session, scrollback
// writer, logger) encodes them per-transport.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	global      []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Subscriber)}
}

// Subscribe registers a subscriber for a target object's events.
func (b *Bus) Subscribe(target string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[target] = append(b.subscribers[target], sub)
}

// Unsubscribe removes a subscriber for a target.
func (b *Bus) Unsubscribe(target string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[target]
	for i, s := range subs {
		if s == sub {
			b.subscribers[target] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[target]) == 0 {
		delete(b.subscribers, target)
	}
}

// SubscribeGlobal registers a subscriber that receives every event.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends an event to the target's subscribers and all global
// subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := b.subscribers[ev.Target]
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// EmitTo sends an event to a specific target (overriding ev.Target).
func (b *Bus) EmitTo(target string, ev Event) {
	ev.Target = target
	b.Emit(ev)
}

// HasSubscribers reports whether any live subscriber exists for a target.
func (b *Bus) HasSubscribers(target string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers[target] {
		if !s.Closed() {
			return true
		}
	}
	return false
}

// TargetSubscribers returns the number of subscribers for a target.
func (b *Bus) TargetSubscribers(target string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[target])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for target, subs := range b.subscribers {
		var active []Subscriber
		for _, s := range subs {
			if !s.Closed() {
				active = append(active, s)
			}
		}
		if len(active) == 0 {
			delete(b.subscribers, target)
		} else {
			b.subscribers[target] = active
		}
	}

	var activeGlobal []Subscriber
	for _, s := range b.global {
		if !s.Closed() {
			activeGlobal = append(activeGlobal, s)
		}
	}
	b.global = activeGlobal
}
