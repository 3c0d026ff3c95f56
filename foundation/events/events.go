// Package events allows for the registering and receiving of node events.
package events

import (
	"fmt"
	"strings"
	"sync"
)

// messageBuffer is the number of events a subscriber can fall behind
// before events are dropped for it. Websocket writes can take long.
const messageBuffer = 100

// subscriber is a registered receiver of events.
type subscriber struct {
	ch       chan string
	prefixes []string
}

// wants reports whether the event matches the subscriber's filter. A
// subscriber without prefixes receives every event.
func (sub subscriber) wants(event string) bool {
	if len(sub.prefixes) == 0 {
		return true
	}
	for _, prefix := range sub.prefixes {
		if strings.HasPrefix(event, prefix) {
			return true
		}
	}
	return false
}

// Events maintains a mapping of unique id and subscribers so goroutines
// can register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events value for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes every subscriber.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and returns a channel that receives the events
// starting with any of the prefixes. Acquiring a known id returns the
// existing channel.
func (evt *Events) Acquire(id string, prefixes ...string) <-chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.m[id]; exists {
		return sub.ch
	}

	sub := subscriber{
		ch:       make(chan string, messageBuffer),
		prefixes: prefixes,
	}
	evt.m[id] = sub

	return sub.ch
}

// Release closes and removes the subscriber for the id.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)

	return nil
}

// Count returns the number of registered subscribers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals an event to every matching subscriber. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(event string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !sub.wants(event) {
			continue
		}

		select {
		case sub.ch <- event:
		default:
		}
	}
}
