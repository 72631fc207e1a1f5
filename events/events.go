// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events delivers wallet notifications to connected pages.
package events

import (
	"sync"

	log "github.com/inconshreveable/log15"
)

// Event names pages can receive.
const (
	Disconnect     = "DISCONNECT"
	Uninstall      = "UNINSTALL"
	AccountChanged = "ACCOUNT_CHANGED"
)

// Event is the outbound envelope. Source identifies the emitting wallet so
// pages can ignore look-alikes.
type Event struct {
	Event  string      `json:"event"`
	Data   interface{} `json:"data"`
	Source string      `json:"source"`
}

// Observer receives every emitted event. Notify must not block.
type Observer interface {
	Notify(e Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// Emitter is what the rest of the wallet uses to publish.
type Emitter interface {
	Emit(name string, data interface{})
}

var _ Emitter = (*Registry)(nil)

// Registry fans events out to subscribed observers.
type Registry struct {
	source string

	lock      sync.RWMutex
	next      uint64
	observers map[uint64]Observer
	closed    bool

	log log.Logger
}

func NewRegistry(source string) *Registry {
	return &Registry{
		source:    source,
		observers: make(map[uint64]Observer),
		log:       log.New("module", "events"),
	}
}

// Subscribe registers o until the returned function is called. Subscribing
// to a closed registry is a no-op.
func (r *Registry) Subscribe(o Observer) (unsubscribe func()) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return func() {}
	}
	id := r.next
	r.next++
	r.observers[id] = o

	var once sync.Once
	return func() {
		once.Do(func() {
			r.lock.Lock()
			delete(r.observers, id)
			r.lock.Unlock()
		})
	}
}

// Emit stamps the registry's source on the event and delivers it.
func (r *Registry) Emit(name string, data interface{}) {
	e := Event{Event: name, Data: data, Source: r.source}

	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.closed {
		return
	}
	r.log.Debug("emitting event", "event", name, "observers", len(r.observers))
	for _, o := range r.observers {
		o.Notify(e)
	}
}

// Close announces UNINSTALL and drops every observer.
func (r *Registry) Close() {
	r.Emit(Uninstall, nil)

	r.lock.Lock()
	defer r.lock.Unlock()
	r.closed = true
	r.observers = make(map[uint64]Observer)
}

// Len is the number of subscribed observers.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.observers)
}
