package repository

import (
	"context"
	"sync"

	"github.com/Ramsey-B/clover/pkg/database"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

type Event[E any] struct {
	Type     EventType
	Entities []E
}

// Listener observes committed changes. It runs synchronously on the goroutine
// that committed, so it should hand slow work off.
type Listener[E any] func(ctx context.Context, event Event[E])

// Notifier fans lifecycle events out to registered listeners.
type Notifier[E any] struct {
	mu        sync.RWMutex
	listeners map[EventType][]Listener[E]
}

func NewNotifier[E any]() *Notifier[E] {
	return &Notifier[E]{
		listeners: make(map[EventType][]Listener[E]),
	}
}

func (n *Notifier[E]) On(eventType EventType, listener Listener[E]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[eventType] = append(n.listeners[eventType], listener)
}

func (n *Notifier[E]) OnCreated(listener Listener[E]) {
	n.On(EventCreated, listener)
}

func (n *Notifier[E]) OnUpdated(listener Listener[E]) {
	n.On(EventUpdated, listener)
}

func (n *Notifier[E]) OnDeleted(listener Listener[E]) {
	n.On(EventDeleted, listener)
}

// Emit delivers the event to every listener of its type now.
func (n *Notifier[E]) Emit(ctx context.Context, eventType EventType, entities ...E) {
	if len(entities) == 0 {
		return
	}

	n.mu.RLock()
	listeners := append([]Listener[E](nil), n.listeners[eventType]...)
	n.mu.RUnlock()

	event := Event[E]{Type: eventType, Entities: entities}
	for _, listener := range listeners {
		listener(ctx, event)
	}
}

// EmitAfterCommit delivers the event once the transaction carried by ctx
// commits, or immediately when there is none. Nothing is delivered if the
// transaction rolls back.
func (n *Notifier[E]) EmitAfterCommit(ctx context.Context, eventType EventType, entities ...E) {
	tx, ok := database.TxFromContext(ctx)
	if !ok {
		n.Emit(ctx, eventType, entities...)
		return
	}
	tx.OnCommit(func() {
		n.Emit(ctx, eventType, entities...)
	})
}
