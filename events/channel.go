// Package events is a small typed publish/subscribe channel used to signal
// domain events (logout, resource not found) to listeners such as a router,
// without the emitter importing them.
package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel fans an event out to every subscriber. Listeners run synchronously
// on the emitting goroutine, in subscription order. A panicking listener is
// recovered and logged so it cannot break the emitter or other listeners.
type Channel[T any] struct {
	name      string
	mu        sync.RWMutex
	listeners []listener[T]
	nextID    int
}

type listener[T any] struct {
	id int
	fn func(T)
}

func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{name: name}
}

func (c *Channel[T]) Name() string {
	return c.name
}

// Subscribe adds fn and returns a function that removes it.
func (c *Channel[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener[T]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers event to a snapshot of the current listeners.
func (c *Channel[T]) Emit(event T) {
	c.mu.RLock()
	snapshot := make([]listener[T], len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.RUnlock()

	for _, l := range snapshot {
		c.deliver(l, event)
	}
}

func (c *Channel[T]) deliver(l listener[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("channel", c.name).Str("panic", fmt.Sprint(r)).Msg("event listener panicked")
		}
	}()
	l.fn(event)
}

// Len is the number of current subscribers.
func (c *Channel[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}
