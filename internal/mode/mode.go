// Package mode broadcasts which exclusive click tool of a viewer is active.
package mode

import "sync"

// EventName is the name of the broadcast mode change.
const EventName = "toggleClickInteraction"

// Event announces that the tool Name became active or inactive.
type Event struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Handler receives broadcast events. Every handler sees every event and decides
// from Name whether it is the addressed tool.
type Handler func(Event)

// Coordinator is a small synchronous pub/sub for mode events.
type Coordinator struct {
	mu       sync.Mutex
	handlers map[int]Handler
	order    []int
	next     int
	last     *Event
}

// NewCoordinator creates a coordinator without subscribers.
func NewCoordinator() *Coordinator {
	return &Coordinator{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function removing it. Earlier events are not
// replayed; use Last for the current state.
func (c *Coordinator) Subscribe(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.handlers[id] = h
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// SetActive broadcasts that the tool name became active or inactive. Handlers run
// synchronously in subscription order, outside the coordinator lock.
func (c *Coordinator) SetActive(name string, active bool) {
	ev := Event{Name: name, Active: active}
	c.mu.Lock()
	c.last = &ev
	hs := make([]Handler, 0, len(c.order))
	for _, id := range c.order {
		hs = append(hs, c.handlers[id])
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

// Last returns the most recent event, if any.
func (c *Coordinator) Last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Event{}, false
	}
	return *c.last, true
}
