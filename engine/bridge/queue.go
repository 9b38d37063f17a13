package bridge

import "sync"

// Queue is an unbounded FIFO. Send never blocks; Drain returns everything queued so far.
// Safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// Send appends v to the queue.
//
// Parameters:
//   - v: the message to enqueue
func (q *Queue[T]) Send(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Drain removes and returns every queued message in send order.
//
// Returns:
//   - []T: the messages, nil when the queue is empty
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Len returns the number of queued messages.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Bridge pairs the command and event queues.
type Bridge struct {
	commands Queue[Command]
	events   Queue[Event]
}

// New creates an empty bridge.
//
// Returns:
//   - *Bridge: the bridge
func New() *Bridge {
	return &Bridge{}
}

// Main returns the simulation-side endpoint.
func (b *Bridge) Main() MainEndpoint {
	return MainEndpoint{b: b}
}

// Render returns the render-side endpoint.
func (b *Bridge) Render() RenderEndpoint {
	return RenderEndpoint{b: b}
}

// MainEndpoint sends commands and receives events.
type MainEndpoint struct {
	b *Bridge
}

// Send queues a command for the render side.
func (m MainEndpoint) Send(c Command) {
	m.b.commands.Send(c)
}

// Events drains every event queued by the render side.
func (m MainEndpoint) Events() []Event {
	return m.b.events.Drain()
}

// RenderEndpoint receives commands and sends events.
type RenderEndpoint struct {
	b *Bridge
}

// Commands drains every command queued by the simulation side.
func (r RenderEndpoint) Commands() []Command {
	return r.b.commands.Drain()
}

// Emit queues an event for the simulation side.
func (r RenderEndpoint) Emit(e Event) {
	r.b.events.Send(e)
}
