// Package notify carries state-change and failure events from the stores to
// whatever is drawing them.
package notify

import (
	"sync"

	"docchat/internal/model"
	"docchat/pkg/logger"
)

type Kind int

const (
	// Render means some observable state changed. Message, when set, is an
	// informational line for the user.
	Render Kind = iota
	// Selected carries the outcome of switching sessions. An empty SessionID
	// means nothing is selected any more.
	Selected
	// Failure carries a user-facing Message and the underlying Err.
	Failure
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Selected:
		return "selected"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind      Kind
	Source    string
	Message   string
	Err       error
	SessionID string
	Detail    *model.SessionDetail
}

type Listener func(Event)

// Bus is a synchronous fan-out of events. Listeners run on the publishing
// goroutine, in subscription order, and may publish again.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers l and returns a function removing it again.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.listeners {
		if s.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	snapshot := make([]subscription, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, s := range snapshot {
		b.deliver(s.fn, e)
	}
}

func (b *Bus) deliver(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("listener panicked on %s event from %s: %v", e.Kind, e.Source, r)
		}
	}()
	fn(e)
}

// Changed publishes a render event without a message.
func (b *Bus) Changed(source string) {
	b.Publish(Event{Kind: Render, Source: source})
}

// Info publishes a render event carrying a message for the user.
func (b *Bus) Info(source, msg string) {
	b.Publish(Event{Kind: Render, Source: source, Message: msg})
}

// Fail publishes a failure event.
func (b *Bus) Fail(source, msg string, err error) {
	b.Publish(Event{Kind: Failure, Source: source, Message: msg, Err: err})
}
