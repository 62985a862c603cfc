package jobserver

import (
	"log/slog"
	"sync"

	"github.com/dupctl/dupctl/models"
)

// EventType names one of the Job Server's typed event-bus channels (spec.md
// §9 design note: "a typed event bus with named channels").
type EventType string

const (
	EventCreated   EventType = "job:created"
	EventStarted   EventType = "job:started"
	EventCompleted EventType = "job:completed"
	EventFailed    EventType = "job:failed"
	EventCancelled EventType = "job:cancelled"
	EventPaused    EventType = "job:paused"
	EventResumed   EventType = "job:resumed"
	EventMetrics   EventType = "metrics:updated"
)

// Event is a single point-in-time notification emitted by the Job Server.
type Event struct {
	Type    EventType      `json:"type"`
	Job     *models.Job    `json:"job,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Listener receives events for the channel(s) it was registered against.
type Listener func(Event)

// bus fans events out to listeners registered per channel. Delivery is
// synchronous and best-effort: a panicking listener is caught and logged,
// never allowed to interrupt the scheduler (spec.md §4.1 "Failure-to-emit
// must not kill the server").
type bus struct {
	mu        sync.Mutex
	listeners map[EventType][]Listener
}

func newBus() *bus {
	return &bus{listeners: make(map[EventType][]Listener)}
}

// Subscribe registers fn to run, in registration order alongside any other
// listeners on the same channel, whenever an event of typ is emitted.
// Listeners registered after an emission never receive that emission.
func (b *bus) Subscribe(typ EventType, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[typ] = append(b.listeners[typ], fn)
}

// emit delivers evt synchronously to every listener registered for evt.Type
// at the time of the call.
func (b *bus) emit(evt Event) {
	b.mu.Lock()
	fns := append([]Listener(nil), b.listeners[evt.Type]...)
	b.mu.Unlock()

	for _, fn := range fns {
		safeInvoke(fn, evt)
	}
}

func safeInvoke(fn Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("jobserver: event listener panicked", "event", evt.Type, "recover", r)
		}
	}()
	fn(evt)
}
