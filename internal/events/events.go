// Package events fans lifecycle transition records out to subscribers.
package events

import (
	"sync"
	"time"

	"salonbook/internal/models"
	"salonbook/shared/logging"
)

// AnyStatus subscribes a handler to every transition.
const AnyStatus models.Status = "*"

// Handler reacts to a transition record.
type Handler func(rec models.TransitionRecord) error

type subscriber struct {
	name    string
	handler Handler
}

// Bus provides in-process pub/sub for transition records.
type Bus struct {
	subscribers map[models.Status][]subscriber
	mu          sync.RWMutex
	logger      logging.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subscribers: make(map[models.Status][]subscriber),
		logger:      logging.OrNop(logger),
	}
}

// Subscribe registers a handler for transitions into status, or for every
// transition with AnyStatus.
func (b *Bus) Subscribe(name string, status models.Status, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[status] = append(b.subscribers[status], subscriber{name: name, handler: handler})
}

// Publish notifies subscribers. Handlers run synchronously in subscription
// order; a failing handler is logged and does not stop the others.
func (b *Bus) Publish(rec models.TransitionRecord) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subscribers[rec.To]...)
	subs = append(subs, b.subscribers[AnyStatus]...)
	b.mu.RUnlock()

	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	for _, s := range subs {
		if err := s.handler(rec); err != nil {
			b.logger.Error("transition handler failed",
				"handler", s.name,
				"booking_id", rec.BookingID,
				"to", string(rec.To),
				"error", err,
			)
		}
	}
}
