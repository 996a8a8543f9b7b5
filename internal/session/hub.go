package session

import (
	"sync"

	"salonbook/internal/watchdog"
)

type hubSubscriber struct {
	kinds map[watchdog.Interaction]bool
	fn    func(watchdog.Interaction)
}

// Hub fans interactions of one user out to subscribers. Handlers run
// without the hub lock held.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]hubSubscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]hubSubscriber)}
}

func (h *Hub) Subscribe(kinds []watchdog.Interaction, fn func(watchdog.Interaction)) func() {
	set := make(map[watchdog.Interaction]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = hubSubscriber{kinds: set, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Emit delivers an interaction to every subscriber interested in kind.
func (h *Hub) Emit(kind watchdog.Interaction) {
	h.mu.Lock()
	fns := make([]func(watchdog.Interaction), 0, len(h.subs))
	for _, s := range h.subs {
		if s.kinds[kind] {
			fns = append(fns, s.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// Listeners returns the number of attached subscribers.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
