// Package agenda holds the in-memory booking snapshot the filter and
// lifecycle layers read from.
package agenda

import (
	"sync"

	"salonbook/internal/filter"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
)

// View is a concurrency-safe booking snapshot. Readers always see a whole
// booking, never a partially applied transition.
type View struct {
	mu       sync.RWMutex
	bookings []models.Booking
	index    map[string]int
	engine   *filter.Engine
}

// NewView creates an empty view.
func NewView(engine *filter.Engine) *View {
	if engine == nil {
		engine = filter.NewEngine(nil)
	}
	return &View{index: make(map[string]int), engine: engine}
}

// Replace swaps the whole snapshot. A booking already held at a higher
// version is kept, so a listing read before a commit cannot roll back a
// status applied after it.
func (v *View) Replace(bookings []models.Booking) {
	next := make([]models.Booking, 0, len(bookings))
	index := make(map[string]int, len(bookings))

	v.mu.Lock()
	for _, b := range bookings {
		b = b.Clone()
		b.ID = models.CanonicalID(b.ID)
		if i, ok := v.index[b.ID]; ok && v.bookings[i].Version > b.Version {
			b = v.bookings[i].Clone()
		}
		if i, dup := index[b.ID]; dup {
			next[i] = b
			continue
		}
		index[b.ID] = len(next)
		next = append(next, b)
	}
	v.bookings = next
	v.index = index
	v.mu.Unlock()

	metrics.SetSnapshotSize(len(next))
}

// Bookings returns a copy of the snapshot.
func (v *View) Bookings() []models.Booking {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Booking, len(v.bookings))
	for i := range v.bookings {
		out[i] = v.bookings[i].Clone()
	}
	return out
}

// Get returns a booking by id.
func (v *View) Get(id string) (models.Booking, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.index[models.CanonicalID(id)]
	if !ok {
		return models.Booking{}, false
	}
	return v.bookings[i].Clone(), true
}

// Apply replaces a single booking with the provider's committed version.
// Bookings that are no longer in the snapshot, or that are held at a
// higher version, are ignored.
func (v *View) Apply(b models.Booking) {
	b = b.Clone()
	b.ID = models.CanonicalID(b.ID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if i, ok := v.index[b.ID]; ok && b.Version >= v.bookings[i].Version {
		v.bookings[i] = b
	}
}

// Len returns the number of bookings in the snapshot.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.bookings)
}

// Visible evaluates the filter against the current snapshot.
func (v *View) Visible(state filter.State, viewer filter.Viewer) []models.Booking {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.VisibleBookings(v.bookings, state, viewer)
}
