package lifecycle

import (
	"context"
	"sync"
)

// InFlightGuard admits at most one outstanding transition per booking.
type InFlightGuard interface {
	TryAcquire(ctx context.Context, bookingID string) (bool, error)
	Release(ctx context.Context, bookingID string) error
}

// MemoryGuard is an in-process InFlightGuard.
type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[string]struct{})}
}

func (g *MemoryGuard) TryAcquire(_ context.Context, bookingID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[bookingID]; busy {
		return false, nil
	}
	g.inFlight[bookingID] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, bookingID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, bookingID)
	return nil
}
