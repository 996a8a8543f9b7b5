package agenda

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/models"
	"salonbook/shared/logging"
)

// Source lists the bookings owned by the data provider.
type Source interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
}

// Refresher periodically reloads a View from a Source.
type Refresher struct {
	source   Source
	view     *View
	interval time.Duration
	logger   logging.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewRefresher creates a refresher. Interval defaults to one minute.
func NewRefresher(source Source, view *View, interval time.Duration, logger logging.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		source:   source,
		view:     view,
		interval: interval,
		logger:   logging.OrNop(logger),
		stopCh:   make(chan struct{}),
	}
}

// Refresh loads a new snapshot once. On failure the old snapshot stays.
func (r *Refresher) Refresh(ctx context.Context) error {
	bookings, err := r.source.ListBookings(ctx)
	if err != nil {
		r.logger.Error("agenda refresh failed", "error", err)
		return err
	}
	r.view.Replace(bookings)
	r.logger.Debug("agenda refreshed", "bookings", len(bookings))
	return nil
}

// Start begins the reload loop.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("agenda refresher started", "interval", r.interval.String())
}

// Stop gracefully stops the loop.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()

	r.logger.Info("agenda refresher stopped")
}

func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}
