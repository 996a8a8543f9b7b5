// Package lifecycle advances bookings through their status state machine.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/shared/logging"
)

// DefaultCompletionNote is used when complete is called without a note.
const DefaultCompletionNote = "Service completed"

// Provider persists transitions and returns the updated booking.
type Provider interface {
	Confirm(ctx context.Context, id string) (*models.Booking, error)
	Cancel(ctx context.Context, id, reason string) (*models.Booking, error)
	Complete(ctx context.Context, id, note string) (*models.Booking, error)
}

// Snapshot is the locally held booking set the controller acts on.
type Snapshot interface {
	Get(id string) (models.Booking, bool)
	Apply(b models.Booking)
}

// Recorder receives a record for every successful transition.
type Recorder interface {
	Publish(rec models.TransitionRecord)
}

// Config holds configuration for the controller.
type Config struct {
	// DefaultCompletionNote replaces an empty completion note.
	// Default: "Service completed".
	DefaultCompletionNote string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{DefaultCompletionNote: DefaultCompletionNote}
}

// Controller runs confirm, cancel and complete against a provider.
type Controller struct {
	config   *Config
	fsm      *FSM
	provider Provider
	view     Snapshot
	guard    InFlightGuard
	recorder Recorder
	logger   logging.Logger
	now      func() time.Time
}

// NewController creates a controller. A nil guard falls back to an
// in-memory guard; nil recorder and logger are no-ops.
func NewController(
	config *Config,
	provider Provider,
	view Snapshot,
	guard InFlightGuard,
	recorder Recorder,
	logger logging.Logger,
) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	if strings.TrimSpace(config.DefaultCompletionNote) == "" {
		config.DefaultCompletionNote = DefaultCompletionNote
	}
	if guard == nil {
		guard = NewMemoryGuard()
	}

	return &Controller{
		config:   config,
		fsm:      NewFSM(),
		provider: provider,
		view:     view,
		guard:    guard,
		recorder: recorder,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Confirm moves a pending booking to CONFIRMED.
func (c *Controller) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	return c.run(ctx, ActionConfirm, id, "", "", func(ctx context.Context) (*models.Booking, error) {
		return c.provider.Confirm(ctx, id)
	})
}

// Cancel moves a pending or confirmed booking to CANCELLED. The reason must
// not be blank.
func (c *Controller) Cancel(ctx context.Context, id, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		metrics.IncTransition(string(ActionCancel), "invalid")
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}
	return c.run(ctx, ActionCancel, id, reason, "", func(ctx context.Context) (*models.Booking, error) {
		return c.provider.Cancel(ctx, id, reason)
	})
}

// Complete moves a pending or confirmed booking to COMPLETED. An empty note
// is replaced with the configured default.
func (c *Controller) Complete(ctx context.Context, id, note string) (*models.Booking, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		note = c.config.DefaultCompletionNote
	}
	return c.run(ctx, ActionComplete, id, "", note, func(ctx context.Context) (*models.Booking, error) {
		return c.provider.Complete(ctx, id, note)
	})
}

func (c *Controller) run(
	ctx context.Context,
	action Action,
	id, reason, note string,
	call func(ctx context.Context) (*models.Booking, error),
) (*models.Booking, error) {
	id = models.CanonicalID(id)
	to := action.Target()

	if _, err := c.check(action, id); err != nil {
		return nil, err
	}

	// Once dispatched the provider call is not cancelled by the caller.
	callCtx := context.WithoutCancel(ctx)

	acquired, err := c.guard.TryAcquire(callCtx, id)
	if err != nil {
		return nil, fmt.Errorf("acquire transition guard: %w", err)
	}
	if !acquired {
		metrics.IncTransition(string(action), "in_flight")
		return nil, fmt.Errorf("%w: %s", ErrTransitionInFlight, id)
	}
	defer func() {
		if err := c.guard.Release(callCtx, id); err != nil {
			c.logger.Error("release transition guard", "booking_id", id, "error", err)
		}
	}()

	// another request may have committed between the first check and the
	// guard; re-read under the guard before dispatching.
	current, err := c.check(action, id)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	updated, err := call(callCtx)
	metrics.ObserveProviderCall(string(action), time.Since(started))
	if err == nil && updated == nil {
		err = errors.New("empty response")
	}
	if err == nil && updated.Status != to {
		err = fmt.Errorf("unexpected status %s", updated.Status)
	}
	if err != nil {
		metrics.IncTransition(string(action), "provider_error")
		c.logger.Error("provider transition failed", "action", string(action), "booking_id", id, "error", err)
		return nil, &ProviderError{Op: action, BookingID: id, Err: err}
	}

	result := updated.Clone()
	c.view.Apply(result)

	if c.recorder != nil {
		c.recorder.Publish(models.TransitionRecord{
			ID:        uuid.NewString(),
			BookingID: id,
			From:      current.Status,
			To:        to,
			Reason:    reason,
			Note:      note,
			At:        c.now().UTC(),
		})
	}

	metrics.IncTransition(string(action), "ok")
	c.logger.Info("booking transition",
		"action", string(action),
		"booking_id", id,
		"from", string(current.Status),
		"to", string(to),
	)
	return &result, nil
}

// check looks the booking up in the snapshot and validates the edge.
func (c *Controller) check(action Action, id string) (models.Booking, error) {
	to := action.Target()

	current, ok := c.view.Get(id)
	if !ok {
		metrics.IncTransition(string(action), "stale")
		c.logger.Warn("transition on booking missing from snapshot", "action", string(action), "booking_id", id)
		return models.Booking{}, fmt.Errorf("%w: %s", ErrStaleSelection, id)
	}

	if !c.fsm.CanTransition(current.Status, to) {
		metrics.IncTransition(string(action), "invalid")
		c.logger.Debug("transition rejected", "action", string(action), "booking_id", id, "status", string(current.Status))
		return models.Booking{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	return current, nil
}
