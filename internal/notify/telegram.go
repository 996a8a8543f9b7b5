// Package notify sends lifecycle transitions to manager Telegram chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/shared/logging"
)

var ErrQueueFull = errors.New("notification queue full")

// TelegramSender is the subset of the bot API used for sending.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds configuration for the notifier.
type Config struct {
	Chats []int64
	// QueueSize bounds pending notifications. Default: 100.
	QueueSize int
	// Rate is messages per second across all chats. Default: 20.
	Rate float64
	// RetryDelays are waited between attempts; their count is the number
	// of retries.
	RetryDelays []time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:   100,
		Rate:        20,
		RetryDelays: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Notifier queues transition records and delivers them in the background.
type Notifier struct {
	config  *Config
	sender  TelegramSender
	limiter *rate.Limiter
	logger  logging.Logger
	queue   chan models.TransitionRecord
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewNotifier creates a notifier.
func NewNotifier(config *Config, sender TelegramSender, logger logging.Logger) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.Rate <= 0 {
		config.Rate = 20
	}

	return &Notifier{
		config:  config,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), 1),
		logger:  logging.OrNop(logger),
		queue:   make(chan models.TransitionRecord, config.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Handle enqueues a record. It never blocks the publisher.
func (n *Notifier) Handle(rec models.TransitionRecord) error {
	if len(n.config.Chats) == 0 {
		return nil
	}
	select {
	case n.queue <- rec:
		return nil
	default:
		metrics.IncNotification("dropped")
		return ErrQueueFull
	}
}

// Start begins the delivery loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	n.wg.Add(1)
	go n.run(ctx)

	n.logger.Info("telegram notifier started", "chats", len(n.config.Chats))
}

// Stop drains nothing further and waits for the loop to exit.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()

	close(n.stopCh)
	n.wg.Wait()

	n.logger.Info("telegram notifier stopped")
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case rec := <-n.queue:
			for _, chatID := range n.config.Chats {
				if err := n.deliver(ctx, chatID, FormatTransition(rec)); err != nil {
					metrics.IncNotification("failed")
					n.logger.Error("transition notification failed",
						"chat_id", chatID,
						"booking_id", rec.BookingID,
						"error", err,
					)
					continue
				}
				metrics.IncNotification("sent")
			}
		}
	}
}

// deliver sends one message, retrying transient failures.
func (n *Notifier) deliver(ctx context.Context, chatID int64, text string) error {
	var lastErr error
	for attempt := 0; attempt <= len(n.config.RetryDelays); attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		_, err := n.sender.Send(tgbotapi.NewMessage(chatID, text))
		if err == nil {
			return nil
		}
		lastErr = err

		wait := time.Duration(0)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case 429:
				wait = time.Duration(tgErr.RetryAfter) * time.Second
			case 400, 403:
				return err
			}
		}
		if attempt == len(n.config.RetryDelays) {
			break
		}
		if wait == 0 {
			wait = n.config.RetryDelays[attempt]
		}

		n.logger.Debug("retrying notification", "chat_id", chatID, "attempt", attempt+1, "delay", wait.String())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		case <-n.stopCh:
			return lastErr
		}
	}
	return lastErr
}

// FormatTransition renders a record as a chat message.
func FormatTransition(rec models.TransitionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking #%s: %s -> %s", rec.BookingID, rec.From, rec.To)
	if rec.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", rec.Reason)
	}
	if rec.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s", rec.Note)
	}
	if !rec.At.IsZero() {
		fmt.Fprintf(&b, "\nAt: %s", rec.At.Format("2006-01-02 15:04"))
	}
	return b.String()
}
