// Package scheduler polls due reminders and delivers them to a webhook
// behind a circuit breaker. Successful delivery completes the reminder;
// failure leaves it active for the next poll. Condition-only reminders never
// come due here; an external evaluator resolves them through the API.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// Config holds configuration for the reminder scheduler.
type Config struct {
	// PollInterval is how often due reminders are scanned (default: 30s).
	PollInterval time.Duration

	// DefaultWebhookURL receives deliveries for owners without their own
	// webhook preference.
	DefaultWebhookURL string

	// BatchSize is the maximum number of reminders handled per poll (default: 100).
	BatchSize int

	// HTTPTimeout bounds each webhook request (default: 10s).
	HTTPTimeout time.Duration

	// Breaker configures the delivery circuit breaker. Zero value uses the
	// breaker defaults.
	Breaker BreakerConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		BatchSize:    100,
		HTTPTimeout:  10 * time.Second,
	}
}

// DeliveryPayload is the JSON body POSTed to the webhook for a due reminder.
type DeliveryPayload struct {
	Type             string     `json:"type"`
	OwnerID          string     `json:"owner_id"`
	ReminderID       string     `json:"reminder_id"`
	CaptureID        string     `json:"capture_id,omitempty"`
	Text             string     `json:"text"`
	TriggerAt        *time.Time `json:"trigger_at,omitempty"`
	TriggerCondition string     `json:"trigger_condition,omitempty"`
}

// Scheduler delivers due reminders. One delivery attempt per reminder per
// poll; completion happens only after the webhook accepts the payload.
type Scheduler struct {
	config  Config
	store   storage.Store
	client  *http.Client
	breaker *Breaker

	onReminderDue func(ownerID, reminderID string)

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a reminder scheduler over the given store.
func NewScheduler(store storage.Store, config Config) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = 10 * time.Second
	}

	var breaker *Breaker
	if config.Breaker == (BreakerConfig{}) {
		breaker = NewBreaker()
	} else {
		breaker = NewBreakerWithConfig(config.Breaker)
	}

	return &Scheduler{
		config:  config,
		store:   store,
		client:  &http.Client{Timeout: config.HTTPTimeout},
		breaker: breaker,
	}, nil
}

// SetOnReminderDue sets a callback fired after a due reminder is delivered
// and completed. Useful for WebSocket broadcasts.
func (s *Scheduler) SetOnReminderDue(callback func(ownerID, reminderID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReminderDue = callback
}

// Start begins the poll loop. It returns immediately; polling runs in a
// background goroutine until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.run(pollCtx)

	log.Printf("Reminder scheduler started (poll interval %v)", s.config.PollInterval)
	return nil
}

// Stop halts the poll loop and waits for an in-flight poll to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("Reminder scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if delivered, err := s.PollOnce(ctx, time.Now().UTC()); err != nil {
				log.Printf("ERROR: Reminder poll failed: %v", err)
			} else if delivered > 0 {
				log.Printf("Delivered %d due reminders", delivered)
			}
		}
	}
}

// PollOnce scans reminders due as of asOf and attempts delivery for each.
// Returns the number of reminders delivered and completed.
func (s *Scheduler) PollOnce(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.store.ScanDueReminders(ctx, asOf, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to scan due reminders: %w", err)
	}

	delivered := 0
	for _, reminder := range due {
		if err := s.deliver(ctx, reminder); err != nil {
			// Stays active; the next poll retries.
			log.Printf("WARNING: Delivery failed for reminder %s: %v", reminder.ID, err)
			if errors.Is(err, ErrCircuitOpen) {
				// No point trying the rest of the batch.
				return delivered, nil
			}
			continue
		}

		if err := s.store.CompleteReminder(ctx, reminder.OwnerID, reminder.ID); err != nil {
			log.Printf("ERROR: Failed to complete delivered reminder %s: %v", reminder.ID, err)
			continue
		}
		delivered++

		s.mu.Lock()
		dueCallback := s.onReminderDue
		s.mu.Unlock()
		if dueCallback != nil {
			dueCallback(reminder.OwnerID, reminder.ID)
		}
	}

	return delivered, nil
}

// deliver POSTs the reminder to the owner's webhook, falling back to the
// configured default. An owner with no webhook anywhere gets local-only
// delivery, which always succeeds.
func (s *Scheduler) deliver(ctx context.Context, reminder types.Reminder) error {
	url := s.webhookFor(ctx, reminder.OwnerID)
	if url == "" {
		return nil
	}

	payload := DeliveryPayload{
		Type:             "reminder_due",
		OwnerID:          reminder.OwnerID,
		ReminderID:       reminder.ID,
		CaptureID:        reminder.CaptureID,
		Text:             reminder.Text,
		TriggerAt:        reminder.TriggerAt,
		TriggerCondition: reminder.TriggerCondition,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode delivery payload: %w", err)
	}

	return s.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}

// webhookFor resolves the delivery URL for an owner: preference first, then
// the configured default.
func (s *Scheduler) webhookFor(ctx context.Context, ownerID string) string {
	prefs, err := s.store.GetPreferences(ctx, ownerID)
	if err == nil && prefs.WebhookURL != "" {
		return prefs.WebhookURL
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("WARNING: Failed to load preferences for %s: %v", ownerID, err)
	}
	return s.config.DefaultWebhookURL
}

// BreakerState reports the delivery circuit state for diagnostics.
func (s *Scheduler) BreakerState() string {
	return s.breaker.State()
}
