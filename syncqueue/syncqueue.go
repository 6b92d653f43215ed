// Package syncqueue holds client submissions that could not reach the
// backend and retries them when connectivity returns.
package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Submission is one deferred write: a payload waiting for delivery
// to its target endpoint. It exists until successfully delivered.
type Submission struct {
	ID        string          `json:"id"`
	Endpoint  string          `json:"endpoint"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists submissions in insertion order.
// It is durable storage separate from the HTTP response partitions.
//
// Implementations must be thread-safe!
type Store interface {
	// Append adds a submission at the end of the queue.
	Append(Submission) error
	// Remove deletes the submission with the given id.
	// Removing a non-existent id is a no-op, not an error.
	Remove(id string) error
	// Pending returns all queued submissions in insertion order.
	Pending() ([]Submission, error)
}

// Coordinator owns the deferred-write queue and delivers queued
// submissions to their endpoints.
type Coordinator struct {
	store    Store
	client   *http.Client
	log      zerolog.Logger
	interval time.Duration
}

func NewCoordinator(store Store, logger *zerolog.Logger) *Coordinator {
	if logger == nil {
		logger = &log.Logger
	}
	return &Coordinator{
		store:    store,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      logger.With().Str("component", "syncqueue").Logger(),
		interval: time.Minute,
	}
}

// Enqueue appends a submission to the queue, assigning a unique id
// and creation time if absent. It returns the submission id.
func (c *Coordinator) Enqueue(sub Submission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	if err := c.store.Append(sub); err != nil {
		return "", err
	}
	c.log.Debug().Str("id", sub.ID).Str("endpoint", sub.Endpoint).Msg("Queued submission")
	return sub.ID, nil
}

// Dequeue removes a submission by id. Unknown ids are a no-op.
func (c *Coordinator) Dequeue(id string) error {
	return c.store.Remove(id)
}

// ListPending returns the queued submissions in insertion order.
func (c *Coordinator) ListPending() ([]Submission, error) {
	return c.store.Pending()
}

// Trigger attempts delivery of every pending submission, in insertion order.
// Delivered submissions are dequeued; failed ones stay queued and do not
// block the rest of the queue. Trigger is safe to invoke repeatedly: every
// run converges toward an empty queue, and a delivery is never repeated
// after its dequeue (at-least-once if the process dies in between).
func (c *Coordinator) Trigger(ctx context.Context) (delivered int, err error) {
	pending, err := c.store.Pending()
	if err != nil {
		return 0, err
	}
	for _, sub := range pending {
		if err := c.deliver(ctx, sub); err != nil {
			deliveries.WithLabelValues("failed").Inc()
			c.log.Warn().Err(err).Str("id", sub.ID).Msg("Delivery failed, leaving queued")
			continue
		}
		if err := c.store.Remove(sub.ID); err != nil {
			c.log.Error().Err(err).Str("id", sub.ID).Msg("Could not dequeue delivered submission")
			continue
		}
		deliveries.WithLabelValues("delivered").Inc()
		delivered++
		c.log.Info().Str("id", sub.ID).Msg("Delivered queued submission")
	}
	return delivered, nil
}

func (c *Coordinator) deliver(ctx context.Context, sub Submission) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(sub.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &DeliveryError{StatusCode: res.StatusCode}
	}
	return nil
}

// Run retries pending submissions periodically until the context is done.
// It is the fallback for deployments without an external sync signal.
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Info().Dur("interval", c.interval).Msg("Starting sync retry loop")
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
		pending, err := c.store.Pending()
		if err != nil {
			c.log.Error().Err(err).Msg("Could not list pending submissions")
			continue
		}
		if len(pending) == 0 {
			continue
		}
		if _, err := c.Trigger(ctx); err != nil {
			c.log.Error().Err(err).Msg("Sync trigger failed")
		}
	}
}

// SetInterval changes the retry loop interval. Must be called before Run.
func (c *Coordinator) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// DeliveryError indicates the endpoint answered with a non-success status.
type DeliveryError struct {
	StatusCode int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery rejected with status %d", e.StatusCode)
}
