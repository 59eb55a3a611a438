package event

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
)

// TaskTypeScriptReady is the routing key upstream services publish completion
// events under.
const TaskTypeScriptReady = "script.ready"

// Callback handles one normalized script.ready event. The raw payload is
// passed along for handlers that need fields normalization does not cover.
// A returned error is surfaced to the broker, whose redelivery policy
// governs whether the message is retried.
type Callback func(ctx context.Context, ev model.NormalizedEvent, raw map[string]any) error

// Consumer processes script.ready events from the broker queue. Handlers are
// dispatched by exact job id match, with a single default callback for
// everything else; the always-on reconciliation handler registers as the
// default and one-shot waiters register per id.
type Consumer struct {
	mu              sync.RWMutex
	callbacks       map[string]Callback
	defaultCallback Callback
	log             zerolog.Logger
}

func NewConsumer(log zerolog.Logger) *Consumer {
	return &Consumer{
		callbacks: make(map[string]Callback),
		log:       log.With().Str("component", "broker").Logger(),
	}
}

// RegisterCallback registers a handler for one exact job id.
func (c *Consumer) RegisterCallback(jobID string, cb Callback) {
	c.mu.Lock()
	c.callbacks[jobID] = cb
	c.mu.Unlock()
	c.log.Info().Str("job_id", jobID).Msg("callback registered")
}

// UnregisterCallback removes a per-id handler.
func (c *Consumer) UnregisterCallback(jobID string) {
	c.mu.Lock()
	delete(c.callbacks, jobID)
	c.mu.Unlock()
}

// RegisterDefaultCallback registers the fallback handler for events without
// a per-id registration.
func (c *Consumer) RegisterDefaultCallback(cb Callback) {
	c.mu.Lock()
	c.defaultCallback = cb
	c.mu.Unlock()
	c.log.Info().Msg("default callback registered")
}

// ProcessTask implements asynq.Handler for script.ready messages. Returning
// nil acknowledges the message; malformed payloads are acknowledged too,
// since redelivery cannot fix them. Only handler errors propagate, so the
// broker can redeliver and the idempotent reconciliation absorbs duplicates.
func (c *Consumer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := DecodeBody(t.Payload())
	if err != nil {
		c.log.Error().Err(err).Msg("failed to decode event body, dropping")
		return nil
	}

	ev := Normalize(payload)
	if ev.JobID == "" && ev.CollectionID == "" {
		c.log.Warn().Msg("event without identifiable job or collection id, dropping")
	} else if ev.DegradedID {
		c.log.Warn().Str("collection_id", ev.CollectionID).
			Msg("no script id in event, falling back to collection id")
	}

	cb := c.lookup(ev.JobID)
	if cb == nil {
		c.log.Warn().Str("job_id", ev.JobID).Msg("no callback registered for event")
		return nil
	}

	if err := cb(ctx, ev, payload); err != nil {
		c.log.Error().Err(err).Str("job_id", ev.JobID).Msg("event handler failed")
		return err
	}
	return nil
}

func (c *Consumer) lookup(jobID string) Callback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if jobID != "" {
		if cb, ok := c.callbacks[jobID]; ok {
			return cb
		}
	}
	return c.defaultCallback
}
