package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/registry"
)

// metricDeferred labels rows held back behind a failed row of the same
// restaurant.
const metricDeferred = "deferred"

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
	outcomeDeferred
)

// delivery is the result of one publish attempt of one row.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	outcome  outcome
	reason   enums.OutboxDLQErrorReason
	err      error
}

func (d delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

// processBatch claims one batch and settles every row inside the same
// transaction. After a retryable failure, later rows of the same restaurant
// are deferred to the next batch so subscribers never see them out of order.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		blocked := map[string]struct{}{}
		for _, event := range events {
			d := s.deliver(ctx, event, blocked)
			if key := orderingKey(d); d.outcome == outcomeRetry && key != "" {
				blocked[key] = struct{}{}
			}
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) deliver(ctx context.Context, event models.OutboxEvent, blocked map[string]struct{}) delivery {
	d := delivery{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		d.outcome, d.reason, d.err = outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, err
		return d
	}
	d.resolved = resolved

	if key := orderingKey(d); key != "" {
		if _, ok := blocked[key]; ok {
			d.outcome = outcomeDeferred
			return d
		}
	}

	pub := s.publisherFactory(d.topic())
	if pub == nil {
		d.outcome, d.reason = outcomeDeadLetter, enums.OutboxDLQReasonUnroutable
		d.err = fmt.Errorf("publisher not configured for topic %s", d.topic())
		return d
	}

	err = s.publish(ctx, pub, d)
	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
		d.outcome = outcomePublished
	case errors.As(err, &nonRetry):
		d.outcome, d.reason, d.err = outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case event.AttemptCount+1 >= s.maxAttempts:
		d.outcome, d.reason = outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts
		d.err = fmt.Errorf("max publish attempts reached: %w", err)
	default:
		d.outcome, d.err = outcomeRetry, err
	}
	return d
}

func (s *Service) publish(ctx context.Context, pub publisher, d delivery) error {
	msg := &gcppubsub.Message{
		Data:       d.event.Payload,
		Attributes: messageAttributes(d.event, d.resolved.Envelope),
	}
	key := ""
	if s.ordering {
		key = orderingKey(d)
		msg.OrderingKey = key
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", d.topic()))
	}
	if _, err := result.Get(publishCtx); err != nil {
		if key != "" {
			pub.ResumePublish(key)
		}
		return err
	}
	return nil
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	fields := s.eventFields(d)
	eventType := string(d.event.EventType)

	switch d.outcome {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		s.metrics.ObservePublish(eventType, metrics.OutcomeOK)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
	case outcomeDeferred:
		s.metrics.ObservePublish(eventType, metricDeferred)
		s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event deferred behind failed restaurant event")
	case outcomeRetry:
		fields["attempt_count"] = d.event.AttemptCount + 1
		fields["error"] = d.err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
		s.metrics.ObservePublish(eventType, metrics.OutcomeError)
		if err := s.repo.MarkFailedTx(tx, d.event.ID, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", d.event.ID, err)
		}
	case outcomeDeadLetter:
		fields["error_reason"] = d.reason
		fields["error"] = d.err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")
		s.metrics.ObservePublish(eventType, string(d.reason))
		entry := models.DeadLetterFrom(d.event, d.reason, d.err.Error(), s.now().UTC())
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", d.event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, d.event.ID, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", d.event.ID, err)
		}
	}
	return nil
}

// orderingKey prefers the restaurant stored on the row and falls back to
// the envelope actor for rows written before the column existed.
func orderingKey(d delivery) string {
	switch {
	case d.event.RestaurantID != nil:
		return d.event.RestaurantID.String()
	case d.resolved != nil:
		return d.resolved.OrderingKey()
	}
	return ""
}

func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"version":        strconv.Itoa(envelope.Version),
	}
	if envelope.Source != "" {
		attrs["source"] = envelope.Source
	}
	if id := envelope.RestaurantID(); id != nil {
		attrs["restaurant_id"] = id.String()
	}
	return attrs
}

func (s *Service) eventFields(d delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if d.event.RestaurantID != nil {
		fields["restaurant_id"] = d.event.RestaurantID.String()
	}
	if d.resolved != nil {
		fields["event_id"] = d.resolved.Envelope.EventID
		fields["topic"] = d.topic()
	}
	return fields
}
