package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/foodway/foodway-backend/internal/dispatch"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/idempotency"
	"github.com/foodway/foodway-backend/pkg/logger"
)

const consumerName = "order-dispatch"

type orderPlacer interface {
	PlaceOrder(ctx context.Context, order dispatch.OrderPlaced) (*dispatch.PlaceOrderResult, error)
}

// Consumer turns order.placed envelopes into assignments.
type Consumer struct {
	orders         orderPlacer
	subscription   *pubsub.Subscriber
	idempotency    *idempotency.Manager
	logg           *logger.Logger
	handlerTimeout time.Duration
}

func NewConsumer(orders orderPlacer, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger, handlerTimeout time.Duration) (*Consumer, error) {
	if orders == nil {
		return nil, errors.New("dispatch service required")
	}
	if subscription == nil {
		return nil, errors.New("orders subscription required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		orders:         orders,
		subscription:   subscription,
		idempotency:    manager,
		logg:           logg,
		handlerTimeout: handlerTimeout,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logg.Info(ctx, "intake.consumer_started")
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handlerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.handlerTimeout)
			defer cancel()
		}
		result := c.process(ctx, msg.ID, msg.Attributes, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs[attrEventType],
	})

	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "intake.decode_failed", err)
		return processResult{ack: true}
	}
	eventType := envelope.EventType
	if eventType == "" {
		eventType = attrs[attrEventType]
	}
	if eventType != EventTypeOrderPlaced {
		c.logg.Info(logCtx, "intake.skipped_event")
		return processResult{ack: true}
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		c.logg.Warn(logCtx, "intake.missing_event_id")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	state, err := c.idempotency.Begin(ctx, consumerName, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "intake.idempotency_failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Done:
		c.logg.Info(logCtx, "intake.already_processed")
		return processResult{ack: true}
	case idempotency.InProgress:
		c.logg.Info(logCtx, "intake.in_progress_elsewhere")
		return processResult{nack: true}
	}

	var order dispatch.OrderPlaced
	if err := json.Unmarshal(envelope.Data, &order); err != nil {
		c.logg.Error(logCtx, "intake.payload_invalid", err)
		c.complete(ctx, logCtx, envelope.EventID)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "order_id", order.OrderID)

	result, err := c.orders.PlaceOrder(ctx, order)
	if err != nil && pkgerrors.Retryable(err) {
		c.logg.Error(logCtx, "intake.dispatch_failed", err)
		if relErr := c.idempotency.Release(context.WithoutCancel(ctx), consumerName, envelope.EventID); relErr != nil {
			c.logg.Error(logCtx, "intake.idempotency_release_failed", relErr)
		}
		return processResult{nack: true}
	}
	if err != nil {
		c.logg.Error(c.logg.WithField(logCtx, "error_codes", pkgerrors.Codes(err)), "intake.order_rejected", err)
	}
	if result != nil {
		c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
			"created":    len(result.Created),
			"duplicates": len(result.Duplicates),
		}), "intake.order_dispatched")
	}
	c.complete(ctx, logCtx, envelope.EventID)
	return processResult{ack: true}
}

// complete marks the event handled. It outlives the handler deadline; a failure only risks one
// duplicate delivery, which PlaceOrder absorbs per sub-order.
func (c *Consumer) complete(ctx, logCtx context.Context, eventID string) {
	if err := c.idempotency.Complete(context.WithoutCancel(ctx), consumerName, eventID); err != nil {
		c.logg.Error(logCtx, "intake.idempotency_complete_failed", err)
	}
}

