package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"pricewise/internal/events"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// RunTrigger starts a background pricing run.
type RunTrigger interface {
	TriggerRun(ctx context.Context, userID uuid.UUID) (string, error)
}

// MessageSource is the part of the Kafka consumer this package reads through.
type MessageSource interface {
	ReadMessageWithShutdownCheck(ctx context.Context) (kafka.Message, error)
	Close() error
}

// RunRequestConsumer turns pricing.run_requests messages into pricing runs.
type RunRequestConsumer struct {
	source  MessageSource
	trigger RunTrigger
	log     *logger.Logger
}

func NewRunRequestConsumer(source MessageSource, trigger RunTrigger) *RunRequestConsumer {
	return &RunRequestConsumer{
		source:  source,
		trigger: trigger,
		log:     logger.Get().With("component", "run_request_consumer"),
	}
}

// Start consumes until ctx is cancelled. It returns nil on shutdown.
func (c *RunRequestConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting run request consumer...")

	defer func() {
		if err := c.source.Close(); err != nil {
			c.log.Errorw("Failed to close run request consumer", "error", err)
		} else {
			c.log.Info("Run request consumer closed")
		}
	}()

	for {
		msg, err := c.source.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Run request consumer stopped (context cancelled)")
				return nil
			}
			c.log.Errorw("Failed to read run request", "error", err)
			continue
		}

		handleCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.handleMessage(handleCtx, msg); err != nil {
			c.log.Errorw("Failed to handle run request",
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
		}
		cancel()
	}
}

func (c *RunRequestConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event events.RunRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal run request")
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "run request user id %q", event.UserID)
	}

	jobID, err := c.trigger.TriggerRun(ctx, userID)
	switch {
	case errors.Is(err, errors.ErrRunInProgress):
		c.log.Infow("Pricing run already in progress, request skipped",
			"user_id", userID,
			"event_id", event.ID,
		)
		return nil
	case err != nil:
		return errors.Wrap(err, "trigger run")
	}

	c.log.Infow("Pricing run triggered",
		"user_id", userID,
		"job_id", jobID,
		"reason", event.Reason,
		"event_id", event.ID,
	)
	return nil
}
