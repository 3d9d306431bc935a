package kafkax

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Deduper decides whether an event has been seen before. Record returns
// false for a replayed event id, in which case the message is skipped.
type Deduper interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

type MessageHandler func(ctx context.Context, msg kafka.Message) error

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// Consumer is a group reader that routes every message through a Deduper
// before handing it to its handler. Handler and dedupe failures are logged
// and the message is dropped; the loop stops only when ctx is canceled.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	dedupe Deduper
	handle MessageHandler
}

func NewConsumer(logger *slog.Logger, dedupe Deduper, cfg ConsumerConfig, handle MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, logger: logger, dedupe: dedupe, handle: handle}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		c.consume(ctx, msg)
	}
}

func (c *Consumer) consume(ctx context.Context, msg kafka.Message) {
	ctx = ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("kafka").Start(ctx, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := ExtractEventMeta(msg)
	fresh, err := c.dedupe.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("event dedupe failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return
	}
	if !fresh {
		c.logger.Info("duplicate event skipped", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	if err := c.handle(ctx, msg); err != nil {
		c.logger.Error("event handler failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
	}
}
