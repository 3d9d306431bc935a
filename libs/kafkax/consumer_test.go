package kafkax

import (
	"context"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func testMessage(eventID string) kafka.Message {
	return kafka.Message{
		Topic: "directory.provider.updated.v1",
		Value: []byte(`{}`),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("directory.provider.updated.v1")},
		},
	}
}

func TestConsumerDeliversOnce(t *testing.T) {
	handled := 0
	c := &Consumer{
		logger: slog.New(slog.DiscardHandler),
		dedupe: &fakeDeduper{seen: map[string]bool{}},
		handle: func(ctx context.Context, msg kafka.Message) error {
			handled++
			return nil
		},
	}

	msg := testMessage("evt-1")
	c.consume(context.Background(), msg)
	c.consume(context.Background(), msg)

	if handled != 1 {
		t.Fatalf("expected one delivery for a redelivered event, got %d", handled)
	}
}

func TestConsumerDistinctEventsBothHandled(t *testing.T) {
	handled := 0
	c := &Consumer{
		logger: slog.New(slog.DiscardHandler),
		dedupe: &fakeDeduper{seen: map[string]bool{}},
		handle: func(ctx context.Context, msg kafka.Message) error {
			handled++
			return nil
		},
	}

	c.consume(context.Background(), testMessage("evt-1"))
	c.consume(context.Background(), testMessage("evt-2"))

	if handled != 2 {
		t.Fatalf("expected both events handled, got %d", handled)
	}
}

func TestConsumerDedupeFailureSkipsHandler(t *testing.T) {
	handled := 0
	c := &Consumer{
		logger: slog.New(slog.DiscardHandler),
		dedupe: &fakeDeduper{err: context.DeadlineExceeded},
		handle: func(ctx context.Context, msg kafka.Message) error {
			handled++
			return nil
		},
	}

	c.consume(context.Background(), testMessage("evt-1"))

	if handled != 0 {
		t.Fatal("handler must not run when dedupe fails")
	}
}
