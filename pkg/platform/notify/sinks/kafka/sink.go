// Package kafka delivers notifications to a Kafka topic keyed by account so a
// consumer sees each account's events in order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"rolesync/pkg/platform/notify"
)

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Sink struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

func (s *Sink) Deliver(ctx context.Context, events []notify.Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(e.AccountID.String()),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.Type)},
				{Key: "category", Value: []byte(e.Type.Category())},
			},
		})
	}

	var errs []error
	for _, res := range s.producer.ProduceSync(ctx, records...) {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("produce notifications: %w", errors.Join(errs...))
	}
	return nil
}
