// Package notification_clients adapts the notification domain's outbound
// ports to concrete transports: a kafka-go producer for the FIFO-by-account
// queue, and in-memory stand-ins for the vendor delivery sinks.
package notification_clients

import (
	"context"
	"fmt"

	kafka "github.com/coldkeep/custody-api/pkg/infra/kafka"

	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
)

var _ notification_out.Producer = (*KafkaProducer)(nil)

// KafkaProducer publishes every notification keyed on account id, giving
// per-account ordering on the topic's partitions (spec.md §5's
// "FIFO-by-account" requirement) without a global ordering guarantee.
type KafkaProducer struct {
	client *kafka.Client
	topic  string
}

func NewKafkaProducer(client *kafka.Client, topic string) *KafkaProducer {
	return &KafkaProducer{client: client, topic: topic}
}

func (p *KafkaProducer) Publish(ctx context.Context, n notification_entities.Notification) error {
	msg := &kafka.Message{
		Key:   n.AccountID.String(),
		Value: n,
		Headers: map[string]string{
			"payload_type": string(n.PayloadType),
			"fanout":       string(n.Fanout),
		},
		Timestamp: n.CreatedAt,
	}

	if err := p.client.Publish(ctx, p.topic, msg); err != nil {
		return fmt.Errorf("notification producer: publish: %w", err)
	}

	return nil
}
