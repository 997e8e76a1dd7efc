package notification_clients

import (
	"context"
	"encoding/json"
	"log/slog"

	kafka "github.com/coldkeep/custody-api/pkg/infra/kafka"

	segmentiokafka "github.com/segmentio/kafka-go"
)

// AuditConsumer reads the notification topic back independently of the
// in-process dispatch path, giving an audit trail of every notification
// that ever went out, keyed the same way consumers of the topic
// downstream would see it.
type AuditConsumer struct {
	consumer *kafka.Consumer
}

// NewAuditConsumer builds a consumer bound to its own group so it doesn't
// steal partitions from any other reader of the same topic.
func NewAuditConsumer(client *kafka.Client, groupID string, topic string) *AuditConsumer {
	config := kafka.DefaultConsumerConfig(groupID, []string{topic})
	consumer := kafka.NewConsumer(client, config)

	ac := &AuditConsumer{consumer: consumer}
	consumer.RegisterHandler(topic, ac.handle)

	return ac
}

func (ac *AuditConsumer) handle(ctx context.Context, msg *segmentiokafka.Message) error {
	var record map[string]interface{}
	if err := json.Unmarshal(msg.Value, &record); err != nil {
		return err
	}

	slog.InfoContext(ctx, "notification audit record",
		"account_key", string(msg.Key),
		"payload_type", record["payload_type"],
		"account_id", record["account_id"])

	return nil
}

// Start runs the consume loop until ctx is canceled.
func (ac *AuditConsumer) Start(ctx context.Context) error {
	return ac.consumer.Start(ctx)
}

func (ac *AuditConsumer) Close() error {
	return ac.consumer.Close()
}
