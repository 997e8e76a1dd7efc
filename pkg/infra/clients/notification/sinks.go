package notification_clients

import (
	"context"
	"log/slog"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
)

var (
	_ notification_out.Sink = (*TwilioSMSSink)(nil)
	_ notification_out.Sink = (*IterableSink)(nil)
)

// TwilioSMSSink stands in for the original's Twilio client: same shape
// (send a templated body to an E.164 number), no vendor SDK wiring, which
// is explicitly out of scope.
type TwilioSMSSink struct{}

func NewTwilioSMSSink() *TwilioSMSSink { return &TwilioSMSSink{} }

func (s *TwilioSMSSink) Send(ctx context.Context, touchpoint account_entities.Touchpoint, n notification_entities.Notification) error {
	if touchpoint.Kind != account_entities.TouchpointPhone {
		return nil
	}
	slog.InfoContext(ctx, "sms notification sent",
		"e164", touchpoint.E164,
		"payload_type", n.PayloadType,
		"account_id", n.AccountID)
	return nil
}

// IterableSink stands in for the original's Iterable client, covering
// both email and push since the real Iterable API fans out to both from
// one event call.
type IterableSink struct{}

func NewIterableSink() *IterableSink { return &IterableSink{} }

func (s *IterableSink) Send(ctx context.Context, touchpoint account_entities.Touchpoint, n notification_entities.Notification) error {
	switch touchpoint.Kind {
	case account_entities.TouchpointEmail:
		slog.InfoContext(ctx, "email notification sent",
			"address", touchpoint.Address,
			"payload_type", n.PayloadType,
			"account_id", n.AccountID)
	case account_entities.TouchpointPush:
		slog.InfoContext(ctx, "push notification sent",
			"platform", touchpoint.Platform,
			"payload_type", n.PayloadType,
			"account_id", n.AccountID)
	default:
		return nil
	}
	return nil
}
