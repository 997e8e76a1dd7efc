package notification_clients

import (
	"context"
	"fmt"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	comms_out "github.com/coldkeep/custody-api/pkg/domain/comms/ports/out"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
)

var _ comms_out.Dispatcher = (*CommsDispatcher)(nil)

// CommsDispatcher sends a verification code straight to the one
// touchpoint it was issued for, via the same Twilio/Iterable-shaped sinks
// C6 uses for account notifications. It bypasses subscription
// preferences entirely: a requested verification code is not a
// notification a customer can opt out of.
type CommsDispatcher struct {
	sinks map[account_entities.TouchpointKind]notification_out.Sink
}

func NewCommsDispatcher(sinks map[account_entities.TouchpointKind]notification_out.Sink) *CommsDispatcher {
	return &CommsDispatcher{sinks: sinks}
}

func (d *CommsDispatcher) Send(ctx context.Context, touchpoint account_entities.Touchpoint, code string) error {
	sink, ok := d.sinks[touchpoint.Kind]
	if !ok {
		return fmt.Errorf("comms dispatcher: no sink for touchpoint kind %s", touchpoint.Kind)
	}

	n := notification_entities.Notification{
		PayloadType: notification_entities.PayloadCommsVerification,
		Category:    notification_entities.CategoryAccountSecurity,
		Data:        map[string]interface{}{"code": code},
	}

	return sink.Send(ctx, touchpoint, n)
}
