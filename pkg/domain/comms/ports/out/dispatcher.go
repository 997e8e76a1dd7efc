package comms_out

import (
	"context"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

// Dispatcher delivers a verification code over one touchpoint's transport.
// The container wires notification_clients.CommsDispatcher, which sends
// straight through the notification sinks; the log-only stand-in at
// pkg/infra/clients/comms is used when those sinks do not resolve.
type Dispatcher interface {
	Send(ctx context.Context, touchpoint account_entities.Touchpoint, code string) error
}
