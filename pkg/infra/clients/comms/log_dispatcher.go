// Package comms ships a reference comms_out.Dispatcher: a structured-log
// sink exercised by tests and local runs, and used by the container when
// the notification sinks backing the real transport do not resolve.
package comms

import (
	"context"
	"log/slog"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	comms_out "github.com/coldkeep/custody-api/pkg/domain/comms/ports/out"
)

// LogDispatcher logs the touchpoint a code would be sent to instead of
// calling a vendor SMS/email API (explicitly out of scope, spec.md §1).
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) Send(ctx context.Context, touchpoint account_entities.Touchpoint, code string) error {
	slog.InfoContext(ctx, "comms: dispatching verification code",
		"touchpoint_id", touchpoint.ID,
		"kind", touchpoint.Kind,
	)
	return nil
}

var _ comms_out.Dispatcher = (*LogDispatcher)(nil)
