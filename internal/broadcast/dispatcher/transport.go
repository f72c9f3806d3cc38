// internal/broadcast/dispatcher/transport.go
package dispatcher

import (
	"context"

	"broadcast-engine/internal/models"
)

// Transport is the delivery collaborator. An implementation applies its own
// retry/backoff internally; the dispatcher treats each call as one logical
// attempt per recipient per dispatch run. A nil return means Delivered.
type Transport interface {
	Attempt(ctx context.Context, recipientID string, msg *models.Message) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, recipientID string, msg *models.Message) error

func (f TransportFunc) Attempt(ctx context.Context, recipientID string, msg *models.Message) error {
	return f(ctx, recipientID, msg)
}
