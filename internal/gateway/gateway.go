// Package gateway defines the outbound notification port. The engine
// treats the actual email/SMS/push provider as an external collaborator
// behind this interface.
package gateway

import (
	"context"
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

// Message is one rendered notification ready for a channel.
type Message struct {
	Subject  string
	Body     string
	Priority domain.AlertPriority
	TicketID string
	AlertID  string
}

// Gateway delivers one message on one channel. Implementations must honor
// the context deadline; the dispatcher bounds every call.
type Gateway interface {
	Send(ctx context.Context, channel domain.Channel, recipient string, msg Message) (deliveryID string, err error)
}

// timeoutGateway wraps another gateway with a fixed per-call timeout.
type timeoutGateway struct {
	inner   Gateway
	timeout time.Duration
}

// WithTimeout bounds every Send call on the wrapped gateway.
func WithTimeout(inner Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return inner
	}
	return &timeoutGateway{inner: inner, timeout: timeout}
}

func (g *timeoutGateway) Send(ctx context.Context, channel domain.Channel, recipient string, msg Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.inner.Send(ctx, channel, recipient, msg)
}
