// Package notify delivers best-effort event notifications. Delivery
// failures are logged and never propagated to the caller: settlement
// outcomes must not depend on any notifier.
package notify

import "context"

// Event identifies what happened to a transaction.
type Event string

const (
	EventTransactionCreated   Event = "transaction.created"
	EventTransactionCompleted Event = "transaction.completed"
	EventTransactionRejected  Event = "transaction.rejected"
	EventTransactionCancelled Event = "transaction.cancelled"
)

// Notifier publishes an event with an arbitrary payload.
// Implementations swallow their own errors.
type Notifier interface {
	Notify(ctx context.Context, event Event, payload any)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, event Event, payload any) {
	for _, n := range m {
		n.Notify(ctx, event, payload)
	}
}

// Noop discards all events.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event, any) {}
