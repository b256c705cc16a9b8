// Package notify publishes pipeline run events to NATS JetStream and alert webhooks.
package notify

import (
	"context"
	"errors"
)

// Notifier delivers a run event.
type Notifier interface {
	Notify(ctx context.Context, ev RunEvent) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev RunEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
