package notifier

import (
	"context"
	"errors"
)

// Multi publishes every event to each notifier in order. All notifiers are
// attempted; their errors are joined.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
