package events

import (
	"context"
	"errors"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// Fanout forwards each event to every publisher, in order. All publishers
// are attempted; their errors are joined.
type Fanout []domain.EventPublisher

func NewFanout(publishers ...domain.EventPublisher) Fanout {
	out := make(Fanout, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f Fanout) Publish(ctx context.Context, event domain.ExpenseEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
