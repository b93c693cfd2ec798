package socket

import (
	"context"
	"sync"
)

// Outcome is the final disposition of one submitted item.
type Outcome int

const (
	// OutcomeDelivered means the payload was handed to the transport.
	OutcomeDelivered Outcome = iota + 1
	// OutcomeCancelled means the payload was not deliverable under the
	// connection state in effect. Cancellation is not an error.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Receipt resolves to exactly one Outcome per submitted item.
type Receipt struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newReceipt() *Receipt {
	return &Receipt{done: make(chan struct{})}
}

func (r *Receipt) resolve(o Outcome) {
	r.once.Do(func() {
		r.outcome = o
		close(r.done)
	})
}

// Done closes when the outcome is known.
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Outcome is valid only after Done has closed; before that it reports the
// zero value ("pending").
func (r *Receipt) Outcome() Outcome {
	select {
	case <-r.done:
		return r.outcome
	default:
		return 0
	}
}

// Wait blocks until the outcome is known or ctx ends.
func (r *Receipt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
