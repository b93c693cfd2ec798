package socket

import (
	"context"
	"sync"

	"github.com/danmuck/sockctl/internal/transport"
)

// Inbound is one payload received from the transport, tagged with the handle
// that produced it.
type Inbound struct {
	Payload []byte
	Handle  transport.Handle
}

type outboundItem struct {
	payload []byte
	receipt *Receipt
}

// outboundQueue buffers submitted payloads until the delivery pump drains
// them. The buffer is bounded; a full buffer blocks the submitter
// (backpressure) rather than dropping or growing. The pump stays inert until
// connect, so nothing is sent before the first Opened event.
type outboundQueue struct {
	items chan outboundItem

	connectOnce sync.Once
	connected   chan struct{}

	completeOnce sync.Once
	done         chan struct{}
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{
		items:     make(chan outboundItem, capacity),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// push enqueues payload, blocking while the buffer is full. The returned
// receipt resolves once the pump delivers or cancels the item.
func (q *outboundQueue) push(ctx context.Context, payload []byte) (*Receipt, error) {
	select {
	case <-q.done:
		return nil, ErrClientStopped
	default:
	}
	r := newReceipt()
	select {
	case q.items <- outboundItem{payload: payload, receipt: r}:
		// If completion raced the enqueue the pump is already gone; sweep
		// the buffer so no receipt is left unresolved.
		select {
		case <-q.done:
			q.drainCancel()
		default:
		}
		return r, nil
	case <-q.done:
		return nil, ErrClientStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect releases the pump. Only the first call has effect.
func (q *outboundQueue) connect() {
	q.connectOnce.Do(func() {
		close(q.connected)
	})
}

// complete terminates the queue exactly once and cancels whatever is still
// buffered.
func (q *outboundQueue) complete() {
	q.completeOnce.Do(func() {
		close(q.done)
	})
}

// drainCancel resolves every buffered item as cancelled.
func (q *outboundQueue) drainCancel() {
	for {
		select {
		case item := <-q.items:
			item.receipt.resolve(OutcomeCancelled)
		default:
			return
		}
	}
}

// inboundQueue buffers received payloads between the transport's message
// callback and the consumer stream. Bounded; a full buffer blocks the
// transport read pump (backpressure). Inert until connect, mirroring the
// outbound side.
type inboundQueue struct {
	items chan Inbound
	out   chan Inbound

	connectOnce sync.Once
	connected   chan struct{}

	completeOnce sync.Once
	done         chan struct{}
}

func newInboundQueue(capacity int) *inboundQueue {
	return &inboundQueue{
		items:     make(chan Inbound, capacity),
		out:       make(chan Inbound),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// push enqueues one received payload unless the queue has completed.
func (q *inboundQueue) push(item Inbound) {
	select {
	case q.items <- item:
	case <-q.done:
	}
}

func (q *inboundQueue) connect() {
	q.connectOnce.Do(func() {
		close(q.connected)
	})
}

func (q *inboundQueue) complete() {
	q.completeOnce.Do(func() {
		close(q.done)
	})
}
