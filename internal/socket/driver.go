package socket

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/sockctl/internal/observability"
	"github.com/danmuck/sockctl/internal/transport"
)

// handleSlot is the single current-connection cell. The driver is the only
// writer; everything else reads.
type handleSlot struct {
	mu sync.RWMutex
	h  transport.Handle
}

func (s *handleSlot) current() transport.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

func (s *handleSlot) replace(h transport.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = h
}

// handleRef resolves the chicken-and-egg between Dial and its callbacks: the
// callbacks are built before Dial returns the handle they must tag events
// with, so they wait on the ref instead.
type handleRef struct {
	once  sync.Once
	ready chan struct{}
	h     transport.Handle
}

func newHandleRef() *handleRef {
	return &handleRef{ready: make(chan struct{})}
}

func (r *handleRef) set(h transport.Handle) {
	r.once.Do(func() {
		r.h = h
		close(r.ready)
	})
}

func (r *handleRef) get() transport.Handle {
	<-r.ready
	return r.h
}

// dial creates a replacement handle for the client endpoint and wires its
// four callbacks into the journal.
func (c *Client) dial() transport.Handle {
	ref := newHandleRef()
	cb := transport.Callbacks{
		OnOpen: func() {
			c.journal.Append(Opened{Handle: ref.get()})
		},
		OnClose: func(code int, reason string, clean bool) {
			c.journal.Append(Closed{Handle: ref.get(), Code: code, Reason: reason, Clean: clean})
		},
		OnError: func(cause error) {
			c.journal.Append(Errored{Handle: ref.get(), Cause: cause})
		},
		OnMessage: func(payload []byte) {
			observability.RecordInbound(c.cfg.Name)
			c.in.push(Inbound{Payload: payload, Handle: ref.get()})
		},
	}
	h := c.dialer.Dial(c.cfg.Endpoint, cb)
	ref.set(h)
	return h
}

// drive is the journal's one reacting subscriber. It connects the queues on
// the first Opened, redials on Errored, ignores Closed, and cascades
// completion to the outbound then inbound queue when the journal completes.
func (c *Client) drive() {
	defer c.completeQueues()

	attempts := 0
	for ev := range c.events {
		attempts = c.handleEvent(ev, attempts)
	}
}

func (c *Client) handleEvent(ev Event, attempts int) int {
	switch ev := ev.(type) {
	case Opened:
		c.out.connect()
		c.in.connect()
		log.Info().Str("client", c.cfg.Name).Str("endpoint", c.cfg.Endpoint).Msg("socket_opened")
		return 0
	case Closed:
		// Informational only; Stop is the sole termination path.
		log.Debug().Str("client", c.cfg.Name).Int("code", ev.Code).
			Str("reason", ev.Reason).Bool("clean", ev.Clean).Msg("socket_closed")
		return attempts
	case Errored:
		attempts++
		observability.RecordReconnect(c.cfg.Name)
		log.Warn().Err(ev.Cause).Str("client", c.cfg.Name).
			Str("endpoint", c.cfg.Endpoint).Int("attempt", attempts).Msg("socket_errored")
		_ = ev.Handle.Close()
		if c.sleepRedial(attempts) {
			c.slot.replace(c.dial())
		}
		return attempts
	default:
		panic(fmt.Sprintf("socket: unexpected lifecycle event %T", ev))
	}
}

// sleepRedial pauses between redial attempts. It reports false when the
// client is stopping and no replacement handle should be dialed.
func (c *Client) sleepRedial(attempt int) bool {
	delay := c.cfg.Session.Redial.Delay(attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-c.quit:
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) completeQueues() {
	c.cascadeOnce.Do(func() {
		c.out.complete()
		c.in.complete()
	})
}

// outboundPump drains the outbound queue once it is connected. Items
// buffered before the first Opened event are flushed in submission order.
func (c *Client) outboundPump() {
	select {
	case <-c.out.connected:
	case <-c.out.done:
		c.out.drainCancel()
		return
	}
	for {
		select {
		case <-c.out.done:
			c.out.drainCancel()
			return
		default:
		}
		select {
		case <-c.out.done:
			c.out.drainCancel()
			return
		case item := <-c.out.items:
			c.deliver(item)
		}
	}
}

// deliver transmits one item against the current handle, re-checking
// readiness while it is still connecting. Bounded at SendRetryLimit checks
// with SendRetryDelay between them so a stuck connect cannot busy-loop.
func (c *Client) deliver(item outboundItem) {
	for attempt := 1; ; attempt++ {
		h := c.slot.current()
		switch h.Readiness() {
		case transport.Open:
			if err := h.Send(item.payload); err != nil {
				log.Warn().Err(err).Str("client", c.cfg.Name).Msg("socket_send_failed")
				c.cancelItem(item, "send_failed")
				return
			}
			observability.RecordSend(c.cfg.Name, attempt)
			item.receipt.resolve(OutcomeDelivered)
			return
		case transport.Closing, transport.Closed:
			c.cancelItem(item, "not_open")
			return
		default: // Connecting
			if attempt >= c.cfg.Session.SendRetryLimit {
				c.cancelItem(item, "retry_exhausted")
				return
			}
			timer := time.NewTimer(c.cfg.Session.SendRetryDelay)
			select {
			case <-c.out.done:
				timer.Stop()
				c.cancelItem(item, "stopped")
				return
			case <-timer.C:
			}
		}
	}
}

func (c *Client) cancelItem(item outboundItem, reason string) {
	observability.RecordCancel(c.cfg.Name, reason)
	item.receipt.resolve(OutcomeCancelled)
}

// inboundPump forwards received payloads to the shared consumer stream once
// the queue is connected. The stream closes on completion.
func (c *Client) inboundPump() {
	defer close(c.in.out)
	select {
	case <-c.in.connected:
	case <-c.in.done:
		return
	}
	for {
		select {
		case <-c.in.done:
			return
		case item := <-c.in.items:
			select {
			case c.in.out <- item:
			case <-c.in.done:
				return
			}
		}
	}
}
