package socket

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/sockctl/internal/session"
	"github.com/danmuck/sockctl/internal/transport"
)

const (
	DefaultOutboundCapacity = 2
	DefaultInboundCapacity  = 5
)

// Config describes one resilient client.
type Config struct {
	Name     string
	Endpoint string

	// OutboundCapacity and InboundCapacity bound the two queues. Overfilling
	// either blocks the producer; nothing is dropped.
	OutboundCapacity int
	InboundCapacity  int

	Session session.Config
}

func DefaultClientConfig() Config {
	return Config{
		OutboundCapacity: DefaultOutboundCapacity,
		InboundCapacity:  DefaultInboundCapacity,
		Session:          session.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "sockctl"
	}
	if c.OutboundCapacity <= 0 {
		c.OutboundCapacity = DefaultOutboundCapacity
	}
	if c.InboundCapacity <= 0 {
		c.InboundCapacity = DefaultInboundCapacity
	}
	c.Session = c.Session.WithDefaults()
	return c
}

// Client wraps one bidirectional connection behind three decoupled streams:
// outbound submissions, the shared inbound stream, and the replayable
// lifecycle journal. Transport errors redial transparently; consumers never
// re-subscribe.
type Client struct {
	cfg    Config
	dialer transport.Dialer

	journal *Journal
	events  <-chan Event
	slot    *handleSlot
	out     *outboundQueue
	in      *inboundQueue

	rng *rand.Rand

	quit        chan struct{}
	stopOnce    sync.Once
	cascadeOnce sync.Once
}

// New builds the client and dials the initial handle. The queues buffer until
// the first Opened event arrives on the journal.
func New(cfg Config, dialer transport.Dialer) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrEndpointRequired
	}
	if dialer == nil {
		return nil, ErrDialerRequired
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:     cfg,
		dialer:  dialer,
		journal: NewJournal(),
		slot:    &handleSlot{},
		out:     newOutboundQueue(cfg.OutboundCapacity),
		in:      newInboundQueue(cfg.InboundCapacity),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quit:    make(chan struct{}),
	}
	c.events = c.journal.Subscribe()
	c.slot.replace(c.dial())

	go c.drive()
	go c.outboundPump()
	go c.inboundPump()
	return c, nil
}

// Submit enqueues payload for delivery and returns its receipt. A full
// outbound buffer blocks until space frees, ctx ends, or the client stops.
func (c *Client) Submit(ctx context.Context, payload []byte) (*Receipt, error) {
	return c.out.push(ctx, payload)
}

// SubmitAndObserve enqueues payload and returns the SHARED inbound stream.
//
// The stream is not scoped to this submission: every caller observes the same
// sequence of inbound items, and concurrent callers interleave. Use Submit
// plus your own correlation if request-scoped responses are needed.
func (c *Client) SubmitAndObserve(ctx context.Context, payload []byte) (*Receipt, <-chan Inbound, error) {
	r, err := c.out.push(ctx, payload)
	if err != nil {
		return nil, nil, err
	}
	return r, c.in.out, nil
}

// Incoming returns the shared inbound stream. It closes when the client
// stops.
func (c *Client) Incoming() <-chan Inbound {
	return c.in.out
}

// Lifecycle returns an independent subscription that replays every lifecycle
// event from connection start before streaming live ones.
func (c *Client) Lifecycle() <-chan Event {
	return c.journal.Subscribe()
}

// History snapshots the lifecycle events recorded so far.
func (c *Client) History() []Event {
	return c.journal.History()
}

// Stop completes the lifecycle journal, which cascades completion to the
// outbound then inbound queue and cancels anything still buffered. Safe to
// call any number of times.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.journal.Complete()
		if h := c.slot.current(); h != nil {
			_ = h.Close()
		}
	})
}
