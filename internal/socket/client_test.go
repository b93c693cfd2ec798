package socket

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/danmuck/sockctl/internal/session"
	"github.com/danmuck/sockctl/internal/testutil/testlog"
	"github.com/danmuck/sockctl/internal/transport"
)

func newTestClient(t *testing.T) (*Client, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	cfg := Config{
		Name:     "test",
		Endpoint: "ws://fake.test/socket",
		Session: session.Config{
			SendRetryDelay: time.Millisecond,
			Redial: session.Backoff{
				InitialDelay: time.Millisecond,
				Multiplier:   1.0,
				MaxDelay:     2 * time.Millisecond,
			},
		},
	}
	c, err := New(cfg, dialer)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Stop)
	return c, dialer
}

func waitOutcome(t *testing.T, r *Receipt) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := r.Wait(ctx)
	if err != nil {
		t.Fatalf("wait outcome: %v", err)
	}
	return outcome
}

// waitSlotReplaced blocks until the driver has swapped old out of the handle
// slot; the redial happens on the driver goroutine.
func waitSlotReplaced(t *testing.T, c *Client, old *fakeHandle) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.slot.current() != transport.Handle(old) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("handle slot never replaced")
}

func waitInbound(t *testing.T, ch <-chan Inbound) Inbound {
	t.Helper()
	select {
	case item, ok := <-ch:
		if !ok {
			t.Fatalf("inbound stream closed")
		}
		return item
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for inbound item")
	}
	return Inbound{}
}

func TestNewValidatesConfig(t *testing.T) {
	testlog.Start(t)

	if _, err := New(Config{}, &fakeDialer{}); !errors.Is(err, ErrEndpointRequired) {
		t.Fatalf("missing endpoint: err = %v", err)
	}
	if _, err := New(Config{Endpoint: "ws://fake.test"}, nil); !errors.Is(err, ErrDialerRequired) {
		t.Fatalf("missing dialer: err = %v", err)
	}
}

func TestBufferedSubmissionsFlushInOrderOnFirstOpened(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)

	ra, err := c.Submit(context.Background(), []byte("A"))
	if err != nil {
		t.Fatalf("submit A: %v", err)
	}
	rb, err := c.Submit(context.Background(), []byte("B"))
	if err != nil {
		t.Fatalf("submit B: %v", err)
	}
	if got := h.sentPayloads(); len(got) != 0 {
		t.Fatalf("sent before Opened: %v", got)
	}

	h.open()
	if got := waitOutcome(t, ra); got != OutcomeDelivered {
		t.Fatalf("A outcome = %v", got)
	}
	if got := waitOutcome(t, rb); got != OutcomeDelivered {
		t.Fatalf("B outcome = %v", got)
	}
	if got := h.sentPayloads(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("send order = %v", got)
	}
}

func TestSendOrderWhileOpen(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)
	h.open()

	var receipts []*Receipt
	for _, payload := range []string{"A", "B", "C"} {
		r, err := c.Submit(context.Background(), []byte(payload))
		if err != nil {
			t.Fatalf("submit %s: %v", payload, err)
		}
		receipts = append(receipts, r)
	}
	for i, r := range receipts {
		if got := waitOutcome(t, r); got != OutcomeDelivered {
			t.Fatalf("receipt[%d] = %v", i, got)
		}
	}
	if got := h.sentPayloads(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("send order = %v", got)
	}
}

func TestOutboundBackpressureBlocksProducer(t *testing.T) {
	testlog.Start(t)

	c, _ := newTestClient(t)

	// Not yet connected: the buffer holds exactly OutboundCapacity items.
	for i := 0; i < DefaultOutboundCapacity; i++ {
		if _, err := c.Submit(context.Background(), []byte("x")); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Submit(ctx, []byte("overflow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("overflow submit: err = %v, want deadline exceeded", err)
	}
}

func TestErrorBeforeOpenRedialsAndFlushes(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h0 := dialer.handle(t, 0)

	ra, err := c.Submit(context.Background(), []byte("A"))
	if err != nil {
		t.Fatalf("submit A: %v", err)
	}

	h0.fail(errors.New("connection refused"))
	h1 := dialer.handle(t, 1)

	rb, err := c.Submit(context.Background(), []byte("B"))
	if err != nil {
		t.Fatalf("submit B: %v", err)
	}

	h1.open()
	if got := waitOutcome(t, ra); got != OutcomeDelivered {
		t.Fatalf("A outcome = %v", got)
	}
	if got := waitOutcome(t, rb); got != OutcomeDelivered {
		t.Fatalf("B outcome = %v", got)
	}
	if got := h1.sentPayloads(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("replacement handle sent %v", got)
	}
	if got := h0.sentPayloads(); len(got) != 0 {
		t.Fatalf("stale handle sent %v", got)
	}
	if !h0.wasClosed() {
		t.Fatalf("stale handle not closed")
	}
}

func TestConnectingRetryWindowCancelsItem(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h0 := dialer.handle(t, 0)
	h0.open()

	// Error out so the replacement handle sits in Connecting forever.
	h0.fail(errors.New("reset by peer"))
	dialer.handle(t, 1)

	r, err := c.Submit(context.Background(), []byte("stuck"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := waitOutcome(t, r); got != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", got)
	}
}

func TestConnectingItemDeliversOnceReplacementOpens(t *testing.T) {
	testlog.Start(t)

	dialer := &fakeDialer{}
	cfg := Config{
		Name:     "test",
		Endpoint: "ws://fake.test/socket",
		Session: session.Config{
			SendRetryDelay: 20 * time.Millisecond,
			Redial:         session.Backoff{InitialDelay: time.Millisecond, Multiplier: 1.0, MaxDelay: time.Millisecond},
		},
	}
	c, err := New(cfg, dialer)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Stop)

	h0 := dialer.handle(t, 0)
	h0.open()
	h0.fail(errors.New("reset by peer"))
	h1 := dialer.handle(t, 1)
	waitSlotReplaced(t, c, h0)

	r, err := c.Submit(context.Background(), []byte("patient"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	h1.open()

	if got := waitOutcome(t, r); got != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered", got)
	}
	if got := h1.sentPayloads(); !reflect.DeepEqual(got, []string{"patient"}) {
		t.Fatalf("replacement handle sent %v", got)
	}
}

func TestInboundTaggedWithProducingHandle(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)
	h.open()

	go h.message([]byte("ping"))

	item := waitInbound(t, c.Incoming())
	if string(item.Payload) != "ping" {
		t.Fatalf("payload = %q", item.Payload)
	}
	if item.Handle != h {
		t.Fatalf("item tagged with wrong handle")
	}
}

func TestInboundBackpressureBlocksThenDrains(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)
	h.open()

	const total = DefaultInboundCapacity + 2
	pushed := make(chan int, total)
	go func() {
		for i := 0; i < total; i++ {
			h.message([]byte{byte('0' + i)})
			pushed <- i
		}
	}()

	// The producer must stall before all items fit: buffer plus the one the
	// pump holds in hand is less than total.
	time.Sleep(100 * time.Millisecond)
	if got := len(pushed); got >= total {
		t.Fatalf("producer never blocked: pushed %d of %d with no consumer", got, total)
	}

	for i := 0; i < total; i++ {
		item := waitInbound(t, c.Incoming())
		if got := item.Payload[0]; got != byte('0'+i) {
			t.Fatalf("item %d = %q, want %q", i, got, byte('0'+i))
		}
	}
}

func TestClosedEventDoesNotTerminateClient(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)
	h.open()
	h.closeRemote(1000, "going away")

	// The item is cancelled (handle no longer open) but the streams live on.
	r, err := c.Submit(context.Background(), []byte("after-close"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := waitOutcome(t, r); got != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", got)
	}
	select {
	case _, ok := <-c.Incoming():
		if !ok {
			t.Fatalf("inbound stream closed by Closed event")
		}
		t.Fatalf("unexpected inbound item")
	default:
	}

	events := c.History()
	if _, ok := events[len(events)-1].(Closed); !ok {
		t.Fatalf("last event = %T, want Closed", events[len(events)-1])
	}
}

func TestSubmitAndObserveReturnsSharedStream(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)
	h.open()

	r, stream, err := c.SubmitAndObserve(context.Background(), []byte("query"))
	if err != nil {
		t.Fatalf("submit and observe: %v", err)
	}
	if stream != c.Incoming() {
		t.Fatalf("observe stream is not the shared inbound stream")
	}
	if got := waitOutcome(t, r); got != OutcomeDelivered {
		t.Fatalf("outcome = %v", got)
	}

	go h.message([]byte("answer"))
	if item := waitInbound(t, stream); string(item.Payload) != "answer" {
		t.Fatalf("payload = %q", item.Payload)
	}
}

func TestStopCancelsBufferedAndCompletesStreamsOnce(t *testing.T) {
	testlog.Start(t)

	c, dialer := newTestClient(t)
	h := dialer.handle(t, 0)

	ra, err := c.Submit(context.Background(), []byte("A"))
	if err != nil {
		t.Fatalf("submit A: %v", err)
	}
	rb, err := c.Submit(context.Background(), []byte("B"))
	if err != nil {
		t.Fatalf("submit B: %v", err)
	}

	lifecycle := c.Lifecycle()
	c.Stop()
	c.Stop()

	if got := waitOutcome(t, ra); got != OutcomeCancelled {
		t.Fatalf("A outcome = %v", got)
	}
	if got := waitOutcome(t, rb); got != OutcomeCancelled {
		t.Fatalf("B outcome = %v", got)
	}
	if got := h.sentPayloads(); len(got) != 0 {
		t.Fatalf("delivery attempted after stop: %v", got)
	}

	select {
	case _, ok := <-c.Incoming():
		if ok {
			t.Fatalf("unexpected inbound item")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("inbound stream not completed by stop")
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lifecycle:
			if !ok {
				goto done
			}
		case <-deadline:
			t.Fatalf("lifecycle stream not completed by stop")
		}
	}
done:
	if !h.wasClosed() {
		t.Fatalf("current handle not closed by stop")
	}
	if _, err := c.Submit(context.Background(), []byte("late")); !errors.Is(err, ErrClientStopped) {
		t.Fatalf("submit after stop: err = %v", err)
	}
}

type bogusEvent struct{}

func (bogusEvent) lifecycleEvent() {}

func TestUnknownLifecycleEventPanics(t *testing.T) {
	testlog.Start(t)

	c, _ := newTestClient(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on unknown lifecycle event")
		}
	}()
	c.handleEvent(bogusEvent{}, 0)
}
