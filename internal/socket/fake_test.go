package socket

import (
	"sync"
	"testing"
	"time"

	"github.com/danmuck/sockctl/internal/transport"
)

// fakeHandle is a scriptable transport.Handle; tests drive its callbacks to
// simulate the remote side.
type fakeHandle struct {
	mu        sync.Mutex
	readiness transport.Readiness
	sent      [][]byte
	closed    bool
	cb        transport.Callbacks
}

func (h *fakeHandle) Readiness() transport.Readiness {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readiness
}

func (h *fakeHandle) Send(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readiness != transport.Open {
		return transport.ErrNotOpen
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	h.sent = append(h.sent, buf)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.readiness = transport.Closed
	return nil
}

func (h *fakeHandle) open() {
	h.mu.Lock()
	h.readiness = transport.Open
	cb := h.cb
	h.mu.Unlock()
	if cb.OnOpen != nil {
		cb.OnOpen()
	}
}

func (h *fakeHandle) fail(cause error) {
	h.mu.Lock()
	cb := h.cb
	h.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(cause)
	}
}

func (h *fakeHandle) closeRemote(code int, reason string) {
	h.mu.Lock()
	h.readiness = transport.Closed
	cb := h.cb
	h.mu.Unlock()
	if cb.OnClose != nil {
		cb.OnClose(code, reason, true)
	}
}

func (h *fakeHandle) message(payload []byte) {
	h.mu.Lock()
	cb := h.cb
	h.mu.Unlock()
	if cb.OnMessage != nil {
		cb.OnMessage(payload)
	}
}

func (h *fakeHandle) sentPayloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sent))
	for i, p := range h.sent {
		out[i] = string(p)
	}
	return out
}

func (h *fakeHandle) wasClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	handles []*fakeHandle
}

func (d *fakeDialer) Dial(endpoint string, cb transport.Callbacks) transport.Handle {
	h := &fakeHandle{readiness: transport.Connecting, cb: cb}
	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()
	return h
}

// handle waits for the i-th dialed handle to exist; redials happen on the
// driver goroutine.
func (d *fakeDialer) handle(t *testing.T, i int) *fakeHandle {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		if len(d.handles) > i {
			h := d.handles[i]
			d.mu.Unlock()
			return h
		}
		d.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("handle %d never dialed", i)
	return nil
}
