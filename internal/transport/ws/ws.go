// Package ws adapts a gorilla/websocket connection to the transport.Handle
// contract: dial progress, close frames, and read failures all surface as
// callbacks, never as blocking calls.
package ws

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danmuck/sockctl/internal/session"
	"github.com/danmuck/sockctl/internal/transport"
)

// Dialer produces websocket handles tuned by a session config.
type Dialer struct {
	cfg session.Config
}

func NewDialer(cfg session.Config) *Dialer {
	return &Dialer{cfg: cfg.WithDefaults()}
}

// Dial returns a handle in the Connecting state and performs the websocket
// handshake in the background.
func (d *Dialer) Dial(endpoint string, cb transport.Callbacks) transport.Handle {
	h := &handle{
		endpoint: endpoint,
		cfg:      d.cfg,
		cb:       cb,
		done:     make(chan struct{}),
	}
	h.state.Store(int32(transport.Connecting))
	go h.run()
	return h
}

type handle struct {
	endpoint string
	cfg      session.Config
	cb       transport.Callbacks

	state atomic.Int32

	connMu sync.Mutex
	conn   *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (h *handle) Readiness() transport.Readiness {
	return transport.Readiness(h.state.Load())
}

// Send writes one text frame. Callers must verify Readiness() == Open first;
// Send fails otherwise.
func (h *handle) Send(payload []byte) error {
	if h.Readiness() != transport.Open {
		return transport.ErrNotOpen
	}
	conn := h.current()
	if conn == nil {
		return transport.ErrNotOpen
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and tears the connection down. Safe to call at
// any point of the handle's life, including mid-handshake.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		h.state.Store(int32(transport.Closing))
		close(h.done)
		if conn := h.current(); conn != nil {
			h.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			h.writeMu.Unlock()
			_ = conn.Close()
		}
		h.state.Store(int32(transport.Closed))
	})
	return nil
}

func (h *handle) current() *websocket.Conn {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.conn
}

func (h *handle) run() {
	dialer := websocket.Dialer{HandshakeTimeout: h.cfg.HandshakeTimeout}
	if strings.HasPrefix(h.endpoint, "wss://") {
		u, err := url.Parse(h.endpoint)
		if err != nil {
			h.state.Store(int32(transport.Closed))
			h.emitError(err)
			return
		}
		tlsCfg, err := h.cfg.TLS.ClientConfig(u.Hostname())
		if err != nil {
			h.state.Store(int32(transport.Closed))
			h.emitError(err)
			return
		}
		dialer.TLSClientConfig = tlsCfg
	}
	conn, resp, err := dialer.Dial(h.endpoint, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		h.state.Store(int32(transport.Closed))
		h.emitError(err)
		return
	}

	h.connMu.Lock()
	h.conn = conn
	h.connMu.Unlock()

	select {
	case <-h.done:
		// Closed while the handshake was in flight.
		_ = conn.Close()
		return
	default:
	}

	conn.SetReadLimit(h.cfg.ReadLimit)
	if h.cfg.PingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(3 * h.cfg.PingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(3 * h.cfg.PingInterval))
		})
		go h.pingLoop(conn)
	}

	h.state.Store(int32(transport.Open))
	if h.cb.OnOpen != nil {
		h.cb.OnOpen()
	}
	h.readPump(conn)
}

func (h *handle) readPump(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err == nil {
			if h.cb.OnMessage != nil {
				h.cb.OnMessage(payload)
			}
			continue
		}

		select {
		case <-h.done:
			// Local close already reported through Close; the read error is
			// just the pump unwinding.
			h.emitClose(websocket.CloseNormalClosure, "", true)
		default:
			if closeErr, ok := err.(*websocket.CloseError); ok {
				h.state.Store(int32(transport.Closed))
				h.emitClose(closeErr.Code, closeErr.Text, true)
			} else {
				h.state.Store(int32(transport.Closed))
				h.emitError(err)
			}
			_ = conn.Close()
		}
		return
	}
}

func (h *handle) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout))
			h.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *handle) emitError(cause error) {
	if h.cb.OnError != nil {
		h.cb.OnError(cause)
	}
}

func (h *handle) emitClose(code int, reason string, clean bool) {
	if h.cb.OnClose != nil {
		h.cb.OnClose(code, reason, clean)
	}
}
