package transport

import "errors"

var (
	ErrNotOpen      = errors.New("transport: handle not open")
	ErrHandleClosed = errors.New("transport: handle closed")
)

// Readiness is the connection state of a Handle.
type Readiness int

const (
	Connecting Readiness = iota
	Open
	Closing
	Closed
)

func (r Readiness) String() string {
	switch r {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Callbacks receive lifecycle and message notifications from a Handle.
// All four are invoked from the handle's own goroutines; nil entries are
// skipped.
type Callbacks struct {
	OnOpen    func()
	OnClose   func(code int, reason string, clean bool)
	OnError   func(cause error)
	OnMessage func(payload []byte)
}

// Handle is one live connection to a remote endpoint.
//
// Send is only defined while Readiness() == Open; callers must check first.
type Handle interface {
	Readiness() Readiness
	Send(payload []byte) error
	Close() error
}

// Dialer produces Handles for an endpoint.
//
// Dial returns immediately with a handle in the Connecting state; connection
// progress is reported exclusively through cb. A failed connect surfaces as
// OnError on the returned handle, never as a Dial error.
type Dialer interface {
	Dial(endpoint string, cb Callbacks) Handle
}
