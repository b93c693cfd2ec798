package socket

import "github.com/danmuck/sockctl/internal/transport"

// Event is one connection lifecycle transition observed on the journal.
// Exactly three variants exist: Opened, Closed, Errored.
type Event interface {
	lifecycleEvent()
}

// Opened reports that a handle finished connecting.
type Opened struct {
	Handle transport.Handle
}

// Closed reports that the remote or local side closed a handle. It is
// informational only and never terminates the client by itself.
type Closed struct {
	Handle transport.Handle
	Code   int
	Reason string
	Clean  bool
}

// Errored reports a transport failure on a handle. The driver answers it by
// dialing a replacement handle for the same endpoint.
type Errored struct {
	Handle transport.Handle
	Cause  error
}

func (Opened) lifecycleEvent()  {}
func (Closed) lifecycleEvent()  {}
func (Errored) lifecycleEvent() {}
