package socket

import "errors"

var (
	ErrEndpointRequired = errors.New("socket: endpoint required")
	ErrDialerRequired   = errors.New("socket: dialer required")
	ErrClientStopped    = errors.New("socket: client stopped")
)
