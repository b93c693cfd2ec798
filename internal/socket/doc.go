// Package socket owns the resilient client core.
//
// Ownership boundary:
// - connection lifecycle journal and reconnection driver
//
// - outbound/inbound bounded queues and per-item outcomes
//
// - client facade (submit, observe, lifecycle, stop)
//
// Recovery order:
// - errored -> redial -> opened
//
// - queues connect on the first opened and stay connected across redials.
//
// - stop is the only sanctioned termination path; closed frames never
// terminate the client.
//
// Socket does not own payload interpretation or the wire handshake.
package socket
