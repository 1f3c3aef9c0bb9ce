// File: api/events.go
// Package api defines core event types for tsnet.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// EventKind names a reactor callback slot.
type EventKind int

const (
	// EventAccept fires after a new connection is registered.
	EventAccept EventKind = iota
	// EventClose fires once per connection, before its bookkeeping is purged.
	EventClose
	// EventRecv delivers the bytes returned by one read.
	EventRecv
	// EventSendComplete fires when one queued Send or SendFile fully drained.
	EventSendComplete

	eventKindCount
)

// EventKinds is the number of handler slots.
const EventKinds = int(eventKindCount)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	return k >= 0 && k < eventKindCount
}

func (k EventKind) String() string {
	switch k {
	case EventAccept:
		return "accept"
	case EventClose:
		return "close"
	case EventRecv:
		return "recv"
	case EventSendComplete:
		return "send_complete"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is what a handler receives.
type Event struct {
	Kind EventKind
	FD   int
	// Data is set for EventRecv. It aliases the reactor's receive buffer and is
	// only valid until the handler returns.
	Data []byte
	// Err is set on EventClose when a per-connection failure caused the close.
	Err error
}
