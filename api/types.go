// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
)

// Transport selects the readiness facility backing a reactor.
type Transport int

const (
	// TransportEpoll is the Linux epoll(7) facility.
	TransportEpoll Transport = iota
)

func (t Transport) String() string {
	switch t {
	case TransportEpoll:
		return "epoll"
	default:
		return fmt.Sprintf("transport(%d)", int(t))
	}
}

// ClientInfo is the connection record created at accept time.
type ClientInfo struct {
	ID   uuid.UUID
	FD   int
	Addr string
	Port uint16
}

// String returns host:port.
func (c ClientInfo) String() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(int(c.Port)))
}
