// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent options and address helpers.

package transport

import (
	"net"

	"github.com/momentics/tsnet/api"
)

// DefaultBacklog is used when ListenConfig.Backlog is not positive.
const DefaultBacklog = 64

// MaxSendfileChunk bounds one sendfile call.
const MaxSendfileChunk = 1 << 30

// ListenConfig carries socket options applied by Listen and Accept.
type ListenConfig struct {
	Backlog   int
	ReusePort bool
	NoDelay   bool
	SndBuf    int
	RcvBuf    int
}

// parseIP accepts IPv4 and IPv6 literals; empty means the IPv4 wildcard.
func parseIP(address string) (net.IP, error) {
	if address == "" {
		return net.IPv4zero, nil
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "transport.listen", "address is not an IP literal").
			WithContext("address", address)
	}
	return ip, nil
}
