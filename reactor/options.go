// File: reactor/options.go
// Functional options for New.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"github.com/rs/zerolog"

	"github.com/momentics/tsnet/control"
)

// Option customizes reactor initialization.
type Option func(*Reactor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reactor) {
		r.log = l
	}
}

// WithReadBufferSize overrides the size of the shared read buffer, which
// bounds the length of one EventRecv payload.
func WithReadBufferSize(n int) Option {
	return func(r *Reactor) {
		r.readSize = n
	}
}

// WithReusePort toggles SO_REUSEPORT on the listening socket. Enabled by default.
func WithReusePort(on bool) Option {
	return func(r *Reactor) {
		r.listenCfg.ReusePort = on
	}
}

// WithNoDelay sets TCP_NODELAY on accepted connections.
func WithNoDelay(on bool) Option {
	return func(r *Reactor) {
		r.listenCfg.NoDelay = on
	}
}

// WithSocketBuffers sets SO_SNDBUF on accepted sockets and SO_RCVBUF on the
// listener (inherited by accepted sockets). Zero keeps the kernel default.
func WithSocketBuffers(snd, rcv int) Option {
	return func(r *Reactor) {
		r.listenCfg.SndBuf = snd
		r.listenCfg.RcvBuf = rcv
	}
}

// WithMetrics publishes counters and gauges to m instead of a private registry.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(r *Reactor) {
		r.metrics = m
	}
}

// WithStoreLimits bounds the connection registry and send queue tables.
// Zero values keep the keyedstore defaults.
func WithStoreLimits(maxBuckets, maxChain int) Option {
	return func(r *Reactor) {
		r.storeOpts.MaxBuckets = maxBuckets
		r.storeOpts.MaxChain = maxChain
	}
}
