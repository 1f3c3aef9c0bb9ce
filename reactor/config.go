// File: reactor/config.go
// Author: momentics <momentics@gmail.com>
//
// Mapping from a file-backed control.Config to reactor options.

package reactor

import (
	"github.com/rs/zerolog"

	"github.com/momentics/tsnet/api"
	"github.com/momentics/tsnet/control"
)

// OptionsFromConfig returns the options described by cfg.
func OptionsFromConfig(cfg control.Config, log zerolog.Logger) []Option {
	opts := []Option{
		WithLogger(log),
		WithReusePort(cfg.ReusePort),
		WithNoDelay(cfg.NoDelay),
		WithSocketBuffers(cfg.SndBuf, cfg.RcvBuf),
	}
	if cfg.ReadBufferSize > 0 {
		opts = append(opts, WithReadBufferSize(cfg.ReadBufferSize))
	}
	return opts
}

// NewFromConfig creates an epoll reactor for cfg and binds it.
func NewFromConfig(cfg control.Config, log zerolog.Logger, extra ...Option) (*Reactor, error) {
	opts := append(OptionsFromConfig(cfg, log), extra...)
	r, err := New(api.TransportEpoll, cfg.Backlog, cfg.MaxClients, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Bind(cfg.Address, cfg.Port); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
