//go:build !linux
// +build !linux

// File: internal/poll/poll_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package poll

import "github.com/momentics/tsnet/api"

// Poller is unavailable on this platform.
type Poller struct{}

// New returns an error for unsupported platforms.
func New(int) (*Poller, error) {
	return nil, api.ErrNotSupported
}

func (p *Poller) Add(int, Interest) error      { return api.ErrNotSupported }
func (p *Poller) Modify(int, Interest) error   { return api.ErrNotSupported }
func (p *Poller) Delete(int) error             { return api.ErrNotSupported }
func (p *Poller) Wait() ([]Event, bool, error) { return nil, false, api.ErrNotSupported }
func (p *Poller) Wakeup() error                { return api.ErrNotSupported }
func (p *Poller) Close() error                 { return nil }
