// File: reactor/registry.go
// Author: momentics <momentics@gmail.com>
//
// Connection registry records. The registry owns each client descriptor:
// removing a record closes it.

package reactor

import (
	"github.com/momentics/tsnet/api"
	"github.com/momentics/tsnet/control"
	"github.com/momentics/tsnet/internal/transport"
	"github.com/momentics/tsnet/keyedstore"
)

// fdHandle closes its descriptor at most once.
type fdHandle struct {
	fd     int
	closed bool
}

func (h *fdHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return transport.Close(h.fd)
}

type connRecord struct {
	info   api.ClientInfo
	handle *fdHandle
}

// Release implements keyedstore.Releaser.
func (c *connRecord) Release() {
	c.handle.Close()
}

// ClientInfo returns the record created when fd was accepted.
func (r *Reactor) ClientInfo(fd int) (api.ClientInfo, error) {
	rec, ok := r.registry.Find(keyedstore.FDKey(fd))
	if !ok {
		return api.ClientInfo{}, api.NewError(api.ErrCodeNotFound, "reactor.client_info", "unknown connection").
			WithContext("fd", fd)
	}
	return rec.info, nil
}

// Conns returns the number of registered connections.
func (r *Reactor) Conns() int { return r.registry.Len() }

// Pending returns the number of queued send requests for fd.
func (r *Reactor) Pending(fd int) int { return r.sendq.Count(keyedstore.FDKey(fd)) }

// RegistryStats describes the connection registry table.
func (r *Reactor) RegistryStats() keyedstore.Stats { return r.registry.Stats() }

// SendQueueStats describes the send queue table.
func (r *Reactor) SendQueueStats() keyedstore.Stats { return r.sendq.Stats() }

func (r *Reactor) lookup(op string, fd int) (*connRecord, error) {
	rec, ok := r.registry.Find(keyedstore.FDKey(fd))
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, op, "unknown connection").WithContext("fd", fd)
	}
	return rec, nil
}

// CloseConn closes a client connection. Called from a handler, the close is
// performed once the current event has been dispatched.
func (r *Reactor) CloseConn(fd int) error {
	if _, err := r.lookup("reactor.close_conn", fd); err != nil {
		return err
	}
	if r.inCallback > 0 {
		r.closing.Add(fd)
		return nil
	}
	r.closeConn(fd, nil)
	return nil
}

// runDeferred performs closes requested from handlers.
func (r *Reactor) runDeferred() {
	for r.closing.Length() > 0 {
		r.closeConn(r.closing.Remove().(int), nil)
	}
}

// closeConn runs the close sequence: deregister, EventClose, release queued
// sends, remove the record, which closes the descriptor. Unknown descriptors
// are ignored.
func (r *Reactor) closeConn(fd int, cause error) {
	key := keyedstore.FDKey(fd)
	rec, ok := r.registry.Find(key)
	if !ok {
		return
	}
	if err := r.poller.Delete(fd); err != nil {
		r.log.Warn().Err(err).Int("fd", fd).Msg("deregister failed")
	}
	r.stale = append(r.stale, fd)

	r.emit(api.Event{Kind: api.EventClose, FD: fd, Err: cause})

	released, _ := r.sendq.Erase(key, true)
	r.registry.Erase(key, false)
	r.metrics.Add(control.MetricConnsClosed, 1)

	ev := r.log.Debug().Int("fd", fd).Str("conn", rec.info.ID.String()).Str("peer", rec.info.String())
	if released > 0 {
		ev = ev.Int("released_sends", released)
	}
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg("connection closed")
}

func (r *Reactor) isStale(fd int) bool {
	for _, s := range r.stale {
		if s == fd {
			return true
		}
	}
	return false
}
