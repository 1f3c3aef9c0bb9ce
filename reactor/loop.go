// File: reactor/loop.go
// Author: momentics <momentics@gmail.com>
//
// The event loop: wait, then accept, read, close or drain per descriptor.

package reactor

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/momentics/tsnet/api"
	"github.com/momentics/tsnet/control"
	"github.com/momentics/tsnet/internal/poll"
	"github.com/momentics/tsnet/internal/transport"
	"github.com/momentics/tsnet/keyedstore"
)

// Run blocks dispatching events until ctx is cancelled, which returns nil,
// or until the readiness facility fails or a protocol violation is detected,
// which returns the error. Per-connection failures close only that
// connection. Run may be called again after it returns.
func (r *Reactor) Run(ctx context.Context) error {
	const op = "reactor.run"
	switch {
	case r.closed:
		return api.NewError(api.ErrCodeInvalidState, op, "reactor closed")
	case !r.bound:
		return api.NewError(api.ErrCodeInvalidState, op, "not bound")
	}
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return api.NewError(api.ErrCodeInvalidState, op, "already running")
	}
	defer atomic.StoreInt32(&r.running, 0)
	if ctx == nil {
		ctx = context.Background()
	}

	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			if err := r.poller.Wakeup(); err != nil {
				r.log.Error().Err(err).Msg("wakeup failed")
			}
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-watcherDone
	}()

	r.log.Info().Str("addr", r.Addr()).Msg("reactor started")
	for {
		events, woken, err := r.poller.Wait()
		if err != nil {
			if transport.IsInterrupted(err) {
				continue
			}
			r.log.Error().Err(err).Msg("wait failed")
			return err
		}

		r.stale = r.stale[:0]
		for _, ev := range events {
			if err := r.dispatch(ev); err != nil {
				r.publishGauges()
				r.log.Error().Err(err).Msg("reactor stopped")
				return err
			}
		}
		r.publishGauges()

		if woken && ctx.Err() != nil {
			r.log.Info().Msg("reactor stopped")
			return nil
		}
	}
}

// dispatch handles one readiness report.
func (r *Reactor) dispatch(ev poll.Event) error {
	if ev.FD == r.lfd {
		r.accept()
		r.runDeferred()
		return nil
	}
	// a descriptor closed earlier in this batch may already be reused
	if r.isStale(ev.FD) {
		return nil
	}
	if _, ok := r.registry.Find(keyedstore.FDKey(ev.FD)); !ok {
		r.log.Warn().Int("fd", ev.FD).Msg("event for unregistered descriptor")
		return nil
	}
	err := r.serve(ev)
	r.runDeferred()
	return err
}

func (r *Reactor) serve(ev poll.Event) error {
	fd := ev.FD
	if ev.Readable() {
		if !r.read(fd) {
			return nil
		}
		r.runDeferred()
		if r.isStale(fd) {
			return nil
		}
	}
	// readable hangups are left to the read path, which closes on EOF
	if ev.Closed() && !ev.Readable() {
		r.closeConn(fd, nil)
		return nil
	}
	if ev.Writable() {
		return r.drain(fd)
	}
	return nil
}

// read performs one read into the shared buffer and reports whether the
// connection is still open.
func (r *Reactor) read(fd int) bool {
	n, err := transport.Read(fd, r.buf)
	switch {
	case err != nil && (transport.IsWouldBlock(err) || transport.IsInterrupted(err)):
		return true
	case err != nil:
		r.closeConn(fd, api.SyscallError("reactor.recv", "read", err).WithContext("fd", fd))
		return false
	case n == 0:
		r.closeConn(fd, nil)
		return false
	}
	r.metrics.Add(control.MetricBytesReceived, int64(n))
	r.emit(api.Event{Kind: api.EventRecv, FD: fd, Data: r.buf[:n]})
	return true
}

// accept takes one connection per listener readiness report. Failures are
// logged and leave the listener armed.
func (r *Reactor) accept() {
	fd, addr, port, err := transport.Accept(r.lfd, r.listenCfg)
	if err != nil {
		if !transport.IsWouldBlock(err) {
			r.metrics.Add(control.MetricAcceptErrors, 1)
			r.log.Warn().Err(err).Bool("transient", transport.IsTransientAccept(err)).Msg("accept failed")
		}
		return
	}
	if r.registry.Len() >= r.maxClients {
		transport.Close(fd)
		r.metrics.Add(control.MetricConnsRejected, 1)
		r.log.Warn().Str("peer", addr).Int("max_clients", r.maxClients).Msg("connection rejected")
		return
	}

	rec := &connRecord{
		info:   api.ClientInfo{ID: uuid.New(), FD: fd, Addr: addr, Port: port},
		handle: &fdHandle{fd: fd},
	}
	key := keyedstore.FDKey(fd)
	if err := r.registry.Insert(key, rec); err != nil {
		rec.handle.Close()
		r.metrics.Add(control.MetricAcceptErrors, 1)
		r.log.Error().Err(err).Int("fd", fd).Msg("cannot register connection")
		return
	}
	if err := r.poller.Add(fd, poll.Read); err != nil {
		r.registry.Erase(key, false)
		r.metrics.Add(control.MetricAcceptErrors, 1)
		r.log.Warn().Err(err).Int("fd", fd).Msg("cannot watch connection")
		return
	}
	r.metrics.Add(control.MetricConnsAccepted, 1)
	r.log.Debug().Int("fd", fd).Str("conn", rec.info.ID.String()).Str("peer", rec.info.String()).Msg("connection accepted")
	r.emit(api.Event{Kind: api.EventAccept, FD: fd})
}
