// File: reactor/handler.go
// Author: momentics <momentics@gmail.com>
//
// Event handler registration and dispatch.

package reactor

import (
	"github.com/momentics/tsnet/api"
)

// Handler receives reactor events on the loop goroutine. Event.Data is only
// valid until HandleEvent returns.
type Handler interface {
	HandleEvent(r *Reactor, ev api.Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(r *Reactor, ev api.Event)

// HandleEvent calls f(r, ev).
func (f HandlerFunc) HandleEvent(r *Reactor, ev api.Event) { f(r, ev) }

// Register installs h for kind, replacing any previous handler. Events with
// no handler are dropped.
func (r *Reactor) Register(kind api.EventKind, h Handler) error {
	if !kind.Valid() {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor.register", "unknown event kind").
			WithContext("kind", int(kind))
	}
	if h == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor.register", "nil handler").
			WithContext("kind", kind.String())
	}
	r.handlers[kind] = h
	return nil
}

// On registers fn for kind.
func (r *Reactor) On(kind api.EventKind, fn func(*Reactor, api.Event)) error {
	if fn == nil {
		return r.Register(kind, nil)
	}
	return r.Register(kind, HandlerFunc(fn))
}

// emit runs the handler for ev.Kind. A panicking handler is logged and the
// loop continues.
func (r *Reactor) emit(ev api.Event) {
	h := r.handlers[ev.Kind]
	if h == nil {
		return
	}
	r.inCallback++
	defer func() {
		r.inCallback--
		if p := recover(); p != nil {
			r.log.Error().Int("fd", ev.FD).Stringer("event", ev.Kind).Interface("panic", p).Msg("handler panicked")
		}
	}()
	h.HandleEvent(r, ev)
}
