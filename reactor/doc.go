// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides tsnet's single-threaded TCP event loop.
//
// A Reactor owns one listening socket and one readiness facility. Run parks
// in a single blocking wait, then dispatches every reported descriptor:
// the listener accepts one connection and fires EventAccept, readable clients
// deliver one read as EventRecv, writable clients drain their send queue and
// fire EventSendComplete per finished request, and hangups, errors or end of
// stream run the close sequence, which fires EventClose.
//
// Two keyedstore tables carry all per-descriptor state. The connection
// registry maps a descriptor to its ClientInfo and to the handle that owns the
// descriptor. The send queue (Multi mode) maps a descriptor to its pending
// Send and SendFile requests in FIFO order. Write interest is armed while a
// descriptor has queued requests and dropped when its queue empties.
//
// Handlers run on the loop goroutine and may call any Reactor method. No
// method is safe to call from another goroutine while Run is active; stop the
// loop by cancelling the context passed to Run.
package reactor
