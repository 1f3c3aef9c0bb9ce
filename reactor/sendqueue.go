// File: reactor/sendqueue.go
// Author: momentics <momentics@gmail.com>
//
// Queued Send and SendFile requests and the writable-side drain.

package reactor

import (
	"errors"
	"io/fs"
	"os"

	"github.com/valyala/bytebufferpool"

	"github.com/momentics/tsnet/api"
	"github.com/momentics/tsnet/control"
	"github.com/momentics/tsnet/internal/poll"
	"github.com/momentics/tsnet/internal/transport"
	"github.com/momentics/tsnet/keyedstore"
)

type sendKind uint8

const (
	sendMemory sendKind = iota + 1
	sendFile
)

// sendRequest is one pending transfer. It owns either a pooled copy of the
// caller's bytes or an open file.
type sendRequest struct {
	fd    int
	kind  sendKind
	total int64
	sent  int64

	buf  *bytebufferpool.ByteBuffer
	file *os.File
	ffd  int

	completed bool
	released  bool
}

// Release implements keyedstore.Releaser.
func (s *sendRequest) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.buf != nil {
		bytebufferpool.Put(s.buf)
		s.buf = nil
	}
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// transferOnce performs one write or sendfile for the unsent remainder.
func (s *sendRequest) transferOnce() (int, error) {
	switch s.kind {
	case sendMemory:
		return transport.Write(s.fd, s.buf.B[s.sent:])
	case sendFile:
		off := s.sent
		return transport.SendFile(s.fd, s.ffd, &off, int(s.total-s.sent))
	default:
		return 0, api.NewError(api.ErrCodeProtocolViolation, "reactor.send", "unknown request kind")
	}
}

// releaseSend is the send queue's release hook. Requests dropped before
// completion count as released.
func (r *Reactor) releaseSend(s *sendRequest) {
	s.Release()
	if !s.completed {
		r.metrics.Add(control.MetricSendsReleased, 1)
	}
}

// Send queues a copy of data for fd. The caller may reuse data immediately.
// EventSendComplete fires once every byte has been written.
func (r *Reactor) Send(fd int, data []byte) error {
	const op = "reactor.send"
	if len(data) == 0 {
		return api.NewError(api.ErrCodeInvalidArgument, op, "empty payload").WithContext("fd", fd)
	}
	if _, err := r.lookup(op, fd); err != nil {
		return err
	}
	buf := bytebufferpool.Get()
	buf.B = append(buf.B[:0], data...)
	return r.enqueue(op, &sendRequest{
		fd:    fd,
		kind:  sendMemory,
		total: int64(len(data)),
		buf:   buf,
	})
}

// SendFile queues the regular file at path for fd. The file is opened now
// and closed when the request completes or is released.
func (r *Reactor) SendFile(fd int, path string) error {
	const op = "reactor.send_file"
	if _, err := r.lookup(op, fd); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		code := api.ErrCodeSyscall
		if errors.Is(err, fs.ErrNotExist) {
			code = api.ErrCodeNotFound
		}
		return api.NewError(code, op, "cannot open file").WithContext("path", path).Wrap(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return api.NewError(api.ErrCodeSyscall, op, "cannot stat file").WithContext("path", path).Wrap(err)
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return api.NewError(api.ErrCodeInvalidArgument, op, "not a regular file").WithContext("path", path)
	}
	return r.enqueue(op, &sendRequest{
		fd:    fd,
		kind:  sendFile,
		total: st.Size(),
		file:  f,
		ffd:   int(f.Fd()),
	})
}

// enqueue appends req to its descriptor's queue and arms write interest on
// the empty to non-empty transition. On failure req is released.
func (r *Reactor) enqueue(op string, req *sendRequest) error {
	key := keyedstore.FDKey(req.fd)
	wasEmpty := r.sendq.IsEmpty(key)
	if err := r.sendq.Insert(key, req); err != nil {
		req.Release()
		return err
	}
	if wasEmpty {
		if err := r.poller.Modify(req.fd, poll.ReadWrite); err != nil {
			// req is the only entry for key
			r.sendq.Erase(key, false)
			return api.NewError(api.ErrCodeSyscall, op, "cannot arm write interest").
				WithContext("fd", req.fd).Wrap(err)
		}
	}
	r.metrics.Add(control.MetricSendsQueued, 1)
	return nil
}

// drain writes queued requests for fd in FIFO order until the socket would
// block or the queue is empty. Transfer failures close the connection; only
// a writable descriptor with nothing queued is returned as an error.
func (r *Reactor) drain(fd int) error {
	key := keyedstore.FDKey(fd)
	req, ok := r.sendq.Find(key)
	if !ok {
		return api.NewError(api.ErrCodeProtocolViolation, "reactor.drain", "writable descriptor has no queued send").
			WithContext("fd", fd)
	}
	for {
		done, err := r.transfer(req)
		if err != nil {
			r.closeConn(fd, err)
			return nil
		}
		if !done {
			return nil
		}

		req.completed = true
		r.sendq.Erase(key, false)
		if r.sendq.IsEmpty(key) {
			if err := r.poller.Modify(fd, poll.Read); err != nil {
				r.closeConn(fd, err)
				return nil
			}
		}
		r.metrics.Add(control.MetricSendsCompleted, 1)
		r.emit(api.Event{Kind: api.EventSendComplete, FD: fd})
		r.runDeferred()
		if r.isStale(fd) {
			return nil
		}
		if req, ok = r.sendq.Find(key); !ok {
			return nil
		}
	}
}

// transfer pushes req forward. It reports done once every byte is out, and
// (false, nil) when the socket would block.
func (r *Reactor) transfer(req *sendRequest) (bool, error) {
	for req.sent < req.total {
		n, err := req.transferOnce()
		if n > 0 {
			req.sent += int64(n)
			r.metrics.Add(control.MetricBytesSent, int64(n))
		}
		switch {
		case err == nil:
			if n <= 0 {
				// file shrank below its size at SendFile time
				return false, api.NewError(api.ErrCodeSyscall, "reactor.drain", "short transfer").
					WithContext("fd", req.fd).WithContext("sent", req.sent).WithContext("total", req.total)
			}
		case transport.IsWouldBlock(err):
			return false, nil
		case transport.IsInterrupted(err):
		default:
			name := "write"
			if req.kind == sendFile {
				name = "sendfile"
			}
			return false, api.SyscallError("reactor.drain", name, err).WithContext("fd", req.fd)
		}
	}
	return true, nil
}
