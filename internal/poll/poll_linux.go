//go:build linux
// +build linux

// File: internal/poll/poll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller.

package poll

import (
	"github.com/momentics/tsnet/api"
	"golang.org/x/sys/unix"
)

var wakeupData = []byte{1, 0, 0, 0, 0, 0, 0, 0}

// Poller is a level-triggered epoll instance.
type Poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
	ready  []Event
	drain  [8]byte
}

// New creates a poller that reports up to maxEvents descriptors per Wait.
func New(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.SyscallError("poll.new", "epoll_create1", err)
	}
	p := &Poller{epfd: epfd, wakefd: -1}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		p.Close()
		return nil, api.SyscallError("poll.new", "eventfd", err)
	}
	p.wakefd = wakefd
	if err := p.ctl(unix.EPOLL_CTL_ADD, wakefd, Read); err != nil {
		p.Close()
		return nil, err
	}

	p.events = make([]unix.EpollEvent, maxEvents)
	p.ready = make([]Event, 0, maxEvents)
	return p, nil
}

// Add registers fd.
func (p *Poller) Add(fd int, in Interest) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, in)
}

// Modify replaces the interest set of fd.
func (p *Poller) Modify(fd int, in Interest) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, in)
}

// Delete unregisters fd.
func (p *Poller) Delete(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return api.SyscallError("poll.delete", "epoll_ctl", err).WithContext("fd", fd)
	}
	return nil
}

// Wait blocks until at least one descriptor is ready or Wakeup is called.
// The returned slice is reused by the next call. woken is set when the
// wakeup descriptor fired.
func (p *Poller) Wait() (events []Event, woken bool, err error) {
	n, err := unix.EpollWait(p.epfd, p.events, -1)
	if err != nil {
		return nil, false, api.SyscallError("poll.wait", "epoll_wait", err)
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		if fd == p.wakefd {
			_, _ = unix.Read(p.wakefd, p.drain[:])
			woken = true
			continue
		}
		var f Flags
		if ev.Events&unix.EPOLLIN != 0 {
			f |= Readable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			f |= Writable
		}
		if ev.Events&unix.EPOLLHUP != 0 {
			f |= Hangup
		}
		if ev.Events&unix.EPOLLERR != 0 {
			f |= Failed
		}
		p.ready = append(p.ready, Event{FD: fd, Flags: f})
	}
	return p.ready, woken, nil
}

// Wakeup interrupts a blocked Wait. Safe from any goroutine.
func (p *Poller) Wakeup() error {
	if _, err := unix.Write(p.wakefd, wakeupData); err != nil && err != unix.EAGAIN {
		return api.SyscallError("poll.wakeup", "write", err)
	}
	return nil
}

// Close releases the epoll and eventfd descriptors.
func (p *Poller) Close() error {
	var first error
	if p.wakefd >= 0 {
		if err := unix.Close(p.wakefd); err != nil {
			first = api.SyscallError("poll.close", "close", err)
		}
		p.wakefd = -1
	}
	if p.epfd >= 0 {
		if err := unix.Close(p.epfd); err != nil && first == nil {
			first = api.SyscallError("poll.close", "close", err)
		}
		p.epfd = -1
	}
	return first
}

func (p *Poller) ctl(op, fd int, in Interest) error {
	var ev unix.EpollEvent
	if in&Read != 0 {
		ev.Events |= unix.EPOLLIN
	}
	if in&Write != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return api.SyscallError("poll.ctl", "epoll_ctl", err).
			WithContext("fd", fd).
			WithContext("op", op)
	}
	return nil
}
