// File: internal/poll/poll.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness types shared by the epoll poller and its stub.

package poll

// Interest is the set of readiness conditions a descriptor is registered for.
type Interest uint8

const (
	Read Interest = 1 << iota
	Write

	ReadWrite = Read | Write
)

// Flags describe what the facility reported for one descriptor.
type Flags uint8

const (
	Readable Flags = 1 << iota
	Writable
	Hangup
	Failed
)

// Event contains event information returned by Wait.
type Event struct {
	FD    int
	Flags Flags
}

// Readable reports input readiness.
func (e Event) Readable() bool { return e.Flags&Readable != 0 }

// Writable reports output readiness.
func (e Event) Writable() bool { return e.Flags&Writable != 0 }

// Closed reports hangup or an error condition.
func (e Event) Closed() bool { return e.Flags&(Hangup|Failed) != 0 }
