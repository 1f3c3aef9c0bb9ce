// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux sockets via x/sys/unix: non-blocking listen/accept, write, sendfile.

package transport

import (
	"errors"
	"net"
	"strconv"

	"github.com/momentics/tsnet/api"
	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking listening socket bound to address:port.
func Listen(address string, port uint16, cfg ListenConfig) (int, error) {
	ip, err := parseIP(address)
	if err != nil {
		return -1, err
	}
	domain, sa := resolveIPAndPort(ip, int(port))

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, api.SyscallError("transport.listen", "socket", err)
	}
	if err := configureListener(fd, sa, cfg); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func configureListener(fd int, sa unix.Sockaddr, cfg ListenConfig) error {
	const op = "transport.listen"
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return api.SyscallError(op, "setsockopt(SO_REUSEADDR)", err)
	}
	if cfg.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return api.SyscallError(op, "setsockopt(SO_REUSEPORT)", err)
		}
	}
	if cfg.RcvBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RcvBuf); err != nil {
			return api.SyscallError(op, "setsockopt(SO_RCVBUF)", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return api.SyscallError(op, "bind", err).WithContext("addr", sockaddrString(sa))
	}
	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return api.SyscallError(op, "listen", err).WithContext("backlog", backlog)
	}
	return nil
}

// LocalAddr reports the address a socket is bound to.
func LocalAddr(fd int) (string, uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", 0, api.SyscallError("transport.local_addr", "getsockname", err)
	}
	addr, port := splitSockaddr(sa)
	return addr, port, nil
}

// Accept takes one pending connection off lfd. The returned socket is
// non-blocking and close-on-exec.
func Accept(lfd int, cfg ListenConfig) (int, string, uint16, error) {
	const op = "transport.accept"
	fd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, "", 0, api.SyscallError(op, "accept4", err)
	}
	if cfg.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			unix.Close(fd)
			return -1, "", 0, api.SyscallError(op, "setsockopt(TCP_NODELAY)", err)
		}
	}
	if cfg.SndBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SndBuf); err != nil {
			unix.Close(fd)
			return -1, "", 0, api.SyscallError(op, "setsockopt(SO_SNDBUF)", err)
		}
	}
	if sa == nil {
		// some kernels omit the peer for a connection reset before accept
		if sa, err = unix.Getpeername(fd); err != nil {
			unix.Close(fd)
			return -1, "", 0, api.SyscallError(op, "getpeername", err)
		}
	}
	addr, port := splitSockaddr(sa)
	return fd, addr, port, nil
}

// Read performs one non-blocking read. The errno is returned unwrapped.
func Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// Write performs one non-blocking write. The errno is returned unwrapped.
func Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// SendFile copies up to count bytes from in at *offset to the socket out,
// advancing *offset. The errno is returned unwrapped.
func SendFile(out, in int, offset *int64, count int) (int, error) {
	if count > MaxSendfileChunk {
		count = MaxSendfileChunk
	}
	return unix.Sendfile(out, in, offset, count)
}

// Close closes a descriptor.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return api.SyscallError("transport.close", "close", err).WithContext("fd", fd)
	}
	return nil
}

// IsWouldBlock reports the non-blocking "try again later" outcome.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsInterrupted reports EINTR.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// IsTransientAccept reports accept failures that leave the listener usable.
func IsTransientAccept(err error) bool {
	for _, errno := range []unix.Errno{
		unix.EAGAIN, unix.EINTR, unix.ECONNABORTED, unix.EPROTO, unix.EPERM,
		unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func resolveIPAndPort(ip net.IP, port int) (domain int, sa unix.Sockaddr) {
	if ip4 := ip.To4(); ip4 != nil {
		raw := &unix.SockaddrInet4{Port: port}
		copy(raw.Addr[:], ip4)
		return unix.AF_INET, raw
	}
	raw := &unix.SockaddrInet6{Port: port}
	copy(raw.Addr[:], ip.To16())
	return unix.AF_INET6, raw
}

func splitSockaddr(sa unix.Sockaddr) (string, uint16) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(v.Addr[:]).String(), uint16(v.Port)
	case *unix.SockaddrInet6:
		return net.IP(v.Addr[:]).String(), uint16(v.Port)
	default:
		return "", 0
	}
}

func sockaddrString(sa unix.Sockaddr) string {
	addr, port := splitSockaddr(sa)
	return net.JoinHostPort(addr, strconv.Itoa(int(port)))
}
