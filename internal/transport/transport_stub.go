//go:build !linux
// +build !linux

// File: internal/transport/transport_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package transport

import "github.com/momentics/tsnet/api"

func Listen(string, uint16, ListenConfig) (int, error) { return -1, api.ErrNotSupported }

func LocalAddr(int) (string, uint16, error) { return "", 0, api.ErrNotSupported }

func Accept(int, ListenConfig) (int, string, uint16, error) {
	return -1, "", 0, api.ErrNotSupported
}

func Read(int, []byte) (int, error) { return 0, api.ErrNotSupported }

func Write(int, []byte) (int, error) { return 0, api.ErrNotSupported }

func SendFile(int, int, *int64, int) (int, error) { return 0, api.ErrNotSupported }

func Close(int) error { return api.ErrNotSupported }

func IsWouldBlock(error) bool { return false }

func IsInterrupted(error) bool { return false }

func IsTransientAccept(error) bool { return false }
