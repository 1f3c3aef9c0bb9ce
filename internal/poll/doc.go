// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package poll wraps the OS readiness facility used by the reactor: epoll(7)
// in level-triggered mode plus an eventfd so another goroutine can interrupt
// a blocked Wait.
package poll
