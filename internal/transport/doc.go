// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw non-blocking TCP socket primitives for the reactor: listening socket
// setup, accept with peer resolution, and the two transfer paths used by the
// send queue (write from memory, sendfile from an open file). Linux only;
// other platforms build against a stub.

package transport
