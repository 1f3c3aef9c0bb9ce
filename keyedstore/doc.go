// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package keyedstore provides the chained hash table tsnet uses for every
// indexed lookup: the reactor's connection registry and its send queue.
//
// A Store maps byte keys to values of type V. Keys are always copied. Values
// are copied when the store has a cloner (NewBytes installs bytes.Clone), and
// are handed to a release hook when they leave the store through Erase, Clear
// or Destroy. A value type implementing Releaser gets its Release method used
// as the hook when none is set explicitly.
//
// Buckets hold singly linked chains ordered by insertion. In Multi mode a key
// may appear many times and Find/Erase observe FIFO order, which the send
// queue relies on. When an insert makes a chain reach Options.MaxChain the
// bucket slice doubles. A growth failure (maximum reached or allocation
// refused) pins the table at its current size for the rest of its life; it
// keeps working with longer chains and reports the state via FixedCapacity.
//
// A Store is not safe for concurrent use.
package keyedstore
