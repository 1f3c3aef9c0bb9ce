// File: keyedstore/store.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package keyedstore

import (
	"bytes"
	"encoding/binary"

	"github.com/dchest/siphash"
	"github.com/momentics/tsnet/api"
)

// Mode selects how duplicate keys are treated.
type Mode int

const (
	// Single rejects a second insert of the same key.
	Single Mode = iota
	// Multi keeps every insert; lookups see the oldest first.
	Multi
)

const (
	DefaultInitialBuckets = 16
	DefaultMaxBuckets     = DefaultInitialBuckets << 13 // 131072
	DefaultMaxChain       = 8
)

// fixed siphash key; bucket placement must be stable across processes for tests.
const (
	hashK0 = 0x57ae21bb12e0048b
	hashK1 = 0x0f1e2d3c4b5a6978
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	InitialBuckets int
	MaxBuckets     int
	MaxChain       int
	Mode           Mode
}

// Releaser is implemented by values that own resources.
type Releaser interface {
	Release()
}

type entry[V any] struct {
	key   []byte
	value V
	next  *entry[V]
}

// Store is a chained hash table keyed by byte strings.
type Store[V any] struct {
	buckets    []*entry[V]
	maxBuckets int
	maxChain   int
	occupied   int
	entries    int
	fixed      bool
	mode       Mode

	release func(V)
	clone   func(V) V
	hash    func([]byte) uint64
	alloc   func(n int) ([]*entry[V], error)
}

// Stats is a point-in-time view of the table shape.
type Stats struct {
	Buckets      int
	MaxBuckets   int
	Occupied     int
	Entries      int
	LongestChain int
	Fixed        bool
}

// New creates a Store.
func New[V any](opts Options) (*Store[V], error) {
	if opts.Mode != Single && opts.Mode != Multi {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "keyedstore.new", "unknown mode").
			WithContext("mode", int(opts.Mode))
	}
	initial := opts.InitialBuckets
	if initial <= 0 {
		initial = DefaultInitialBuckets
	}
	initial = nextPowerOfTwo(initial)
	maxBuckets := opts.MaxBuckets
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	maxBuckets = nextPowerOfTwo(maxBuckets)
	if maxBuckets < initial {
		maxBuckets = initial
	}
	maxChain := opts.MaxChain
	if maxChain <= 0 {
		maxChain = DefaultMaxChain
	}

	s := &Store[V]{
		maxBuckets: maxBuckets,
		maxChain:   maxChain,
		mode:       opts.Mode,
		hash:       sipHash,
		alloc:      makeBuckets[V],
	}
	b, err := s.alloc(initial)
	if err != nil {
		return nil, api.NewError(api.ErrCodeResourceExhausted, "keyedstore.new", "bucket allocation failed").
			WithContext("buckets", initial).Wrap(err)
	}
	s.buckets = b
	return s, nil
}

// NewBytes creates a Store that keeps its own copy of every value.
func NewBytes(opts Options) (*Store[[]byte], error) {
	s, err := New[[]byte](opts)
	if err != nil {
		return nil, err
	}
	s.clone = bytes.Clone
	return s, nil
}

// SetReleaseHook registers fn to run on each value removed from the store.
func (s *Store[V]) SetReleaseHook(fn func(V)) {
	s.release = fn
}

// SetCloner registers fn to copy values on insert.
func (s *Store[V]) SetCloner(fn func(V) V) {
	s.clone = fn
}

// Insert stores a copy of key with value. Single mode rejects a key that is
// already present. When the chain for key reaches MaxChain the table tries to
// double, except in Multi mode when every entry in that chain carries key
// itself: rehashing cannot split such a chain, so it grows without bound.
func (s *Store[V]) Insert(key []byte, value V) error {
	if len(key) == 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "keyedstore.insert", "empty key")
	}
	if s.buckets == nil {
		return api.NewError(api.ErrCodeInvalidState, "keyedstore.insert", "store destroyed")
	}

	idx := s.index(key)
	var tail *entry[V]
	chain := 0
	distinct := false
	for e := s.buckets[idx]; e != nil; e = e.next {
		same := bytes.Equal(e.key, key)
		if same && s.mode == Single {
			return api.NewError(api.ErrCodeDuplicateKey, "keyedstore.insert", "duplicate key").
				WithContext("key_len", len(key))
		}
		if !same {
			distinct = true
		}
		tail = e
		chain++
	}

	v := value
	if s.clone != nil {
		v = s.clone(value)
	}
	ent := &entry[V]{key: bytes.Clone(key), value: v}
	if tail == nil {
		s.buckets[idx] = ent
		s.occupied++
	} else {
		tail.next = ent
	}
	s.entries++
	chain++

	// A chain holding one repeated key cannot be split by rehashing.
	if chain >= s.maxChain && (s.mode == Single || distinct) {
		s.grow()
	}
	return nil
}

// Find returns the oldest value stored under key.
func (s *Store[V]) Find(key []byte) (V, bool) {
	var zero V
	if s.buckets == nil {
		return zero, false
	}
	for e := s.buckets[s.index(key)]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			return e.value, true
		}
	}
	return zero, false
}

// Erase removes the oldest entry for key, or every entry when all is set, and
// reports how many were removed.
func (s *Store[V]) Erase(key []byte, all bool) (int, error) {
	if s.buckets == nil {
		return 0, api.NewError(api.ErrCodeNotFound, "keyedstore.erase", "key not found")
	}
	idx := s.index(key)
	var (
		prev    *entry[V]
		removed []V
	)
	for e := s.buckets[idx]; e != nil; {
		next := e.next
		if bytes.Equal(e.key, key) {
			if prev == nil {
				s.buckets[idx] = next
			} else {
				prev.next = next
			}
			e.next = nil
			s.entries--
			removed = append(removed, e.value)
			if !all {
				break
			}
		} else {
			prev = e
		}
		e = next
	}
	if len(removed) == 0 {
		return 0, api.NewError(api.ErrCodeNotFound, "keyedstore.erase", "key not found").
			WithContext("key_len", len(key))
	}
	if s.buckets[idx] == nil {
		s.occupied--
	}
	// unlink first so a hook that touches the store sees a consistent table
	for _, v := range removed {
		s.releaseValue(v)
	}
	return len(removed), nil
}

// Count returns the number of entries stored under key.
func (s *Store[V]) Count(key []byte) int {
	if s.buckets == nil {
		return 0
	}
	n := 0
	for e := s.buckets[s.index(key)]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no entry remains for key.
func (s *Store[V]) IsEmpty(key []byte) bool {
	if s.buckets == nil {
		return true
	}
	for e := s.buckets[s.index(key)]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			return false
		}
	}
	return true
}

// Clear removes every entry. The bucket count is kept.
func (s *Store[V]) Clear() {
	values := s.detachAll()
	clear(s.buckets)
	for _, v := range values {
		s.releaseValue(v)
	}
}

// Destroy releases every value and drops the bucket array. The store rejects
// inserts afterwards.
func (s *Store[V]) Destroy() {
	values := s.detachAll()
	s.buckets = nil
	for _, v := range values {
		s.releaseValue(v)
	}
}

// Range calls fn for every entry until fn returns false. fn must not modify
// the store.
func (s *Store[V]) Range(fn func(key []byte, value V) bool) {
	for _, head := range s.buckets {
		for e := head; e != nil; e = e.next {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

// Len returns the total number of entries.
func (s *Store[V]) Len() int { return s.entries }

// Buckets returns the current bucket count.
func (s *Store[V]) Buckets() int { return len(s.buckets) }

// Occupied returns the number of buckets with a non-empty chain.
func (s *Store[V]) Occupied() int { return s.occupied }

// FixedCapacity reports whether growth has been disabled for good.
func (s *Store[V]) FixedCapacity() bool { return s.fixed }

// Counters returns the maintained counters without walking the table.
// LongestChain is left zero.
func (s *Store[V]) Counters() Stats {
	return Stats{
		Buckets:    len(s.buckets),
		MaxBuckets: s.maxBuckets,
		Occupied:   s.occupied,
		Entries:    s.entries,
		Fixed:      s.fixed,
	}
}

// Stats walks the table.
func (s *Store[V]) Stats() Stats {
	st := s.Counters()
	for _, head := range s.buckets {
		n := 0
		for e := head; e != nil; e = e.next {
			n++
		}
		if n > st.LongestChain {
			st.LongestChain = n
		}
	}
	return st
}

// grow doubles the bucket array and relinks every entry, keeping per-key
// insertion order. Any failure pins the table at its current size.
func (s *Store[V]) grow() bool {
	if s.fixed {
		return false
	}
	n := len(s.buckets) << 1
	if n > s.maxBuckets {
		s.fixed = true
		return false
	}
	nb, err := s.alloc(n)
	if err != nil || len(nb) != n {
		s.fixed = true
		return false
	}

	mask := uint64(n - 1)
	tails := make([]*entry[V], n)
	occupied := 0
	for i, head := range s.buckets {
		for e := head; e != nil; {
			next := e.next
			e.next = nil
			idx := s.hash(e.key) & mask
			if t := tails[idx]; t != nil {
				t.next = e
			} else {
				nb[idx] = e
				occupied++
			}
			tails[idx] = e
			e = next
		}
		s.buckets[i] = nil
	}
	s.buckets = nb
	s.occupied = occupied
	return true
}

func (s *Store[V]) detachAll() []V {
	values := make([]V, 0, s.entries)
	for i, head := range s.buckets {
		for e := head; e != nil; {
			next := e.next
			values = append(values, e.value)
			e.next = nil
			e = next
		}
		s.buckets[i] = nil
	}
	s.entries = 0
	s.occupied = 0
	return values
}

func (s *Store[V]) releaseValue(v V) {
	if s.release != nil {
		s.release(v)
		return
	}
	if r, ok := any(v).(Releaser); ok {
		r.Release()
	}
}

func (s *Store[V]) index(key []byte) uint64 {
	return s.hash(key) & uint64(len(s.buckets)-1)
}

// FDKey encodes a descriptor as a 4-byte little-endian key.
func FDKey(fd int) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, 4), uint32(fd))
}

func sipHash(key []byte) uint64 {
	return siphash.Hash(hashK0, hashK1, key)
}

func makeBuckets[V any](n int) ([]*entry[V], error) {
	return make([]*entry[V], n), nil
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
