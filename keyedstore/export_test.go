package keyedstore

import "errors"

var errAllocRefused = errors.New("allocation refused")

// SetHash replaces the bucket hash so tests can force collisions.
func SetHash[V any](s *Store[V], fn func([]byte) uint64) {
	s.hash = fn
}

// RefuseGrowth makes every following bucket allocation fail.
func RefuseGrowth[V any](s *Store[V]) {
	s.alloc = func(int) ([]*entry[V], error) {
		return nil, errAllocRefused
	}
}
