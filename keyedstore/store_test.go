package keyedstore_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/tsnet/api"
	"github.com/momentics/tsnet/keyedstore"
)

func constHash([]byte) uint64 { return 0 }

func TestNew_Defaults(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{})
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, keyedstore.DefaultInitialBuckets, st.Buckets)
	assert.Equal(t, keyedstore.DefaultMaxBuckets, st.MaxBuckets)
	assert.Zero(t, st.Entries)
	assert.False(t, st.Fixed)
}

func TestNew_RoundsToPowerOfTwo(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{InitialBuckets: 20, MaxBuckets: 100})
	require.NoError(t, err)
	assert.Equal(t, 32, s.Buckets())
	assert.Equal(t, 128, s.Stats().MaxBuckets)
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	_, err := keyedstore.NewBytes(keyedstore.Options{Mode: keyedstore.Mode(7)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}

func TestInsertFind_DistinctKeysRoundTrip(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{InitialBuckets: 16, MaxChain: 4})
	require.NoError(t, err)

	want := make(map[string]string)
	for i := 0; i < 2000; i++ {
		k := fmt.Sprintf("key-%d", i)
		v := fmt.Sprintf("value-%d-%d", i, i*i)
		require.NoError(t, s.Insert([]byte(k), []byte(v)))
		want[k] = v
	}
	assert.Equal(t, len(want), s.Len())

	for k, v := range want {
		got, ok := s.Find([]byte(k))
		require.True(t, ok, "key %q missing", k)
		assert.Equal(t, v, string(got))
	}
}

func TestInsert_CopiesKeyAndValue(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{})
	require.NoError(t, err)

	key := []byte("k")
	val := []byte("abc")
	require.NoError(t, s.Insert(key, val))
	key[0] = 'x'
	val[0] = 'z'

	got, ok := s.Find([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	_, ok = s.Find([]byte("x"))
	assert.False(t, ok)
}

func TestInsert_DuplicateRejectedWithoutChange(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{})
	require.NoError(t, err)

	require.NoError(t, s.Insert([]byte("a"), []byte("1")))
	require.NoError(t, s.Insert([]byte("b"), []byte("2")))
	before := s.Stats()

	err = s.Insert([]byte("a"), []byte("other"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrDuplicateKey))
	assert.Equal(t, api.ErrCodeDuplicateKey, api.CodeOf(err))

	assert.Equal(t, before, s.Stats())
	got, ok := s.Find([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, "1", string(got))
}

func TestInsert_KeyLengthIsPartOfIdentity(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{})
	require.NoError(t, err)
	keyedstore.SetHash(s, constHash)

	require.NoError(t, s.Insert([]byte("ab"), []byte("1")))
	require.NoError(t, s.Insert([]byte("abc"), []byte("2")))
	require.NoError(t, s.Insert([]byte{'a', 'b', 0}, []byte("3")))
	assert.Equal(t, 3, s.Len())
}

func TestInsert_EmptyKeyRejected(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{})
	require.NoError(t, err)
	err = s.Insert(nil, []byte("v"))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}

func TestGrowth_TriggersExactlyAtMaxChain(t *testing.T) {
	const maxChain = 4
	s, err := keyedstore.NewBytes(keyedstore.Options{InitialBuckets: 16, MaxChain: maxChain})
	require.NoError(t, err)
	// every key lands in bucket 0 at 16 buckets, spreads after doubling
	keyedstore.SetHash(s, func(k []byte) uint64 { return uint64(k[0]) << 4 })

	for i := 0; i < maxChain-1; i++ {
		require.NoError(t, s.Insert([]byte{byte(i)}, []byte{byte(i)}))
		assert.Equal(t, 16, s.Buckets(), "grew early at insert %d", i)
	}
	require.NoError(t, s.Insert([]byte{byte(maxChain - 1)}, []byte{byte(maxChain - 1)}))
	assert.Equal(t, 32, s.Buckets())
	assert.False(t, s.FixedCapacity())

	for i := 0; i < maxChain; i++ {
		got, ok := s.Find([]byte{byte(i)})
		require.True(t, ok)
		assert.Equal(t, []byte{byte(i)}, got)
	}
	assert.Equal(t, 2, s.Occupied())
}

func TestGrowth_RoundTripAcrossManyRehashes(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{InitialBuckets: 1, MaxChain: 2})
	require.NoError(t, err)

	for i := 0; i < 5000; i++ {
		require.NoError(t, s.Insert(keyedstore.FDKey(i), []byte(fmt.Sprint(i))))
	}
	assert.Greater(t, s.Buckets(), 1)
	for i := 0; i < 5000; i++ {
		got, ok := s.Find(keyedstore.FDKey(i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), string(got))
	}
}

func TestGrowth_StopsAtMaximum(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{InitialBuckets: 16, MaxBuckets: 16, MaxChain: 2})
	require.NoError(t, err)
	keyedstore.SetHash(s, constHash)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert([]byte{byte(i)}, []byte{byte(i)}))
	}
	assert.True(t, s.FixedCapacity())
	assert.Equal(t, 16, s.Buckets())
	assert.Equal(t, 10, s.Stats().LongestChain)
	want := s.Stats()
	want.LongestChain = 0
	assert.Equal(t, want, s.Counters())
	for i := 0; i < 10; i++ {
		_, ok := s.Find([]byte{byte(i)})
		assert.True(t, ok)
	}
}

func TestGrowth_AllocationFailurePinsCapacity(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{InitialBuckets: 16, MaxChain: 2})
	require.NoError(t, err)
	keyedstore.SetHash(s, constHash)
	keyedstore.RefuseGrowth(s)

	require.NoError(t, s.Insert([]byte("a"), []byte("1")))
	require.NoError(t, s.Insert([]byte("b"), []byte("2")))
	assert.True(t, s.FixedCapacity())
	assert.Equal(t, 16, s.Buckets())

	// degraded mode keeps full semantics
	require.NoError(t, s.Insert([]byte("c"), []byte("3")))
	assert.True(t, errors.Is(s.Insert([]byte("a"), []byte("x")), api.ErrDuplicateKey))
	n, err := s.Erase([]byte("b"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, ok := s.Find([]byte("c"))
	require.True(t, ok)
	assert.Equal(t, "3", string(got))
	assert.Equal(t, 2, s.Len())
}

func TestMulti_FIFOErase(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{Mode: keyedstore.Multi})
	require.NoError(t, err)

	k := []byte("K")
	for _, v := range []string{"first", "second", "third"} {
		require.NoError(t, s.Insert(k, []byte(v)))
	}
	assert.Equal(t, 3, s.Count(k))

	var got []string
	for i := 0; i < 3; i++ {
		v, ok := s.Find(k)
		require.True(t, ok)
		got = append(got, string(v))
		_, err := s.Erase(k, false)
		require.NoError(t, err)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, got); diff != "" {
		t.Errorf("FIFO order mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, s.IsEmpty(k))
}

func TestMulti_FIFOSurvivesGrowth(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{Mode: keyedstore.Multi, InitialBuckets: 2, MaxChain: 2})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Insert(keyedstore.FDKey(i%5), []byte(fmt.Sprint(i))))
	}
	for fd := 0; fd < 5; fd++ {
		var got []string
		for !s.IsEmpty(keyedstore.FDKey(fd)) {
			v, _ := s.Find(keyedstore.FDKey(fd))
			got = append(got, string(v))
			_, err := s.Erase(keyedstore.FDKey(fd), false)
			require.NoError(t, err)
		}
		var want []string
		for i := fd; i < 50; i += 5 {
			want = append(want, fmt.Sprint(i))
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("fd %d order mismatch (-want +got):\n%s", fd, diff)
		}
	}
}

func TestMulti_SameKeyChainDoesNotGrow(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{Mode: keyedstore.Multi, MaxChain: 2})
	require.NoError(t, err)

	for i := 0; i < 64; i++ {
		require.NoError(t, s.Insert([]byte("fd"), []byte{byte(i)}))
	}
	assert.Equal(t, keyedstore.DefaultInitialBuckets, s.Buckets())
	assert.False(t, s.FixedCapacity())
}

type tracked struct {
	id       int
	released *[]int
}

func (t tracked) Release() { *t.released = append(*t.released, t.id) }

func TestErase_ReleaseHookOncePerEntry(t *testing.T) {
	s, err := keyedstore.New[tracked](keyedstore.Options{Mode: keyedstore.Multi})
	require.NoError(t, err)

	var released []int
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Insert([]byte("k"), tracked{id: i, released: &released}))
	}
	require.NoError(t, s.Insert([]byte("other"), tracked{id: 99, released: &released}))

	n, err := s.Erase([]byte("k"), true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 1, 2}, released)

	_, ok := s.Find([]byte("k"))
	assert.False(t, ok)
	_, err = s.Erase([]byte("k"), false)
	assert.True(t, errors.Is(err, api.ErrNotFound))
	assert.Equal(t, []int{0, 1, 2}, released)
}

func TestSetReleaseHook_OverridesReleaser(t *testing.T) {
	s, err := keyedstore.New[tracked](keyedstore.Options{})
	require.NoError(t, err)

	var viaMethod []int
	var viaHook []int
	s.SetReleaseHook(func(v tracked) { viaHook = append(viaHook, v.id) })
	require.NoError(t, s.Insert([]byte("a"), tracked{id: 1, released: &viaMethod}))
	_, err = s.Erase([]byte("a"), false)
	require.NoError(t, err)

	assert.Empty(t, viaMethod)
	assert.Equal(t, []int{1}, viaHook)
}

func TestClear_KeepsBucketsAndReleases(t *testing.T) {
	s, err := keyedstore.New[tracked](keyedstore.Options{MaxChain: 2})
	require.NoError(t, err)

	var released []int
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Insert(keyedstore.FDKey(i), tracked{id: i, released: &released}))
	}
	buckets := s.Buckets()
	s.Clear()

	assert.Len(t, released, 100)
	assert.Equal(t, buckets, s.Buckets())
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Occupied())
	require.NoError(t, s.Insert([]byte("again"), tracked{id: 1, released: &released}))
}

func TestDestroy_ReleasesAndRejectsInserts(t *testing.T) {
	s, err := keyedstore.New[tracked](keyedstore.Options{})
	require.NoError(t, err)

	var released []int
	require.NoError(t, s.Insert([]byte("a"), tracked{id: 1, released: &released}))
	s.Destroy()

	assert.Equal(t, []int{1}, released)
	assert.True(t, errors.Is(s.Insert([]byte("a"), tracked{}), api.ErrInvalidState))
	_, ok := s.Find([]byte("a"))
	assert.False(t, ok)
}

func TestOccupied_TracksNonEmptyBuckets(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{Mode: keyedstore.Multi, MaxChain: 100})
	require.NoError(t, err)
	keyedstore.SetHash(s, func(k []byte) uint64 { return uint64(k[0]) })

	// bucket 1: a,b (same bucket); bucket 2: c
	require.NoError(t, s.Insert([]byte{1, 'a'}, []byte("x")))
	require.NoError(t, s.Insert([]byte{1, 'b'}, []byte("x")))
	require.NoError(t, s.Insert([]byte{2, 'c'}, []byte("x")))
	assert.Equal(t, 2, s.Occupied())

	// removing the head of a two-entry chain leaves the bucket occupied
	_, err = s.Erase([]byte{1, 'a'}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Occupied())

	_, err = s.Erase([]byte{1, 'b'}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Occupied())

	_, err = s.Erase([]byte{2, 'c'}, true)
	require.NoError(t, err)
	assert.Zero(t, s.Occupied())
}

func TestRange_VisitsEverything(t *testing.T) {
	s, err := keyedstore.NewBytes(keyedstore.Options{})
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		require.NoError(t, s.Insert(keyedstore.FDKey(i), []byte{byte(i)}))
	}

	seen := make(map[byte]bool)
	s.Range(func(_ []byte, v []byte) bool {
		seen[v[0]] = true
		return true
	})
	assert.Len(t, seen, 40)

	calls := 0
	s.Range(func([]byte, []byte) bool {
		calls++
		return calls < 3
	})
	assert.Equal(t, 3, calls)
}
