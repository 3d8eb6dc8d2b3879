package puddlestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-wavestore/fourstate"
	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/vcd"
	"github.com/forestrie/go-wavestore/wavetesting"
)

func samplePuddle(t *testing.T, start uint64, id vcd.SignalID, u uint64) *puddles.Puddle {
	t.Helper()
	b := puddles.NewBuilder(start, puddles.BandOf(id))
	require.NoError(t, b.AddChange(id, start+1, fourstate.FromUint64(16, u)))
	return b.Finish()
}

type kvFactory func(t *testing.T, tc wavetesting.TestContext) KV

var backends = map[string]kvFactory{
	"mem": func(t *testing.T, _ wavetesting.TestContext) KV { return NewMemKV() },
	"bolt": func(t *testing.T, tc wavetesting.TestContext) KV {
		kv, err := OpenBolt(tc.Path("store.db"), BoltOptions{NoSync: true})
		require.NoError(t, err)
		return kv
	},
}

func forEachBackend(t *testing.T, test func(t *testing.T, tc wavetesting.TestContext, kv KV)) {
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "puddlestore"})
			kv := factory(t, tc)
			test(t, tc, kv)
		})
	}
}

func TestKVInsertOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ wavetesting.TestContext, kv KV) {
		defer kv.Close()

		_, err := kv.Get([]byte("p"), []byte("k"))
		assert.ErrorIs(t, err, ErrPartitionNotFound)

		require.NoError(t, kv.Insert([]byte("p"), []byte("k"), []byte("first")))
		assert.ErrorIs(t, kv.Insert([]byte("p"), []byte("k"), []byte("second")), ErrKeyExists)

		v, err := kv.Get([]byte("p"), []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), v)

		_, err = kv.Get([]byte("p"), []byte("missing"))
		assert.ErrorIs(t, err, ErrKeyNotFound)

		assert.ErrorIs(t, kv.Insert(nil, []byte("k"), nil), ErrEmptyPartitionName)
	})
}

func TestKVOrdering(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ wavetesting.TestContext, kv KV) {
		defer kv.Close()

		for _, name := range []string{"c", "a", "b"} {
			require.NoError(t, kv.CreatePartition([]byte(name)))
		}
		require.NoError(t, kv.CreatePartition([]byte("a")), "create is idempotent")
		names, err := kv.Partitions()
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, names)

		for _, k := range []string{"z", "x", "y"} {
			require.NoError(t, kv.Insert([]byte("a"), []byte(k), []byte(k+k)))
		}
		var keys []string
		require.NoError(t, kv.ForEach([]byte("a"), func(k, v []byte) error {
			keys = append(keys, string(k))
			assert.Equal(t, string(k)+string(k), string(v))
			return nil
		}))
		assert.Equal(t, []string{"x", "y", "z"}, keys)

		ok, err := kv.HasPartition([]byte("b"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.ErrorIs(t, kv.ForEach([]byte("nope"), func(k, v []byte) error { return nil }), ErrPartitionNotFound)
	})
}

func TestDuplicateInsertKeepsFirst(t *testing.T) {
	for _, compress := range []bool{false, true} {
		forEachBackend(t, func(t *testing.T, tc wavetesting.TestContext, kv KV) {
			ctx := context.Background()
			s, err := New(tc.Log, kv, WithCompression(compress))
			require.NoError(t, err)
			defer s.Close()

			first := samplePuddle(t, puddles.PuddleWidth, 3, 0xaaaa)
			require.NoError(t, s.Insert(ctx, first))
			err = s.Insert(ctx, samplePuddle(t, puddles.PuddleWidth, 5, 0x5555))
			assert.ErrorIs(t, err, ErrDuplicatePuddle)

			got, err := s.Retrieve(ctx, 3, puddles.PuddleWidth+7)
			require.NoError(t, err)
			assert.Equal(t, first.Data, got.Data)
			_, ok := got.Run(5)
			assert.False(t, ok)
		})
	}
}

func TestRetrieveNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tc wavetesting.TestContext, kv KV) {
		ctx := context.Background()
		s, err := New(tc.Log, kv)
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Retrieve(ctx, 70, 0)
		var perr *PuddleError
		require.ErrorAs(t, err, &perr)
		assert.ErrorIs(t, err, ErrPuddleNotFound)
		assert.Equal(t, vcd.SignalID(64), perr.Band)

		require.NoError(t, s.Insert(ctx, samplePuddle(t, 0, 1, 1)))
		_, err = s.Retrieve(ctx, 70, 0)
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, uint64(0), perr.Start)
	})
}

func TestPartitionsFloorCeil(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "puddlestore"})
	s, err := New(tc.Log, NewMemKV(), WithCacheSize(4))
	require.NoError(t, err)
	defer s.Close()

	for _, w := range []uint64{5, 1, 3} {
		require.NoError(t, s.Insert(ctx, samplePuddle(t, w*puddles.PuddleWidth, 0, w)))
	}
	require.NoError(t, s.PutMeta("config", []byte("x")))

	w := uint64(puddles.PuddleWidth)
	assert.Equal(t, []uint64{w, 3 * w, 5 * w}, s.ListPartitions())

	f, ok := s.Floor(4 * w)
	require.True(t, ok)
	assert.Equal(t, 3*w, f)
	_, ok = s.Floor(w - 1)
	assert.False(t, ok)

	c, ok := s.Ceil(3*w + 1)
	require.True(t, ok)
	assert.Equal(t, 5*w, c)
	_, ok = s.Ceil(5*w + 1)
	assert.False(t, ok)

	// cached and uncached retrieval agree
	a, err := s.Retrieve(ctx, 0, 3*w)
	require.NoError(t, err)
	b, err := s.Retrieve(ctx, 0, 3*w)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestBoltReopen(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "puddlestore"})
	path := tc.Path("reopen.db")

	kv, err := OpenBolt(path, BoltOptions{NoSync: true})
	require.NoError(t, err)
	s, err := New(tc.Log, kv, WithCompression(true))
	require.NoError(t, err)
	want := samplePuddle(t, 2*puddles.PuddleWidth, 65, 0xbeef)
	require.NoError(t, s.Insert(ctx, want))
	require.NoError(t, s.PutLink(ctx, 65, FirstLink, 2*puddles.PuddleWidth+1))
	require.NoError(t, s.PutMeta("config", []byte("done")))
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	kv, err = OpenBolt(path, BoltOptions{ReadOnly: true})
	require.NoError(t, err)
	s, err = New(tc.Log, kv)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []uint64{2 * puddles.PuddleWidth}, s.ListPartitions())
	got, err := s.Retrieve(ctx, 65, 2*puddles.PuddleWidth)
	require.NoError(t, err)
	changes, err := got.Changes(65)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	u, _ := changes[0].Value.Uint64()
	assert.Equal(t, uint64(0xbeef), u)

	next, ok, err := s.NextLink(ctx, 65, FirstLink)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2*puddles.PuddleWidth+1), next)

	meta, err := s.GetMeta("config")
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), meta)
	_, err = s.GetMeta("id_map")
	assert.ErrorIs(t, err, ErrMetaNotFound)
}

func TestLinks(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "puddlestore"})
	s, err := New(tc.Log, NewMemKV())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.NextLink(ctx, 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutLink(ctx, 1, 0, 9000))
	assert.ErrorIs(t, s.PutLink(ctx, 1, 0, 9001), ErrKeyExists)
	next, ok, err := s.NextLink(ctx, 1, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(9000), next)

	// links never show up as window partitions
	assert.Empty(t, s.ListPartitions())

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.PutLink(cctx, 2, 0, 1), context.Canceled)
}
