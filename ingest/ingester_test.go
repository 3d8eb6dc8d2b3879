package ingest

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-wavestore/hierarchy"
	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/puddlestore"
	"github.com/forestrie/go-wavestore/vcd"
	"github.com/forestrie/go-wavestore/wavetesting"
)

const w = puddles.PuddleWidth

func newStore(t *testing.T, tc wavetesting.TestContext) *puddlestore.Store {
	t.Helper()
	s, err := puddlestore.New(tc.Log, puddlestore.NewMemKV())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// twoBandTrace declares 65 one bit signals so ids 0 and 64 are in different
// bands.
func twoBandTrace() string {
	var b strings.Builder
	b.WriteString("$timescale 1ns $end\n$scope module top $end\n")
	for i := 0; i <= 64; i++ {
		fmt.Fprintf(&b, "$var wire 1 %s s%d $end\n", wavetesting.IDCode(i), i)
	}
	b.WriteString("$upscope $end\n$enddefinitions $end\n")
	c0, c64 := wavetesting.IDCode(0), wavetesting.IDCode(64)
	fmt.Fprintf(&b, "#0\n1%s\n1%s\n", c0, c64)
	fmt.Fprintf(&b, "#%d\n0%s\n", w+904, c0)
	fmt.Fprintf(&b, "#%d\n0%s\n", 2*w+808, c64)
	fmt.Fprintf(&b, "#%d\n", 4*w+3616)
	return b.String()
}

func TestIngestEveryActiveBandEveryWindow(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	store := newStore(t, tc)

	in := New(tc.Log, store, WithDBName("two-band"))
	res, err := in.Run(ctx, strings.NewReader(twoBandTrace()))
	require.NoError(t, err)
	assert.Equal(t, Done, in.State())

	assert.Equal(t, 4, res.Windows)
	assert.Equal(t, 8, res.Puddles)
	assert.Equal(t, uint64(4), res.Meta.Changes)
	assert.Equal(t, puddles.TimeRange{Start: 0, End: 4*w + 3616}, res.Meta.TimeRange)
	assert.Equal(t, []uint64{0, w, 2 * w, 4 * w}, store.ListPartitions())

	// band 64 did not change in the second window, its puddle carries only
	// the backward link
	p, err := store.Retrieve(ctx, 64, w)
	require.NoError(t, err)
	assert.Empty(t, p.Runs)
	assert.Equal(t, map[vcd.SignalID]uint64{64: 0}, p.Prev)

	p, err = store.Retrieve(ctx, 0, 4*w)
	require.NoError(t, err)
	assert.Empty(t, p.Runs)
	assert.Equal(t, map[vcd.SignalID]uint64{0: w + 904}, p.Prev)

	next, ok, err := store.NextLink(ctx, 0, puddlestore.FirstLink)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0), next)
	next, ok, err = store.NextLink(ctx, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(w+904), next)
	next, ok, err = store.NextLink(ctx, 64, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2*w+808), next)
	_, ok, err = store.NextLink(ctx, 0, w)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestWritesCompletionRecords(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	store := newStore(t, tc)

	trace := wavetesting.GenerateTrace(wavetesting.TraceConfig{
		Seed:      7,
		Signals:   []wavetesting.SignalDef{{Scope: "top", Name: "a", Width: 8}, {Scope: "top.sub", Name: "b", Width: 40}},
		Steps:     200,
		MaxStep:   100,
		FourState: true,
	})
	res, err := New(tc.Log, store).Run(ctx, bytes.NewReader(trace.VCD))
	require.NoError(t, err)

	data, err := store.GetMeta(ConfigKey)
	require.NoError(t, err)
	var m Meta
	require.NoError(t, m.UnmarshalBinary(data))
	assert.Equal(t, res.Meta.RunID, m.RunID)
	assert.Equal(t, trace.LastTime, m.TimeRange.End)
	assert.Equal(t, 2, m.Signals)

	digest, err := Digest(bytes.NewReader(trace.VCD))
	require.NoError(t, err)
	assert.NoError(t, m.Check(digest))
	assert.ErrorIs(t, m.Check([]byte("other")), ErrSourceMismatch)

	data, err = store.GetMeta(IDMapKey)
	require.NoError(t, err)
	var idx hierarchy.Index
	require.NoError(t, idx.UnmarshalBinary(data))
	item, err := idx.Resolve("top.sub.b")
	require.NoError(t, err)
	assert.Equal(t, 40, item.Width)

	// every stored change of b matches the trace
	var got []string
	for _, start := range m.TimeRange.Starts() {
		p, err := store.Retrieve(ctx, item.ID, start)
		require.NoError(t, err)
		if _, ok := p.Run(item.ID); !ok {
			continue
		}
		changes, err := p.Changes(item.ID)
		require.NoError(t, err)
		for _, c := range changes {
			got = append(got, fmt.Sprintf("%d:%s", c.Time, c.Value))
		}
	}
	var want []string
	for _, c := range trace.Changes["top.sub.b"] {
		want = append(want, fmt.Sprintf("%d:%s", c.Time, c.Bits))
	}
	assert.Equal(t, want, got)
}

func TestIngestTwiceFailsOnDuplicatePuddle(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	store := newStore(t, tc)

	_, err := New(tc.Log, store).Run(ctx, strings.NewReader(twoBandTrace()))
	require.NoError(t, err)

	in := New(tc.Log, store)
	_, err = in.Run(ctx, strings.NewReader(twoBandTrace()))
	assert.ErrorIs(t, err, puddlestore.ErrDuplicatePuddle)
	assert.Equal(t, Failed, in.State())

	_, err = in.Run(ctx, strings.NewReader(twoBandTrace()))
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestIngestCancelledLeavesStoreIncomplete(t *testing.T) {
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	store := newStore(t, tc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := New(tc.Log, store)
	_, err := in.Run(ctx, strings.NewReader(twoBandTrace()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, in.State())

	_, err = store.GetMeta(ConfigKey)
	assert.ErrorIs(t, err, puddlestore.ErrMetaNotFound)
}

func TestIngestParseErrorFails(t *testing.T) {
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	store := newStore(t, tc)

	in := New(tc.Log, store)
	_, err := in.Run(context.Background(), strings.NewReader("$scope module top $end\n$var wire 1 ! a $end\n"))
	assert.ErrorIs(t, err, vcd.ErrParse)
	assert.Equal(t, Failed, in.State())
}

func TestIngestRealsStringsAndMetrics(t *testing.T) {
	ctx := context.Background()
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	store := newStore(t, tc)

	trace := `
$scope module top $end
$var real 64 ! temp $end
$var string 1 " label $end
$var wire 2 # bus $end
$upscope $end
$enddefinitions $end
#0
r1.5 !
shello "
b01 #
#3
b10 #
b11 #
`
	reg := prometheus.NewRegistry()
	in := New(tc.Log, store, WithRegisterer(reg), WithSourceDigest([]byte("fixed")))
	res, err := in.Run(ctx, strings.NewReader(trace))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.SkippedStrings)
	assert.Equal(t, []byte("fixed"), res.Meta.SourceDigest)

	p, err := store.Retrieve(ctx, 0, 0)
	require.NoError(t, err)
	changes, err := p.Changes(0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	u, ok := changes[0].Value.Uint64()
	require.True(t, ok)
	assert.Equal(t, 1.5, math.Float64frombits(u))

	// the second change of bus at time 3 replaced the first
	changes, err = p.Changes(2)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "11", changes[1].Value.String())

	assert.Equal(t, 3.0, testutil.ToFloat64(in.metrics.changes))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.metrics.puddles))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.metrics.skipped.WithLabelValues("string")))
	n, err := testutil.GatherAndCount(reg, "wavestore_ingest_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetaMarshalRoundTrip(t *testing.T) {
	m := Meta{
		DBName:       "dut",
		RunID:        "3f1c2b1e-0000-4000-8000-000000000001",
		TimeRange:    puddles.TimeRange{Start: 10, End: 3 * w},
		SourceDigest: bytes.Repeat([]byte{0xab}, DigestSize),
		PuddleWidth:  puddles.PuddleWidth,
		BandSize:     puddles.BandSize,
		Version:      MetaCurrentVersion,
		Signals:      65,
		Changes:      1234,
	}
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	var back Meta
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, m, back)
	assert.NoError(t, back.Check(m.SourceDigest))

	assert.Error(t, back.UnmarshalBinary([]byte{0xff, 0x00}))
}

func TestNewBuilderLinksBackToEarlierWindows(t *testing.T) {
	tc := wavetesting.NewTestContext(t, wavetesting.TestConfig{TestLabelPrefix: "ingest"})
	h, err := vcd.NewParser(strings.NewReader(twoBandTrace())).ReadHeader()
	require.NoError(t, err)

	in := New(tc.Log, newStore(t, tc))
	in.header = h
	in.open = 2 * w
	in.last[1] = w + 7

	b, err := in.newBuilder(0)
	require.NoError(t, err)
	assert.Equal(t, map[vcd.SignalID]uint64{1: w + 7}, b.Finish().Prev)

	// a last change inside the open window can not be a backward link
	in.last[2] = 2*w + 1
	_, err = in.newBuilder(0)
	assert.ErrorIs(t, err, puddles.ErrTimeOutsidePuddle)
}
