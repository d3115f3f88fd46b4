package transcode

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/unpack"
)

func packedSource(l *ledger) *fakeSource {
	desc, _ := dataset.NewDescriptor("/Radiance", dataset.Uint16, 0, []uint64{2, 3})
	return &fakeSource{l: l, desc: desc, data: dataset.Uint16s{0, 10, 20, 30, 65535, 50}}
}

func TestTranscodeUnpack(t *testing.T) {
	l := newLedger("")
	alloc := &countingAlloc{l: l}
	dest := newFakeDest(l)
	tr := &Transcoder{Alloc: alloc}

	arr, err := tr.Transcode(context.Background(), packedSource(l), "/Radiance", dest, "Radiance",
		dataset.Float32, true, unpack.New(0.5).WithFill(65535), WithStats(), WithAttrs(map[string]any{"units": "W m-2"}))
	require.NoError(t, err)
	assert.Equal(t, "/Radiance", arr.Path())

	assert.Equal(t, dataset.Float32s{0, 5, 10, 15, unpack.DefaultMissing, 25}, dest.visible["Radiance"])
	assert.Equal(t, map[string]any{
		"units":        "W m-2",
		"scale_factor": 0.5,
		"_FillValue":   float32(unpack.DefaultMissing),
		"valid_min":    0.0,
		"valid_max":    25.0,
	}, dest.attrs["Radiance"])

	assert.True(t, l.balanced())
	assert.Equal(t, 2, alloc.peak, "one input and one output buffer")
}

func TestTranscodeIdentitySharesBuffer(t *testing.T) {
	l := newLedger("")
	alloc := &countingAlloc{l: l}
	dest := newFakeDest(l)
	tr := &Transcoder{Alloc: alloc}

	_, err := tr.Transcode(context.Background(), packedSource(l), "/Radiance", dest, "raw", dataset.Uint16, false, unpack.Params{})
	require.NoError(t, err)
	assert.Equal(t, dataset.Uint16s{0, 10, 20, 30, 65535, 50}, dest.visible["raw"])
	assert.Equal(t, 1, alloc.calls)
	assert.Empty(t, dest.attrs["raw"])
	assert.True(t, l.balanced())
}

func TestTranscodeWidening(t *testing.T) {
	l := newLedger("")
	dest := newFakeDest(l)
	_, err := Transcode(context.Background(), packedSource(l), "/Radiance", dest, "wide", dataset.Float64, false, unpack.Params{})
	require.NoError(t, err)
	assert.Equal(t, dataset.Float64s{0, 10, 20, 30, 65535, 50}, dest.visible["wide"])

	_, err = Transcode(context.Background(), packedSource(l), "/Radiance", dest, "narrow", dataset.String, false, unpack.Params{})
	assert.ErrorIs(t, err, errkind.TypeError)
	assert.True(t, l.balanced())
}

func TestTranscodeRejectsBadRequests(t *testing.T) {
	l := newLedger("")
	dest := newFakeDest(l)
	ctx := context.Background()
	src := packedSource(l)

	_, err := Transcode(ctx, src, "/Radiance", dest, "x", dataset.Float64, true, unpack.New(0))
	assert.ErrorIs(t, err, errkind.InvalidConfig)
	_, err = Transcode(ctx, src, "/Radiance", dest, "x", dataset.Int64, true, unpack.New(1))
	assert.ErrorIs(t, err, errkind.TypeError)
	_, err = Transcode(ctx, src, "/Nope", dest, "x", dataset.Float64, false, unpack.Params{})
	assert.ErrorIs(t, err, errkind.NotFound)
	_, err = Transcode(ctx, src, "/Radiance", dest, "x", dataset.Float64, false, unpack.Params{},
		WithRows(dataset.Rows{Start: 1, Count: 5}))
	assert.ErrorIs(t, err, errkind.ShapeError)

	_, err = Transcode(ctx, src, "/Radiance", dest, "dup", dataset.Float64, false, unpack.Params{})
	require.NoError(t, err)
	_, err = Transcode(ctx, src, "/Radiance", dest, "dup", dataset.Float64, false, unpack.Params{})
	assert.ErrorIs(t, err, errkind.AlreadyExists)

	assert.Empty(t, dest.visible["x"])
	assert.True(t, l.balanced())
}

func TestTranscodeFailuresDoNotLeak(t *testing.T) {
	for _, s := range []stage{atOpen, atRead, atAllocate, atCreate, atWrite, atAttr, atCommit} {
		t.Run(string(s), func(t *testing.T) {
			l := newLedger(s)
			alloc := &countingAlloc{l: l}
			dest := newFakeDest(l)
			tr := &Transcoder{Alloc: alloc}

			_, err := tr.Transcode(context.Background(), packedSource(l), "/Radiance", dest, "Radiance",
				dataset.Float64, true, unpack.New(2), WithStats())
			require.Error(t, err)
			assert.NotEqual(t, errkind.Other, errkind.KindOf(err), "failure should be classified: %v", err)

			assert.True(t, l.balanced(), "acquired %v released %v", l.acquired, l.released)
			assert.Zero(t, alloc.live)
			assert.Empty(t, dest.visible, "no partial array may be visible")
		})
	}
}

type recorder struct {
	calls int
	bytes int
	errs  int
}

func (r *recorder) RecordTranscode(_ time.Duration, bytes int, err error) {
	r.calls++
	r.bytes += bytes
	if err != nil {
		r.errs++
	}
}

func TestTranscodeLogsAndRecords(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	rec := &recorder{}
	tr := &Transcoder{Log: logger, Metrics: rec}

	l := newLedger("")
	dest := newFakeDest(l)
	_, err := tr.Transcode(context.Background(), packedSource(l), "/Radiance", dest, "a", dataset.Float32, true, unpack.New(1))
	require.NoError(t, err)
	_, err = tr.Transcode(context.Background(), packedSource(l), "/Radiance", dest, "a", dataset.Float32, true, unpack.New(1))
	require.Error(t, err)

	assert.Equal(t, 2, rec.calls)
	assert.Equal(t, 1, rec.errs)
	assert.Equal(t, 6*4, rec.bytes)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, uint64(6), entries[0].Data["elements"])
	assert.Equal(t, "/Radiance", entries[0].Data["src"])
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
}

func TestTranscodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := newLedger("")
	_, err := Transcode(ctx, packedSource(l), "/Radiance", newFakeDest(l), "a", dataset.Float32, true, unpack.New(1))
	assert.ErrorIs(t, err, context.Canceled)
}
