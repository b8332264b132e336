package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Storage {
	t.Helper()
	dsn, err := FileDSN(filepath.Join(t.TempDir(), "oracle.sqlite"))
	require.NoError(t, err)
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordSnapshotAndLatest(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	feed := "0x00000000000000000000000000000000000000F1"
	observed := time.Unix(1700000000, 0)

	require.NoError(t, store.RecordSample(ctx, feed, "Alpha", "2000.5", observed, observed.Add(time.Second)))
	require.NoError(t, store.RecordSnapshot(ctx, feed, "2000.5", []string{"alpha"}, "0xproof", observed))
	require.NoError(t, store.RecordSnapshot(ctx, feed, "2001", []string{"alpha", "beta"}, "0xproof2", observed.Add(time.Minute)))

	snap, err := store.LatestSnapshot(ctx, strings.ToLower(feed))
	require.NoError(t, err)
	require.Equal(t, "2001", snap.MedianPrice)
	require.Equal(t, []string{"alpha", "beta"}, snap.Feeders)
	require.Equal(t, "0xproof2", snap.ProofID)

	count, err := store.SampleCount(ctx, feed, observed)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestLatestSnapshotMissing(t *testing.T) {
	store := openTestDB(t)
	_, err := store.LatestSnapshot(context.Background(), "0x01")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestPruneSamples(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.RecordSample(ctx, "0x01", "alpha", "1", ts, ts))
	}
	removed, err := store.PruneSamples(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ")
	require.ErrorIs(t, err, ErrPathRequired)
	_, err = FileDSN("")
	require.ErrorIs(t, err, ErrPathRequired)
}
