package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLiteJournal(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.Init(context.Background()))
	return j
}

func TestJournalRecordAndList(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.Record(ctx, Invocation{Tool: "calculateTargetPrices", Arguments: `{"a":1}`, Summary: "## ok", DurationMS: 3, CreatedAt: base}))
	require.NoError(t, j.Record(ctx, Invocation{Tool: "getBinanceMarketData", Error: true, Message: "price unavailable", Summary: "## Error", CreatedAt: base.Add(time.Minute)}))

	all, err := j.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "getBinanceMarketData", all[0].Tool)
	assert.True(t, all[0].Error)
	assert.Equal(t, "price unavailable", all[0].Message)
	assert.Equal(t, "{}", all[0].Arguments)
	assert.NotEmpty(t, all[0].ID)
	assert.True(t, base.Add(time.Minute).Equal(all[0].CreatedAt))

	assert.Equal(t, `{"a":1}`, all[1].Arguments)
	assert.False(t, all[1].Error)
	assert.Equal(t, int64(3), all[1].DurationMS)

	filtered, err := j.List(ctx, "calculateTargetPrices", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "calculateTargetPrices", filtered[0].Tool)
}

func TestJournalListLimit(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, Invocation{Tool: "t", Summary: "s", CreatedAt: now.Add(time.Duration(i) * time.Second)}))
	}

	got, err := j.List(ctx, "", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestJournalPruneBefore(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	now := time.Now().UTC()
	require.NoError(t, j.Record(ctx, Invocation{Tool: "old", Summary: "s", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, j.Record(ctx, Invocation{Tool: "new", Summary: "s", CreatedAt: now}))

	n, err := j.PruneBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := j.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Tool)
}
