package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMappings_ExistingAssociationWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBadgeMapping(ctx, "101", 1))
	// A rebuild trying to re-map the same badge must not overwrite.
	require.NoError(t, s.SaveBadgeMapping(ctx, "101", 99))

	badges, err := s.BadgeMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), badges["101"])
}

func TestMappings_BadgeAndNameAreSeparateNamespaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBadgeMapping(ctx, "alice", 1))
	require.NoError(t, s.SaveNameMapping(ctx, "alice", 2))

	badges, err := s.BadgeMappings(ctx)
	require.NoError(t, err)
	names, err := s.NameMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), badges["alice"])
	assert.Equal(t, int64(2), names["alice"])
}

func TestWatermark_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "no watermark before the first run")

	at := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetWatermark(ctx, at))

	got, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	// Moving forward overwrites.
	later := at.Add(time.Hour)
	require.NoError(t, s.SetWatermark(ctx, later))
	got, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(later))
}

func TestMappingBuiltAt_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.MappingBuiltAt(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	at := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetMappingBuiltAt(ctx, at))
	got, err = s.MappingBuiltAt(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func runAt(at time.Time) SyncRun {
	return SyncRun{
		ID:          uuid.New().String(),
		RanAt:       at,
		WindowStart: at.Add(-time.Hour),
		WindowEnd:   at,
		Results:     "[]",
	}
}

func TestAuditLog_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendRun(ctx, runAt(base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].RanAt.After(runs[1].RanAt))
	assert.True(t, runs[1].RanAt.After(runs[2].RanAt))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, runs[0].ID, latest.ID)
}

func TestAuditLog_EvictsBeyondCap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var oldest, newest string
	for i := 0; i < auditLogMaxEntries+10; i++ {
		run := runAt(base.Add(time.Duration(i) * time.Minute))
		run.TotalPunches = i
		if i == 0 {
			oldest = run.ID
		}
		newest = run.ID
		require.NoError(t, s.AppendRun(ctx, run))
	}

	runs, err := s.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, auditLogMaxEntries)
	assert.Equal(t, newest, runs[0].ID)
	for _, run := range runs {
		assert.NotEqual(t, oldest, run.ID, fmt.Sprintf("run %d should have been evicted", run.TotalPunches))
	}
}

func TestLatestRun_EmptyLog(t *testing.T) {
	s := openTestStore(t)

	latest, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}
