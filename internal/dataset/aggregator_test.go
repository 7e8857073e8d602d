package dataset

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adherence.onebusaway.org/internal/models"
)

type recordingSink struct {
	calls   int
	merged  int
	pending int
	stored  map[string]bool
	err     error
}

func (s *recordingSink) Persist(_ context.Context, merged, pending []models.MatchedDelayRecord) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.merged = len(merged)
	s.pending = len(pending)
	if s.stored == nil {
		s.stored = make(map[string]bool)
	}
	for _, r := range pending {
		s.stored[r.Key()] = true
	}
	return nil
}

func record(vehicle string, minute int, delay int, line string) models.MatchedDelayRecord {
	observed := time.Date(2025, 10, 2, 8, minute, 0, 0, time.UTC)
	return models.MatchedDelayRecord{
		ObservedAt:   observed,
		Date:         "2025-10-02",
		Hour:         8,
		DayOfWeek:    3,
		Season:       models.SeasonAutumn,
		LineNumber:   line,
		RouteID:      "10" + line,
		TripID:       "trip-" + vehicle,
		VehicleID:    vehicle,
		StopID:       "stop-1",
		Latitude:     60.17,
		Longitude:    24.94,
		DelaySeconds: delay,
	}
}

func TestMergeDropsExactDuplicates(t *testing.T) {
	prior := []models.MatchedDelayRecord{record("v1", 10, 60, "55"), record("v2", 10, 0, "550")}
	fresh := []models.MatchedDelayRecord{
		record("v1", 10, 60, "55"),
		record("v1", 11, 60, "55"),
		record("v1", 11, 60, "55"),
	}

	result := Merge(prior, fresh)
	require.Len(t, result.Merged, 3)
	assert.Len(t, result.Added, 1)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, "v1", result.Merged[0].VehicleID)
	assert.Equal(t, "v2", result.Merged[1].VehicleID)
	assert.Equal(t, 11, result.Merged[2].ObservedAt.Minute())
}

func TestMergeDiffersOnAnyField(t *testing.T) {
	base := record("v1", 10, 60, "55")
	other := base
	other.StopID = "stop-2"

	result := Merge([]models.MatchedDelayRecord{base}, []models.MatchedDelayRecord{other})
	assert.Len(t, result.Merged, 2)
}

func TestMergeAndPersistIdempotent(t *testing.T) {
	sink := &recordingSink{}
	agg := NewAggregator(nil, sink)
	ctx := context.Background()

	prior := []models.MatchedDelayRecord{record("v1", 10, 60, "55")}
	batch := []models.MatchedDelayRecord{record("v1", 10, 60, "55"), record("v2", 12, -30, "550")}

	agg.Accumulate(batch...)
	first, err := agg.MergeAndPersist(ctx, prior)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Pending())

	agg.Accumulate(batch...)
	second, err := agg.MergeAndPersist(ctx, prior)
	require.NoError(t, err)
	assert.Len(t, second.Merged, len(first.Merged))

	agg.Accumulate(batch...)
	third, err := agg.MergeAndPersist(ctx, second.Merged)
	require.NoError(t, err)
	assert.Len(t, third.Merged, len(second.Merged), "no growth against an already merged dataset")
	assert.Empty(t, third.Added)

	assert.Equal(t, 3, sink.calls)
	assert.Equal(t, 2, sink.merged)
}

func TestMergeAndPersistKeepsBufferOnFailure(t *testing.T) {
	failing := &recordingSink{err: errors.New("read-only filesystem")}
	healthy := &recordingSink{}
	agg := NewAggregator(nil, healthy, failing)

	agg.Accumulate(record("v1", 10, 60, "55"))
	_, err := agg.MergeAndPersist(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")
	assert.Equal(t, 1, agg.Pending())
	assert.Equal(t, 1, healthy.calls)

	failing.err = nil
	result, err := agg.MergeAndPersist(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, result.Merged, 1)
	assert.Equal(t, 0, agg.Pending())
}

func TestMergeAndPersistMirrorCatchesUpAfterFailure(t *testing.T) {
	file := &recordingSink{}
	mirror := &recordingSink{err: errors.New("mirror down")}
	agg := NewAggregator(nil, file, mirror)
	ctx := context.Background()

	rec := record("v1", 10, 60, "55")
	agg.Accumulate(rec)
	first, err := agg.MergeAndPersist(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, 1, agg.Pending())
	assert.True(t, file.stored[rec.Key()])

	// The file already holds the row, so the next prior dataset contains it.
	mirror.err = nil
	second, err := agg.MergeAndPersist(ctx, first.Merged)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Equal(t, 0, agg.Pending())
	assert.Equal(t, 1, mirror.pending)
	assert.True(t, mirror.stored[rec.Key()])
}

func TestMergeAndPersistPassesDistinctPending(t *testing.T) {
	sink := &recordingSink{}
	agg := NewAggregator(nil, sink)

	agg.Accumulate(record("v1", 10, 60, "55"), record("v1", 10, 60, "55"), record("v2", 11, 0, "55"))
	_, err := agg.MergeAndPersist(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sink.pending)
}

func TestOverlappingRoundsProduceNoDuplicates(t *testing.T) {
	agg := NewAggregator(nil)
	ctx := context.Background()

	round1 := []models.MatchedDelayRecord{record("v1", 10, 60, "55"), record("v2", 10, 30, "550")}
	round2 := []models.MatchedDelayRecord{record("v2", 10, 30, "550"), record("v3", 11, 0, "55")}

	agg.Accumulate(round1...)
	r1, err := agg.MergeAndPersist(ctx, nil)
	require.NoError(t, err)

	agg.Accumulate(round2...)
	r2, err := agg.MergeAndPersist(ctx, r1.Merged)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(r2.Merged), len(round1)+len(round2))
	assert.Len(t, r2.Merged, 3)

	keys := map[string]bool{}
	for _, r := range r2.Merged {
		assert.False(t, keys[r.Key()])
		keys[r.Key()] = true
	}
}

func TestTopLines(t *testing.T) {
	var records []models.MatchedDelayRecord
	for i, line := range []string{"55", "550", "55", "4", "55", "550", "7", "8", "9"} {
		records = append(records, record(fmt.Sprintf("v%d", i), i, 0, line))
	}

	top := TopLines(records, 3)
	require.Len(t, top, 3)
	assert.Equal(t, LineCount{LineNumber: "55", Rows: 3}, top[0])
	assert.Equal(t, LineCount{LineNumber: "550", Rows: 2}, top[1])
	assert.Equal(t, LineCount{LineNumber: "4", Rows: 1}, top[2])

	assert.Len(t, TopLines(records, 50), 6)
	assert.Empty(t, TopLines(nil, 5))
}
