package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adherence.onebusaway.org/internal/models"
)

func TestCSVStoreMissingFileIsEmpty(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "nope.csv"), time.UTC, nil)
	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVStoreRoundTrip(t *testing.T) {
	for _, name := range []string{"delays.csv", "delays.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			store := NewCSVStore(path, time.UTC, nil)
			ctx := context.Background()

			in := []models.MatchedDelayRecord{record("v1", 10, 60, "55"), record("v2", 11, -45, "550")}
			in[1].TripID = ""
			require.NoError(t, store.Save(ctx, in))

			out, err := store.Load(ctx)
			require.NoError(t, err)
			require.Len(t, out, 2)
			for i := range in {
				assert.Equal(t, in[i].Key(), out[i].Key())
			}
			assert.Equal(t, "", out[1].TripID)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary file is renamed into place")
		})
	}
}

func TestCSVStoreWritesHeaderAndGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delays.csv.gz")
	store := NewCSVStore(path, time.UTC, nil)
	require.NoError(t, store.Save(context.Background(), []models.MatchedDelayRecord{record("v1", 10, 300, "55")}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	content, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(models.DelayRecordColumns, ","), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",300,5"))
}

func TestCSVStoreLoadsLegacyColumnsAndSkipsBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delays.csv")
	content := "timestamp_local,date,hour,dow,is_weekend,season,line_number,route_id,trip_id,vehicle_id,nearest_stop,latitude,longitude,delay_seconds,delay_minutes,delay_minutes_abs\n" +
		"2025-10-02 08:15:00,2025-10-02,8,3,0,autumn,55,1055,t1,22/1234,1130446,60.181557,24.926863,300,5.0,5.0\n" +
		"not a timestamp,2025-10-02,8,3,0,autumn,55,1055,t1,22/1234,1130446,60.18,24.92,300,5.0,5.0\n" +
		"2025-10-02 08:16:00,2025-10-02,8,3,0,autumn,55,1055,,22/1235,1130447,60.1,24.9,-60,-1.0,1.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := NewCSVStore(path, time.UTC, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 300, records[0].DelaySeconds)
	assert.Equal(t, "", records[1].TripID)
	assert.Equal(t, -60, records[1].DelaySeconds)
}

func TestCSVStoreWithAggregator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delays.csv")
	store := NewCSVStore(path, time.UTC, nil)
	agg := NewAggregator(nil, store)
	ctx := context.Background()

	batch := []models.MatchedDelayRecord{record("v1", 10, 60, "55"), record("v2", 10, 60, "55")}
	for round := 0; round < 3; round++ {
		prior, err := store.Load(ctx)
		require.NoError(t, err)
		agg.Accumulate(batch...)
		_, err = agg.MergeAndPersist(ctx, prior)
		require.NoError(t, err)
	}

	final, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, final, 2)
}
