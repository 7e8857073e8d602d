package poller

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adherence.onebusaway.org/gtfsdb"
	"adherence.onebusaway.org/internal/appconf"
	"adherence.onebusaway.org/internal/clock"
	"adherence.onebusaway.org/internal/dataset"
	"adherence.onebusaway.org/internal/delay"
	"adherence.onebusaway.org/internal/gtfs"
	"adherence.onebusaway.org/internal/matcher"
	"adherence.onebusaway.org/internal/metrics"
	"adherence.onebusaway.org/internal/models"
	"adherence.onebusaway.org/internal/schedule"
)

type fakeSource struct {
	mu       sync.Mutex
	idx      *schedule.Index
	obs      []models.VehicleObservation
	fetchErr error
	fetches  int
	onFetch  func(n int)
}

func (f *fakeSource) Snapshot() *schedule.Index { return f.idx }

func (f *fakeSource) RefreshIfDue(context.Context) (bool, error) { return false, nil }

func (f *fakeSource) FetchObservations(context.Context) ([]models.VehicleObservation, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch(n)
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.obs, nil
}

type failingLoader struct{}

func (failingLoader) Load(context.Context) ([]models.MatchedDelayRecord, error) {
	return nil, errors.New("disk on fire")
}

func helsinki(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

func ptr[T any](v T) *T { return &v }

func testIndex() *schedule.Index {
	routes := []models.Route{{ID: "1055", ShortName: "55"}, {ID: "1009", ShortName: "9"}}
	visits := []models.ScheduledStopVisit{
		{TripID: "t55", RouteID: "1055", StopID: "s1", StopSequence: 1, ArrivalSeconds: 29700, Lat: 60.1710, Lon: 24.9410},
		{TripID: "t55", RouteID: "1055", StopID: "s2", StopSequence: 2, ArrivalSeconds: 30600, Lat: 60.1690, Lon: 24.9320},
		{TripID: "t9", RouteID: "1009", StopID: "s9", StopSequence: 1, ArrivalSeconds: 18000, Lat: 60.1800, Lon: 24.9500},
	}
	return schedule.FromVisits(routes, visits)
}

// testObservations covers one accepted record and one of each rejection.
func testObservations(loc *time.Location) []models.VehicleObservation {
	at := time.Date(2025, 10, 2, 8, 20, 0, 0, loc)
	return []models.VehicleObservation{
		{VehicleID: "v-ok", TripID: "t55", RouteID: "1055", Latitude: ptr(60.1712), Longitude: ptr(24.9412), ObservedAt: at},
		{VehicleID: "v-unknown", RouteID: "9999", Latitude: ptr(60.17), Longitude: ptr(24.94), ObservedAt: at},
		{VehicleID: "v-noposition", TripID: "t55", RouteID: "1055", ObservedAt: at},
		{VehicleID: "v-implausible", TripID: "t9", RouteID: "1009", Latitude: ptr(60.18), Longitude: ptr(24.95), ObservedAt: at},
	}
}

type harness struct {
	poller   *Poller
	source   *fakeSource
	store    *dataset.CSVStore
	db       *gtfsdb.Client
	metrics  *metrics.Metrics
	clock    *clock.MockClock
	textfile string
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	loc := helsinki(t)
	dir := t.TempDir()

	db, err := gtfsdb.NewClient(gtfsdb.NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := dataset.NewCSVStore(filepath.Join(dir, "delays.csv"), loc, nil)
	m := metrics.New()
	clk := clock.NewMockClock(time.Date(2025, 10, 2, 5, 20, 0, 0, time.UTC))
	source := &fakeSource{idx: testIndex(), obs: testObservations(loc)}

	if cfg.MetricsTextfile == "" {
		cfg.MetricsTextfile = filepath.Join(dir, "adherence.prom")
	}
	p := New(cfg, Deps{
		Source:     source,
		Matcher:    matcher.New(matcher.Config{}),
		Estimator:  delay.New(loc, 0),
		Aggregator: dataset.NewAggregator(nil, store, db),
		Dataset:    store,
		Recorder:   db,
		Metrics:    m,
		Clock:      clk,
	})
	ids := 0
	p.newRoundID = func() string {
		ids++
		return "round-" + string(rune('0'+ids))
	}
	return &harness{poller: p, source: source, store: store, db: db, metrics: m, clock: clk, textfile: cfg.MetricsTextfile}
}

func TestRound_Success(t *testing.T) {
	h := newHarness(t, Config{TopLines: 5})
	ctx := context.Background()

	result, err := h.poller.Round(ctx)
	require.NoError(t, err)

	assert.Equal(t, "round-1", result.ID)
	assert.Equal(t, metrics.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 4, result.Observations)
	assert.Equal(t, 1, result.UnknownRoute)
	assert.Equal(t, 1, result.NoCandidate)
	assert.Equal(t, 1, result.Implausible)
	assert.Equal(t, 1, result.Emitted)
	assert.Equal(t, 1, result.NewRows)
	assert.Equal(t, 1, result.DatasetRows)
	assert.Equal(t, []dataset.LineCount{{LineNumber: "55", Rows: 1}}, result.TopLines)
	assert.Len(t, result.Live, 3, "unknown route is left out of the live list")

	records, err := h.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "v-ok", records[0].VehicleID)
	assert.Equal(t, "s1", records[0].StopID)
	assert.Equal(t, 300, records[0].DelaySeconds)
	assert.Equal(t, "55", records[0].LineNumber)

	mirrored, err := h.db.CountDelayRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mirrored)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RoundsTotal.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.metrics.ObservationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RecordsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RejectionsTotal.WithLabelValues(RejectUnknownRoute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RejectionsTotal.WithLabelValues(string(matcher.ReasonNoPosition))))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RejectionsTotal.WithLabelValues(RejectImplausible)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DatasetRows))
	assert.FileExists(t, h.textfile)

	rounds, err := h.db.RecentRounds(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "round-1", rounds[0].ID)
	assert.Equal(t, metrics.OutcomeSuccess, rounds[0].Outcome)
	assert.Equal(t, 4, rounds[0].Vehicles)

	assert.Equal(t, result.ID, h.poller.LastRound().ID)
}

func TestRound_FetchFailureSkipsRound(t *testing.T) {
	h := newHarness(t, Config{})
	h.source.fetchErr = &gtfs.FeedFetchError{Source: "http://feed", Err: errors.New("502 Bad Gateway")}
	ctx := context.Background()

	result, err := h.poller.Round(ctx)
	var fetchErr *gtfs.FeedFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, metrics.OutcomeFetchFailed, result.Outcome)

	assert.NoFileExists(t, h.store.Path())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeedFetchFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RoundsTotal.WithLabelValues(metrics.OutcomeFetchFailed)))

	rounds, err := h.db.RecentRounds(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Contains(t, rounds[0].Err, "502")
}

func TestRound_PriorLoadFailureKeepsBuffer(t *testing.T) {
	h := newHarness(t, Config{})
	h.poller.deps.Dataset = failingLoader{}

	result, err := h.poller.Round(context.Background())
	require.Error(t, err)
	assert.Equal(t, metrics.OutcomePersistError, result.Outcome)
	assert.Equal(t, 1, h.poller.deps.Aggregator.Pending())
	assert.NoFileExists(t, h.store.Path())
}

func TestRun_RoundsAreIdempotent(t *testing.T) {
	h := newHarness(t, Config{Rounds: 3, Delay: 30 * time.Second})
	ctx := context.Background()

	require.NoError(t, h.poller.Run(ctx))

	assert.Equal(t, 3, h.source.fetches)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, h.clock.Sleeps(),
		"no pause after the final round")

	records, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "identical observations in later rounds are deduplicated")
	assert.Equal(t, 0, h.poller.LastRound().NewRows)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.RoundsTotal.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestRun_OverlappingRoundsStayBounded(t *testing.T) {
	h := newHarness(t, Config{Rounds: 2})
	loc := helsinki(t)
	base := testObservations(loc)
	later := base[0]
	later.ObservedAt = later.ObservedAt.Add(time.Minute)

	h.source.onFetch = func(n int) {
		if n == 2 {
			h.source.obs = []models.VehicleObservation{base[0], later}
		}
	}
	require.NoError(t, h.poller.Run(context.Background()))

	records, err := h.store.Load(context.Background())
	require.NoError(t, err)
	// Round one emits 1, round two emits 2 of which one repeats round one.
	assert.Len(t, records, 2)
	assert.LessOrEqual(t, len(records), 1+2)
}

func TestRun_FetchFailureDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, Config{Rounds: 3})
	h.source.onFetch = func(n int) {
		if n == 1 {
			h.source.fetchErr = errors.New("timeout")
		} else {
			h.source.fetchErr = nil
		}
	}
	require.NoError(t, h.poller.Run(context.Background()))
	assert.Equal(t, 3, h.source.fetches)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.RoundsTotal.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RoundsTotal.WithLabelValues(metrics.OutcomeFetchFailed)))
}

func TestRun_UntilCancelled(t *testing.T) {
	h := newHarness(t, Config{Rounds: 0, Delay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.source.onFetch = func(n int) {
		if n == 4 {
			cancel()
		}
	}
	err := h.poller.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, h.source.fetches)
	assert.Equal(t, metrics.OutcomeCancelled, h.poller.LastRound().Outcome)
	assert.Len(t, h.clock.Sleeps(), 3)
}
