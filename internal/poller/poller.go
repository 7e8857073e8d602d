// Package poller runs the collection loop: each round fetches the realtime
// feed, matches every vehicle against the schedule snapshot, estimates its
// delay and merges the accepted records into the persisted dataset.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"adherence.onebusaway.org/gtfsdb"
	"adherence.onebusaway.org/internal/clock"
	"adherence.onebusaway.org/internal/dataset"
	"adherence.onebusaway.org/internal/delay"
	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/matcher"
	"adherence.onebusaway.org/internal/metrics"
	"adherence.onebusaway.org/internal/models"
	"adherence.onebusaway.org/internal/publisher"
	"adherence.onebusaway.org/internal/schedule"
)

// Rejection reasons besides the matcher's own.
const (
	RejectUnknownRoute = "unknown_route"
	RejectImplausible  = "implausible_delay"
	RejectEstimate     = "estimate_failed"
)

// FeedSource provides the schedule snapshot and the realtime observations.
// *gtfs.Manager implements it.
type FeedSource interface {
	Snapshot() *schedule.Index
	RefreshIfDue(ctx context.Context) (bool, error)
	FetchObservations(ctx context.Context) ([]models.VehicleObservation, error)
}

// DatasetLoader reads the dataset persisted by earlier rounds and runs.
type DatasetLoader interface {
	Load(ctx context.Context) ([]models.MatchedDelayRecord, error)
}

// RoundRecorder keeps a log of rounds. *gtfsdb.Client implements it.
type RoundRecorder interface {
	RecordRound(ctx context.Context, r gtfsdb.Round) error
}

type Config struct {
	// Rounds is the number of rounds to run; 0 runs until the context is cancelled.
	Rounds int
	// Delay is the pause after each round except the last.
	Delay           time.Duration
	TopLines        int
	MetricsTextfile string
}

// Deps are the collaborators of a Poller. Recorder and Publisher may be nil.
type Deps struct {
	Source     FeedSource
	Matcher    *matcher.Matcher
	Estimator  *delay.Estimator
	Aggregator *dataset.Aggregator
	Dataset    DatasetLoader
	Recorder   RoundRecorder
	Publisher  publisher.Publisher
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Logger     *slog.Logger
}

type Poller struct {
	config Config
	deps   Deps
	logger *slog.Logger

	newRoundID func() string

	mu   sync.Mutex
	last RoundResult
}

// RoundResult summarizes one round.
type RoundResult struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string

	Observations int
	UnknownRoute int
	NoCandidate  int
	Implausible  int
	Emitted      int

	NewRows     int
	DatasetRows int
	TopLines    []dataset.LineCount
	Live        []models.LiveVehicle
}

func New(config Config, deps Deps) *Poller {
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Matcher == nil {
		deps.Matcher = matcher.New(matcher.Config{})
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		config:     config,
		deps:       deps,
		logger:     logger.With(slog.String("component", "poller")),
		newRoundID: uuid.NewString,
	}
}

// LastRound returns the result of the most recent round.
func (p *Poller) LastRound() RoundResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run executes rounds until the configured count is reached or ctx is done.
// Failed rounds are logged and do not stop the loop. It returns ctx.Err()
// when cancelled.
func (p *Poller) Run(ctx context.Context) error {
	logging.LogOperation(p.logger, "poller_started",
		slog.Int("rounds", p.config.Rounds),
		slog.Duration("delay", p.config.Delay))

	for n := 1; p.config.Rounds == 0 || n <= p.config.Rounds; n++ {
		if _, err := p.Round(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("round failed", slog.Int("round", n), slog.Any("error", err))
		}
		if err := ctx.Err(); err != nil {
			logging.LogOperation(p.logger, "poller_cancelled", slog.Int("completed_rounds", n-1))
			return err
		}
		if p.config.Rounds != 0 && n == p.config.Rounds {
			break
		}
		if err := p.deps.Clock.Sleep(ctx, p.config.Delay); err != nil {
			logging.LogOperation(p.logger, "poller_cancelled", slog.Int("completed_rounds", n))
			return err
		}
	}

	logging.LogOperation(p.logger, "poller_finished", slog.Int("rounds", p.config.Rounds))
	return nil
}

// Round runs one fetch, match and persist cycle. The returned error is a
// *gtfs.FeedFetchError when the feed could not be read, a persist error when
// the dataset could not be written, or ctx.Err() when cancelled.
func (p *Poller) Round(ctx context.Context) (RoundResult, error) {
	result := RoundResult{
		ID:        p.newRoundID(),
		StartedAt: p.deps.Clock.Now(),
	}
	logger := p.logger.With(slog.String("round_id", result.ID))
	ctx = logging.WithLogger(ctx, logger)

	err := p.round(ctx, logger, &result)

	result.FinishedAt = p.deps.Clock.Now()
	switch {
	case ctx.Err() != nil:
		result.Outcome = metrics.OutcomeCancelled
		err = ctx.Err()
	case err == nil:
		result.Outcome = metrics.OutcomeSuccess
	case result.Outcome == "":
		result.Outcome = metrics.OutcomePersistError
	}
	p.finish(ctx, logger, result, err)
	return result, err
}

func (p *Poller) round(ctx context.Context, logger *slog.Logger, result *RoundResult) error {
	if refreshed, err := p.deps.Source.RefreshIfDue(ctx); err != nil {
		logging.LogError(logger, "Static refresh failed, keeping current schedule", err)
	} else if refreshed {
		logging.LogOperation(logger, "static_schedule_refreshed")
	}
	idx := p.deps.Source.Snapshot()
	if idx == nil {
		result.Outcome = metrics.OutcomeFetchFailed
		return errors.New("no schedule loaded")
	}

	observations, err := p.deps.Source.FetchObservations(ctx)
	if err != nil {
		result.Outcome = metrics.OutcomeFetchFailed
		if ctx.Err() == nil {
			p.deps.Metrics.FeedFetchFailures.Inc()
			logging.LogError(logger, "Realtime fetch failed, skipping round", err)
		}
		return err
	}
	result.Observations = len(observations)
	p.deps.Metrics.ObservationsTotal.Add(float64(len(observations)))

	records := p.matchAll(logger, idx, observations, result)
	p.deps.Aggregator.Accumulate(records...)
	p.deps.Metrics.RecordsTotal.Add(float64(len(records)))

	result.Live = models.LiveVehiclesFromObservations(observations, idx.ShortNameForRoute)
	if err := p.deps.Publisher.PublishVehicles(ctx, result.Live); err != nil {
		logging.LogError(logger, "Failed to publish live vehicles", err)
	}

	prior, err := p.deps.Dataset.Load(ctx)
	if err != nil {
		// Merging against an empty prior would truncate the dataset on save.
		return fmt.Errorf("load prior dataset: %w", err)
	}
	merged, err := p.deps.Aggregator.MergeAndPersist(ctx, prior)
	if err != nil {
		return err
	}
	result.NewRows = len(merged.Added)
	result.DatasetRows = len(merged.Merged)
	result.TopLines = dataset.TopLines(merged.Merged, p.config.TopLines)
	p.deps.Metrics.DatasetRows.Set(float64(result.DatasetRows))
	return nil
}

// matchAll turns observations into accepted delay records, counting every rejection.
func (p *Poller) matchAll(logger *slog.Logger, idx *schedule.Index, observations []models.VehicleObservation, result *RoundResult) []models.MatchedDelayRecord {
	records := make([]models.MatchedDelayRecord, 0, len(observations))
	for _, obs := range observations {
		route, err := idx.ResolveRoute(obs.RouteID)
		if err != nil {
			result.UnknownRoute++
			p.deps.Metrics.Reject(RejectUnknownRoute)
			continue
		}

		match, err := p.deps.Matcher.Match(obs, idx)
		if err != nil {
			result.NoCandidate++
			var noCandidate *matcher.NoCandidateError
			if errors.As(err, &noCandidate) {
				p.deps.Metrics.Reject(string(noCandidate.Reason))
			} else {
				p.deps.Metrics.Reject(string(matcher.ReasonNoCandidates))
			}
			logger.Debug("no stop match", slog.String("vehicle_id", obs.VehicleID), slog.Any("error", err))
			continue
		}

		record, err := p.deps.Estimator.Estimate(obs, match.Visit, route.ShortName)
		if err != nil {
			var implausible *delay.ImplausibleDelayError
			if errors.As(err, &implausible) {
				result.Implausible++
				p.deps.Metrics.Reject(RejectImplausible)
				logger.Debug("implausible delay rejected",
					slog.String("vehicle_id", implausible.VehicleID),
					slog.String("stop_id", implausible.StopID),
					slog.Int("delay_seconds", implausible.DelaySeconds))
			} else {
				p.deps.Metrics.Reject(RejectEstimate)
				logging.LogError(logger, "Delay estimate failed", err, slog.String("vehicle_id", obs.VehicleID))
			}
			continue
		}
		records = append(records, record)
	}
	result.Emitted = len(records)
	return records
}

func (p *Poller) finish(ctx context.Context, logger *slog.Logger, result RoundResult, roundErr error) {
	p.mu.Lock()
	p.last = result
	p.mu.Unlock()

	p.deps.Metrics.ObserveRound(result.Outcome, result.StartedAt, result.FinishedAt)
	if err := p.deps.Metrics.WriteTextfile(p.config.MetricsTextfile); err != nil {
		logging.LogError(logger, "Failed to export metrics", err)
	}

	if p.deps.Recorder != nil {
		round := gtfsdb.Round{
			ID:          result.ID,
			StartedAt:   result.StartedAt,
			FinishedAt:  result.FinishedAt,
			Outcome:     result.Outcome,
			Vehicles:    result.Observations,
			Records:     result.Emitted,
			NewRows:     result.NewRows,
			DatasetRows: result.DatasetRows,
		}
		if roundErr != nil {
			round.Err = roundErr.Error()
		}
		// The round log is written even when the round context was cancelled.
		if err := p.deps.Recorder.RecordRound(context.WithoutCancel(ctx), round); err != nil {
			logging.LogError(logger, "Failed to record round", err)
		}
	}

	if result.Outcome != metrics.OutcomeSuccess {
		return
	}

	lines := make([]any, 0, len(result.TopLines))
	for _, l := range result.TopLines {
		lines = append(lines, slog.Int(l.LineNumber, l.Rows))
	}
	logging.LogOperation(logger, "round_completed",
		slog.Int("observations", result.Observations),
		slog.Int("unknown_route", result.UnknownRoute),
		slog.Int("no_candidate", result.NoCandidate),
		slog.Int("implausible", result.Implausible),
		slog.Int("emitted", result.Emitted),
		slog.Int("new_rows", result.NewRows),
		slog.Int("dataset_rows", result.DatasetRows),
		slog.Group("top_lines", lines...),
		slog.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))
}
