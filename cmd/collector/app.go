package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"adherence.onebusaway.org/gtfsdb"
	"adherence.onebusaway.org/internal/app"
	"adherence.onebusaway.org/internal/appconf"
	"adherence.onebusaway.org/internal/clock"
	"adherence.onebusaway.org/internal/dataset"
	"adherence.onebusaway.org/internal/delay"
	"adherence.onebusaway.org/internal/gtfs"
	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/matcher"
	"adherence.onebusaway.org/internal/metrics"
	"adherence.onebusaway.org/internal/poller"
	"adherence.onebusaway.org/internal/publisher"
)

const dbStatsInterval = 15 * time.Second

// BuildApplication wires every component of the collector. It fails only
// when the schedule cannot be loaded or a configured store cannot be opened.
func BuildApplication(ctx context.Context, cfg appconf.Config, gtfsCfg gtfs.Config) (*app.Application, error) {
	logger := logging.FromContext(ctx)

	loc := gtfsCfg.Location
	if loc == nil {
		var err error
		if loc, err = cfg.Location(); err != nil {
			return nil, err
		}
		gtfsCfg.Location = loc
	}

	application := &app.Application{
		Config:     cfg,
		GtfsConfig: gtfsCfg,
		Logger:     logger,
		Clock:      selectClock(loc),
		Metrics:    metrics.NewWithLogger(logger),
	}
	fail := func(err error) (*app.Application, error) {
		application.Close()
		return nil, err
	}

	if gtfsCfg.CachePath != "" {
		cacheDB, err := gtfsdb.NewClient(gtfsdb.NewConfig(gtfsCfg.CachePath, cfg.Env, cfg.Verbose))
		if err != nil {
			return fail(fmt.Errorf("open schedule cache: %w", err))
		}
		application.CacheDB = cacheDB
	}

	manager, err := gtfs.InitManager(ctx, gtfsCfg, application.Clock, application.CacheDB)
	if err != nil {
		return fail(err)
	}
	application.GtfsManager = manager
	loc = manager.Location()

	application.Dataset = dataset.NewCSVStore(cfg.Output.DatasetPath, loc, logger)
	sinks := []dataset.Sink{application.Dataset}

	var recorder poller.RoundRecorder
	if cfg.Output.SQLitePath != "" {
		if cfg.Output.SQLitePath == gtfsCfg.CachePath && application.CacheDB != nil {
			application.MirrorDB = application.CacheDB
		} else {
			mirror, err := gtfsdb.NewClient(gtfsdb.NewConfig(cfg.Output.SQLitePath, cfg.Env, cfg.Verbose))
			if err != nil {
				return fail(fmt.Errorf("open sqlite mirror: %w", err))
			}
			application.MirrorDB = mirror
		}
		sinks = append(sinks, application.MirrorDB)
		recorder = application.MirrorDB
		application.Metrics.StartDBStatsCollector(application.MirrorDB.DB, dbStatsInterval)
	}
	application.Aggregator = dataset.NewAggregator(logger, sinks...)

	application.Publisher = publisher.Nop{}
	if cfg.NATS.URL != "" {
		nats, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			// Live publishing is optional; collection proceeds without it.
			logging.LogError(logger, "NATS unavailable, live publishing disabled", err,
				slog.String("url", cfg.NATS.URL))
		} else {
			application.Publisher = nats
		}
	}

	deps := poller.Deps{
		Source: manager,
		Matcher: matcher.New(matcher.Config{
			Lookahead:  cfg.Matching.Lookahead.Duration,
			TimeWeight: cfg.Matching.TimeWeight,
		}),
		Estimator:  delay.New(loc, cfg.Matching.PlausibilityWindow.Duration),
		Aggregator: application.Aggregator,
		Dataset:    application.Dataset,
		Publisher:  application.Publisher,
		Metrics:    application.Metrics,
		Clock:      application.Clock,
		Logger:     logger,
	}
	if recorder == nil && application.CacheDB != nil {
		recorder = application.CacheDB
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	application.Poller = poller.New(poller.Config{
		Rounds:          cfg.Poller.Rounds,
		Delay:           cfg.Poller.Delay.Duration,
		TopLines:        cfg.Output.TopLines,
		MetricsTextfile: cfg.Output.MetricsTextfile,
	}, deps)

	return application, nil
}

// selectClock pins "now" to ADHERENCE_NOW when it is set, for replaying
// archived snapshots.
func selectClock(loc *time.Location) clock.Clock {
	if os.Getenv(clock.DefaultEnvVar) != "" {
		return clock.NewEnvironmentClock(clock.DefaultEnvVar, "", loc)
	}
	return clock.RealClock{}
}
