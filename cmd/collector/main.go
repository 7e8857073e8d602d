// Command collector polls a GTFS-Realtime vehicle positions feed, estimates
// each vehicle's delay against the static schedule and grows a deduplicated
// CSV dataset of delay observations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"

	"adherence.onebusaway.org/gtfsdb"
	"adherence.onebusaway.org/internal/app"
	"adherence.onebusaway.org/internal/appconf"
	"adherence.onebusaway.org/internal/gtfs"
	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/publisher"
)

// options are the command line flags. Only flags the user set override the
// loaded configuration.
type options struct {
	configPath    string
	rounds        int
	delay         time.Duration
	env           string
	verbose       bool
	refreshStatic bool
	live          bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("collector", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	fs.IntVar(&opts.rounds, "rounds", 1, "number of polling rounds, 0 polls until interrupted")
	fs.DurationVar(&opts.delay, "delay", 0, "pause between rounds")
	fs.StringVar(&opts.env, "env", "", "environment: development, test or production")
	fs.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&opts.refreshStatic, "refresh-static", false, "ignore the schedule cache and reload the static feed")
	fs.BoolVar(&opts.live, "live", false, "print the live vehicle list of the last round")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// apply overlays the flags that were set onto cfg.
func (o options) apply(cfg *appconf.Config) {
	if o.set["rounds"] {
		cfg.Poller.Rounds = o.rounds
	}
	if o.set["delay"] {
		cfg.Poller.Delay.Duration = o.delay
	}
	if o.set["env"] {
		cfg.Environment = o.env
	}
	if o.set["verbose"] {
		cfg.Verbose = o.verbose
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := appconf.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	logger := logging.NewLogger(logging.Options{
		JSON:    cfg.Env == appconf.Production,
		Verbose: cfg.Verbose,
		Output:  stderr,
	})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	loc, err := cfg.Location()
	if err != nil {
		logging.LogError(logger, "invalid timezone", err)
		return 1
	}
	gtfsCfg := gtfs.NewConfig(cfg, loc)
	gtfsCfg.BypassCache = opts.refreshStatic

	application, err := BuildApplication(ctx, cfg, gtfsCfg)
	if err != nil {
		logging.LogError(logger, "failed to start collector", err)
		return 1
	}
	defer application.Close()

	if cfg.Verbose {
		logStartupState(logger, application)
	}

	err = application.Poller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.LogError(logger, "collector stopped", err)
		return 1
	}
	if errors.Is(err, context.Canceled) {
		logging.LogOperation(logger, "collector_interrupted")
	}

	if opts.live {
		live := application.Poller.LastRound().Live
		if err := publisher.NewWriterPublisher(stdout).PublishVehicles(context.Background(), live); err != nil {
			logging.LogError(logger, "failed to print live vehicles", err)
			return 1
		}
	}
	return 0
}

// logStartupState dumps the schedule index statistics and the row counts of
// every open store at debug level.
func logStartupState(logger *slog.Logger, application *app.Application) {
	logger.Debug("schedule index loaded",
		slog.String("stats", spew.Sdump(application.GtfsManager.Snapshot().Stats())))

	stores := []struct {
		name   string
		client *gtfsdb.Client
	}{
		{"schedule_cache", application.CacheDB},
		{"sqlite_mirror", application.MirrorDB},
	}
	for i, store := range stores {
		if store.client == nil || (i > 0 && store.client == application.CacheDB) {
			continue
		}
		counts, err := store.client.TableCounts()
		if err != nil {
			logging.LogError(logger, "failed to count table rows", err, slog.String("store", store.name))
			continue
		}
		logger.Debug("store row counts",
			slog.String("store", store.name),
			slog.String("path", store.client.GetDBPath()),
			slog.String("counts", spew.Sdump(counts)))
	}
}
