package app

import (
	"log/slog"

	"adherence.onebusaway.org/gtfsdb"
	"adherence.onebusaway.org/internal/appconf"
	"adherence.onebusaway.org/internal/clock"
	"adherence.onebusaway.org/internal/dataset"
	"adherence.onebusaway.org/internal/gtfs"
	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/metrics"
	"adherence.onebusaway.org/internal/poller"
	"adherence.onebusaway.org/internal/publisher"
)

// Application holds the long-lived dependencies of one collector run.
// CacheDB and MirrorDB are nil when not configured.
type Application struct {
	Config      appconf.Config
	GtfsConfig  gtfs.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Clock       clock.Clock
	Metrics     *metrics.Metrics

	CacheDB  *gtfsdb.Client
	MirrorDB *gtfsdb.Client

	Dataset    *dataset.CSVStore
	Aggregator *dataset.Aggregator
	Publisher  publisher.Publisher
	Poller     *poller.Poller
}

// Close releases the publisher, the metrics collector and the databases.
func (app *Application) Close() {
	if app.Publisher != nil {
		app.Publisher.Close()
	}
	if app.Metrics != nil {
		app.Metrics.Shutdown()
	}
	if app.MirrorDB != nil && app.MirrorDB != app.CacheDB {
		logging.SafeCloseWithLogging(app.MirrorDB, app.Logger, "mirror_database")
	}
	if app.CacheDB != nil {
		logging.SafeCloseWithLogging(app.CacheDB, app.Logger, "cache_database")
	}
}
