package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"adherence.onebusaway.org/gtfsdb"
	"adherence.onebusaway.org/internal/clock"
	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/schedule"
)

// Manager owns the current schedule index snapshot and the realtime feed client.
// Readers take a snapshot once per round; ForceUpdate swaps in a new one.
type Manager struct {
	config Config
	clock  clock.Clock
	cache  *gtfsdb.Client
	logger *slog.Logger

	index atomic.Pointer[schedule.Index]

	staticUpdateMutex sync.Mutex
	lastLoaded        time.Time
}

// InitManager loads the schedule, from the sqlite cache when it holds an
// import of the configured source, otherwise from the source itself. cache
// may be nil. An error here means there is nothing to match against.
func InitManager(ctx context.Context, config Config, clk clock.Clock, cache *gtfsdb.Client) (*Manager, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	manager := &Manager{
		config: config,
		clock:  clk,
		cache:  cache,
		logger: logging.FromContext(ctx).With(slog.String("component", "gtfs_manager")),
	}

	if cache != nil && !config.BypassCache {
		idx, importedAt, err := manager.loadFromCache(ctx)
		if err != nil {
			logging.LogError(manager.logger, "Failed to read schedule cache, loading from source", err)
		}
		if idx != nil {
			manager.swap(idx, importedAt)
			logging.LogOperation(manager.logger, "schedule_loaded_from_cache",
				slog.String("cache_path", cache.GetDBPath()),
				slog.Int("visits", idx.Stats().Visits))
			return manager, nil
		}
	}

	if err := manager.ForceUpdate(ctx); err != nil {
		return nil, fmt.Errorf("failed to load static GTFS from %s: %w", config.StaticSource, err)
	}
	return manager, nil
}

// loadFromCache returns a nil index when the cache is empty or holds another source.
func (manager *Manager) loadFromCache(ctx context.Context) (*schedule.Index, time.Time, error) {
	meta, ok, err := manager.cache.ScheduleMetadata(ctx)
	if err != nil || !ok {
		return nil, time.Time{}, err
	}
	if meta.Source != manager.config.StaticSource {
		manager.logger.Info("schedule cache holds a different source",
			slog.String("cached", meta.Source),
			slog.String("configured", manager.config.StaticSource))
		return nil, time.Time{}, nil
	}
	routes, visits, skipped, err := manager.cache.LoadSchedule(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if skipped > 0 {
		manager.logger.Warn("skipped cached visits with malformed arrival times", slog.Int("rows", skipped))
	}
	if len(visits) == 0 {
		return nil, time.Time{}, nil
	}
	return schedule.FromVisits(routes, visits), meta.ImportedAt, nil
}

// Snapshot returns the current index. It is never nil after InitManager succeeds.
func (manager *Manager) Snapshot() *schedule.Index {
	return manager.index.Load()
}

// LastLoaded reports when the current snapshot was imported from the source.
func (manager *Manager) LastLoaded() time.Time {
	manager.staticUpdateMutex.Lock()
	defer manager.staticUpdateMutex.Unlock()
	return manager.lastLoaded
}

// Location is the service time zone.
func (manager *Manager) Location() *time.Location {
	return manager.config.Location
}

// ForceUpdate rebuilds the index from the static source and swaps it in. On
// failure the previous snapshot stays in place. A failure to write the cache
// is logged and does not fail the update.
func (manager *Manager) ForceUpdate(ctx context.Context) error {
	manager.staticUpdateMutex.Lock()
	defer manager.staticUpdateMutex.Unlock()

	idx, err := loadStaticIndex(ctx, manager.config)
	if err != nil {
		logging.LogError(manager.logger, "Error updating GTFS data", err,
			slog.String("source", manager.config.StaticSource))
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := manager.clock.Now()
	manager.index.Store(idx)
	manager.lastLoaded = now

	if manager.cache != nil {
		if err := manager.cache.StoreSchedule(ctx, manager.config.StaticSource, now, idx.Routes(), idx.Visits()); err != nil {
			logging.LogError(manager.logger, "Failed to write schedule cache", err,
				slog.String("cache_path", manager.cache.GetDBPath()))
		}
	}

	logging.LogOperation(manager.logger, "gtfs_static_data_updated_hot_swap",
		slog.String("source", manager.config.StaticSource))
	return nil
}

// RefreshIfDue reloads the static feed when the refresh interval has elapsed
// since the last load. It reports whether a reload was attempted.
func (manager *Manager) RefreshIfDue(ctx context.Context) (bool, error) {
	if manager.config.RefreshInterval <= 0 {
		return false, nil
	}
	if manager.clock.Now().Sub(manager.LastLoaded()) < manager.config.RefreshInterval {
		return false, nil
	}
	return true, manager.ForceUpdate(ctx)
}

func (manager *Manager) swap(idx *schedule.Index, loadedAt time.Time) {
	manager.staticUpdateMutex.Lock()
	defer manager.staticUpdateMutex.Unlock()
	manager.index.Store(idx)
	manager.lastLoaded = loadedAt
}

var errNoVehiclePositionsURL = errors.New("no vehicle positions URL configured")
