package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adherence.onebusaway.org/internal/gtfstime"
	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/models"
)

// ImportMetadata describes the schedule currently held in the cache.
type ImportMetadata struct {
	Source     string
	ImportedAt time.Time
	Routes     int
	Visits     int
}

// ScheduleMetadata returns the cache metadata, with ok=false when nothing has been imported.
func (c *Client) ScheduleMetadata(ctx context.Context) (ImportMetadata, bool, error) {
	row, err := c.Queries.GetImportMetadata(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportMetadata{}, false, nil
	}
	if err != nil {
		return ImportMetadata{}, false, fmt.Errorf("read import metadata: %w", err)
	}
	return ImportMetadata{
		Source:     row.Source,
		ImportedAt: time.Unix(row.ImportedAt, 0),
		Routes:     int(row.Routes),
		Visits:     int(row.Visits),
	}, true, nil
}

// StoreSchedule replaces the cached flat schedule table in one transaction.
// Arrival times are stored in GTFS HH:MM:SS form.
func (c *Client) StoreSchedule(ctx context.Context, source string, importedAt time.Time, routes []models.Route, visits []models.ScheduledStopVisit) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule import: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "store_schedule")

	qtx := c.Queries.WithTx(tx)
	for _, clearTable := range []func(context.Context) error{qtx.ClearStopVisits, qtx.ClearRoutes, qtx.ClearImportMetadata} {
		if err := clearTable(ctx); err != nil {
			return fmt.Errorf("clear schedule cache: %w", err)
		}
	}

	for _, r := range routes {
		if err := qtx.CreateRoute(ctx, CreateRouteParams{RouteID: r.ID, RouteShortName: r.ShortName}); err != nil {
			return fmt.Errorf("insert route %s: %w", r.ID, err)
		}
	}

	for i, v := range visits {
		if i%50000 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		err := qtx.CreateStopVisit(ctx, CreateStopVisitParams{
			TripID:       v.TripID,
			RouteID:      v.RouteID,
			StopID:       v.StopID,
			StopSequence: int64(v.StopSequence),
			ArrivalTime:  gtfstime.Format(v.ArrivalSeconds),
			StopLat:      v.Lat,
			StopLon:      v.Lon,
		})
		if err != nil {
			return fmt.Errorf("insert visit %s/%d: %w", v.TripID, v.StopSequence, err)
		}
	}

	if err := qtx.UpsertImportMetadata(ctx, UpsertImportMetadataParams{
		Source:     source,
		ImportedAt: importedAt.Unix(),
		Routes:     int64(len(routes)),
		Visits:     int64(len(visits)),
	}); err != nil {
		return fmt.Errorf("write import metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule import: %w", err)
	}

	logging.LogOperation(c.logger, "schedule_cache_stored",
		slog.String("source", source),
		slog.Int("routes", len(routes)),
		slog.Int("visits", len(visits)))
	return nil
}

// LoadSchedule reads the cached routes and visits. Visits whose stored
// arrival time no longer parses are skipped and counted.
func (c *Client) LoadSchedule(ctx context.Context) ([]models.Route, []models.ScheduledStopVisit, int, error) {
	routeRows, err := c.Queries.ListRoutes(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("query cached routes: %w", err)
	}
	routes := make([]models.Route, 0, len(routeRows))
	for _, r := range routeRows {
		routes = append(routes, models.Route{ID: r.RouteID, ShortName: r.RouteShortName})
	}

	visitRows, err := c.Queries.ListStopVisits(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("query cached visits: %w", err)
	}
	visits := make([]models.ScheduledStopVisit, 0, len(visitRows))
	skipped := 0
	for _, v := range visitRows {
		seconds, err := gtfstime.Parse(v.ArrivalTime)
		if err != nil {
			skipped++
			continue
		}
		visits = append(visits, models.ScheduledStopVisit{
			TripID:         v.TripID,
			RouteID:        v.RouteID,
			StopID:         v.StopID,
			StopSequence:   int(v.StopSequence),
			ArrivalSeconds: seconds,
			Lat:            v.StopLat,
			Lon:            v.StopLon,
		})
	}
	return routes, visits, skipped, nil
}
