package gtfsdb

import (
	"context"
	"fmt"
	"log/slog"

	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/models"
)

// Persist mirrors the pending delay records into the delay_records table.
// Rows already present are ignored, so replaying a batch is harmless.
func (c *Client) Persist(ctx context.Context, _ []models.MatchedDelayRecord, pending []models.MatchedDelayRecord) error {
	if len(pending) == 0 {
		return nil
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delay record insert: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "persist_delay_records")

	qtx := c.Queries.WithTx(tx)
	inserted := 0
	for _, r := range pending {
		res, err := qtx.InsertDelayRecord(ctx, delayRecordParams(r))
		if err != nil {
			return fmt.Errorf("insert delay record for vehicle %s: %w", r.VehicleID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delay records: %w", err)
	}

	c.logger.Debug("delay records mirrored",
		slog.Int("offered", len(pending)),
		slog.Int("inserted", inserted))
	return nil
}

func delayRecordParams(r models.MatchedDelayRecord) InsertDelayRecordParams {
	var weekend int64
	if r.IsWeekend {
		weekend = 1
	}
	return InsertDelayRecordParams{
		TimestampLocal: r.ObservedAt.Format(models.LocalTimestampLayout),
		Date:           r.Date,
		Hour:           int64(r.Hour),
		Dow:            int64(r.DayOfWeek),
		IsWeekend:      weekend,
		Season:         string(r.Season),
		LineNumber:     r.LineNumber,
		RouteID:        r.RouteID,
		TripID:         r.TripID,
		VehicleID:      r.VehicleID,
		NearestStop:    r.StopID,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		DelaySeconds:   int64(r.DelaySeconds),
		DelayMinutes:   r.DelayMinutes(),
	}
}

// CountDelayRecords returns the number of mirrored delay records.
func (c *Client) CountDelayRecords(ctx context.Context) (int, error) {
	n, err := c.Queries.CountDelayRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("count delay records: %w", err)
	}
	return int(n), nil
}
