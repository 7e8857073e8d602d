package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Round is one entry of the polling round log.
type Round struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     string
	Vehicles    int
	Records     int
	NewRows     int
	DatasetRows int
	Err         string
}

// RecordRound appends a round to the log.
func (c *Client) RecordRound(ctx context.Context, r Round) error {
	var errText sql.NullString
	if r.Err != "" {
		errText = sql.NullString{String: r.Err, Valid: true}
	}
	err := c.Queries.CreatePollingRound(ctx, CreatePollingRoundParams{
		RoundID:     r.ID,
		StartedAt:   r.StartedAt.Unix(),
		FinishedAt:  r.FinishedAt.Unix(),
		Outcome:     r.Outcome,
		Vehicles:    int64(r.Vehicles),
		Records:     int64(r.Records),
		NewRows:     int64(r.NewRows),
		DatasetRows: int64(r.DatasetRows),
		Error:       errText,
	})
	if err != nil {
		return fmt.Errorf("record round %s: %w", r.ID, err)
	}
	return nil
}

// RecentRounds returns up to limit rounds, newest first.
func (c *Client) RecentRounds(ctx context.Context, limit int) ([]Round, error) {
	rows, err := c.Queries.ListRecentPollingRounds(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}

	out := make([]Round, 0, len(rows))
	for _, row := range rows {
		out = append(out, Round{
			ID:          row.RoundID,
			StartedAt:   time.Unix(row.StartedAt, 0),
			FinishedAt:  time.Unix(row.FinishedAt, 0),
			Outcome:     row.Outcome,
			Vehicles:    int(row.Vehicles),
			Records:     int(row.Records),
			NewRows:     int(row.NewRows),
			DatasetRows: int(row.DatasetRows),
			Err:         row.Error.String,
		})
	}
	return out, nil
}
