// Package dataset accumulates delay records across polling rounds and
// persists the deduplicated result.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/models"
)

// Sink receives the merged dataset after every merge. pending holds every
// distinct buffered record, including ones the prior dataset already has, so
// a sink that missed a failed merge catches up on the next one. Sinks must
// ignore records they already store.
type Sink interface {
	Persist(ctx context.Context, merged, pending []models.MatchedDelayRecord) error
}

// Aggregator buffers records for a run and merges them into the persisted dataset.
type Aggregator struct {
	mu     sync.Mutex
	buffer []models.MatchedDelayRecord
	sinks  []Sink
	logger *slog.Logger
}

func NewAggregator(logger *slog.Logger, sinks ...Sink) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		sinks:  sinks,
		logger: logger.With(slog.String("component", "aggregator")),
	}
}

// Accumulate appends records to the run buffer.
func (a *Aggregator) Accumulate(records ...models.MatchedDelayRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer = append(a.buffer, records...)
}

// Pending is the number of buffered records not yet persisted.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// MergeResult is the outcome of one merge.
type MergeResult struct {
	Merged []models.MatchedDelayRecord
	Added  []models.MatchedDelayRecord
	// Duplicates counts buffered records dropped because an identical row already existed.
	Duplicates int
}

// MergeAndPersist combines prior with the buffer, drops exact duplicate rows
// and hands the result to every sink. The buffer is cleared only when all
// sinks succeed, so a failed persist is retried by the next call.
func (a *Aggregator) MergeAndPersist(ctx context.Context, prior []models.MatchedDelayRecord) (MergeResult, error) {
	a.mu.Lock()
	pending := make([]models.MatchedDelayRecord, len(a.buffer))
	copy(pending, a.buffer)
	a.mu.Unlock()

	result := Merge(prior, pending)
	distinct := Merge(nil, pending).Merged

	var errs []error
	for _, sink := range a.sinks {
		if err := sink.Persist(ctx, result.Merged, distinct); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.LogError(a.logger, "failed to persist merged dataset", err,
			slog.Int("merged_rows", len(result.Merged)))
		return result, fmt.Errorf("persist dataset: %w", err)
	}

	a.mu.Lock()
	a.buffer = a.buffer[len(pending):]
	a.mu.Unlock()

	logging.LogOperation(a.logger, "dataset_merged",
		slog.Int("prior_rows", len(prior)),
		slog.Int("new_rows", len(result.Added)),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("total_rows", len(result.Merged)))

	return result, nil
}

// Merge concatenates prior and fresh and removes exact duplicate rows,
// keeping the first occurrence and preserving order.
func Merge(prior, fresh []models.MatchedDelayRecord) MergeResult {
	seen := make(map[string]struct{}, len(prior)+len(fresh))
	merged := make([]models.MatchedDelayRecord, 0, len(prior)+len(fresh))

	for _, r := range prior {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
	}

	var (
		added      []models.MatchedDelayRecord
		duplicates int
	)
	for _, r := range fresh {
		key := r.Key()
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
		added = append(added, r)
	}

	return MergeResult{Merged: merged, Added: added, Duplicates: duplicates}
}

// LineCount is the number of rows recorded for one line.
type LineCount struct {
	LineNumber string
	Rows       int
}

// TopLines returns the n lines with the most rows, most first; ties sort by line number.
func TopLines(records []models.MatchedDelayRecord, n int) []LineCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.LineNumber]++
	}
	lines := make([]LineCount, 0, len(counts))
	for line, c := range counts {
		lines = append(lines, LineCount{LineNumber: line, Rows: c})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Rows != lines[j].Rows {
			return lines[i].Rows > lines[j].Rows
		}
		return lines[i].LineNumber < lines[j].LineNumber
	})
	if n >= 0 && len(lines) > n {
		lines = lines[:n]
	}
	return lines
}
