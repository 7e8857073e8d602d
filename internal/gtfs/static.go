package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/schedule"
)

const maxStaticSize = 200 * 1024 * 1024

var staticHTTPClient = &http.Client{
	Timeout: 5 * time.Minute,
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	},
}

// rawGtfsData reads the static archive from a local path or downloads it.
func rawGtfsData(ctx context.Context, source string, config Config) ([]byte, error) {
	if IsLocalSource(source) {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GTFS request: %w", err)
	}
	if config.StaticAuthHeaderKey != "" && config.StaticAuthHeaderValue != "" {
		req.Header.Set(config.StaticAuthHeaderKey, config.StaticAuthHeaderValue)
	}

	resp, err := staticHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download GTFS data: received HTTP status %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	if int64(len(b)) > maxStaticSize {
		return nil, fmt.Errorf("static GTFS response exceeds size limit of %d bytes", maxStaticSize)
	}
	return b, nil
}

// loadStaticIndex fetches, parses and indexes the static feed.
func loadStaticIndex(ctx context.Context, config Config) (*schedule.Index, error) {
	logger := logging.FromContext(ctx).With(slog.String("component", "gtfs_loader"))

	b, err := rawGtfsData(ctx, config.StaticSource, config)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tables, err := parseStaticArchive(b)
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	for file, n := range tables.SkippedRows {
		logger.Warn("skipped malformed rows", slog.String("file", file), slog.Int("rows", n))
	}

	idx := schedule.Build(tables.Routes, tables.Stops, tables.Trips, tables.StopTimes)
	stats := idx.Stats()
	logging.LogOperation(logger, "static_gtfs_indexed",
		slog.String("source", config.StaticSource),
		slog.Int("routes", stats.Routes),
		slog.Int("visits", stats.Visits))
	return idx, nil
}
