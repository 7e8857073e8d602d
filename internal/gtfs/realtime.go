package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/models"
)

const maxRealtimeBodySize = 25 * 1024 * 1024

// FeedFetchError reports a realtime feed that could not be fetched or decoded.
// The round that hit it is skipped.
type FeedFetchError struct {
	Source string
	Err    error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("realtime feed %s: %v", e.Source, e.Err)
}

func (e *FeedFetchError) Unwrap() error {
	return e.Err
}

// realtimeHTTPClient is a dedicated client for GTFS-RT fetching. The
// transport is cloned from http.DefaultTransport to keep proxy and HTTP/2
// defaults. Its Timeout is a bound for callers that pass no deadline.
var realtimeHTTPClient = newRealtimeHTTPClient()

func newRealtimeHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 2
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func readRealtimeBody(ctx context.Context, source string, headers map[string]string) ([]byte, error) {
	if IsLocalSource(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer logging.SafeCloseWithLogging(f,
			slog.Default().With(slog.String("component", "gtfs_realtime_reader")),
			"realtime_snapshot")
		return readCapped(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Add(key, value)
	}

	resp, err := realtimeHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute GTFS-RT request: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_realtime_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs-rt fetch failed: %s returned %s", source, resp.Status)
	}
	return readCapped(resp.Body)
}

func readCapped(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxRealtimeBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxRealtimeBodySize {
		return nil, fmt.Errorf("GTFS-RT response exceeds size limit of %d bytes", maxRealtimeBodySize)
	}
	return body, nil
}

// loadRealtimeData fetches and decodes one feed. Every failure is a *FeedFetchError.
func loadRealtimeData(ctx context.Context, source string, headers map[string]string) (*gtfs.Realtime, error) {
	body, err := readRealtimeBody(ctx, source, headers)
	if err != nil {
		return nil, &FeedFetchError{Source: source, Err: err}
	}
	rt, err := gtfs.ParseRealtime(body, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, &FeedFetchError{Source: source, Err: fmt.Errorf("decode: %w", err)}
	}
	return rt, nil
}

// FetchObservations downloads the vehicle positions feed once, bounded by
// the configured fetch timeout.
func (manager *Manager) FetchObservations(ctx context.Context) ([]models.VehicleObservation, error) {
	source := manager.config.VehiclePositionsURL
	if source == "" {
		return nil, &FeedFetchError{Err: errNoVehiclePositionsURL}
	}
	if manager.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, manager.config.FetchTimeout)
		defer cancel()
	}

	rt, err := loadRealtimeData(ctx, source, manager.config.RealtimeHeaders)
	if err != nil {
		return nil, err
	}
	return ObservationsFromFeed(rt, manager.clock.Now(), manager.config.Location), nil
}

// ObservationsFromFeed converts decoded vehicles into observations. Vehicles
// without a vehicle descriptor are dropped. A missing timestamp falls back
// to now. All times are expressed in loc.
func ObservationsFromFeed(rt *gtfs.Realtime, now time.Time, loc *time.Location) []models.VehicleObservation {
	if rt == nil {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	observations := make([]models.VehicleObservation, 0, len(rt.Vehicles))
	for _, v := range rt.Vehicles {
		// Vehicles known only from a trip update carry no position report.
		if v.ID == nil || !v.IsEntityInMessage {
			continue
		}
		obs := models.VehicleObservation{
			VehicleID:  v.ID.ID,
			ObservedAt: now.In(loc),
		}
		if v.Timestamp != nil && !v.Timestamp.IsZero() {
			obs.ObservedAt = v.Timestamp.In(loc)
		} else {
			obs.ClockTimestamp = true
		}
		if v.Trip != nil {
			obs.TripID = v.Trip.ID.ID
			obs.RouteID = v.Trip.ID.RouteID
			obs.Direction = directionOf(v.Trip.ID.DirectionID)
		}
		if v.Position != nil {
			obs.Latitude = float32Ptr(v.Position.Latitude)
			obs.Longitude = float32Ptr(v.Position.Longitude)
		}
		observations = append(observations, obs)
	}
	return observations
}

func directionOf(d gtfs.DirectionID) *int {
	var dir int
	switch d {
	case gtfs.DirectionID_False:
		dir = 0
	case gtfs.DirectionID_True:
		dir = 1
	default:
		return nil
	}
	return &dir
}

// float32Ptr widens a feed coordinate through its shortest decimal form so
// 60.181557 stays 60.181557 rather than 60.18155670166016.
func float32Ptr(f *float32) *float64 {
	if f == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(*f), 'g', -1, 32), 64)
	if err != nil {
		v = float64(*f)
	}
	return &v
}
