package gtfs

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/OneBusAway/go-gtfs/constants"
	gtfscsv "github.com/OneBusAway/go-gtfs/csv"

	"adherence.onebusaway.org/internal/gtfstime"
	"adherence.onebusaway.org/internal/models"
)

// StaticTables holds the parsed subset of a static feed used for matching.
type StaticTables struct {
	Routes    []models.Route
	Stops     []models.Stop
	Trips     []models.Trip
	StopTimes []models.StopTime

	// SkippedRows counts unparseable rows per file.
	SkippedRows map[string]int
}

var requiredStaticFiles = []string{"routes.txt", "stops.txt", "trips.txt", "stop_times.txt"}

// parseStaticArchive reads routes, stops, trips and stop_times out of a GTFS zip.
// Rows with malformed times, coordinates or sequence numbers are skipped and counted.
func parseStaticArchive(b []byte) (*StaticTables, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open GTFS archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		name := strings.ToLower(path.Base(f.Name))
		if _, exists := files[name]; !exists {
			files[name] = f
		}
	}
	for _, name := range requiredStaticFiles {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("GTFS archive is missing %s", name)
		}
	}

	tables := &StaticTables{SkippedRows: make(map[string]int)}

	// A route without a short name has no line number and is skipped.
	err = consumeCSV(files["routes.txt"], tables.SkippedRows, func(f *gtfscsv.File) rowParser {
		routeID := f.RequiredColumn("route_id")
		shortName := f.RequiredColumn("route_short_name")
		return func() error {
			route := models.Route{
				ID:        strings.TrimSpace(routeID.Read()),
				ShortName: strings.TrimSpace(shortName.Read()),
			}
			if err := missingKeys(f); err != nil {
				return err
			}
			tables.Routes = append(tables.Routes, route)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	err = consumeCSV(files["stops.txt"], tables.SkippedRows, func(f *gtfscsv.File) rowParser {
		stopID := f.RequiredColumn("stop_id")
		stopLat := f.RequiredColumn("stop_lat")
		stopLon := f.RequiredColumn("stop_lon")
		return func() error {
			id, rawLat, rawLon := stopID.Read(), stopLat.Read(), stopLon.Read()
			if err := missingKeys(f); err != nil {
				return err
			}
			lat, err := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
			if err != nil {
				return err
			}
			lon, err := strconv.ParseFloat(strings.TrimSpace(rawLon), 64)
			if err != nil {
				return err
			}
			tables.Stops = append(tables.Stops, models.Stop{ID: strings.TrimSpace(id), Lat: lat, Lon: lon})
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	err = consumeCSV(files["trips.txt"], tables.SkippedRows, func(f *gtfscsv.File) rowParser {
		tripID := f.RequiredColumn("trip_id")
		routeID := f.RequiredColumn("route_id")
		return func() error {
			trip := models.Trip{
				ID:      strings.TrimSpace(tripID.Read()),
				RouteID: strings.TrimSpace(routeID.Read()),
			}
			if err := missingKeys(f); err != nil {
				return err
			}
			tables.Trips = append(tables.Trips, trip)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	err = consumeCSV(files["stop_times.txt"], tables.SkippedRows, func(f *gtfscsv.File) rowParser {
		tripID := f.RequiredColumn("trip_id")
		arrivalTime := f.RequiredColumn("arrival_time")
		departureTime := f.OptionalColumn("departure_time")
		stopID := f.RequiredColumn("stop_id")
		stopSequence := f.RequiredColumn("stop_sequence")
		return func() error {
			trip, rawArrival, stop, rawSeq := tripID.Read(), arrivalTime.Read(), stopID.Read(), stopSequence.Read()
			if err := missingKeys(f); err != nil {
				return err
			}
			arrival, err := gtfstime.Parse(rawArrival)
			if err != nil {
				return err
			}
			departure := arrival
			if raw := strings.TrimSpace(departureTime.Read()); raw != "" {
				if departure, err = gtfstime.Parse(raw); err != nil {
					return err
				}
			}
			seq, err := strconv.Atoi(strings.TrimSpace(rawSeq))
			if err != nil {
				return err
			}
			tables.StopTimes = append(tables.StopTimes, models.StopTime{
				TripID:           strings.TrimSpace(trip),
				StopID:           strings.TrimSpace(stop),
				StopSequence:     seq,
				ArrivalSeconds:   arrival,
				DepartureSeconds: departure,
			})
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return tables, nil
}

// rowParser parses the current row of the file it was bound to.
type rowParser func() error

var errMissingKeys = errors.New("row is missing required values")

func missingKeys(f *gtfscsv.File) error {
	if keys := f.MissingRowKeys(); len(keys) > 0 {
		return fmt.Errorf("%w: %s", errMissingKeys, strings.Join(keys, ", "))
	}
	return nil
}

// consumeCSV streams one file of the archive. bind declares the columns it
// reads and returns the parser for each row; a row whose parser fails is
// counted in skipped under the file name. A row with the wrong number of
// fields ends the file with an error.
func consumeCSV(zf *zip.File, skipped map[string]int, bind func(*gtfscsv.File) rowParser) error {
	name := strings.ToLower(path.Base(zf.Name))
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	f, err := gtfscsv.New(constants.StaticFile(name), rc)
	if err != nil {
		return fmt.Errorf("read %s header: %w", name, err)
	}

	parse := bind(f)
	if missing := f.MissingRequiredColumns(); len(missing) > 0 {
		_ = f.Close()
		return fmt.Errorf("%s is missing column %s", name, strings.Join(missing, ", "))
	}

	for f.NextRow() {
		if err := parse(); err != nil {
			skipped[name]++
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}
