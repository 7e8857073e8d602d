package gtfs

import (
	"strings"
	"time"

	"adherence.onebusaway.org/internal/appconf"
)

// Config holds the feed settings used by the Manager.
type Config struct {
	StaticSource          string
	StaticAuthHeaderKey   string
	StaticAuthHeaderValue string
	// CachePath is the sqlite file holding the flattened schedule. Empty disables the cache.
	CachePath       string
	RefreshInterval time.Duration
	// BypassCache forces the first load to read the source even when the cache is populated.
	BypassCache bool

	VehiclePositionsURL string
	RealtimeHeaders     map[string]string
	FetchTimeout        time.Duration

	Location *time.Location
	Env      appconf.Environment
	Verbose  bool
}

// NewConfig derives feed settings from the application configuration.
func NewConfig(cfg appconf.Config, loc *time.Location) Config {
	return Config{
		StaticSource:          cfg.Static.Source,
		StaticAuthHeaderKey:   cfg.Static.AuthHeaderKey,
		StaticAuthHeaderValue: cfg.Static.AuthHeaderValue,
		CachePath:             cfg.Static.CachePath,
		RefreshInterval:       cfg.Static.RefreshInterval.Duration,
		VehiclePositionsURL:   cfg.Realtime.VehiclePositionsURL,
		RealtimeHeaders:       cfg.Realtime.Headers,
		FetchTimeout:          cfg.Realtime.FetchTimeout.Duration,
		Location:              loc,
		Env:                   cfg.Env,
		Verbose:               cfg.Verbose,
	}
}

// IsLocalSource reports whether source names a file rather than an http(s) URL.
func IsLocalSource(source string) bool {
	lower := strings.ToLower(source)
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}
