// Package appconf loads collector configuration from defaults, an optional
// YAML file, a .env file and ADHERENCE_* environment variables, in that order
// of increasing precedence. Command line flags are applied by the caller on
// top of the result before Validate is called.
package appconf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "ADHERENCE_"

const (
	DefaultStaticSource        = "https://transitfeeds.com/p/helsinki-regional-transport/735/latest/download"
	DefaultVehiclePositionsURL = "https://realtime.hsl.fi/realtime/vehicle-positions/v2/hsl"
	DefaultTimezone            = "Europe/Helsinki"
)

// Duration is a time.Duration that reads "30s" style strings from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// parseDuration accepts Go duration strings and bare integers as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return d, nil
}

type StaticConfig struct {
	// Source is an http(s) URL or a local path to the GTFS zip.
	Source          string   `yaml:"source" validate:"required"`
	AuthHeaderKey   string   `yaml:"auth_header_key"`
	AuthHeaderValue string   `yaml:"auth_header_value" validate:"required_with=AuthHeaderKey"`
	CachePath       string   `yaml:"cache_path"`
	RefreshInterval Duration `yaml:"refresh_interval"`
}

type RealtimeConfig struct {
	VehiclePositionsURL string            `yaml:"vehicle_positions_url" validate:"required"`
	Headers             map[string]string `yaml:"headers"`
	FetchTimeout        Duration          `yaml:"fetch_timeout"`
}

type PollerConfig struct {
	// Rounds is the number of polling rounds; 0 polls until interrupted.
	Rounds int      `yaml:"rounds" validate:"gte=0"`
	Delay  Duration `yaml:"delay"`
}

type MatchingConfig struct {
	Lookahead          Duration `yaml:"lookahead"`
	TimeWeight         float64  `yaml:"time_weight" validate:"gt=0"`
	PlausibilityWindow Duration `yaml:"plausibility_window"`
}

type OutputConfig struct {
	DatasetPath     string `yaml:"dataset_path" validate:"required"`
	SQLitePath      string `yaml:"sqlite_path"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	TopLines        int    `yaml:"top_lines" validate:"gte=0"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

type Config struct {
	Environment string      `yaml:"environment" validate:"omitempty,oneof=development dev test testing production prod"`
	Env         Environment `yaml:"-"`
	Verbose     bool        `yaml:"verbose"`
	Timezone    string      `yaml:"timezone" validate:"required"`

	Static   StaticConfig   `yaml:"static"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Poller   PollerConfig   `yaml:"poller"`
	Matching MatchingConfig `yaml:"matching"`
	Output   OutputConfig   `yaml:"output"`
	NATS     NATSConfig     `yaml:"nats"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Environment: Development.String(),
		Env:         Development,
		Timezone:    DefaultTimezone,
		Static: StaticConfig{
			Source:    DefaultStaticSource,
			CachePath: "gtfs_cache/schedule.db",
		},
		Realtime: RealtimeConfig{
			VehiclePositionsURL: DefaultVehiclePositionsURL,
			FetchTimeout:        Duration{15 * time.Second},
		},
		Poller: PollerConfig{
			Rounds: 1,
		},
		Matching: MatchingConfig{
			Lookahead:          Duration{300 * time.Second},
			TimeWeight:         5.0,
			PlausibilityWindow: Duration{2 * time.Hour},
		},
		Output: OutputConfig{
			DatasetPath: "hsl_vehicle_delays.csv",
			TopLines:    5,
		},
		NATS: NATSConfig{
			Subject: "adherence.vehicles",
		},
	}
}

// LoadFromFile overlays the YAML file at path onto cfg. An empty path is a no-op.
func LoadFromFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays ADHERENCE_* variables read through lookup onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"ENV", &cfg.Environment},
		{"TZ", &cfg.Timezone},
		{"STATIC_SOURCE", &cfg.Static.Source},
		{"STATIC_AUTH_HEADER_KEY", &cfg.Static.AuthHeaderKey},
		{"STATIC_AUTH_HEADER_VALUE", &cfg.Static.AuthHeaderValue},
		{"STATIC_CACHE_PATH", &cfg.Static.CachePath},
		{"REALTIME_URL", &cfg.Realtime.VehiclePositionsURL},
		{"DATASET_PATH", &cfg.Output.DatasetPath},
		{"SQLITE_PATH", &cfg.Output.SQLitePath},
		{"METRICS_TEXTFILE", &cfg.Output.MetricsTextfile},
		{"NATS_URL", &cfg.NATS.URL},
		{"NATS_SUBJECT", &cfg.NATS.Subject},
	}
	for _, s := range strs {
		if v, ok := get(s.name); ok {
			*s.dst = v
		}
	}

	durations := []struct {
		name string
		dst  *Duration
	}{
		{"STATIC_REFRESH_INTERVAL", &cfg.Static.RefreshInterval},
		{"FETCH_TIMEOUT", &cfg.Realtime.FetchTimeout},
		{"ROUND_DELAY", &cfg.Poller.Delay},
		{"LOOKAHEAD", &cfg.Matching.Lookahead},
		{"PLAUSIBILITY_WINDOW", &cfg.Matching.PlausibilityWindow},
	}
	for _, d := range durations {
		if v, ok := get(d.name); ok {
			parsed, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, d.name, err)
			}
			d.dst.Duration = parsed
		}
	}

	if v, ok := get("ROUNDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sROUNDS: %w", EnvPrefix, err)
		}
		cfg.Poller.Rounds = n
	}
	if v, ok := get("TIME_WEIGHT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTIME_WEIGHT: %w", EnvPrefix, err)
		}
		cfg.Matching.TimeWeight = f
	}
	if v, ok := get("VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", EnvPrefix, err)
		}
		cfg.Verbose = b
	}
	return nil
}

// Validate checks field constraints and resolves Env from Environment.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	env, err := ParseEnvironment(c.Environment)
	if err != nil {
		return err
	}
	c.Env = env
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Poller.Delay.Duration < 0 || c.Realtime.FetchTimeout.Duration < 0 || c.Static.RefreshInterval.Duration < 0 {
		return errors.New("invalid configuration: durations must not be negative")
	}
	return nil
}

// Location resolves the configured service time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load builds the configuration from every source except flags.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if err := LoadFromFile(&cfg, path); err != nil {
		return cfg, err
	}
	if err := LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}
