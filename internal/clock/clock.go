// Package clock supplies the current time and the pause between polling
// rounds, so round timing and observation timestamps can be pinned in tests
// and when replaying archived feed snapshots.
package clock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultEnvVar is the environment variable read by EnvironmentClock.
const DefaultEnvVar = "ADHERENCE_NOW"

// Clock provides the time operations used by the collector.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock uses the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockClock is a controllable, thread-safe clock for tests. Sleep advances
// the clock instead of blocking.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	sleeps      []time.Duration
}

// NewMockClock creates a MockClock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Sleep records d and advances the clock by it.
func (m *MockClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	m.currentTime = m.currentTime.Add(d)
	return nil
}

// Sleeps returns the durations passed to Sleep so far.
func (m *MockClock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}

// Set changes the current time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the clock by d. Negative durations move it backward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// EnvironmentClock reads a pinned time from an environment variable or a
// file, falling back to system time. It is used to replay archived feed
// snapshots as of the moment they were captured. Sources are re-read on
// every call to Now, env var first.
type EnvironmentClock struct {
	envVar   string
	filePath string
	location *time.Location
	logger   *slog.Logger
}

func NewEnvironmentClock(envVar string, filePath string, location *time.Location) *EnvironmentClock {
	return &EnvironmentClock{
		envVar:   envVar,
		filePath: filePath,
		location: location,
		logger:   slog.Default().With(slog.String("component", "clock")),
	}
}

func (e *EnvironmentClock) Now() time.Time {
	if t, err := e.syncFromEnvVar(); err == nil {
		return t
	}
	if t, err := e.syncFromFile(); err == nil {
		return t
	}
	e.logger.Warn("no pinned time available, falling back to system time",
		slog.String("env_var", e.envVar), slog.String("file_path", e.filePath))
	return time.Now()
}

// Sleep waits in real time; a pinned clock does not advance.
func (e *EnvironmentClock) Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}

func (e *EnvironmentClock) syncFromEnvVar() (time.Time, error) {
	if e.envVar == "" {
		return time.Time{}, errors.New("environment variable name not configured")
	}
	raw := os.Getenv(e.envVar)
	if raw == "" {
		return time.Time{}, errors.New("environment variable is empty: " + e.envVar)
	}
	return e.parseTime(raw)
}

func (e *EnvironmentClock) syncFromFile() (time.Time, error) {
	if e.filePath == "" {
		return time.Time{}, errors.New("file path not configured")
	}
	data, err := os.ReadFile(e.filePath)
	if err != nil {
		return time.Time{}, err
	}
	return e.parseTime(string(data))
}

// parseTime accepts RFC3339, or a local wall time in the configured zone.
func (e *EnvironmentClock) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if e.location == nil {
		return time.Time{}, errors.New("timezone not configured")
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, e.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q: expected RFC3339 or YYYY-MM-DD[ HH:MM:SS]", s)
}
