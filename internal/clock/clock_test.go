package clock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSystemTime(t *testing.T, c Clock) {
	t.Helper()
	before := time.Now()
	result := c.Now()
	after := time.Now()
	assert.False(t, result.Before(before), "expected system time")
	assert.False(t, result.After(after), "expected system time")
}

func TestRealClock(t *testing.T) {
	c := RealClock{}
	assertSystemTime(t, c)

	start := time.Now()
	require.NoError(t, c.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRealClock_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	initial := time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)
	c := NewMockClock(initial)
	assert.Equal(t, initial, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, time.Date(2025, 10, 2, 9, 30, 0, 0, time.UTC), c.Now())

	c.Advance(-time.Hour)
	assert.Equal(t, time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC), c.Now())

	later := time.Date(2025, 12, 24, 12, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockClock_SleepAdvances(t *testing.T) {
	initial := time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)
	c := NewMockClock(initial)

	require.NoError(t, c.Sleep(context.Background(), 30*time.Second))
	require.NoError(t, c.Sleep(context.Background(), 30*time.Second))

	assert.Equal(t, initial.Add(time.Minute), c.Now())
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, c.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Second), context.Canceled)
	assert.Len(t, c.Sleeps(), 2)
}

func writeTimeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "now.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEnvironmentClock_Sources(t *testing.T) {
	const envVarName = "TEST_ADHERENCE_NOW"
	envTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fileTime := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	t.Run("env var wins over file", func(t *testing.T) {
		t.Setenv(envVarName, envTime.Format(time.RFC3339))
		c := NewEnvironmentClock(envVarName, writeTimeFile(t, fileTime.Format(time.RFC3339)), time.UTC)
		assert.Equal(t, envTime, c.Now())
	})

	t.Run("file with trailing newline", func(t *testing.T) {
		c := NewEnvironmentClock("", writeTimeFile(t, fileTime.Format(time.RFC3339)+"\n"), time.UTC)
		assert.Equal(t, fileTime, c.Now())
	})

	t.Run("nothing configured", func(t *testing.T) {
		assertSystemTime(t, NewEnvironmentClock("", "", time.UTC))
	})

	t.Run("missing file", func(t *testing.T) {
		assertSystemTime(t, NewEnvironmentClock("", "/nonexistent/now.txt", time.UTC))
	})
}

func TestEnvironmentClock_ParseTimeFormats(t *testing.T) {
	const envVarName = "TEST_ADHERENCE_NOW_FORMAT"
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"RFC3339", "2025-10-02T08:10:00Z", time.Date(2025, 10, 2, 8, 10, 0, 0, time.UTC)},
		{"RFC3339 with offset", "2025-10-02T08:10:00+03:00", time.Date(2025, 10, 2, 5, 10, 0, 0, time.UTC)},
		{"local wall time", "2025-10-02 08:10:00", time.Date(2025, 10, 2, 8, 10, 0, 0, helsinki)},
		{"local wall time with T", "2025-10-02T08:10:00", time.Date(2025, 10, 2, 8, 10, 0, 0, helsinki)},
		{"date only", "2025-10-02", time.Date(2025, 10, 2, 0, 0, 0, 0, helsinki)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envVarName, tt.input)
			c := NewEnvironmentClock(envVarName, "", helsinki)
			result := c.Now()
			assert.True(t, tt.expected.Equal(result), "expected %v, got %v", tt.expected, result)
		})
	}
}

func TestEnvironmentClock_InvalidValuesFallBack(t *testing.T) {
	const envVarName = "TEST_ADHERENCE_NOW_INVALID"

	for _, input := range []string{"not-a-valid-time", "2025-", "2025-01-010", "-2021-01-01"} {
		t.Run(input, func(t *testing.T) {
			t.Setenv(envVarName, input)
			assertSystemTime(t, NewEnvironmentClock(envVarName, "", time.UTC))
		})
	}
}

func TestEnvironmentClock_NilLocation(t *testing.T) {
	const envVarName = "TEST_ADHERENCE_NOW_NIL_LOC"

	t.Setenv(envVarName, "2025-10-02 08:10:00")
	assertSystemTime(t, NewEnvironmentClock(envVarName, "", nil))

	t.Setenv(envVarName, "2025-10-02T08:10:00Z")
	assert.Equal(t, time.Date(2025, 10, 2, 8, 10, 0, 0, time.UTC), NewEnvironmentClock(envVarName, "", nil).Now())
}

func TestEnvironmentClock_SleepDoesNotMovePinnedTime(t *testing.T) {
	const envVarName = "TEST_ADHERENCE_NOW_SLEEP"
	pinned := time.Date(2025, 10, 2, 8, 10, 0, 0, time.UTC)
	t.Setenv(envVarName, pinned.Format(time.RFC3339))

	c := NewEnvironmentClock(envVarName, "", time.UTC)
	require.NoError(t, c.Sleep(context.Background(), time.Millisecond))
	assert.Equal(t, pinned, c.Now())
}

// Run with -race.
func TestMockClock_ConcurrentAccess(t *testing.T) {
	initial := time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)
	c := NewMockClock(initial)

	const goroutines = 50
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines * 3)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				_ = c.Now()
			}
		}()
	}
	for i := range goroutines {
		go func(offset int) {
			defer wg.Done()
			for j := range iterations {
				c.Set(initial.Add(time.Duration(offset+j) * time.Second))
			}
		}(i)
	}
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				_ = c.Sleep(context.Background(), time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, c.Sleeps(), goroutines*iterations)
}
