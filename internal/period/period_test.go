package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_SettledCutoff(t *testing.T) {
	cal := Default()

	testCases := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "mid month",
			now:      time.Date(2024, 2, 15, 13, 45, 12, 0, time.UTC),
			expected: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "first instant of a month is its own cutoff",
			now:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "january",
			now:      time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC),
			expected: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, cal.SettledCutoff(tc.now))
		})
	}
}

func TestCalendar_IsSettled(t *testing.T) {
	cal := Default()
	cutoff := cal.SettledCutoff(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))

	assert.True(t, cal.IsSettled(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), cutoff))
	// The cutoff itself belongs to the open period.
	assert.False(t, cal.IsSettled(cutoff, cutoff))
	assert.False(t, cal.IsSettled(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), cutoff))
}

func TestCalendar_MonthKey(t *testing.T) {
	cal := Default()
	assert.Equal(t, "2024-01", cal.MonthKey(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2023-12", cal.MonthKey(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestCalendar_MonthRange(t *testing.T) {
	cal := Default()

	t.Run("regular month", func(t *testing.T) {
		start, end := cal.MonthRange(2024, time.April)
		assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC), end)
	})

	t.Run("december rolls over to january", func(t *testing.T) {
		start, end := cal.MonthRange(2023, time.December)
		assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), end)
	})

	t.Run("leap february", func(t *testing.T) {
		_, end := cal.MonthRange(2024, time.February)
		assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), end)
	})
}

func TestCalendar_EnumerateMonths(t *testing.T) {
	cal := Default()

	t.Run("spans a year boundary", func(t *testing.T) {
		start := time.Date(2023, 11, 20, 8, 0, 0, 0, time.UTC)
		now := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)

		months := cal.EnumerateMonths(start, now)
		require.Len(t, months, 4)

		keys := make([]string, 0, len(months))
		for _, m := range months {
			keys = append(keys, m.Key)
		}
		assert.Equal(t, []string{"2023-11", "2023-12", "2024-01", "2024-02"}, keys)

		// The first month covers the whole month even when start is mid-month.
		assert.Equal(t, time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), months[0].Start)
		assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), months[3].End)
	})

	t.Run("single month", func(t *testing.T) {
		start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
		months := cal.EnumerateMonths(start, now)
		require.Len(t, months, 1)
		assert.Equal(t, "2024-05", months[0].Key)
	})

	t.Run("now before start yields nothing", func(t *testing.T) {
		start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		assert.Empty(t, cal.EnumerateMonths(start, now))
	})

	t.Run("keys sort chronologically", func(t *testing.T) {
		start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
		now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		months := cal.EnumerateMonths(start, now)
		for i := 1; i < len(months); i++ {
			assert.Less(t, months[i-1].Key, months[i].Key)
		}
	})
}
