package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 01:30 local on June 2 is still June 1 in UTC.
	ts := time.Date(2024, 6, 2, 1, 30, 0, 0, loc)
	assert.Equal(t, "2024-06-01", DayKey(ts))
}

func TestYesterday(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-06-02", "2024-06-01", false},
		{"2024-03-01", "2024-02-29", false},
		{"2024-01-01", "2023-12-31", false},
		{"not-a-day", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Yesterday(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatsDate(t *testing.T) {
	got, err := StatsDate("2024-07-15")
	require.NoError(t, err)
	assert.Equal(t, "15-07-2024", got)
}

func TestDaysEndingAt(t *testing.T) {
	days, err := DaysEndingAt("2024-03-02", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-29", "2024-03-01", "2024-03-02"}, days)
}

func TestParseDateSpec(t *testing.T) {
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	today := DateOnly(now)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"exact date", "2024-07-15", "2024-07-15", false},
		{"relative d-1", "d-1", today.AddDate(0, 0, -1).Format(DayKeyFmt), false},
		{"relative w-1", "w-1", today.AddDate(0, 0, -7).Format(DayKeyFmt), false},
		{"relative m-1", "m-1", today.AddDate(0, -1, 0).Format(DayKeyFmt), false},
		{"relative y-1", "y-1", today.AddDate(-1, 0, 0).Format(DayKeyFmt), false},
		{"month/day past", "7/1", "2024-07-01", false},
		{"month/day future wraps", "12/25", "2023-12-25", false},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateSpec(tt.input, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(DayKeyFmt))
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("EATER_DATA_DIR", t.TempDir())
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultFreshnessWindow, cfg.FreshnessWindow)
	assert.Equal(t, DefaultBackgroundRefreshThreshold, cfg.BackgroundRefreshThreshold)
	assert.Equal(t, DefaultDayPollInterval, cfg.DayPollInterval)
	assert.NotEqual(t, cfg.FreshnessWindow, cfg.BackgroundRefreshThreshold)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("EATER_DATA_DIR", t.TempDir())
	t.Setenv("EATER_BACKGROUND_REFRESH_THRESHOLD", "10m")
	t.Setenv("EATER_STATS_PARALLEL", "5")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.BackgroundRefreshThreshold)
	assert.Equal(t, 5, cfg.StatsParallel)
}
