package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.Redis.Disabled)

	p := cfg.Progression
	assert.Equal(t, []time.Month{time.July, time.August}, p.ClosureMonths.Months())
	assert.Equal(t, 30, p.OverdueGraceDays)
	assert.Equal(t, 30, p.MonthLengthDays)
	assert.InDelta(t, 0.9, p.ClosureDiscount, 1e-9)
	assert.Equal(t, 2, p.ClassesPerWeek)
	assert.Empty(t, p.CatalogFile)
	assert.NoError(t, p.Engine().Validate())
}

func TestFromEnv_ProgressionOverrides(t *testing.T) {
	t.Setenv("PROGRESSION_CLOSURE_MONTHS", "12, 1")
	t.Setenv("PROGRESSION_OVERDUE_GRACE_DAYS", "14")
	t.Setenv("PROGRESSION_CLOSURE_DISCOUNT", "0.75")
	t.Setenv("PROGRESSION_CLASSES_PER_WEEK", "3")

	cfg, err := FromEnv()
	require.NoError(t, err)

	rules := cfg.Progression.Engine()
	assert.True(t, rules.ClosureMonths.Contains(time.December))
	assert.True(t, rules.ClosureMonths.Contains(time.January))
	assert.False(t, rules.ClosureMonths.Contains(time.July))
	assert.Equal(t, 14, rules.OverdueGraceDays)
	assert.InDelta(t, 0.75, rules.ClosureDiscount, 1e-9)
	assert.Equal(t, 3, rules.ClassesPerWeek)
}

func TestFromEnv_InvalidClosureMonths(t *testing.T) {
	t.Setenv("PROGRESSION_CLOSURE_MONTHS", "13")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "PROGRESSION_CLOSURE_MONTHS")
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("PROGRESSION_MONTH_LENGTH_DAYS", "0")
	t.Setenv("SCHEDULER_DIGEST_HOUR", "25")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "month length must be positive")
	assert.Contains(t, err.Error(), "SCHEDULER_DIGEST_HOUR")
}

func TestValidate_UnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "STORAGE_DRIVER")
}

func TestLoadDatabaseConfig_FromParts(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "sensei")
	t.Setenv("DB_PASSWORD", "secret")

	db := loadDatabaseConfig()
	assert.Equal(t, "postgres://sensei:secret@db:5432/dojo?sslmode=disable", db.URL)
}

func TestLoadFile(t *testing.T) {
	// godotenv never overrides variables that are already set, so the keys
	// are registered with t.Setenv for cleanup and then cleared.
	t.Setenv("PROGRESSION_CLASSES_PER_WEEK", "")
	require.NoError(t, os.Unsetenv("PROGRESSION_CLASSES_PER_WEEK"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROGRESSION_CLASSES_PER_WEEK=4\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Progression.ClassesPerWeek)
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_REPORT_CACHE", "false")
	t.Setenv("FEATURE_REPORT_WEEKS_FORECAST", "0")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureReportCache))
	assert.False(t, ff.IsEnabled(FeatureReportWeeksForecast))
	assert.True(t, ff.IsEnabled(FeatureRosterScan))
	assert.False(t, ff.IsEnabled("unknown.flag"))

	ff.SetMemberOverride("m-1", FeatureReportWeeksForecast, true)
	assert.True(t, ff.IsEnabledFor(FeatureReportWeeksForecast, "m-1"))
	assert.False(t, ff.IsEnabledFor(FeatureReportWeeksForecast, "m-2"))

	require.NoError(t, ff.EnableFeature(FeatureReportCache))
	assert.True(t, ff.IsEnabledFor(FeatureReportCache, "anyone"))

	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureRosterScan, 101), ErrInvalidRolloutPercent)
	assert.Len(t, ff.All(), 4)
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureReportWeeksForecast, 50))

	for _, id := range []string{"m-1", "m-2", "m-3", "m-4"} {
		first := ff.IsEnabledFor(FeatureReportWeeksForecast, id)
		assert.Equal(t, first, ff.IsEnabledFor(FeatureReportWeeksForecast, id))
	}
}
