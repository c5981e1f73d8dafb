package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-management/config"
	"github.com/dojo-hub/dojo-management/internal/application/command"
	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/redis"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/scheduler/jobs"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

var now = timeutil.Date(2024, time.April, 20)

func newApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, nil, Options{Clock: timeutil.FixedClock{At: now}})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func enrollWithSessions(t *testing.T, a *App, id string, sessions int) {
	t.Helper()
	ctx := context.Background()
	_, err := a.EnrollMember.Handle(ctx, command.EnrollMemberCommand{
		ID:       id,
		Name:     "Member " + id,
		Category: grade.CategoryAdult,
		JoinDate: timeutil.Date(2024, time.January, 1),
	})
	require.NoError(t, err)

	for i := 0; i < sessions; i++ {
		_, err := a.RecordAttendance.Handle(ctx, command.RecordAttendanceCommand{
			MemberID:    id,
			Date:        timeutil.Date(2024, time.January, 2).AddDate(0, 0, 3*i),
			Present:     true,
			SessionKind: attendance.SessionNormal,
		})
		require.NoError(t, err)
	}
}

func TestNew_InMemory(t *testing.T) {
	a := newApp(t)
	assert.Nil(t, a.Locker)
	assert.IsType(t, progression.NopReportCache{}, a.Reports)

	enrollWithSessions(t, a, "ready", 20)
	enrollWithSessions(t, a, "short", 10)

	report, err := a.MemberReport.Handle(context.Background(), query.GetMemberReportQuery{MemberID: "ready"})
	require.NoError(t, err)
	assert.Equal(t, progression.StatusReady, report.Status)

	roster, err := a.RosterReport.Handle(context.Background(), query.GetRosterReportQuery{})
	require.NoError(t, err)
	assert.Len(t, roster.Ready, 1)
	assert.Len(t, roster.InProgress, 1)

	status := a.Health.Check(context.Background())
	assert.True(t, status.Healthy)
}

func TestNew_WithRedisInvalidatesOnWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_DISABLED", "false")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	a := newApp(t)
	require.NotNil(t, a.Locker)
	assert.IsType(t, &redis.GuardedReportCache{}, a.Reports)

	ctx := context.Background()
	enrollWithSessions(t, a, "m-1", 5)

	before, err := a.MemberReport.Handle(ctx, query.GetMemberReportQuery{MemberID: "m-1"})
	require.NoError(t, err)
	assert.True(t, mr.Exists(redis.MemberReportKey("m-1")))
	_, err = a.RosterReport.Handle(ctx, query.GetRosterReportQuery{})
	require.NoError(t, err)

	_, err = a.RecordAttendance.Handle(ctx, command.RecordAttendanceCommand{
		MemberID:    "m-1",
		Date:        timeutil.Date(2024, time.April, 1),
		Present:     true,
		SessionKind: attendance.SessionNormal,
	})
	require.NoError(t, err)

	// Read straight after the write: the stale report must already be gone.
	after, err := a.MemberReport.Handle(ctx, query.GetMemberReportQuery{MemberID: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, before.CreditsSinceBaseline+1, after.CreditsSinceBaseline)

	roster, err := a.RosterReport.Handle(ctx, query.GetRosterReportQuery{})
	require.NoError(t, err)
	require.Len(t, roster.InProgress, 1)
	assert.Equal(t, after.CreditsSinceBaseline, roster.InProgress[0].CreditsSinceBaseline)

	status := a.Health.Check(ctx)
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Checks, "redis")
}

func TestNew_ReportCacheFlagOff(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_DISABLED", "false")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("FEATURE_REPORT_CACHE", "false")

	a := newApp(t)
	assert.NotNil(t, a.Locker)
	assert.IsType(t, progression.NopReportCache{}, a.Reports)
}

func TestNew_RejectsBadCatalog(t *testing.T) {
	t.Setenv("PROGRESSION_CATALOG_FILE", t.TempDir()+"/missing.yaml")
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, nil, Options{})
	assert.Error(t, err)
}

func TestNewScheduler(t *testing.T) {
	a := newApp(t)
	enrollWithSessions(t, a, "ready", 20)

	var got []jobs.Digest
	s, err := a.NewScheduler(func(_ context.Context, d jobs.Digest) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)

	infos := s.ListJobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "daily_digest", infos[0].Name)
	assert.Equal(t, "roster_scan", infos[1].Name)

	res, err := s.RunNow(context.Background(), "daily_digest")
	require.NoError(t, err)
	assert.True(t, res.Manual)
	require.Len(t, got, 1)
	require.Len(t, got[0].Ready, 1)
	assert.Equal(t, "ready", got[0].Ready[0].MemberID)

	_, err = s.RunNow(context.Background(), "roster_scan")
	require.NoError(t, err)
}

func TestHTTPConfig(t *testing.T) {
	a := newApp(t)
	hc := a.HTTPConfig()
	assert.Equal(t, ":8080", hc.Addr)
	assert.False(t, hc.Release)
	assert.True(t, hc.RateLimit.Enabled())
	assert.Equal(t, 60, hc.RateLimit.Burst)

	deps := a.HTTPDependencies()
	assert.NotNil(t, deps.EnrollMember)
	assert.Same(t, a.Health, deps.Health)
}
