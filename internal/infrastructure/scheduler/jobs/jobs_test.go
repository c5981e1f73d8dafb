package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/redis"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

type stubRoster struct {
	report  progression.RosterReport
	err     error
	queries []query.GetRosterReportQuery
}

func (s *stubRoster) Handle(_ context.Context, q query.GetRosterReportQuery) (progression.RosterReport, error) {
	s.queries = append(s.queries, q)
	return s.report, s.err
}

type capturePublisher struct{ events []shared.Event }

func (p *capturePublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

type switchFlags map[string]bool

func (f switchFlags) IsEnabled(name string) bool { return f[name] }

func sampleRoster() progression.RosterReport {
	estimated := timeutil.Date(2024, time.March, 1)
	return progression.RosterReport{
		Ready: []progression.Report{{
			MemberID:      "m-ready",
			MemberName:    "Ready",
			CurrentGrade:  "adult-6-kyu",
			NextGrade:     &grade.Grade{ID: "adult-5-kyu"},
			EstimatedDate: &estimated,
		}},
		Overdue: []progression.Report{
			{MemberID: "m-late", CurrentGrade: "adult-5-kyu", DaysOverdue: 45},
			{MemberID: "m-later", CurrentGrade: "adult-4-kyu", DaysOverdue: 12},
		},
		InProgress:  []progression.Report{{MemberID: "m-new"}},
		MaxGrade:    []progression.Report{},
		Diagnostics: []progression.Diagnostic{{MemberID: "m-bad", Kind: progression.DiagnosticMalformedHistory}},
	}
}

func newLocker(t *testing.T) *redis.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewCacheFromClient(client)
}

func TestRosterScanJob_PublishesSummary(t *testing.T) {
	roster := &stubRoster{report: sampleRoster()}
	pub := &capturePublisher{}
	locker := newLocker(t)
	job := NewRosterScanJob(RosterScanDeps{
		Roster:    roster,
		Locker:    locker,
		Features:  switchFlags{FeatureRosterScan: true},
		Publisher: pub,
		Clock:     timeutil.FixedClock{At: timeutil.Date(2024, time.May, 1)},
	})

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, roster.queries, 1)
	assert.True(t, roster.queries[0].SkipCache)

	require.Len(t, pub.events, 1)
	ev, ok := pub.events[0].(shared.RosterScannedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Ready)
	assert.Equal(t, 2, ev.Overdue)
	assert.Equal(t, 1, ev.InProgress)
	assert.Equal(t, 1, ev.Diagnostics)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Empty(t, stats.Skipped)

	// The lock is released after the run.
	ok, _, err := locker.TryLock(context.Background(), job.Name(), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRosterScanJob_SkipsWhenLocked(t *testing.T) {
	roster := &stubRoster{report: sampleRoster()}
	locker := newLocker(t)
	held, _, err := locker.TryLock(context.Background(), "roster_scan", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	job := NewRosterScanJob(RosterScanDeps{Roster: roster, Locker: locker})
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, roster.queries)
	assert.Equal(t, "locked", job.LastStats().Skipped)
}

func TestRosterScanJob_SkipsWhenDisabled(t *testing.T) {
	roster := &stubRoster{}
	job := NewRosterScanJob(RosterScanDeps{Roster: roster, Features: switchFlags{}})

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, roster.queries)
	assert.Equal(t, "disabled", job.LastStats().Skipped)
}

func TestRosterScanJob_PropagatesErrors(t *testing.T) {
	job := NewRosterScanJob(RosterScanDeps{Roster: &stubRoster{err: errors.New("db down")}})
	assert.EqualError(t, job.Run(context.Background()), "db down")
}

func TestDailyDigestJob(t *testing.T) {
	var got []Digest
	sink := func(_ context.Context, d Digest) error {
		got = append(got, d)
		return nil
	}
	clock := timeutil.FixedClock{At: timeutil.Date(2024, time.May, 1)}

	job := NewDailyDigestJob(&stubRoster{report: sampleRoster()}, sink, clock, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, got, 1)
	assert.Equal(t, "2024-05-01", got[0].Date)
	require.Len(t, got[0].Ready, 1)
	assert.Equal(t, "adult-5-kyu", got[0].Ready[0].NextGrade)
	assert.Equal(t, "2024-03-01", got[0].Ready[0].EstimatedDate)
	require.Len(t, got[0].Overdue, 2)
	assert.Equal(t, 45, got[0].Overdue[0].DaysOverdue)

	empty := NewDailyDigestJob(&stubRoster{}, sink, clock, nil)
	require.NoError(t, empty.Run(context.Background()))
	assert.Len(t, got, 1)

	// Default sink logs and never fails.
	require.NoError(t, NewDailyDigestJob(&stubRoster{report: sampleRoster()}, nil, clock, nil).Run(context.Background()))
}
