// Package jobs contains the scheduled jobs of the dojo service.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/logger"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// FeatureRosterScan is the flag that gates the scan. Matches config.FeatureRosterScan.
const FeatureRosterScan = "roster.scan"

// RosterReporter builds roster reports.
type RosterReporter interface {
	Handle(ctx context.Context, q query.GetRosterReportQuery) (progression.RosterReport, error)
}

// Locker hands out short-lived locks so only one worker scans at a time.
type Locker interface {
	TryLock(ctx context.Context, resource string, ttl time.Duration) (bool, func(context.Context) error, error)
}

// FeatureChecker reports whether a feature is on.
type FeatureChecker interface {
	IsEnabled(name string) bool
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER SCAN JOB
// ══════════════════════════════════════════════════════════════════════════════

// RosterScanJob recomputes the roster report for all active members, warms
// the report cache, logs overdue members and publishes a summary event.
type RosterScanJob struct {
	roster    RosterReporter
	locker    Locker
	features  FeatureChecker
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
	lockTTL   time.Duration

	lastStats atomic.Pointer[ScanStats]
}

// RosterScanDeps are the collaborators of RosterScanJob. Only Roster is
// required.
type RosterScanDeps struct {
	Roster    RosterReporter
	Locker    Locker
	Features  FeatureChecker
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Logger    *logger.Logger

	// LockTTL bounds how long a crashed worker can block others.
	LockTTL time.Duration
}

// ScanStats summarises one scan.
type ScanStats struct {
	StartedAt   time.Time
	Duration    time.Duration
	Ready       int
	Overdue     int
	InProgress  int
	MaxGrade    int
	Diagnostics int
	Skipped     string
}

// NewRosterScanJob creates the job.
func NewRosterScanJob(deps RosterScanDeps) *RosterScanJob {
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Minute
	}
	return &RosterScanJob{
		roster:    deps.Roster,
		locker:    deps.Locker,
		features:  deps.Features,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		log:       deps.Logger.With(logger.Component("job.roster_scan")),
		lockTTL:   deps.LockTTL,
	}
}

// Name returns the job name.
func (j *RosterScanJob) Name() string {
	return "roster_scan"
}

// Description returns a human-readable description.
func (j *RosterScanJob) Description() string {
	return "Recomputes exam eligibility for the active roster and reports overdue members"
}

// LastStats returns the stats of the last completed run, or nil.
func (j *RosterScanJob) LastStats() *ScanStats {
	return j.lastStats.Load()
}

// Run executes the scan.
func (j *RosterScanJob) Run(ctx context.Context) error {
	stats := &ScanStats{StartedAt: j.clock.Now()}
	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
		j.lastStats.Store(stats)
	}()

	if j.features != nil && !j.features.IsEnabled(FeatureRosterScan) {
		stats.Skipped = "disabled"
		j.log.Debug("roster scan disabled by feature flag")
		return nil
	}

	if j.locker != nil {
		ok, release, err := j.locker.TryLock(ctx, j.Name(), j.lockTTL)
		if err != nil {
			return err
		}
		if !ok {
			stats.Skipped = "locked"
			j.log.Info("roster scan already running elsewhere")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.log.Warn("failed to release roster scan lock", logger.Err(err))
			}
		}()
	}

	report, err := j.roster.Handle(ctx, query.GetRosterReportQuery{SkipCache: true})
	if err != nil {
		return err
	}

	stats.Ready = len(report.Ready)
	stats.Overdue = len(report.Overdue)
	stats.InProgress = len(report.InProgress)
	stats.MaxGrade = len(report.MaxGrade)
	stats.Diagnostics = len(report.Diagnostics)

	for _, r := range report.Overdue {
		j.log.Warn("member overdue for exam",
			logger.MemberID(r.MemberID),
			logger.GradeID(string(r.CurrentGrade)),
			logger.Int("days_overdue", r.DaysOverdue),
		)
	}

	j.log.Info("roster scanned",
		logger.Int("ready", stats.Ready),
		logger.Int("overdue", stats.Overdue),
		logger.Int("in_progress", stats.InProgress),
		logger.Int("max_grade", stats.MaxGrade),
		logger.Int("diagnostics", stats.Diagnostics),
	)

	return j.publisher.Publish(shared.RosterScannedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventRosterScanned, "roster", j.clock.Now()),
		Ready:       stats.Ready,
		Overdue:     stats.Overdue,
		InProgress:  stats.InProgress,
		MaxGrade:    stats.MaxGrade,
		Diagnostics: stats.Diagnostics,
	})
}
