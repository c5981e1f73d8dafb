package jobs

import (
	"context"

	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/pkg/logger"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY DIGEST JOB
// ══════════════════════════════════════════════════════════════════════════════

// DigestEntry is one line of the digest.
type DigestEntry struct {
	MemberID      string
	MemberName    string
	CurrentGrade  string
	NextGrade     string
	EstimatedDate string
	DaysOverdue   int
}

// Digest lists who instructors should put forward for the next exam.
type Digest struct {
	Date    string
	Ready   []DigestEntry
	Overdue []DigestEntry
}

// DigestSink receives the digest. The default sink writes it to the log.
type DigestSink func(ctx context.Context, d Digest) error

// DailyDigestJob builds the morning list of ready and overdue members.
type DailyDigestJob struct {
	roster RosterReporter
	sink   DigestSink
	clock  timeutil.Clock
	log    *logger.Logger
}

// NewDailyDigestJob creates the job. sink may be nil.
func NewDailyDigestJob(roster RosterReporter, sink DigestSink, clock timeutil.Clock, log *logger.Logger) *DailyDigestJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	j := &DailyDigestJob{
		roster: roster,
		clock:  clock,
		log:    log.With(logger.Component("job.daily_digest")),
	}
	if sink == nil {
		sink = j.logDigest
	}
	j.sink = sink
	return j
}

// Name returns the job name.
func (j *DailyDigestJob) Name() string {
	return "daily_digest"
}

// Description returns a human-readable description.
func (j *DailyDigestJob) Description() string {
	return "Lists members ready for or overdue on their next exam"
}

// Run builds the digest and hands it to the sink. Nothing is sent when no
// member is ready or overdue.
func (j *DailyDigestJob) Run(ctx context.Context) error {
	report, err := j.roster.Handle(ctx, query.GetRosterReportQuery{})
	if err != nil {
		return err
	}

	d := Digest{
		Date:    timeutil.FormatDateStr(j.clock.Now()),
		Ready:   entries(report.Ready),
		Overdue: entries(report.Overdue),
	}
	if len(d.Ready) == 0 && len(d.Overdue) == 0 {
		j.log.Debug("nothing to report")
		return nil
	}
	return j.sink(ctx, d)
}

func entries(reports []progression.Report) []DigestEntry {
	out := make([]DigestEntry, 0, len(reports))
	for _, r := range reports {
		e := DigestEntry{
			MemberID:     r.MemberID,
			MemberName:   r.MemberName,
			CurrentGrade: string(r.CurrentGrade),
			DaysOverdue:  r.DaysOverdue,
		}
		if r.NextGrade != nil {
			e.NextGrade = string(r.NextGrade.ID)
		}
		if r.EstimatedDate != nil {
			e.EstimatedDate = timeutil.FormatDateStr(*r.EstimatedDate)
		}
		out = append(out, e)
	}
	return out
}

func (j *DailyDigestJob) logDigest(_ context.Context, d Digest) error {
	for _, e := range d.Ready {
		j.log.Info("ready for exam",
			logger.MemberID(e.MemberID),
			logger.String("name", e.MemberName),
			logger.String("next_grade", e.NextGrade),
			logger.String("estimated_date", e.EstimatedDate),
		)
	}
	for _, e := range d.Overdue {
		j.log.Warn("overdue for exam",
			logger.MemberID(e.MemberID),
			logger.String("name", e.MemberName),
			logger.String("next_grade", e.NextGrade),
			logger.Int("days_overdue", e.DaysOverdue),
		)
	}
	j.log.Info("daily digest",
		logger.String("date", d.Date),
		logger.Int("ready", len(d.Ready)),
		logger.Int("overdue", len(d.Overdue)),
	)
	return nil
}
