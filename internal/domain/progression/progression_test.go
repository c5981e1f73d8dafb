package progression

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func testLadder(t *testing.T) *grade.Ladder {
	t.Helper()
	l, err := grade.NewLadder([]grade.Grade{
		{ID: "adult-6-kyu", Category: grade.CategoryAdult, Ordinal: 1, Requirements: &grade.Requirements{MinAttendanceCredits: 12, MinMonths: 3}},
		{ID: "adult-5-kyu", Category: grade.CategoryAdult, Ordinal: 2, Requirements: &grade.Requirements{MinAttendanceCredits: 20, MinMonths: 6}},
		{ID: "adult-4-kyu", Category: grade.CategoryAdult, Ordinal: 3},
		{ID: "youth-white", Category: grade.CategoryYouth, Ordinal: 1, Requirements: &grade.Requirements{MinAttendanceCredits: 8, MinMonths: 2}},
		{ID: "youth-yellow", Category: grade.CategoryYouth, Ordinal: 2},
	})
	require.NoError(t, err)
	return l
}

func newEngine(t *testing.T, now time.Time) *Engine {
	t.Helper()
	e, err := NewEngine(EngineDeps{
		Ladder:    testLadder(t),
		Weighting: attendance.MustDefaultWeighting(),
		Clock:     timeutil.FixedClock{At: now},
		Config:    DefaultConfig(),
	})
	require.NoError(t, err)
	return e
}

// sessions returns n present records of one kind, every third day after start.
func sessions(memberID string, n int, start time.Time, kind attendance.SessionKind) []attendance.Record {
	out := make([]attendance.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, attendance.Record{
			ID:          fmt.Sprintf("%s-%s-%d", memberID, kind, i),
			MemberID:    memberID,
			Date:        start.AddDate(0, 0, 1+3*i),
			Present:     true,
			SessionKind: kind,
		})
	}
	return out
}

func adult(id string, join time.Time, credits int) *member.Member {
	return &member.Member{
		ID:           id,
		Name:         "Member " + id,
		Category:     grade.CategoryAdult,
		CurrentGrade: "adult-6-kyu",
		JoinDate:     join,
		Active:       true,
		Attendance:   sessions(id, credits, join, attendance.SessionNormal),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ESTIMATOR
// ══════════════════════════════════════════════════════════════════════════════

func TestEstimator_Estimate(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	tests := []struct {
		name     string
		baseline time.Time
		months   int
		want     time.Time
	}{
		{"no shift", timeutil.Date(2024, time.January, 1), 3, timeutil.Date(2024, time.April, 1)},
		{"lands in July", timeutil.Date(2024, time.May, 15), 2, timeutil.Date(2024, time.September, 1)},
		{"lands in August", timeutil.Date(2024, time.February, 10), 6, timeutil.Date(2024, time.September, 1)},
		{"clamps to month end", timeutil.Date(2024, time.January, 31), 1, timeutil.Date(2024, time.February, 29)},
		{"crosses the year", timeutil.Date(2024, time.November, 5), 3, timeutil.Date(2025, time.February, 5)},
		{"zero months", timeutil.Date(2024, time.July, 20), 0, timeutil.Date(2024, time.September, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, est.Estimate(tt.baseline, tt.months))
		})
	}
}

func TestEstimator_CustomClosureWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClosureMonths = timeutil.NewMonthSet(time.December, time.January)
	est := NewEstimator(cfg)

	assert.Equal(t, timeutil.Date(2025, time.February, 1), est.Estimate(timeutil.Date(2024, time.September, 10), 3))
	assert.Equal(t, timeutil.Date(2024, time.July, 15), est.Estimate(timeutil.Date(2024, time.May, 15), 2))
}

func TestEstimator_RemainingWeeks(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	weeks, err := est.RemainingWeeks(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, weeks)

	weeks, err = est.RemainingWeeks(10, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, weeks)

	weeks, err = est.RemainingWeeks(0, 2)
	require.NoError(t, err)
	assert.Zero(t, weeks)

	_, err = est.RemainingWeeks(5, 0)
	assert.True(t, shared.IsConfiguration(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	broken := map[string]func(*Config){
		"negative grace":   func(c *Config) { c.OverdueGraceDays = -1 },
		"zero month":       func(c *Config) { c.MonthLengthDays = 0 },
		"zero discount":    func(c *Config) { c.ClosureDiscount = 0 },
		"discount above 1": func(c *Config) { c.ClosureDiscount = 1.5 },
		"zero cadence":     func(c *Config) { c.ClassesPerWeek = 0 },
		"closed all year": func(c *Config) {
			c.ClosureMonths = timeutil.NewMonthSet(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
		},
	}
	for name, mutate := range broken {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.True(t, shared.IsConfiguration(cfg.Validate()))
		})
	}
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	_, err := NewEngine(EngineDeps{Weighting: attendance.MustDefaultWeighting(), Config: DefaultConfig()})
	assert.True(t, shared.IsConfiguration(err))

	_, err = NewEngine(EngineDeps{Ladder: testLadder(t), Config: DefaultConfig()})
	assert.True(t, shared.IsConfiguration(err))

	cfg := DefaultConfig()
	cfg.MonthLengthDays = 0
	_, err = NewEngine(EngineDeps{Ladder: testLadder(t), Weighting: attendance.MustDefaultWeighting(), Config: cfg})
	assert.True(t, shared.IsConfiguration(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluate_CreditsShortIsInProgress(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 10)

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, ev.Status)
	assert.Equal(t, 10, ev.CreditsSinceBaseline)
	assert.Equal(t, 2, ev.CreditsRemaining)
	assert.Equal(t, 5, ev.MonthsSinceBaseline)
	assert.Zero(t, ev.MonthsRemaining)
	require.NotNil(t, ev.NextGrade)
	assert.Equal(t, grade.ID("adult-5-kyu"), ev.NextGrade.ID)
	require.NotNil(t, ev.EstimatedDate)
	assert.Equal(t, timeutil.Date(2024, time.April, 1), *ev.EstimatedDate)
}

func TestEvaluate_TimeShortIsInProgress(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.February, 15))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 0)
	m.Attendance = sessions("m-1", 3, m.JoinDate, attendance.SessionInternationalCourse)

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, ev.Status)
	assert.Equal(t, 18, ev.CreditsSinceBaseline)
	assert.Zero(t, ev.CreditsRemaining)
	assert.Equal(t, 1, ev.MonthsSinceBaseline)
	assert.Equal(t, 2, ev.MonthsRemaining)
}

func TestEvaluate_Ready(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.April, 20))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 12)

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, StatusReady, ev.Status)
	assert.Equal(t, 3, ev.MonthsSinceBaseline)
	assert.Zero(t, ev.DaysOverdue)
}

func TestEvaluate_Overdue(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 12)

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, StatusOverdue, ev.Status)
	assert.Equal(t, 61, ev.DaysOverdue)
}

func TestEvaluate_GraceBoundary(t *testing.T) {
	join := timeutil.Date(2024, time.January, 1)

	// 30 days after the estimate is still inside the grace period.
	ev, err := newEngine(t, timeutil.Date(2024, time.May, 1)).Evaluate(adult("m-1", join, 12))
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ev.Status)

	ev, err = newEngine(t, timeutil.Date(2024, time.May, 2)).Evaluate(adult("m-1", join, 12))
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, ev.Status)
	assert.Equal(t, 31, ev.DaysOverdue)
}

func TestEvaluate_MaxGradeIgnoresHistory(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	m := adult("m-1", timeutil.Date(2020, time.January, 1), 0)
	m.CurrentGrade = "adult-4-kyu"
	m.Attendance = []attendance.Record{{ID: "a-1", Date: timeutil.Date(2021, time.May, 1), Present: true, SessionKind: "seminar"}}
	m.Exams = []member.ExamRecord{{ID: "e-1", FromGrade: "adult-9-kyu", ToGrade: "adult-4-kyu", Result: member.ExamPassed}}

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, StatusMaxGradeReached, ev.Status)
	assert.Nil(t, ev.NextGrade)
	assert.Nil(t, ev.Requirements)
	assert.Nil(t, ev.EstimatedDate)
}

func TestEvaluate_BaselineIsLastExam(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	exam := timeutil.Date(2024, time.March, 1)

	m := adult("m-1", timeutil.Date(2023, time.September, 1), 30)
	m.LastExamDate = &exam
	m.Attendance = append(m.Attendance,
		attendance.Record{ID: "same-day", Date: exam.Add(18 * time.Hour), Present: true, SessionKind: attendance.SessionSpecial},
		attendance.Record{ID: "next-day", Date: exam.AddDate(0, 0, 1), Present: true, SessionKind: attendance.SessionSpecial},
		attendance.Record{ID: "absent", Date: exam.AddDate(0, 0, 2), Present: false, SessionKind: attendance.SessionSpecial},
	)

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, exam, ev.Baseline)
	assert.Equal(t, 2, ev.CreditsSinceBaseline)
	assert.Equal(t, 3, ev.MonthsSinceBaseline)
}

func TestEvaluate_UnknownSessionKind(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 12)
	m.Attendance = append(m.Attendance, attendance.Record{
		ID: "bad", Date: timeutil.Date(2024, time.February, 3), Present: true, SessionKind: "seminar",
	})

	_, err := e.Evaluate(m)
	assert.True(t, shared.IsInvalidSessionKind(err))
}

func TestEvaluate_UncountedRecordsAreNotValidated(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 12)
	m.Attendance = append(m.Attendance,
		attendance.Record{ID: "absent", Date: timeutil.Date(2024, time.February, 3), SessionKind: "seminar"},
		attendance.Record{ID: "before", Date: timeutil.Date(2023, time.December, 3), Present: true, SessionKind: "seminar"},
	)

	ev, err := e.Evaluate(m)
	require.NoError(t, err)
	assert.Equal(t, 12, ev.CreditsSinceBaseline)
}

func TestEvaluate_MalformedHistory(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))

	unknown := adult("m-1", timeutil.Date(2024, time.January, 1), 12)
	unknown.CurrentGrade = "adult-1-dan"
	_, err := e.Evaluate(unknown)
	assert.True(t, shared.IsMalformedHistory(err))

	crossed := adult("m-2", timeutil.Date(2024, time.January, 1), 12)
	crossed.CurrentGrade = "youth-white"
	_, err = e.Evaluate(crossed)
	assert.True(t, shared.IsMalformedHistory(err))

	badExam := adult("m-3", timeutil.Date(2024, time.January, 1), 12)
	badExam.Exams = []member.ExamRecord{{ID: "e-1", FromGrade: "adult-7-kyu", ToGrade: "adult-6-kyu", Result: member.ExamPassed}}
	_, err = e.Evaluate(badExam)
	assert.True(t, shared.IsMalformedHistory(err))
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 11)
	before := m.Clone()

	first, err := e.Evaluate(m)
	require.NoError(t, err)
	second, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, m)
}

func TestEvaluate_CreditsNonDecreasing(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.December, 1))
	m := adult("m-1", timeutil.Date(2024, time.January, 1), 0)

	kinds := e.calculator.weighting.Kinds()
	prev := 0
	for i := 0; i < 40; i++ {
		m.Attendance = append(m.Attendance, attendance.Record{
			ID:          fmt.Sprintf("a-%d", i),
			Date:        m.JoinDate.AddDate(0, 0, 1+i*5),
			Present:     true,
			SessionKind: kinds[i%len(kinds)],
		})
		ev, err := e.Evaluate(m)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ev.CreditsSinceBaseline, prev)
		prev = ev.CreditsSinceBaseline
	}
}

func TestEvaluate_WeightingOverrides(t *testing.T) {
	w, err := attendance.NewWeighting(map[attendance.SessionKind]int{attendance.SessionNormal: 2})
	require.NoError(t, err)
	e, err := NewEngine(EngineDeps{
		Ladder:    testLadder(t),
		Weighting: w,
		Clock:     timeutil.FixedClock{At: timeutil.Date(2024, time.April, 10)},
		Config:    DefaultConfig(),
	})
	require.NoError(t, err)

	ev, err := e.Evaluate(adult("m-1", timeutil.Date(2024, time.January, 1), 6))
	require.NoError(t, err)
	assert.Equal(t, 12, ev.CreditsSinceBaseline)
	assert.Equal(t, StatusReady, ev.Status)
}

func TestEvaluate_YouthLadder(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.July, 20))
	m := &member.Member{
		ID:           "y-1",
		Category:     grade.CategoryYouth,
		CurrentGrade: "youth-white",
		JoinDate:     timeutil.Date(2024, time.May, 15),
		Attendance:   sessions("y-1", 4, timeutil.Date(2024, time.May, 15), attendance.SessionSpecial),
	}

	ev, err := e.Evaluate(m)
	require.NoError(t, err)

	assert.Equal(t, StatusReady, ev.Status)
	require.NotNil(t, ev.EstimatedDate)
	assert.Equal(t, timeutil.Date(2024, time.September, 1), *ev.EstimatedDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORTS
// ══════════════════════════════════════════════════════════════════════════════

func TestReportFor(t *testing.T) {
	now := timeutil.Date(2024, time.June, 1)
	e := newEngine(t, now)

	r, err := e.ReportFor(adult("m-1", timeutil.Date(2024, time.January, 1), 10))
	require.NoError(t, err)

	assert.Equal(t, "m-1", r.MemberID)
	assert.Equal(t, "Member m-1", r.MemberName)
	assert.Equal(t, grade.CategoryAdult, r.Category)
	assert.Equal(t, StatusInProgress, r.Status)
	assert.Equal(t, grade.ID("adult-6-kyu"), r.CurrentGrade)
	assert.Equal(t, 2, r.CreditsRemaining)
	assert.Equal(t, 2, r.WeeksRemaining)
	assert.Equal(t, now, r.GeneratedAt)
}

func TestRosterReport(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))

	lateA := adult("late-a", timeutil.Date(2024, time.January, 1), 12)
	lateB := adult("late-b", timeutil.Date(2023, time.November, 1), 12)
	progressing := adult("progressing", timeutil.Date(2024, time.January, 1), 3)
	ready := adult("ready", timeutil.Date(2024, time.February, 20), 12)
	top := adult("top", timeutil.Date(2024, time.January, 1), 0)
	top.CurrentGrade = "adult-4-kyu"
	broken := adult("broken", timeutil.Date(2024, time.January, 1), 0)
	broken.CurrentGrade = "adult-1-dan"
	badKind := adult("bad-kind", timeutil.Date(2024, time.January, 1), 0)
	badKind.Attendance = []attendance.Record{{ID: "x", Date: timeutil.Date(2024, time.March, 1), Present: true, SessionKind: "seminar"}}

	roster := []*member.Member{lateA, progressing, lateB, ready, top, broken, badKind}
	report := e.RosterReport(roster)

	require.Len(t, report.Overdue, 2)
	assert.Equal(t, "late-b", report.Overdue[0].MemberID)
	assert.Equal(t, "late-a", report.Overdue[1].MemberID)
	assert.Greater(t, report.Overdue[0].DaysOverdue, report.Overdue[1].DaysOverdue)

	require.Len(t, report.Ready, 1)
	assert.Equal(t, "ready", report.Ready[0].MemberID)
	require.Len(t, report.InProgress, 1)
	assert.Equal(t, "progressing", report.InProgress[0].MemberID)
	require.Len(t, report.MaxGrade, 1)
	assert.Equal(t, "top", report.MaxGrade[0].MemberID)

	require.Len(t, report.Diagnostics, 2)
	assert.Equal(t, Diagnostic{MemberID: "broken", Kind: DiagnosticMalformedHistory, Message: report.Diagnostics[0].Message}, report.Diagnostics[0])
	assert.Equal(t, "bad-kind", report.Diagnostics[1].MemberID)
	assert.Equal(t, DiagnosticInvalidSessionKind, report.Diagnostics[1].Kind)

	assert.Equal(t, len(roster), report.Total()+len(report.Diagnostics))
}

func TestRosterReport_NilMemberIsDiagnosed(t *testing.T) {
	e := newEngine(t, timeutil.Date(2024, time.June, 1))
	roster := []*member.Member{adult("ready", timeutil.Date(2024, time.February, 20), 12), nil}

	report := e.RosterReport(roster)

	require.Len(t, report.Ready, 1)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, DiagnosticMalformedHistory, report.Diagnostics[0].Kind)
	assert.Contains(t, report.Diagnostics[0].Message, "roster entry 1")
	assert.Equal(t, len(roster), report.Total()+len(report.Diagnostics))

	_, err := e.ReportFor(nil)
	assert.True(t, shared.IsMalformedHistory(err))
}

func TestEngine_ConcurrentUse(t *testing.T) {
	now := timeutil.Date(2024, time.June, 1)
	e := newEngine(t, now)

	roster := []*member.Member{
		adult("late", timeutil.Date(2023, time.November, 1), 12),
		adult("ready", timeutil.Date(2024, time.February, 20), 12),
		adult("progressing", timeutil.Date(2024, time.January, 1), 3),
	}
	want := e.RosterReport(roster)
	wantSingle, err := e.ReportFor(roster[1])
	require.NoError(t, err)

	// Run under -race: the engine and the shared members are only read.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if got := e.RosterReport(roster); !assert.Equal(t, want, got) {
					return
				}
				got, err := e.ReportFor(roster[1])
				if !assert.NoError(t, err) || !assert.Equal(t, wantSingle, got) {
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRosterReport_Empty(t *testing.T) {
	report := newEngine(t, timeutil.Date(2024, time.June, 1)).RosterReport(nil)

	assert.Zero(t, report.Total())
	assert.NotNil(t, report.Ready)
	assert.NotNil(t, report.Diagnostics)
}
