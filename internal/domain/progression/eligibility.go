package progression

import (
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// Status - состояние ученика на пути к следующему поясу.
type Status string

const (
	StatusInProgress      Status = "in_progress"
	StatusReady           Status = "ready"
	StatusOverdue         Status = "overdue"
	StatusMaxGradeReached Status = "max_grade_reached"
)

// String возвращает строковое представление.
func (s Status) String() string {
	return string(s)
}

// Evaluation - вердикт о допуске для одного ученика.
type Evaluation struct {
	Status       Status
	Baseline     time.Time
	CurrentGrade grade.Grade

	// NextGrade и Requirements равны nil, если у ученика последний пояс
	// лестницы.
	NextGrade    *grade.Grade
	Requirements *grade.Requirements

	CreditsSinceBaseline int
	MonthsSinceBaseline  int

	// Остатки равны нулю, когда соответствующий порог набран.
	CreditsRemaining int
	MonthsRemaining  int

	// EstimatedDate - прогнозная дата экзамена, nil для MaxGradeReached.
	EstimatedDate *time.Time

	// DaysOverdue - сколько дней прошло после EstimatedDate, только для StatusOverdue.
	DaysOverdue int
}

// Calculator определяет допуск к экзамену.
type Calculator struct {
	ladder    *grade.Ladder
	weighting *attendance.Weighting
	estimator *Estimator
	clock     timeutil.Clock
	cfg       Config
}

// NewCalculator собирает калькулятор. cfg должен быть уже проверен.
func NewCalculator(ladder *grade.Ladder, weighting *attendance.Weighting, estimator *Estimator, clock timeutil.Clock, cfg Config) *Calculator {
	return &Calculator{
		ladder:    ladder,
		weighting: weighting,
		estimator: estimator,
		clock:     clock,
		cfg:       cfg,
	}
}

// Evaluate классифицирует m на текущий момент часов.
//
// Для Ready или Overdue нужны и кредиты, и срок. Если выполнено только одно
// условие, статус всегда InProgress. Ученик с последним поясом лестницы
// получает MaxGradeReached независимо от истории.
//
// Ошибки: shared.ErrMalformedHistory, если ученик ссылается на пояс вне
// лестницы, и shared.ErrInvalidSessionKind, если у учитываемой записи
// посещаемости неизвестный вид тренировки.
func (c *Calculator) Evaluate(m *member.Member) (Evaluation, error) {
	if m == nil {
		return Evaluation{}, shared.NewDomainError(domain, "Evaluate", shared.ErrMalformedHistory, "member is nil")
	}
	now := c.clock.Now()

	current, err := c.ladder.Get(m.CurrentGrade)
	if err != nil {
		return Evaluation{}, shared.WrapError(domain, "Evaluate", shared.ErrMalformedHistory,
			"member "+m.ID+" holds an unknown grade", err)
	}

	baseline := m.Baseline()
	ev := Evaluation{
		Baseline:            timeutil.StartOfDay(baseline),
		CurrentGrade:        current,
		MonthsSinceBaseline: timeutil.WholeMonths(baseline, now, c.cfg.MonthLengthDays),
	}

	target, ok, err := c.ladder.Next(current.ID)
	if err != nil {
		return Evaluation{}, err
	}
	if !ok {
		ev.Status = StatusMaxGradeReached
		return ev, nil
	}

	if err := m.ValidateHistory(c.ladder); err != nil {
		return Evaluation{}, err
	}

	req, _, err := c.ladder.RequirementsFor(target.ID)
	if err != nil {
		return Evaluation{}, err
	}

	credits, err := c.CreditsSince(m.Attendance, baseline)
	if err != nil {
		return Evaluation{}, shared.WrapError(domain, "Evaluate", shared.ErrInvalidSessionKind,
			"member "+m.ID+" has an unusable attendance record", err)
	}

	estimated := c.estimator.Estimate(baseline, req.MinMonths)
	ev.NextGrade = &target
	ev.Requirements = &req
	ev.CreditsSinceBaseline = credits
	ev.CreditsRemaining = max(0, req.MinAttendanceCredits-credits)
	ev.MonthsRemaining = max(0, req.MinMonths-ev.MonthsSinceBaseline)
	ev.EstimatedDate = &estimated

	if ev.CreditsRemaining > 0 || ev.MonthsRemaining > 0 {
		ev.Status = StatusInProgress
		return ev, nil
	}

	late := timeutil.DaysBetween(estimated, now)
	if late > c.cfg.OverdueGraceDays {
		ev.Status = StatusOverdue
		ev.DaysOverdue = late
		return ev, nil
	}

	ev.Status = StatusReady
	return ev, nil
}

// CreditsSince суммирует кредиты за посещённые тренировки строго после
// baseline. Сравниваются календарные даты, поэтому тренировка в день
// последнего экзамена не засчитывается.
func (c *Calculator) CreditsSince(records []attendance.Record, baseline time.Time) (int, error) {
	cutoff := timeutil.StartOfDay(baseline)
	total := 0
	for _, rec := range records {
		if !rec.Present || !timeutil.StartOfDay(rec.Date).After(cutoff) {
			continue
		}
		v, err := c.weighting.CreditValue(rec.SessionKind)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
