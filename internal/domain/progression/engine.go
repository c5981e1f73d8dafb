package progression

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORTS
// ══════════════════════════════════════════════════════════════════════════════

// Report - сводка прогрессии по одному ученику. Форматирование (сообщения
// с обратным отсчётом и т.п.) остаётся вызывающей стороне.
type Report struct {
	MemberID     string         `json:"member_id"`
	MemberName   string         `json:"member_name,omitempty"`
	Category     grade.Category `json:"category"`
	Status       Status         `json:"status"`
	CurrentGrade grade.ID       `json:"current_grade"`

	NextGrade    *grade.Grade        `json:"next_grade,omitempty"`
	Requirements *grade.Requirements `json:"requirements,omitempty"`

	Baseline      time.Time  `json:"baseline"`
	EstimatedDate *time.Time `json:"estimated_date,omitempty"`

	CreditsSinceBaseline int `json:"credits_since_baseline"`
	MonthsSinceBaseline  int `json:"months_since_baseline"`
	CreditsRemaining     int `json:"credits_remaining"`
	MonthsRemaining      int `json:"months_remaining"`
	WeeksRemaining       int `json:"weeks_remaining"`
	DaysOverdue          int `json:"days_overdue,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// DiagnosticKind объясняет, почему ученик не попал в отчёт по составу.
type DiagnosticKind string

const (
	DiagnosticMalformedHistory   DiagnosticKind = "malformed_history"
	DiagnosticInvalidSessionKind DiagnosticKind = "invalid_session_kind"
	DiagnosticConfiguration      DiagnosticKind = "configuration"
	DiagnosticUnknown            DiagnosticKind = "unknown"
)

// Diagnostic описывает ученика, которого не удалось оценить.
type Diagnostic struct {
	MemberID string         `json:"member_id"`
	Kind     DiagnosticKind `json:"kind"`
	Message  string         `json:"message"`
}

// RosterReport раскладывает состав по статусам. Каждый входной ученик
// попадает ровно в одну группу или в Diagnostics.
type RosterReport struct {
	Ready       []Report     `json:"ready"`
	Overdue     []Report     `json:"overdue"`
	InProgress  []Report     `json:"in_progress"`
	MaxGrade    []Report     `json:"max_grade"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Total возвращает число классифицированных учеников.
func (r RosterReport) Total() int {
	return len(r.Ready) + len(r.Overdue) + len(r.InProgress) + len(r.MaxGrade)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine объединяет калькулятор и оценщик.
type Engine struct {
	ladder     *grade.Ladder
	calculator *Calculator
	estimator  *Estimator
	clock      timeutil.Clock
	cfg        Config
}

// EngineDeps - зависимости Engine.
type EngineDeps struct {
	Ladder    *grade.Ladder
	Weighting *attendance.Weighting
	Clock     timeutil.Clock
	Config    Config
}

// NewEngine проверяет конфигурацию и собирает движок. Ошибки - ошибки
// конфигурации, при них старт прерывается.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Ladder == nil {
		return nil, shared.NewDomainError(domain, "NewEngine", shared.ErrConfiguration, "grade ladder is required")
	}
	if deps.Weighting == nil {
		return nil, shared.NewDomainError(domain, "NewEngine", shared.ErrConfiguration, "attendance weighting is required")
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}

	estimator := NewEstimator(deps.Config)
	return &Engine{
		ladder:     deps.Ladder,
		calculator: NewCalculator(deps.Ladder, deps.Weighting, estimator, deps.Clock, deps.Config),
		estimator:  estimator,
		clock:      deps.Clock,
		cfg:        deps.Config,
	}, nil
}

// Ladder возвращает каталог поясов, по которому работает движок.
func (e *Engine) Ladder() *grade.Ladder {
	return e.ladder
}

// Config возвращает правила движка.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate возвращает вердикт о допуске для m.
func (e *Engine) Evaluate(m *member.Member) (Evaluation, error) {
	return e.calculator.Evaluate(m)
}

// Estimate прогнозирует дату экзамена через requiredMonths после baseline.
func (e *Engine) Estimate(baseline time.Time, requiredMonths int) time.Time {
	return e.estimator.Estimate(baseline, requiredMonths)
}

// RemainingWeeks оценивает число недель, нужное для набора credits при
// заданном темпе.
func (e *Engine) RemainingWeeks(credits int) (int, error) {
	return e.estimator.RemainingWeeks(credits, e.cfg.ClassesPerWeek)
}

// ReportFor строит отчёт по одному ученику.
func (e *Engine) ReportFor(m *member.Member) (Report, error) {
	ev, err := e.calculator.Evaluate(m)
	if err != nil {
		return Report{}, err
	}

	weeks, err := e.RemainingWeeks(ev.CreditsRemaining)
	if err != nil {
		return Report{}, err
	}

	return Report{
		MemberID:             m.ID,
		MemberName:           m.Name,
		Category:             m.Category,
		Status:               ev.Status,
		CurrentGrade:         ev.CurrentGrade.ID,
		NextGrade:            ev.NextGrade,
		Requirements:         ev.Requirements,
		Baseline:             ev.Baseline,
		EstimatedDate:        ev.EstimatedDate,
		CreditsSinceBaseline: ev.CreditsSinceBaseline,
		MonthsSinceBaseline:  ev.MonthsSinceBaseline,
		CreditsRemaining:     ev.CreditsRemaining,
		MonthsRemaining:      ev.MonthsRemaining,
		WeeksRemaining:       weeks,
		DaysOverdue:          ev.DaysOverdue,
		GeneratedAt:          e.clock.Now(),
	}, nil
}

// RosterReport классифицирует всех учеников. Ученик, чью историю нельзя
// оценить, попадает в Diagnostics, и весь отчёт не падает.
//
// Просроченные сортируются по дням просрочки, самые долгие первыми.
// Остальные группы сохраняют входной порядок.
func (e *Engine) RosterReport(members []*member.Member) RosterReport {
	out := RosterReport{
		Ready:       []Report{},
		Overdue:     []Report{},
		InProgress:  []Report{},
		MaxGrade:    []Report{},
		Diagnostics: []Diagnostic{},
		GeneratedAt: e.clock.Now(),
	}

	for i, m := range members {
		if m == nil {
			out.Diagnostics = append(out.Diagnostics, Diagnostic{
				Kind:    DiagnosticMalformedHistory,
				Message: "roster entry " + strconv.Itoa(i) + " has no member",
			})
			continue
		}
		r, err := e.ReportFor(m)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics, Diagnostic{
				MemberID: m.ID,
				Kind:     classify(err),
				Message:  err.Error(),
			})
			continue
		}
		switch r.Status {
		case StatusReady:
			out.Ready = append(out.Ready, r)
		case StatusOverdue:
			out.Overdue = append(out.Overdue, r)
		case StatusInProgress:
			out.InProgress = append(out.InProgress, r)
		case StatusMaxGradeReached:
			out.MaxGrade = append(out.MaxGrade, r)
		}
	}

	sort.SliceStable(out.Overdue, func(i, j int) bool {
		return out.Overdue[i].DaysOverdue > out.Overdue[j].DaysOverdue
	})
	return out
}

func classify(err error) DiagnosticKind {
	switch {
	case errors.Is(err, shared.ErrInvalidSessionKind):
		return DiagnosticInvalidSessionKind
	case errors.Is(err, shared.ErrMalformedHistory):
		return DiagnosticMalformedHistory
	case errors.Is(err, shared.ErrConfiguration):
		return DiagnosticConfiguration
	default:
		return DiagnosticUnknown
	}
}
