// Package member содержит модель чтения (read model) ученика додзё.
// Движок прогрессии получает Member как неизменяемый снимок и никогда
// не сохраняет его сам - за хранение отвечает слой persistence.
package member

import (
	"strings"
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXAM RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// ExamResult - итог экзамена на следующий пояс.
type ExamResult string

const (
	ExamPassed ExamResult = "passed"
	ExamFailed ExamResult = "failed"
)

// IsValid проверяет, что результат известен.
func (r ExamResult) IsValid() bool {
	return r == ExamPassed || r == ExamFailed
}

// ExamRecord - запись о сданном или несданном экзамене.
type ExamRecord struct {
	ID        string     `json:"id" yaml:"id"`
	MemberID  string     `json:"member_id" yaml:"member_id"`
	Date      time.Time  `json:"date" yaml:"date"`
	FromGrade grade.ID   `json:"from_grade" yaml:"from_grade"`
	ToGrade   grade.ID   `json:"to_grade" yaml:"to_grade"`
	Result    ExamResult `json:"result" yaml:"result"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER
// ══════════════════════════════════════════════════════════════════════════════

// Member - снимок истории ученика: текущий пояс, категория, посещаемость
// и экзамены. Движок только читает эти данные.
type Member struct {
	ID           string              `json:"id" yaml:"id"`
	Name         string              `json:"name" yaml:"name"`
	Category     grade.Category      `json:"category" yaml:"category"`
	CurrentGrade grade.ID            `json:"current_grade" yaml:"current_grade"`
	JoinDate     time.Time           `json:"join_date" yaml:"join_date"`
	LastExamDate *time.Time          `json:"last_exam_date,omitempty" yaml:"last_exam_date,omitempty"`
	Active       bool                `json:"active" yaml:"active"`
	Attendance   []attendance.Record `json:"attendance,omitempty" yaml:"attendance,omitempty"`
	Exams        []ExamRecord        `json:"exams,omitempty" yaml:"exams,omitempty"`
}

// NewMemberParams - параметры для создания ученика.
type NewMemberParams struct {
	ID           string
	Name         string
	Category     grade.Category
	CurrentGrade grade.ID
	JoinDate     time.Time
}

// NewMember создаёт активного ученика без истории.
func NewMember(p NewMemberParams) (*Member, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, shared.ErrInvalidMemberID
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, shared.NewDomainError("member", "Create", shared.ErrEmptyValue, "name is required")
	}
	if !p.Category.IsValid() {
		return nil, shared.Errorf("member", "Create", shared.ErrInvalidInput, "unknown category %q", p.Category)
	}
	if p.CurrentGrade == "" {
		return nil, shared.NewDomainError("member", "Create", shared.ErrEmptyValue, "current grade is required")
	}
	if p.JoinDate.IsZero() {
		return nil, shared.NewDomainError("member", "Create", shared.ErrEmptyValue, "join date is required")
	}

	return &Member{
		ID:           p.ID,
		Name:         strings.TrimSpace(p.Name),
		Category:     p.Category,
		CurrentGrade: p.CurrentGrade,
		JoinDate:     p.JoinDate,
		Active:       true,
	}, nil
}

// Baseline возвращает дату, от которой считаются кредиты и месяцы:
// дату последнего сданного экзамена или дату вступления.
func (m *Member) Baseline() time.Time {
	if m.LastExamDate != nil && !m.LastExamDate.IsZero() {
		return *m.LastExamDate
	}
	return m.JoinDate
}

// ValidateHistory проверяет, что все пояса из истории есть в лестнице
// категории ученика, а последний сданный экзамен совпадает с текущим поясом
// и датой последнего экзамена. Ошибка имеет вид shared.ErrMalformedHistory.
func (m *Member) ValidateHistory(ladder *grade.Ladder) error {
	current, err := ladder.Get(m.CurrentGrade)
	if err != nil {
		return shared.WrapError("member", "ValidateHistory", shared.ErrMalformedHistory,
			"current grade "+m.CurrentGrade.String()+" is not in the ladder", err)
	}
	if current.Category != m.Category {
		return shared.Errorf("member", "ValidateHistory", shared.ErrMalformedHistory,
			"current grade %q belongs to %q, member is %q", m.CurrentGrade, current.Category, m.Category)
	}

	for _, exam := range m.Exams {
		for _, id := range []grade.ID{exam.FromGrade, exam.ToGrade} {
			if !ladder.Has(id) {
				return shared.Errorf("member", "ValidateHistory", shared.ErrMalformedHistory,
					"exam %s references unknown grade %q", exam.ID, id)
			}
		}
		if !exam.Result.IsValid() {
			return shared.Errorf("member", "ValidateHistory", shared.ErrMalformedHistory,
				"exam %s has unknown result %q", exam.ID, exam.Result)
		}
	}

	if last, ok := m.LastPassedExam(); ok {
		if last.ToGrade != m.CurrentGrade {
			return shared.Errorf("member", "ValidateHistory", shared.ErrMalformedHistory,
				"passed exam %s promoted to %q, member holds %q", last.ID, last.ToGrade, m.CurrentGrade)
		}
		if m.LastExamDate == nil || m.LastExamDate.Before(last.Date) {
			return shared.Errorf("member", "ValidateHistory", shared.ErrMalformedHistory,
				"last exam date is older than passed exam %s", last.ID)
		}
	}
	return nil
}

// LastPassedExam возвращает последний сданный экзамен, если он есть.
func (m *Member) LastPassedExam() (ExamRecord, bool) {
	var (
		last  ExamRecord
		found bool
	)
	for _, e := range m.Exams {
		if e.Result != ExamPassed {
			continue
		}
		if !found || e.Date.After(last.Date) {
			last, found = e, true
		}
	}
	return last, found
}

// Clone возвращает глубокую копию, чтобы вызывающий код не мог изменить
// снимок, переданный в движок.
func (m *Member) Clone() *Member {
	c := *m
	if m.LastExamDate != nil {
		d := *m.LastExamDate
		c.LastExamDate = &d
	}
	c.Attendance = append([]attendance.Record(nil), m.Attendance...)
	c.Exams = append([]ExamRecord(nil), m.Exams...)
	return &c
}
