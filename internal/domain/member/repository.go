package member

import (
	"context"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для хранилища учеников.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с учениками и их историей.
type Repository interface {
	// Create сохраняет нового ученика.
	// Возвращает ErrMemberAlreadyExists, если ID уже занят.
	Create(ctx context.Context, m *Member) error

	// Get возвращает ученика вместе с посещаемостью и экзаменами.
	// Возвращает ErrMemberNotFound, если ученик не найден.
	Get(ctx context.Context, id string) (*Member, error)

	// List возвращает учеников по фильтру (с историей).
	List(ctx context.Context, filter ListFilter) ([]*Member, error)

	// AppendAttendance добавляет запись в журнал посещаемости.
	AppendAttendance(ctx context.Context, rec attendance.Record) error

	// RecordExam одним действием сохраняет экзамен и, если promote,
	// переводит ученика на rec.ToGrade с датой экзамена как новой точкой
	// отсчёта. При ошибке не сохраняется ничего.
	// Возвращает ErrExamGradeMismatch, если текущий пояс уже не rec.FromGrade.
	RecordExam(ctx context.Context, rec ExamRecord, promote bool) error

	// SetActive включает или выключает ученика.
	SetActive(ctx context.Context, id string, active bool) error
}

// ListFilter содержит параметры выборки.
type ListFilter struct {
	// Category - только указанная категория (пусто = все).
	Category grade.Category

	// ActiveOnly - только активные ученики.
	ActiveOnly bool

	// Limit - максимум записей (0 = без ограничения).
	Limit int
}

// Matches проверяет, подходит ли ученик под фильтр.
func (f ListFilter) Matches(m *Member) bool {
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.ActiveOnly && !m.Active {
		return false
	}
	return true
}
