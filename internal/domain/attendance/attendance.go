// Package attendance описывает записанные тренировки и кредиты, которые
// каждый вид тренировки даёт к допуску на следующий пояс.
package attendance

import (
	"sort"
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

const domain = "attendance"

// SessionKind - вид тренировки.
type SessionKind string

const (
	SessionNormal              SessionKind = "normal"
	SessionSpecial             SessionKind = "special"
	SessionNationalCourse      SessionKind = "national-course"
	SessionInternationalCourse SessionKind = "international-course"
)

// String возвращает строковое представление.
func (k SessionKind) String() string {
	return string(k)
}

// Record - одна запись журнала посещаемости ученика. Запись создаётся,
// когда инструктор отмечает тренировку, и потом не меняется и не удаляется.
type Record struct {
	ID          string      `json:"id" yaml:"id"`
	MemberID    string      `json:"member_id" yaml:"member_id"`
	Date        time.Time   `json:"date" yaml:"date"`
	Present     bool        `json:"present" yaml:"present"`
	SessionKind SessionKind `json:"session_kind" yaml:"session_kind"`
}

// DefaultWeights возвращает стандартную таблицу кредитов.
func DefaultWeights() map[SessionKind]int {
	return map[SessionKind]int{
		SessionNormal:              1,
		SessionSpecial:             2,
		SessionNationalCourse:      3,
		SessionInternationalCourse: 6,
	}
}

// Weighting сопоставляет виду тренировки число кредитов. После создания не меняется.
type Weighting struct {
	weights map[SessionKind]int
}

// NewWeighting строит таблицу из DefaultWeights с переопределениями.
// Переопределять можно только известные виды и только положительным
// значением, иначе это ошибка конфигурации.
func NewWeighting(overrides map[SessionKind]int) (*Weighting, error) {
	weights := DefaultWeights()
	for kind, value := range overrides {
		if _, known := weights[kind]; !known {
			return nil, shared.Errorf(domain, "NewWeighting", shared.ErrConfiguration,
				"unknown session kind %q in weighting table", kind)
		}
		if value <= 0 {
			return nil, shared.Errorf(domain, "NewWeighting", shared.ErrConfiguration,
				"session kind %q must weigh more than zero, got %d", kind, value)
		}
		weights[kind] = value
	}
	return &Weighting{weights: weights}, nil
}

// MustDefaultWeighting возвращает стандартную таблицу.
func MustDefaultWeighting() *Weighting {
	w, err := NewWeighting(nil)
	if err != nil {
		panic(err)
	}
	return w
}

// CreditValue возвращает число кредитов за тренировку данного вида.
// Неизвестный вид отклоняется, веса по умолчанию для него нет.
func (w *Weighting) CreditValue(kind SessionKind) (int, error) {
	v, ok := w.weights[kind]
	if !ok {
		return 0, shared.Errorf(domain, "CreditValue", shared.ErrInvalidSessionKind, "unknown session kind %q", kind)
	}
	return v, nil
}

// Validate проверяет, что вид тренировки известен.
func (w *Weighting) Validate(kind SessionKind) error {
	_, err := w.CreditValue(kind)
	return err
}

// Kinds возвращает все известные виды по алфавиту.
func (w *Weighting) Kinds() []SessionKind {
	out := make([]SessionKind, 0, len(w.weights))
	for k := range w.weights {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Table возвращает копию таблицы весов.
func (w *Weighting) Table() map[SessionKind]int {
	out := make(map[SessionKind]int, len(w.weights))
	for k, v := range w.weights {
		out[k] = v
	}
	return out
}
