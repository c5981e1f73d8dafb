package progression

import (
	"math"
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// Estimator прогнозирует даты экзаменов по правилам календаря.
type Estimator struct {
	closure  timeutil.MonthSet
	discount float64
}

// NewEstimator создаёт оценщик из окна закрытия и коэффициента cfg.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{
		closure:  cfg.ClosureMonths,
		discount: cfg.ClosureDiscount,
	}
}

// Estimate прибавляет к baseline requiredMonths календарных месяцев. Если
// дата попала в окно закрытия, она переносится на первое число первого
// месяца после окна.
func (e *Estimator) Estimate(baseline time.Time, requiredMonths int) time.Time {
	return timeutil.SkipMonths(timeutil.AddMonths(baseline, requiredMonths), e.closure)
}

// RemainingWeeks грубо оценивает, сколько недель обычных тренировок нужно,
// чтобы набрать creditsRemaining:
//
//	ceil(creditsRemaining / (classesPerWeek * discount))
//
// Коэффициент учитывает тренировки, пропавшие из-за праздников. Это
// эвристика: специальные тренировки дают больше одного кредита, а реальные
// перерывы распределены по году неравномерно.
func (e *Estimator) RemainingWeeks(creditsRemaining, classesPerWeek int) (int, error) {
	if classesPerWeek <= 0 {
		return 0, shared.Errorf(domain, "RemainingWeeks", shared.ErrConfiguration,
			"classes per week must be positive, got %d", classesPerWeek)
	}
	if creditsRemaining <= 0 {
		return 0, nil
	}
	perWeek := float64(classesPerWeek) * e.discount
	return int(math.Ceil(float64(creditsRemaining) / perWeek)), nil
}
