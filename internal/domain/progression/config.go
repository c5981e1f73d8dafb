// Package progression решает, может ли ученик сдавать экзамен на следующий
// пояс, и прогнозирует, когда этот экзамен скорее всего состоится.
//
// Все вычисления - чистые функции от снимка ученика, каталога поясов,
// конфигурации и переданных часов. Пакет ничего не сохраняет и не держит
// общего состояния между вызовами, поэтому Engine можно вызывать
// конкурентно.
package progression

import (
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

const domain = "progression"

// Значения по умолчанию для календарных эвристик. Запас до просрочки и длина
// месяца взяты из текущей практики клуба и остаются настраиваемыми.
const (
	DefaultOverdueGraceDays = 30
	DefaultMonthLengthDays  = 30
	DefaultClosureDiscount  = 0.9
	DefaultClassesPerWeek   = 2
)

// Config - настраиваемые правила движка.
type Config struct {
	// ClosureMonths - месяцы без занятий (по умолчанию летний перерыв).
	// Прогнозные даты внутри окна переносятся за него.
	ClosureMonths timeutil.MonthSet

	// OverdueGraceDays - сколько дней после прогнозной даты готовый ученик
	// может ждать, пока его не отметят как просроченного.
	OverdueGraceDays int

	// MonthLengthDays переводит прошедшие дни в целые месяцы.
	MonthLengthDays int

	// ClosureDiscount уменьшает недельный темп с учётом тренировок,
	// пропавших из-за праздников. Диапазон (0, 1].
	ClosureDiscount float64

	// ClassesPerWeek - обычное число тренировок в неделю.
	ClassesPerWeek int
}

// DefaultConfig возвращает стандартные правила: июль и август закрыты.
func DefaultConfig() Config {
	return Config{
		ClosureMonths:    timeutil.NewMonthSet(time.July, time.August),
		OverdueGraceDays: DefaultOverdueGraceDays,
		MonthLengthDays:  DefaultMonthLengthDays,
		ClosureDiscount:  DefaultClosureDiscount,
		ClassesPerWeek:   DefaultClassesPerWeek,
	}
}

// Validate возвращает первое противоречивое правило как ошибку конфигурации.
func (c Config) Validate() error {
	switch {
	case len(c.ClosureMonths) >= 12:
		return shared.NewDomainError(domain, "Config", shared.ErrConfiguration, "closure window cannot cover the whole year")
	case c.OverdueGraceDays < 0:
		return shared.NewDomainError(domain, "Config", shared.ErrConfiguration, "overdue grace days cannot be negative")
	case c.MonthLengthDays <= 0:
		return shared.NewDomainError(domain, "Config", shared.ErrConfiguration, "month length must be positive")
	case c.ClosureDiscount <= 0 || c.ClosureDiscount > 1:
		return shared.Errorf(domain, "Config", shared.ErrConfiguration, "closure discount %.2f must be in (0, 1]", c.ClosureDiscount)
	case c.ClassesPerWeek <= 0:
		return shared.NewDomainError(domain, "Config", shared.ErrConfiguration, "classes per week must be positive")
	}
	return nil
}
