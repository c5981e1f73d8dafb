// Package grade содержит статический каталог поясов додзё. У каждой
// категории учеников своя упорядоченная лестница. Лестница строится один раз
// при старте и дальше только читается, поэтому *Ladder можно использовать
// из нескольких горутин.
package grade

import (
	"fmt"
)

// ID - идентификатор пояса, уникальный по всем лестницам (например "adult-3-kyu").
type ID string

// String возвращает строковое представление.
func (id ID) String() string {
	return string(id)
}

// Category делит учеников по отдельным лестницам.
type Category string

const (
	CategoryYouth Category = "youth"
	CategoryAdult Category = "adult"
)

// IsValid проверяет, что для категории есть известная лестница.
func (c Category) IsValid() bool {
	switch c {
	case CategoryYouth, CategoryAdult:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление.
func (c Category) String() string {
	return string(c)
}

// ParseCategory разбирает и проверяет название категории.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Requirements - пороги, которые ученик должен набрать от базовой даты,
// прежде чем сдавать экзамен на следующий пояс.
type Requirements struct {
	MinAttendanceCredits int `json:"min_attendance_credits" yaml:"min_attendance_credits"`
	MinMonths            int `json:"min_months" yaml:"min_months"`
}

// Grade - одна ступень лестницы.
//
// Requirements описывают, что нужно для перехода с этого пояса на следующий.
// Последний пояс категории терминальный и требований не имеет.
type Grade struct {
	ID           ID            `json:"id"`
	Name         string        `json:"name"`
	Category     Category      `json:"category"`
	Ordinal      int           `json:"ordinal"`
	Requirements *Requirements `json:"requirements,omitempty"`
}

// IsTerminal сообщает, что у пояса нет требований для перехода.
func (g Grade) IsTerminal() bool {
	return g.Requirements == nil
}
