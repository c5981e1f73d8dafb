package grade

import (
	"sort"

	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

const domain = "grade"

// Ladder - упорядоченный каталог поясов по всем категориям.
type Ladder struct {
	byID       map[ID]Grade
	position   map[ID]int
	byCategory map[Category][]Grade
}

// NewLadder проверяет каталог и строит индексы. Любое несоответствие -
// ошибка конфигурации, процесс не должен стартовать.
//
// Пояса можно передавать в любом порядке: внутри категории они сортируются
// по ordinal, и ordinal должен строго возрастать.
func NewLadder(grades []Grade) (*Ladder, error) {
	l := &Ladder{
		byID:       make(map[ID]Grade, len(grades)),
		position:   make(map[ID]int, len(grades)),
		byCategory: make(map[Category][]Grade),
	}

	for _, g := range grades {
		if g.ID == "" {
			return nil, shared.NewDomainError(domain, "NewLadder", shared.ErrConfiguration, "grade with empty ID")
		}
		if !g.Category.IsValid() {
			return nil, shared.Errorf(domain, "NewLadder", shared.ErrConfiguration,
				"grade %q has unknown category %q", g.ID, g.Category)
		}
		if _, dup := l.byID[g.ID]; dup {
			return nil, shared.Errorf(domain, "NewLadder", shared.ErrConfiguration, "duplicate grade %q", g.ID)
		}
		if r := g.Requirements; r != nil && (r.MinAttendanceCredits < 0 || r.MinMonths < 0) {
			return nil, shared.Errorf(domain, "NewLadder", shared.ErrConfiguration,
				"grade %q has negative requirements", g.ID)
		}
		l.byID[g.ID] = g
		l.byCategory[g.Category] = append(l.byCategory[g.Category], g)
	}

	if len(l.byCategory) == 0 {
		return nil, shared.NewDomainError(domain, "NewLadder", shared.ErrConfiguration, "ladder has no grades")
	}

	for cat, rungs := range l.byCategory {
		sort.SliceStable(rungs, func(i, j int) bool { return rungs[i].Ordinal < rungs[j].Ordinal })
		for i, g := range rungs {
			if i > 0 && g.Ordinal <= rungs[i-1].Ordinal {
				return nil, shared.Errorf(domain, "NewLadder", shared.ErrConfiguration,
					"category %q: ordinal %d of %q is not greater than %q", cat, g.Ordinal, g.ID, rungs[i-1].ID)
			}
			last := i == len(rungs)-1
			if last && g.Requirements != nil {
				return nil, shared.Errorf(domain, "NewLadder", shared.ErrConfiguration,
					"category %q: terminal grade %q must not carry requirements", cat, g.ID)
			}
			if !last && g.Requirements == nil {
				return nil, shared.Errorf(domain, "NewLadder", shared.ErrConfiguration,
					"category %q: grade %q needs promotion requirements", cat, g.ID)
			}
			l.position[g.ID] = i
		}
		l.byCategory[cat] = rungs
	}

	return l, nil
}

// Get возвращает пояс по ID.
func (l *Ladder) Get(id ID) (Grade, error) {
	g, ok := l.byID[id]
	if !ok {
		return Grade{}, unknownGrade("Get", id)
	}
	return g, nil
}

// Has проверяет, есть ли пояс хоть в одной лестнице.
func (l *Ladder) Has(id ID) bool {
	_, ok := l.byID[id]
	return ok
}

// Next возвращает следующий пояс той же категории. Флаг равен false,
// если current терминальный.
func (l *Ladder) Next(current ID) (Grade, bool, error) {
	g, ok := l.byID[current]
	if !ok {
		return Grade{}, false, unknownGrade("Next", current)
	}
	rungs := l.byCategory[g.Category]
	pos := l.position[current]
	if pos+1 >= len(rungs) {
		return Grade{}, false, nil
	}
	return rungs[pos+1], true, nil
}

// Previous возвращает предыдущий пояс той же категории. Для начального
// пояса флаг равен false.
func (l *Ladder) Previous(id ID) (Grade, bool, error) {
	g, ok := l.byID[id]
	if !ok {
		return Grade{}, false, unknownGrade("Previous", id)
	}
	pos := l.position[id]
	if pos == 0 {
		return Grade{}, false, nil
	}
	return l.byCategory[g.Category][pos-1], true, nil
}

// RequirementsFor возвращает, что нужно ученику для экзамена на target.
// Требования хранятся у пояса прямо под target, у начального пояса
// категории их нет.
func (l *Ladder) RequirementsFor(target ID) (Requirements, bool, error) {
	prev, ok, err := l.Previous(target)
	if err != nil || !ok {
		return Requirements{}, false, err
	}
	return *prev.Requirements, true, nil
}

// Entry возвращает первый пояс категории.
func (l *Ladder) Entry(cat Category) (Grade, error) {
	rungs, ok := l.byCategory[cat]
	if !ok || len(rungs) == 0 {
		return Grade{}, shared.Errorf(domain, "Entry", shared.ErrConfiguration, "no ladder for category %q", cat)
	}
	return rungs[0], nil
}

// IsTerminal сообщает, что id - последний пояс своей категории.
func (l *Ladder) IsTerminal(id ID) (bool, error) {
	_, ok, err := l.Next(id)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Grades возвращает копию лестницы категории в порядке ordinal.
func (l *Ladder) Grades(cat Category) []Grade {
	rungs := l.byCategory[cat]
	out := make([]Grade, len(rungs))
	copy(out, rungs)
	return out
}

// Categories возвращает категории, у которых есть лестница, по алфавиту.
func (l *Ladder) Categories() []Category {
	out := make([]Category, 0, len(l.byCategory))
	for c := range l.byCategory {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unknownGrade(op string, id ID) error {
	return shared.Errorf(domain, op, shared.ErrConfiguration, "grade %q is not in any ladder", id)
}
