// Package snapshot reads member histories exported as YAML or JSON so they
// can be evaluated offline.
//
// A snapshot is either a list of members or a document with a "members" key.
// Dates are plain YYYY-MM-DD strings. Record IDs and member IDs inside
// records are optional and filled in from the owning member. A missing
// last_exam_date is taken from the latest passed exam.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

type attendanceEntry struct {
	ID          string `yaml:"id"`
	Date        string `yaml:"date"`
	Present     *bool  `yaml:"present"`
	SessionKind string `yaml:"session_kind"`
}

type examEntry struct {
	ID        string `yaml:"id"`
	Date      string `yaml:"date"`
	FromGrade string `yaml:"from_grade"`
	ToGrade   string `yaml:"to_grade"`
	Result    string `yaml:"result"`
	Notes     string `yaml:"notes"`
}

type memberEntry struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Category     string            `yaml:"category"`
	CurrentGrade string            `yaml:"current_grade"`
	JoinDate     string            `yaml:"join_date"`
	LastExamDate string            `yaml:"last_exam_date"`
	Active       *bool             `yaml:"active"`
	Attendance   []attendanceEntry `yaml:"attendance"`
	Exams        []examEntry       `yaml:"exams"`
}

type document struct {
	Members []memberEntry `yaml:"members"`
}

// Load reads the snapshot at path.
func Load(path string) ([]*member.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a snapshot. JSON input is accepted as YAML. Structural
// problems carry shared.ErrMalformedHistory; the history itself is checked
// later against the ladder by the engine.
func Parse(r io.Reader) ([]*member.Member, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var entries []memberEntry
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&entries); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	case yaml.MappingNode:
		var doc document
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		entries = doc.Members
	default:
		return nil, malformed("", "snapshot must be a list of members or a document with a members key")
	}

	seen := make(map[string]bool, len(entries))
	out := make([]*member.Member, 0, len(entries))
	for i, e := range entries {
		m, err := e.toMember(i)
		if err != nil {
			return nil, err
		}
		if seen[m.ID] {
			return nil, malformed(m.ID, "duplicate member id")
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

func (e memberEntry) toMember(index int) (*member.Member, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return nil, malformed("", "member #"+strconv.Itoa(index+1)+" has no id")
	}

	joined, err := parseDate(id, "join_date", e.JoinDate)
	if err != nil {
		return nil, err
	}

	m := &member.Member{
		ID:           id,
		Name:         strings.TrimSpace(e.Name),
		Category:     grade.Category(strings.ToLower(strings.TrimSpace(e.Category))),
		CurrentGrade: grade.ID(strings.TrimSpace(e.CurrentGrade)),
		JoinDate:     joined,
		Active:       e.Active == nil || *e.Active,
	}
	if m.CurrentGrade == "" {
		return nil, malformed(id, "current_grade is required")
	}

	if e.LastExamDate != "" {
		last, err := parseDate(id, "last_exam_date", e.LastExamDate)
		if err != nil {
			return nil, err
		}
		m.LastExamDate = &last
	}

	for i, a := range e.Attendance {
		date, err := parseDate(id, "attendance date", a.Date)
		if err != nil {
			return nil, err
		}
		kind := attendance.SessionKind(a.SessionKind)
		if kind == "" {
			kind = attendance.SessionNormal
		}
		recID := a.ID
		if recID == "" {
			recID = id + "-a" + strconv.Itoa(i+1)
		}
		m.Attendance = append(m.Attendance, attendance.Record{
			ID:          recID,
			MemberID:    id,
			Date:        date,
			Present:     a.Present == nil || *a.Present,
			SessionKind: kind,
		})
	}

	for i, x := range e.Exams {
		date, err := parseDate(id, "exam date", x.Date)
		if err != nil {
			return nil, err
		}
		result := member.ExamResult(strings.ToLower(x.Result))
		if !result.IsValid() {
			return nil, malformed(id, fmt.Sprintf("exam result %q must be passed or failed", x.Result))
		}
		examID := x.ID
		if examID == "" {
			examID = id + "-e" + strconv.Itoa(i+1)
		}
		m.Exams = append(m.Exams, member.ExamRecord{
			ID:        examID,
			MemberID:  id,
			Date:      date,
			FromGrade: grade.ID(x.FromGrade),
			ToGrade:   grade.ID(x.ToGrade),
			Result:    result,
			Notes:     x.Notes,
		})
	}

	if m.LastExamDate == nil {
		if last, ok := m.LastPassedExam(); ok {
			date := last.Date
			m.LastExamDate = &date
		}
	}
	return m, nil
}

func parseDate(memberID, field, value string) (time.Time, error) {
	t, err := timeutil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, malformed(memberID, fmt.Sprintf("%s %q is not a YYYY-MM-DD date", field, value))
	}
	return t, nil
}

func malformed(memberID, msg string) error {
	if memberID != "" {
		msg = memberID + ": " + msg
	}
	return shared.NewDomainError("snapshot", "Parse", shared.ErrMalformedHistory, msg)
}
