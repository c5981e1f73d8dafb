// Package memory keeps members in process memory. It backs tests, the CLI
// snapshot mode and deployments started with STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

// MemberStore implements member.Repository with a map. Members are copied on
// the way in and out so callers never share state with the store.
type MemberStore struct {
	mu      sync.RWMutex
	members map[string]*member.Member
}

var _ member.Repository = (*MemberStore)(nil)

// NewMemberStore creates a store seeded with the given members.
func NewMemberStore(seed ...*member.Member) *MemberStore {
	s := &MemberStore{members: make(map[string]*member.Member, len(seed))}
	for _, m := range seed {
		s.members[m.ID] = m.Clone()
	}
	return s
}

// Create stores a new member.
func (s *MemberStore) Create(ctx context.Context, m *member.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.ID]; ok {
		return shared.ErrMemberAlreadyExists
	}
	s.members[m.ID] = m.Clone()
	return nil
}

// Get returns a copy of the member.
func (s *MemberStore) Get(ctx context.Context, id string) (*member.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, shared.ErrMemberNotFound
	}
	return m.Clone(), nil
}

// List returns copies of matching members ordered by ID.
func (s *MemberStore) List(ctx context.Context, filter member.ListFilter) ([]*member.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.members))
	for id, m := range s.members {
		if filter.Matches(m) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if filter.Limit > 0 && len(ids) > filter.Limit {
		ids = ids[:filter.Limit]
	}

	out := make([]*member.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.members[id].Clone())
	}
	return out, nil
}

// AppendAttendance adds a record to the member's ledger.
func (s *MemberStore) AppendAttendance(ctx context.Context, rec attendance.Record) error {
	return s.update(ctx, rec.MemberID, func(m *member.Member) error {
		for _, existing := range m.Attendance {
			if existing.ID == rec.ID {
				return shared.Errorf("attendance", "Append", shared.ErrAlreadyExists, "record %s already exists", rec.ID)
			}
		}
		m.Attendance = append(m.Attendance, rec)
		return nil
	})
}

// RecordExam stores an exam outcome and, when promote is set, moves the
// member to rec.ToGrade in the same update.
func (s *MemberStore) RecordExam(ctx context.Context, rec member.ExamRecord, promote bool) error {
	return s.update(ctx, rec.MemberID, func(m *member.Member) error {
		if m.CurrentGrade != rec.FromGrade {
			return shared.ErrExamGradeMismatch
		}
		for _, existing := range m.Exams {
			if existing.ID == rec.ID {
				return shared.Errorf("exam", "Append", shared.ErrAlreadyExists, "exam %s already exists", rec.ID)
			}
		}
		m.Exams = append(m.Exams, rec)
		if promote {
			date := rec.Date
			m.CurrentGrade = rec.ToGrade
			m.LastExamDate = &date
		}
		return nil
	})
}

// SetActive toggles the active flag.
func (s *MemberStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.update(ctx, id, func(m *member.Member) error {
		m.Active = active
		return nil
	})
}

// Len returns the number of stored members.
func (s *MemberStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// update applies fn to a copy and swaps it in only when fn succeeds.
func (s *MemberStore) update(ctx context.Context, id string, fn func(*member.Member) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return shared.ErrMemberNotFound
	}
	next := m.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.members[id] = next
	return nil
}
