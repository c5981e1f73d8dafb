package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER EXAM RESULT COMMAND
// Records an exam outcome. A passed exam promotes the member to the next
// grade and moves their baseline to the exam date; a failed exam leaves both
// unchanged.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterExamResultCommand contains the data of an exam outcome.
type RegisterExamResultCommand struct {
	MemberID  string            `json:"member_id" validate:"required,notblank"`
	Date      time.Time         `json:"date" validate:"required"`
	FromGrade grade.ID          `json:"from_grade" validate:"required"`
	ToGrade   grade.ID          `json:"to_grade" validate:"required"`
	Result    member.ExamResult `json:"result" validate:"required,oneof=passed failed"`
	Notes     string            `json:"notes" validate:"max=500"`

	CorrelationID string `json:"-"`
}

// RegisterExamResult is the outcome of the command.
type RegisterExamResult struct {
	Exam     member.ExamRecord `json:"exam"`
	Promoted bool              `json:"promoted"`
	Grade    grade.ID          `json:"grade"`
}

// RegisterExamResultHandler handles the RegisterExamResultCommand.
type RegisterExamResultHandler struct {
	repo      member.Repository
	ladder    *grade.Ladder
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewRegisterExamResultHandler creates a new RegisterExamResultHandler.
func NewRegisterExamResultHandler(repo member.Repository, ladder *grade.Ladder, publisher shared.EventPublisher, clock timeutil.Clock) *RegisterExamResultHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RegisterExamResultHandler{repo: repo, ladder: ladder, publisher: publisher, clock: clock}
}

// Handle checks the exam against the ladder, stores it and promotes the
// member when the exam was passed.
func (h *RegisterExamResultHandler) Handle(ctx context.Context, cmd RegisterExamResultCommand) (*RegisterExamResult, error) {
	if err := validateCommand("RegisterExamResult", cmd); err != nil {
		return nil, err
	}
	if !cmd.Result.IsValid() {
		return nil, shared.ErrInvalidExamResult
	}

	m, err := h.repo.Get(ctx, cmd.MemberID)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, shared.ErrMemberNotActive
	}
	if cmd.FromGrade != m.CurrentGrade {
		return nil, shared.ErrExamGradeMismatch
	}

	next, ok, err := h.ladder.Next(m.CurrentGrade)
	if err != nil {
		return nil, shared.WrapError("command", "RegisterExamResult", shared.ErrMalformedHistory,
			"current grade is not in the ladder", err)
	}
	if !ok || next.ID != cmd.ToGrade {
		return nil, shared.ErrExamNotNextGrade
	}

	date := timeutil.StartOfDay(cmd.Date)
	if date.Before(m.Baseline()) {
		return nil, shared.Errorf("command", "RegisterExamResult", shared.ErrValidation,
			"exam date %s is before the member's baseline %s",
			timeutil.FormatDateStr(date), timeutil.FormatDateStr(m.Baseline()))
	}

	exam := member.ExamRecord{
		ID:        uuid.NewString(),
		MemberID:  m.ID,
		Date:      date,
		FromGrade: cmd.FromGrade,
		ToGrade:   cmd.ToGrade,
		Result:    cmd.Result,
		Notes:     cmd.Notes,
	}
	promote := exam.Result == member.ExamPassed
	if err := h.repo.RecordExam(ctx, exam, promote); err != nil {
		return nil, fmt.Errorf("register_exam: %w", err)
	}

	result := &RegisterExamResult{Exam: exam, Promoted: promote, Grade: m.CurrentGrade}
	if promote {
		result.Grade = exam.ToGrade
	}

	now := h.clock.Now()
	_ = h.publisher.Publish(shared.ExamRegisteredEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventExamRegistered, m.ID, now).WithCorrelationID(cmd.CorrelationID),
		ExamID:    exam.ID,
		ExamDate:  exam.Date,
		FromGrade: string(exam.FromGrade),
		ToGrade:   string(exam.ToGrade),
		Result:    string(exam.Result),
	})
	if result.Promoted {
		_ = h.publisher.Publish(shared.GradePromotedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventGradePromoted, m.ID, now).WithCorrelationID(cmd.CorrelationID),
			FromGrade: string(exam.FromGrade),
			ToGrade:   string(exam.ToGrade),
		})
	}

	return result, nil
}
