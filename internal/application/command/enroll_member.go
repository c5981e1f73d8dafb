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
// ENROLL MEMBER COMMAND
// Adds a member to the dojo at the entry grade of their category, or at an
// explicit grade when they transfer in from another school.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollMemberCommand contains the data to enroll a member.
type EnrollMemberCommand struct {
	// ID is optional; a UUID is generated when empty.
	ID string `json:"id" validate:"omitempty,max=64"`

	Name     string         `json:"name" validate:"required,notblank,max=120"`
	Category grade.Category `json:"category" validate:"required,oneof=youth adult"`

	// Grade overrides the category's entry grade.
	Grade grade.ID `json:"grade"`

	// JoinDate is truncated to a civil date.
	JoinDate time.Time `json:"join_date" validate:"required"`

	CorrelationID string `json:"-"`
}

// EnrollMemberHandler handles the EnrollMemberCommand.
type EnrollMemberHandler struct {
	repo      member.Repository
	ladder    *grade.Ladder
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewEnrollMemberHandler creates a new EnrollMemberHandler.
func NewEnrollMemberHandler(repo member.Repository, ladder *grade.Ladder, publisher shared.EventPublisher, clock timeutil.Clock) *EnrollMemberHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &EnrollMemberHandler{repo: repo, ladder: ladder, publisher: publisher, clock: clock}
}

// Handle enrolls the member and returns the stored snapshot.
func (h *EnrollMemberHandler) Handle(ctx context.Context, cmd EnrollMemberCommand) (*member.Member, error) {
	if err := validateCommand("EnrollMember", cmd); err != nil {
		return nil, err
	}

	current, err := h.startingGrade(cmd)
	if err != nil {
		return nil, err
	}

	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}

	m, err := member.NewMember(member.NewMemberParams{
		ID:           id,
		Name:         cmd.Name,
		Category:     cmd.Category,
		CurrentGrade: current.ID,
		JoinDate:     timeutil.StartOfDay(cmd.JoinDate),
	})
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("enroll_member: %w", err)
	}

	event := shared.MemberEnrolledEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventMemberEnrolled, m.ID, h.clock.Now()).WithCorrelationID(cmd.CorrelationID),
		Category:   string(m.Category),
		EntryGrade: string(m.CurrentGrade),
		JoinDate:   m.JoinDate,
	}
	_ = h.publisher.Publish(event)

	return m, nil
}

func (h *EnrollMemberHandler) startingGrade(cmd EnrollMemberCommand) (grade.Grade, error) {
	if cmd.Grade == "" {
		return h.ladder.Entry(cmd.Category)
	}
	g, err := h.ladder.Get(cmd.Grade)
	if err != nil {
		return grade.Grade{}, shared.WrapError("command", "EnrollMember", shared.ErrValidation,
			"unknown grade "+cmd.Grade.String(), err)
	}
	if g.Category != cmd.Category {
		return grade.Grade{}, shared.Errorf("command", "EnrollMember", shared.ErrValidation,
			"grade %q belongs to category %q", g.ID, g.Category)
	}
	return g, nil
}
