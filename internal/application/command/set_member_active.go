package command

import (
	"context"

	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// SetMemberActiveCommand pauses or resumes a member. Inactive members keep
// their history but drop out of active-only rosters.
type SetMemberActiveCommand struct {
	MemberID string `json:"member_id" validate:"required,notblank"`
	Active   bool   `json:"active"`

	CorrelationID string `json:"-"`
}

// SetMemberActiveHandler handles the SetMemberActiveCommand.
type SetMemberActiveHandler struct {
	repo      member.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewSetMemberActiveHandler creates a new SetMemberActiveHandler.
func NewSetMemberActiveHandler(repo member.Repository, publisher shared.EventPublisher, clock timeutil.Clock) *SetMemberActiveHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &SetMemberActiveHandler{repo: repo, publisher: publisher, clock: clock}
}

// Handle flips the member's active flag.
func (h *SetMemberActiveHandler) Handle(ctx context.Context, cmd SetMemberActiveCommand) error {
	if err := validateCommand("SetMemberActive", cmd); err != nil {
		return err
	}
	if err := h.repo.SetActive(ctx, cmd.MemberID, cmd.Active); err != nil {
		return err
	}

	_ = h.publisher.Publish(shared.MemberStatusChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventMemberStatusChanged, cmd.MemberID, h.clock.Now()).WithCorrelationID(cmd.CorrelationID),
		Active:    cmd.Active,
	})
	return nil
}
