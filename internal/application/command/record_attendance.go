package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTENDANCE COMMAND
// Appends one session to a member's attendance ledger. Absences are recorded
// too; they simply never earn credits.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceCommand contains the data to record a session.
type RecordAttendanceCommand struct {
	MemberID    string                 `json:"member_id" validate:"required,notblank"`
	Date        time.Time              `json:"date" validate:"required"`
	Present     bool                   `json:"present"`
	SessionKind attendance.SessionKind `json:"session_kind" validate:"required"`

	CorrelationID string `json:"-"`
}

// RecordAttendanceHandler handles the RecordAttendanceCommand.
type RecordAttendanceHandler struct {
	repo      member.Repository
	weighting *attendance.Weighting
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewRecordAttendanceHandler creates a new RecordAttendanceHandler.
func NewRecordAttendanceHandler(repo member.Repository, weighting *attendance.Weighting, publisher shared.EventPublisher, clock timeutil.Clock) *RecordAttendanceHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RecordAttendanceHandler{repo: repo, weighting: weighting, publisher: publisher, clock: clock}
}

// Handle validates the session kind, stores the record and returns it.
func (h *RecordAttendanceHandler) Handle(ctx context.Context, cmd RecordAttendanceCommand) (attendance.Record, error) {
	if err := validateCommand("RecordAttendance", cmd); err != nil {
		return attendance.Record{}, err
	}
	// Unknown kinds are rejected up front so the ledger never holds a record
	// the engine would refuse to count.
	if err := h.weighting.Validate(cmd.SessionKind); err != nil {
		return attendance.Record{}, err
	}

	m, err := h.repo.Get(ctx, cmd.MemberID)
	if err != nil {
		return attendance.Record{}, err
	}
	if !m.Active {
		return attendance.Record{}, shared.ErrMemberNotActive
	}

	rec := attendance.Record{
		ID:          uuid.NewString(),
		MemberID:    m.ID,
		Date:        timeutil.StartOfDay(cmd.Date),
		Present:     cmd.Present,
		SessionKind: cmd.SessionKind,
	}
	if err := h.repo.AppendAttendance(ctx, rec); err != nil {
		return attendance.Record{}, fmt.Errorf("record_attendance: %w", err)
	}

	_ = h.publisher.Publish(shared.AttendanceRecordedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventAttendanceRecorded, m.ID, h.clock.Now()).WithCorrelationID(cmd.CorrelationID),
		RecordID:    rec.ID,
		SessionDate: rec.Date,
		SessionKind: string(rec.SessionKind),
		Present:     rec.Present,
	})

	return rec, nil
}
