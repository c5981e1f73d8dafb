package eventhandler

import (
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/logger"
)

// OnGradePromotedHandler пишет в журнал каждое повышение и отмечает
// учеников, достигших вершины лестницы.
type OnGradePromotedHandler struct {
	isTerminal func(id string) bool
	log        *logger.Logger
}

// NewOnGradePromotedHandler создаёт обработчик. isTerminal может быть nil.
func NewOnGradePromotedHandler(isTerminal func(id string) bool, log *logger.Logger) *OnGradePromotedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if isTerminal == nil {
		isTerminal = func(string) bool { return false }
	}
	return &OnGradePromotedHandler{
		isTerminal: isTerminal,
		log:        log.With(logger.Component("eventhandler.grade_promoted")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnGradePromotedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.GradePromotedEvent)
	if !ok {
		return nil
	}
	h.log.Info("member promoted",
		logger.MemberID(e.AggregateID()),
		logger.String("from_grade", e.FromGrade),
		logger.GradeID(e.ToGrade),
		logger.Bool("max_grade_reached", h.isTerminal(e.ToGrade)),
	)
	return nil
}

// Register подписывает обработчик на повышения.
func (h *OnGradePromotedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventGradePromoted, h.Handle)
}
