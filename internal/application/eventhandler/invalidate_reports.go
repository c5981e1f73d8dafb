// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть системы: команды меняют историю
// ученика, а здесь запускаются побочные эффекты (сброс кеша отчётов,
// журналирование повышений).
package eventhandler

import (
	"context"
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// INVALIDATE REPORTS HANDLER
// Любое изменение истории ученика делает его отчёт и все отчёты по
// составу устаревшими.
// ═══════════════════════════════════════════════════════════════════════════

// InvalidatingEvents - события, после которых кеш отчётов сбрасывается.
var InvalidatingEvents = []shared.EventType{
	shared.EventMemberEnrolled,
	shared.EventMemberStatusChanged,
	shared.EventAttendanceRecorded,
	shared.EventExamRegistered,
	shared.EventGradePromoted,
}

// InvalidateReportsHandler сбрасывает кеш отчётов.
type InvalidateReportsHandler struct {
	cache   progression.ReportCache
	log     *logger.Logger
	timeout time.Duration
}

// NewInvalidateReportsHandler создаёт обработчик.
func NewInvalidateReportsHandler(cache progression.ReportCache, log *logger.Logger) *InvalidateReportsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &InvalidateReportsHandler{
		cache:   cache,
		log:     log.With(logger.Component("eventhandler.invalidate_reports")),
		timeout: 5 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
func (h *InvalidateReportsHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, event.AggregateID()); err != nil {
		return err
	}
	h.log.Debug("reports invalidated",
		logger.MemberID(event.AggregateID()),
		logger.String("event_type", string(event.EventType())),
	)
	return nil
}

// Register подписывает обработчик на все события из InvalidatingEvents.
// Подписка синхронная: когда команда вернула ответ, кеш уже сброшен.
func (h *InvalidateReportsHandler) Register(bus shared.InlineSubscriber) error {
	for _, t := range InvalidatingEvents {
		if err := bus.SubscribeInline(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
