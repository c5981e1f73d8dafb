package query

import (
	"context"
	"errors"

	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROSTER REPORT QUERY
// Отчёт по составу: ученики, разложенные по статусам. Ученики с
// испорченной историей не ломают отчёт, а попадают в диагностику.
// ══════════════════════════════════════════════════════════════════════════════

// GetRosterReportQuery содержит параметры выборки.
type GetRosterReportQuery struct {
	// Category - только одна категория (пусто = все).
	Category grade.Category

	// IncludeInactive - учитывать приостановленных учеников.
	IncludeInactive bool

	// Limit - максимум учеников (0 = все).
	Limit int

	SkipCache bool
}

// Validate проверяет корректность параметров запроса.
func (q GetRosterReportQuery) Validate() error {
	if q.Category != "" && !q.Category.IsValid() {
		return shared.Errorf("query", "RosterReport", shared.ErrInvalidInput, "unknown category %q", q.Category)
	}
	if q.Limit < 0 {
		return shared.NewDomainError("query", "RosterReport", shared.ErrNegativeValue, "limit cannot be negative")
	}
	return nil
}

// Filter переводит запрос в фильтр репозитория.
func (q GetRosterReportQuery) Filter() member.ListFilter {
	return member.ListFilter{
		Category:   q.Category,
		ActiveOnly: !q.IncludeInactive,
		Limit:      q.Limit,
	}
}

// GetRosterReportHandler обрабатывает запрос отчёта по составу.
type GetRosterReportHandler struct {
	repo     member.Repository
	engine   *progression.Engine
	cache    progression.ReportCache
	features FeatureChecker
	log      *logger.Logger
}

// NewGetRosterReportHandler создаёт обработчик.
func NewGetRosterReportHandler(
	repo member.Repository,
	engine *progression.Engine,
	cache progression.ReportCache,
	features FeatureChecker,
	log *logger.Logger,
) *GetRosterReportHandler {
	if cache == nil {
		cache = progression.NopReportCache{}
	}
	if features == nil {
		features = allFeatures{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetRosterReportHandler{
		repo:     repo,
		engine:   engine,
		cache:    cache,
		features: features,
		log:      log.With(logger.Component("query.roster_report")),
	}
}

// Handle возвращает отчёт по составу.
func (h *GetRosterReportHandler) Handle(ctx context.Context, q GetRosterReportQuery) (progression.RosterReport, error) {
	if err := q.Validate(); err != nil {
		return progression.RosterReport{}, err
	}
	filter := q.Filter()

	cached, version, err := h.cache.RosterReport(ctx, filter)
	switch {
	case err == nil && !q.SkipCache:
		return h.shape(cached), nil
	case err != nil && !errors.Is(err, progression.ErrReportNotCached):
		h.log.Debug("roster cache read failed", logger.Err(err))
	}

	members, err := h.repo.List(ctx, filter)
	if err != nil {
		return progression.RosterReport{}, err
	}

	report := h.engine.RosterReport(members)
	for _, d := range report.Diagnostics {
		h.log.Warn("member skipped in roster",
			logger.MemberID(d.MemberID),
			logger.String("kind", string(d.Kind)),
			logger.String("reason", d.Message),
		)
	}

	if err := h.cache.StoreRosterReport(ctx, filter, report, version); err != nil {
		h.log.Warn("roster cache write failed", logger.Err(err))
	}
	return h.shape(report), nil
}

func (h *GetRosterReportHandler) shape(r progression.RosterReport) progression.RosterReport {
	if !h.features.IsEnabled(FeatureDiagnostics) {
		r.Diagnostics = []progression.Diagnostic{}
	}
	return r
}
