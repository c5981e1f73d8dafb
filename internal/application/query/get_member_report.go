// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"strings"

	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/logger"
)

// Имена флагов, которые проверяют запросы. Совпадают с config.Feature*.
const (
	FeatureWeeksForecast = "report.weeks_forecast"
	FeatureDiagnostics   = "roster.diagnostics"
)

// FeatureChecker - то, что запросам нужно от feature flags.
type FeatureChecker interface {
	IsEnabled(name string) bool
	IsEnabledFor(name, memberID string) bool
}

type allFeatures struct{}

func (allFeatures) IsEnabled(string) bool            { return true }
func (allFeatures) IsEnabledFor(string, string) bool { return true }

// ══════════════════════════════════════════════════════════════════════════════
// GET MEMBER REPORT QUERY
// Отчёт о прогрессе одного ученика: статус допуска к экзамену,
// расчётная дата и сколько осталось до следующего пояса.
// ══════════════════════════════════════════════════════════════════════════════

// GetMemberReportQuery содержит параметры запроса отчёта.
type GetMemberReportQuery struct {
	MemberID string

	// SkipCache - посчитать заново, даже если отчёт есть в кеше.
	SkipCache bool
}

// Validate проверяет корректность параметров запроса.
func (q GetMemberReportQuery) Validate() error {
	if strings.TrimSpace(q.MemberID) == "" {
		return shared.ErrInvalidMemberID
	}
	return nil
}

// GetMemberReportHandler обрабатывает запрос отчёта ученика.
type GetMemberReportHandler struct {
	repo     member.Repository
	engine   *progression.Engine
	cache    progression.ReportCache
	features FeatureChecker
	log      *logger.Logger
}

// NewGetMemberReportHandler создаёт обработчик. cache, features и log
// могут быть nil.
func NewGetMemberReportHandler(
	repo member.Repository,
	engine *progression.Engine,
	cache progression.ReportCache,
	features FeatureChecker,
	log *logger.Logger,
) *GetMemberReportHandler {
	if cache == nil {
		cache = progression.NopReportCache{}
	}
	if features == nil {
		features = allFeatures{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetMemberReportHandler{
		repo:     repo,
		engine:   engine,
		cache:    cache,
		features: features,
		log:      log.With(logger.Component("query.member_report")),
	}
}

// Handle возвращает отчёт из кеша или считает его заново.
func (h *GetMemberReportHandler) Handle(ctx context.Context, q GetMemberReportQuery) (progression.Report, error) {
	if err := q.Validate(); err != nil {
		return progression.Report{}, err
	}

	// Поколение нужно и при SkipCache: по нему StoreMemberReport отличает
	// отчёт, посчитанный до записи в историю.
	cached, version, err := h.cache.MemberReport(ctx, q.MemberID)
	switch {
	case err == nil && !q.SkipCache:
		return h.shape(cached), nil
	case err != nil && !errors.Is(err, progression.ErrReportNotCached):
		h.log.Debug("report cache read failed", logger.MemberID(q.MemberID), logger.Err(err))
	}

	m, err := h.repo.Get(ctx, q.MemberID)
	if err != nil {
		return progression.Report{}, err
	}

	report, err := h.engine.ReportFor(m)
	if err != nil {
		h.log.Warn("member cannot be evaluated", logger.MemberID(m.ID), logger.Err(err))
		return progression.Report{}, err
	}

	// Кешируем полный отчёт; флаги применяются при выдаче.
	if err := h.cache.StoreMemberReport(ctx, report, version); err != nil {
		h.log.Warn("report cache write failed", logger.MemberID(m.ID), logger.Err(err))
	}

	return h.shape(report), nil
}

// shape убирает из отчёта то, что выключено флагами для этого ученика.
func (h *GetMemberReportHandler) shape(r progression.Report) progression.Report {
	if !h.features.IsEnabledFor(FeatureWeeksForecast, r.MemberID) {
		r.WeeksRemaining = 0
	}
	return r
}
