package query

import (
	"time"

	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LADDER & ESTIMATE QUERIES
// Справочные запросы, не зависящие от конкретного ученика.
// ══════════════════════════════════════════════════════════════════════════════

// LadderDTO - лестница поясов одной категории.
type LadderDTO struct {
	Category grade.Category `json:"category"`
	Grades   []grade.Grade  `json:"grades"`
}

// GetLadderHandler отдаёт лестницу поясов.
type GetLadderHandler struct {
	ladder *grade.Ladder
}

// NewGetLadderHandler создаёт обработчик.
func NewGetLadderHandler(ladder *grade.Ladder) *GetLadderHandler {
	return &GetLadderHandler{ladder: ladder}
}

// Handle возвращает пояса категории по возрастанию.
func (h *GetLadderHandler) Handle(category grade.Category) (LadderDTO, error) {
	if !category.IsValid() {
		return LadderDTO{}, shared.Errorf("query", "Ladder", shared.ErrInvalidInput, "unknown category %q", category)
	}
	grades := h.ladder.Grades(category)
	if len(grades) == 0 {
		return LadderDTO{}, shared.Errorf("query", "Ladder", shared.ErrNotFound, "no ladder for category %q", category)
	}
	return LadderDTO{Category: category, Grades: grades}, nil
}

// EstimateQuery - «когда я смогу сдавать, если начну с baseline».
type EstimateQuery struct {
	Baseline       time.Time
	RequiredMonths int

	// CreditsRemaining - опционально, для прогноза в неделях.
	CreditsRemaining int
}

// EstimateDTO - результат оценки.
type EstimateDTO struct {
	Baseline       time.Time `json:"baseline"`
	RequiredMonths int       `json:"required_months"`
	EstimatedDate  time.Time `json:"estimated_date"`
	WeeksRemaining int       `json:"weeks_remaining"`
}

// EstimateHandler считает расчётную дату экзамена.
type EstimateHandler struct {
	engine *progression.Engine
}

// NewEstimateHandler создаёт обработчик.
func NewEstimateHandler(engine *progression.Engine) *EstimateHandler {
	return &EstimateHandler{engine: engine}
}

// Handle возвращает расчётную дату и число недель до нужных кредитов.
func (h *EstimateHandler) Handle(q EstimateQuery) (EstimateDTO, error) {
	if q.Baseline.IsZero() {
		return EstimateDTO{}, shared.NewDomainError("query", "Estimate", shared.ErrEmptyValue, "baseline is required")
	}
	if q.RequiredMonths < 0 || q.CreditsRemaining < 0 {
		return EstimateDTO{}, shared.NewDomainError("query", "Estimate", shared.ErrNegativeValue, "months and credits cannot be negative")
	}
	weeks, err := h.engine.RemainingWeeks(q.CreditsRemaining)
	if err != nil {
		return EstimateDTO{}, err
	}
	return EstimateDTO{
		Baseline:       q.Baseline,
		RequiredMonths: q.RequiredMonths,
		EstimatedDate:  h.engine.Estimate(q.Baseline, q.RequiredMonths),
		WeeksRemaining: weeks,
	}, nil
}
