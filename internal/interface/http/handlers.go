package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dojo-hub/dojo-management/internal/application/command"
	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/pkg/logger"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func writeJSON(c *gin.Context, status int, data any) {
	c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
		RequestID: c.GetString(ctxKeyRequestID),
	})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: c.GetString(ctxKeyRequestID),
	})
}

// writeDomainError maps domain error kinds onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case shared.IsNotFound(err):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeError(c, http.StatusConflict, "already_exists", err.Error())
	case shared.IsInvalidSessionKind(err):
		writeError(c, http.StatusBadRequest, "invalid_session_kind", err.Error())
	case shared.IsValidation(err):
		writeError(c, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsStateConflict(err):
		writeError(c, http.StatusConflict, "state_conflict", err.Error())
	case shared.IsMalformedHistory(err):
		writeError(c, http.StatusUnprocessableEntity, "malformed_history", err.Error())
	default:
		logger.FromContext(c.Request.Context()).Error("request failed", logger.Err(err))
		writeError(c, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

func badRequest(msg string) error {
	return shared.NewDomainError("http", "Decode", shared.ErrInvalidInput, msg)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERS
// ══════════════════════════════════════════════════════════════════════════════

type enrollRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Grade    string `json:"grade"`
	JoinDate string `json:"join_date"`
}

func (s *Server) handleEnrollMember(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeDomainError(c, badRequest("invalid JSON body"))
		return
	}
	joined, err := parseOptionalDate(req.JoinDate, "join_date")
	if err != nil {
		writeDomainError(c, err)
		return
	}

	m, err := s.deps.EnrollMember.Handle(c.Request.Context(), command.EnrollMemberCommand{
		ID:            req.ID,
		Name:          req.Name,
		Category:      grade.Category(req.Category),
		Grade:         grade.ID(req.Grade),
		JoinDate:      joined,
		CorrelationID: c.GetString(ctxKeyRequestID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, m)
}

func (s *Server) handleMemberReport(c *gin.Context) {
	report, err := s.deps.MemberReport.Handle(c.Request.Context(), query.GetMemberReportQuery{
		MemberID:  c.Param("id"),
		SkipCache: boolQuery(c, "fresh"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

type attendanceRequest struct {
	Date        string `json:"date"`
	Present     *bool  `json:"present"`
	SessionKind string `json:"session_kind"`
}

func (s *Server) handleRecordAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeDomainError(c, badRequest("invalid JSON body"))
		return
	}
	date, err := parseOptionalDate(req.Date, "date")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	present := true
	if req.Present != nil {
		present = *req.Present
	}

	rec, err := s.deps.RecordAttendance.Handle(c.Request.Context(), command.RecordAttendanceCommand{
		MemberID:      c.Param("id"),
		Date:          date,
		Present:       present,
		SessionKind:   attendance.SessionKind(req.SessionKind),
		CorrelationID: c.GetString(ctxKeyRequestID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rec)
}

type examRequest struct {
	Date      string `json:"date"`
	FromGrade string `json:"from_grade"`
	ToGrade   string `json:"to_grade"`
	Result    string `json:"result"`
	Notes     string `json:"notes"`
}

func (s *Server) handleRegisterExam(c *gin.Context) {
	var req examRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeDomainError(c, badRequest("invalid JSON body"))
		return
	}
	date, err := parseOptionalDate(req.Date, "date")
	if err != nil {
		writeDomainError(c, err)
		return
	}

	res, err := s.deps.RegisterExamResult.Handle(c.Request.Context(), command.RegisterExamResultCommand{
		MemberID:      c.Param("id"),
		Date:          date,
		FromGrade:     grade.ID(req.FromGrade),
		ToGrade:       grade.ID(req.ToGrade),
		Result:        member.ExamResult(req.Result),
		Notes:         req.Notes,
		CorrelationID: c.GetString(ctxKeyRequestID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, res)
}

func (s *Server) handleSetActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		writeDomainError(c, badRequest("body must be {\"active\": true|false}"))
		return
	}
	err := s.deps.SetMemberActive.Handle(c.Request.Context(), command.SetMemberActiveCommand{
		MemberID:      c.Param("id"),
		Active:        *req.Active,
		CorrelationID: c.GetString(ctxKeyRequestID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"member_id": c.Param("id"), "active": *req.Active})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER, LADDER, ESTIMATE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRosterReport(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	report, err := s.deps.RosterReport.Handle(c.Request.Context(), query.GetRosterReportQuery{
		Category:        grade.Category(c.Query("category")),
		IncludeInactive: boolQuery(c, "include_inactive") || c.Query("active") == "false",
		Limit:           limit,
		SkipCache:       boolQuery(c, "fresh"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

func (s *Server) handleLadder(c *gin.Context) {
	dto, err := s.deps.Ladder.Handle(grade.Category(c.Param("category")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, dto)
}

func (s *Server) handleEstimate(c *gin.Context) {
	baseline, err := parseOptionalDate(c.Query("baseline"), "baseline")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	months, err := intQuery(c, "months", 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	credits, err := intQuery(c, "credits", 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	dto, err := s.deps.Estimate.Handle(query.EstimateQuery{
		Baseline:         baseline,
		RequiredMonths:   months,
		CreditsRemaining: credits,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// parseOptionalDate parses YYYY-MM-DD; empty input yields the zero time and
// leaves "required" checks to the command validator.
func parseOptionalDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, badRequest(field + " must be a YYYY-MM-DD date")
	}
	return t, nil
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(key + " must be an integer")
	}
	return v, nil
}

func boolQuery(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
