package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-management/internal/application/command"
	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/catalog"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithConfig(t, DefaultConfig())
}

func newTestServerWithConfig(t *testing.T, cfg Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.Default()
	require.NoError(t, err)
	clock := timeutil.FixedClock{At: timeutil.Date(2024, time.April, 20)}
	engine, err := progression.NewEngine(progression.EngineDeps{
		Ladder:    cat.Ladder,
		Weighting: cat.Weighting,
		Clock:     clock,
		Config:    progression.DefaultConfig(),
	})
	require.NoError(t, err)

	store := memory.NewMemberStore()
	pub := shared.NopPublisher{}

	s, err := NewServer(cfg, Dependencies{
		EnrollMember:       command.NewEnrollMemberHandler(store, cat.Ladder, pub, clock),
		RecordAttendance:   command.NewRecordAttendanceHandler(store, cat.Weighting, pub, clock),
		RegisterExamResult: command.NewRegisterExamResultHandler(store, cat.Ladder, pub, clock),
		SetMemberActive:    command.NewSetMemberActiveHandler(store, pub, clock),
		MemberReport:       query.NewGetMemberReportHandler(store, engine, nil, nil, nil),
		RosterReport:       query.NewGetRosterReportHandler(store, engine, nil, nil, nil),
		Ladder:             query.NewGetLadderHandler(cat.Ladder),
		Estimate:           query.NewEstimateHandler(engine),
	})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func enroll(t *testing.T, s *Server, id string) {
	t.Helper()
	rec, env := do(t, s, http.MethodPost, "/api/v1/members",
		`{"id":"`+id+`","name":"Aiko","category":"adult","join_date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, env.Success)
}

func TestServer_Liveness(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestServer_RequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ladder/adult", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "req-42", env.RequestID)

	rec, _ = do(t, s, http.MethodGet, "/live", "")
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestServer_EnrollAndReport(t *testing.T) {
	s := newTestServer(t)
	enroll(t, s, "m-1")

	rec, _ := do(t, s, http.MethodPost, "/api/v1/members/m-1/attendance",
		`{"date":"2024-01-05","session_kind":"normal"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodGet, "/api/v1/members/m-1/report", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report progression.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, progression.StatusInProgress, report.Status)
	assert.Equal(t, 1, report.CreditsSinceBaseline)
	assert.Equal(t, 19, report.CreditsRemaining)
}

func TestServer_RosterReport(t *testing.T) {
	s := newTestServer(t)
	enroll(t, s, "m-1")
	enroll(t, s, "m-2")

	rec, env := do(t, s, http.MethodGet, "/api/v1/roster/report?category=adult", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var roster progression.RosterReport
	require.NoError(t, json.Unmarshal(env.Data, &roster))
	assert.Equal(t, 2, roster.Total())

	rec, _ = do(t, s, http.MethodGet, "/api/v1/roster/report?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	enroll(t, s, "m-1")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown member", http.MethodGet, "/api/v1/members/ghost/report", "", http.StatusNotFound, "not_found"},
		{"duplicate member", http.MethodPost, "/api/v1/members", `{"id":"m-1","name":"Aiko","category":"adult","join_date":"2024-01-01"}`, http.StatusConflict, "already_exists"},
		{"missing name", http.MethodPost, "/api/v1/members", `{"category":"adult","join_date":"2024-01-01"}`, http.StatusBadRequest, "validation_error"},
		{"bad date", http.MethodPost, "/api/v1/members", `{"name":"Aiko","category":"adult","join_date":"01/01/2024"}`, http.StatusBadRequest, "validation_error"},
		{"malformed json", http.MethodPost, "/api/v1/members", `{`, http.StatusBadRequest, "validation_error"},
		{"unknown session kind", http.MethodPost, "/api/v1/members/m-1/attendance", `{"date":"2024-01-05","session_kind":"seminar"}`, http.StatusBadRequest, "invalid_session_kind"},
		{"exam skips a grade", http.MethodPost, "/api/v1/members/m-1/exams", `{"date":"2024-04-01","from_grade":"adult-6-kyu","to_grade":"adult-4-kyu","result":"passed"}`, http.StatusConflict, "state_conflict"},
		{"active flag missing", http.MethodPut, "/api/v1/members/m-1/active", `{}`, http.StatusBadRequest, "validation_error"},
		{"unknown category", http.MethodGet, "/api/v1/ladder/robots", "", http.StatusBadRequest, "validation_error"},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestServer_PausedMemberRejectsHistory(t *testing.T) {
	s := newTestServer(t)
	enroll(t, s, "m-1")

	rec, _ := do(t, s, http.MethodPut, "/api/v1/members/m-1/active", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodPost, "/api/v1/members/m-1/attendance", `{"date":"2024-01-05","session_kind":"normal"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "state_conflict", env.Error.Code)
}

func TestServer_ExamPromotes(t *testing.T) {
	s := newTestServer(t)
	enroll(t, s, "m-1")

	rec, env := do(t, s, http.MethodPost, "/api/v1/members/m-1/exams",
		`{"date":"2024-04-01","from_grade":"adult-6-kyu","to_grade":"adult-5-kyu","result":"passed"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), "adult-5-kyu")

	_, env = do(t, s, http.MethodGet, "/api/v1/members/m-1/report", "")
	var report progression.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "adult-5-kyu", string(report.CurrentGrade))
	assert.Equal(t, timeutil.Date(2024, time.April, 1), report.Baseline)
}

func TestServer_LadderAndEstimate(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/v1/ladder/adult", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ladder query.LadderDTO
	require.NoError(t, json.Unmarshal(env.Data, &ladder))
	require.NotEmpty(t, ladder.Grades)
	assert.Equal(t, "adult-6-kyu", string(ladder.Grades[0].ID))

	rec, env = do(t, s, http.MethodGet, "/api/v1/estimate?baseline=2024-05-15&months=2&credits=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var est query.EstimateDTO
	require.NoError(t, json.Unmarshal(env.Data, &est))
	assert.Equal(t, timeutil.Date(2024, time.September, 1), est.EstimatedDate)
	assert.Equal(t, 2, est.WeeksRemaining)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/estimate?baseline=2024-05-15&months=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/estimate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
