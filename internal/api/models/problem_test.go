package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmroute/osmroute/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_1").
		WithDetail("start.lat must be between -85.0511 and 85.0511").
		WithInstance("/v1/routes:compute").
		WithErrors([]models.FieldError{{Field: "start.lat", Message: "out of range", Code: "OUT_OF_RANGE"}})

	assert.Equal(t, "start.lat must be between -85.0511 and 85.0511", p.Detail)
	assert.Equal(t, "/v1/routes:compute", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "mode", Message: "unsupported"},
	})
	p.Instance = "/v1/routes:compute"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "/v1/routes:compute", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "mode", result.Errors[0].Field)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
	}{
		{"bad request", models.NewBadRequest("req", "d", nil), models.ProblemTypeValidation, "Validation error", http.StatusBadRequest},
		{"unsupported media", models.NewUnsupportedMediaType("req", "d"), models.ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType},
		{"not found", models.NewNotFound("req", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"no data", models.NewNoData("req", "d"), models.ProblemTypeNoData, "No map data", http.StatusUnprocessableEntity},
		{"too many", models.NewTooManyRequests("req", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req", "d"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.Equal(t, "req", tt.problem.TraceID)
		})
	}
}

func TestProblem_NoRouteCarriesSearchOutcome(t *testing.T) {
	p := models.NewNoRoute("req_9", "gave_up", "car", 1000000)

	assert.Equal(t, models.ProblemTypeNoRoute, p.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
	assert.Equal(t, "car search ended with status gave_up", p.Detail)

	w := httptest.NewRecorder()
	p.Write(w)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "gave_up", body["routeStatus"])
	assert.Equal(t, "car", body["mode"])
	assert.EqualValues(t, 1000000, body["iterations"])

	var plain map[string]any
	require.NoError(t, json.Unmarshal(mustJSON(t, models.NewNotFound("req", "d")), &plain))
	assert.NotContains(t, plain, "routeStatus")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return out
}

func TestTimestamp_JSON(t *testing.T) {
	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T10:00:00+01:00"`), &ts))

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01T09:00:00Z"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Nil(t, models.TimestampPtr(nil))
}
