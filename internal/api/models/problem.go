package models

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Problem is an RFC 7807 body, served as application/problem+json.
// Route problems also echo the search outcome that could not be served.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`

	RouteStatus string `json:"routeStatus,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Iterations  int    `json:"iterations,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem types, relative to the API root.
const (
	ProblemTypeValidation       = "/problems/validation-error"
	ProblemTypeUnsupportedMedia = "/problems/unsupported-media-type"
	ProblemTypeNotFound         = "/problems/not-found"
	ProblemTypeNoData           = "/problems/no-map-data"
	ProblemTypeNoRoute          = "/problems/no-route"
	ProblemTypeTooManyRequests  = "/problems/too-many-requests"
	ProblemTypeInternal         = "/problems/internal-error"
	ProblemTypeUnavailable      = "/problems/service-unavailable"
)

type problemKind struct {
	title  string
	status int
}

var kinds = map[string]problemKind{
	ProblemTypeValidation:       {"Validation error", http.StatusBadRequest},
	ProblemTypeUnsupportedMedia: {"Unsupported media type", http.StatusUnsupportedMediaType},
	ProblemTypeNotFound:         {"Not found", http.StatusNotFound},
	ProblemTypeNoData:           {"No map data", http.StatusUnprocessableEntity},
	ProblemTypeNoRoute:          {"No route", http.StatusUnprocessableEntity},
	ProblemTypeTooManyRequests:  {"Too many requests", http.StatusTooManyRequests},
	ProblemTypeInternal:         {"Internal server error", http.StatusInternalServerError},
	ProblemTypeUnavailable:      {"Service unavailable", http.StatusServiceUnavailable},
}

// NewProblem creates a Problem with an explicit title and status.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

func newKind(problemType, traceID, detail string) *Problem {
	k := kinds[problemType]
	p := NewProblem(problemType, k.title, k.status, traceID)
	p.Detail = detail
	return p
}

// WithDetail sets the occurrence-specific explanation.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches field errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write sends the Problem with its status code and request id header.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 problem with optional field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return newKind(ProblemTypeValidation, traceID, detail).WithErrors(errors)
}

// NewUnsupportedMediaType creates a 415 problem.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return newKind(ProblemTypeUnsupportedMedia, traceID, detail)
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return newKind(ProblemTypeNotFound, traceID, detail)
}

// NewNoData creates a 422 problem for coordinates with no routable map data nearby.
func NewNoData(traceID, detail string) *Problem {
	return newKind(ProblemTypeNoData, traceID, detail)
}

// NewNoRoute creates a 422 problem for a search that ended without a path
// when the client asked for an export format that needs one.
func NewNoRoute(traceID, routeStatus, mode string, iterations int) *Problem {
	p := newKind(ProblemTypeNoRoute, traceID,
		fmt.Sprintf("%s search ended with status %s", mode, routeStatus))
	p.RouteStatus = routeStatus
	p.Mode = mode
	p.Iterations = iterations
	return p
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newKind(ProblemTypeTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return newKind(ProblemTypeInternal, traceID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newKind(ProblemTypeUnavailable, traceID, detail)
}
