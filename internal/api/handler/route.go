// Package handler provides HTTP handlers for the osmroute API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/api/models"
	"github.com/osmroute/osmroute/internal/api/response"
	"github.com/osmroute/osmroute/internal/osmgraph"
	"github.com/osmroute/osmroute/internal/routing"
)

const (
	gpxContentType = "application/gpx+xml"
	csvContentType = "text/csv"
)

// RouteService computes routes and snaps coordinates. *routing.Service implements it.
type RouteService interface {
	Route(ctx context.Context, req routing.RouteRequest) (*routing.RouteResponse, error)
	NearestNode(ctx context.Context, mode osmgraph.Mode, c routing.Coordinate) (*routing.RouteNode, error)
}

// RouteHandler handles routing endpoints.
type RouteHandler struct {
	service RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service RouteService) *RouteHandler {
	return &RouteHandler{service: service}
}

// ComputeRoute handles POST /v1/routes:compute. Every search outcome is a
// 200 with its status in the body. GPX (Accept: application/gpx+xml or
// ?format=gpx, with ?gpx=route|track) and CSV (?format=csv) are only
// available for successful routes.
func (h *RouteHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var missing []models.FieldError
	if input.Start == nil {
		missing = append(missing, models.FieldError{Field: "start", Message: "required", Code: "REQUIRED"})
	}
	if input.End == nil {
		missing = append(missing, models.FieldError{Field: "end", Message: "required", Code: "REQUIRED"})
	}
	if input.Mode == "" {
		missing = append(missing, models.FieldError{Field: "mode", Message: "required", Code: "REQUIRED"})
	}
	if len(missing) > 0 {
		response.BadRequest(w, r, "start, end and mode are required", missing)
		return
	}

	style, err := routing.ParseGPXStyle(r.URL.Query().Get("gpx"))
	if err != nil {
		response.BadRequest(w, r, "unsupported gpx style", []models.FieldError{
			{Field: "gpx", Message: "must be route or track", Code: "INVALID"},
		})
		return
	}

	result, err := h.service.Route(r.Context(), routing.RouteRequest{
		Start: routing.Coordinate{Lat: input.Start.Lat, Lon: input.Start.Lon},
		End:   routing.Coordinate{Lat: input.End.Lat, Lon: input.End.Lon},
		Mode:  osmgraph.Mode(strings.ToLower(input.Mode)),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	format := exportFormat(r)
	if format == "" {
		response.JSON(w, r, http.StatusOK, toRouteResponse(result))
		return
	}
	if result.Status != routing.StatusSuccess {
		response.NoRoute(w, r, string(result.Status), string(result.Mode), result.Iterations)
		return
	}

	var writeErr error
	switch format {
	case "gpx":
		w.Header().Set("Content-Type", gpxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="route.gpx"`)
		writeErr = routing.WriteGPX(w, result, style)
	case "csv":
		w.Header().Set("Content-Type", csvContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="route.csv"`)
		writeErr = routing.WriteCSV(w, result)
	}
	if writeErr != nil {
		zerolog.Ctx(r.Context()).Error().Err(writeErr).Str("format", format).Msg("failed to write route export")
	}
}

// NearestNode handles GET /v1/nodes:nearest?lat=&lon=&mode=.
func (h *RouteHandler) NearestNode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrors []models.FieldError
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "must be a number", Code: "INVALID"})
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lon", Message: "must be a number", Code: "INVALID"})
	}
	mode := strings.ToLower(q.Get("mode"))
	if mode == "" {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "mode", Message: "required", Code: "REQUIRED"})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "lat, lon and mode query parameters are required", fieldErrors)
		return
	}

	node, err := h.service.NearestNode(r.Context(), osmgraph.Mode(mode), routing.Coordinate{Lat: lat, Lon: lon})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NearestNodeResponse{
		Mode:           mode,
		Query:          models.Point{Lat: lat, Lon: lon},
		Node:           toRouteNode(*node),
		DistanceMeters: geo.Distance(orb.Point{lon, lat}, orb.Point{node.Lon, node.Lat}),
	})
}

func (h *RouteHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var routingErr *routing.Error
	switch {
	case errors.Is(err, routing.ErrNoNearbyNode):
		response.NoData(w, r, "no routable map data near the requested coordinate")
	case routing.IsInputError(err) && errors.As(err, &routingErr):
		response.BadRequest(w, r, routingErr.Message, []models.FieldError{
			{Field: fieldFor(routingErr.Code), Message: routingErr.Message, Code: routingErr.Code},
		})
	case routing.IsInputError(err):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("routing request failed")
		response.InternalError(w, r, "failed to process routing request")
	}
}

func fieldFor(code string) string {
	switch code {
	case "INVALID_START":
		return "start"
	case "INVALID_END":
		return "end"
	case "INVALID_MODE":
		return "mode"
	default:
		return "coordinates"
	}
}

// exportFormat returns "gpx", "csv" or "" for JSON.
func exportFormat(r *http.Request) string {
	switch r.URL.Query().Get("format") {
	case "gpx":
		return "gpx"
	case "csv":
		return "csv"
	}
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, gpxContentType):
		return "gpx"
	case strings.Contains(accept, csvContentType):
		return "csv"
	}
	return ""
}

func toRouteNode(n routing.RouteNode) models.RouteNode {
	return models.RouteNode{ID: int64(n.ID), Lat: n.Lat, Lon: n.Lon}
}

func toRouteResponse(res *routing.RouteResponse) models.RouteComputeResponse {
	out := models.RouteComputeResponse{
		ID:             "rte_" + uuid.New().String()[:12],
		Status:         string(res.Status),
		Mode:           string(res.Mode),
		DistanceMeters: res.DistanceMeters,
		Cost:           res.Cost,
		Iterations:     res.Iterations,
		Polyline:       res.Polyline,
		GeneratedAt:    models.Timestamp(res.ComputedAt),
	}
	if res.StartNode != nil {
		n := toRouteNode(*res.StartNode)
		out.StartNode = &n
	}
	if res.EndNode != nil {
		n := toRouteNode(*res.EndNode)
		out.EndNode = &n
	}
	for _, n := range res.Nodes {
		out.Path = append(out.Path, toRouteNode(n))
	}
	return out
}
