package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/models"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/planner"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/routing"
)

// PlannerHandler serves the plan endpoint and the dataset browse surface.
type PlannerHandler struct {
	Data     *dataset.Dataset
	Planner  *planner.Planner
	Log      *zap.Logger
	validate *validator.Validate
}

func NewPlannerHandler(d *dataset.Dataset, p *planner.Planner, log *zap.Logger) *PlannerHandler {
	return &PlannerHandler{Data: d, Planner: p, Log: log, validate: validator.New()}
}

// Plan handles POST /api/v1/plan.
func (h *PlannerHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, `{"error":"invalid coordinates"}`, http.StatusBadRequest)
		return
	}

	departure, err := parseDeparture(req.Departure)
	if err != nil {
		http.Error(w, `{"error":"invalid departure time"}`, http.StatusBadRequest)
		return
	}

	pref := planner.DefaultPreference()
	if req.Preference != nil {
		pref = *req.Preference
		if err := pref.Validate(); err != nil {
			http.Error(w, `{"error":"invalid preference"}`, http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	if req.DeadlineMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.DeadlineMs)*time.Millisecond)
		defer cancel()
	}

	res, err := h.Planner.Plan(ctx,
		geo.Point{Lat: req.FromLat, Lon: req.FromLon},
		geo.Point{Lat: req.ToLat, Lon: req.ToLon},
		departure, pref)
	if err != nil {
		if errors.Is(err, planner.ErrOutOfBounds) {
			http.Error(w, `{"error":"OutOfBounds"}`, http.StatusBadRequest)
			return
		}
		h.Log.Error("plan failed", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	resp := models.PlanResponse{
		PlanID:   res.PlanID,
		Strategy: res.Strategy.Name,
		TimedOut: res.TimedOut,
		Reason:   res.Reason,
	}
	for _, j := range res.Journeys {
		resp.Journeys = append(resp.Journeys, models.JourneyView{
			Journey:  j,
			Geometry: journeyGeometry(j),
		})
	}
	writeJSON(w, resp)
}

// journeyGeometry renders each segment as a GeoJSON LineString feature.
func journeyGeometry(j planner.Journey) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range j.Segments {
		line := geojson.NewLineStringFeature([][]float64{
			{s.From.Lon, s.From.Lat},
			{s.To.Lon, s.To.Lat},
		})
		line.SetProperty("kind", string(s.Kind))
		if s.Kind == routing.SegTransit {
			line.SetProperty("label", s.Label)
		}
		fc.AddFeature(line)
	}
	return fc
}

// Stops handles GET /api/v1/stops?min_lat=…&min_lon=…&max_lat=…&max_lon=….
func (h *PlannerHandler) Stops(w http.ResponseWriter, r *http.Request) {
	minLat, _ := strconv.ParseFloat(r.URL.Query().Get("min_lat"), 64)
	minLon, _ := strconv.ParseFloat(r.URL.Query().Get("min_lon"), 64)
	maxLat, _ := strconv.ParseFloat(r.URL.Query().Get("max_lat"), 64)
	maxLon, _ := strconv.ParseFloat(r.URL.Query().Get("max_lon"), 64)
	if minLat == 0 || maxLat == 0 {
		http.Error(w, `{"error":"missing viewport coordinates"}`, http.StatusBadRequest)
		return
	}

	var out []dataset.Stop
	for _, s := range h.Data.Stops {
		if s.Lat >= minLat && s.Lat <= maxLat && s.Lon >= minLon && s.Lon <= maxLon {
			out = append(out, s)
		}
	}
	writeJSON(w, out)
}

// StopDetails handles GET /api/v1/stops/{id}.
func (h *PlannerHandler) StopDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id >= len(h.Data.Stops) {
		http.Error(w, `{"error":"stop not found"}`, http.StatusNotFound)
		return
	}
	stop := h.Data.Stops[id]
	var lines []string
	for _, rid := range h.Data.RoutesServing(stop.ID) {
		lines = append(lines, h.Data.Routes[rid].Label)
	}
	writeJSON(w, models.StopView{Stop: stop, Lines: lines})
}

// Routes handles GET /api/v1/routes.
func (h *PlannerHandler) Routes(w http.ResponseWriter, r *http.Request) {
	var out []models.RouteView
	for i := range h.Data.Routes {
		out = append(out, h.routeView(&h.Data.Routes[i]))
	}
	writeJSON(w, out)
}

// RouteDetails handles GET /api/v1/routes/{id}.
func (h *PlannerHandler) RouteDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id >= len(h.Data.Routes) {
		http.Error(w, `{"error":"route not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, h.routeView(&h.Data.Routes[id]))
}

func (h *PlannerHandler) routeView(rt *dataset.Route) models.RouteView {
	v := models.RouteView{
		ID: rt.ID, Label: rt.Label, Mode: rt.Mode,
		Direction: rt.Direction, TripCount: len(rt.Trips),
	}
	for _, sid := range rt.Stops {
		v.Stops = append(v.Stops, h.Data.Stops[sid])
	}
	return v
}

// Vehicles handles GET /api/v1/vehicles?mode=….
func (h *PlannerHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	var out []dataset.MobilityVehicle
	for _, v := range h.Data.Vehicles {
		if mode == "" || string(v.Mode) == mode {
			out = append(out, v)
		}
	}
	writeJSON(w, out)
}

// parseDeparture accepts "HH:MM", "HH:MM:SS", raw seconds-of-day digits, or
// empty for 08:30.
func parseDeparture(s string) (int, error) {
	if s == "" {
		return 8*3600 + 30*60, nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, errors.New("bad time format")
		}
		hh, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, err
		}
		mm, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, err
		}
		ss := 0
		if len(parts) == 3 {
			if ss, err = strconv.Atoi(parts[2]); err != nil {
				return 0, err
			}
		}
		if hh < 0 || mm < 0 || mm > 59 || ss < 0 || ss > 59 {
			return 0, errors.New("bad time value")
		}
		return hh*3600 + mm*60 + ss, nil
	}
	sec, err := strconv.Atoi(s)
	if err != nil || sec < 0 {
		return 0, errors.New("bad seconds value")
	}
	return sec, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode failure"}`, http.StatusInternalServerError)
	}
}
