package models

import (
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/planner"
)

// PlanRequest is the body of POST /api/v1/plan.
type PlanRequest struct {
	FromLat float64 `json:"from_lat" validate:"required,latitude"`
	FromLon float64 `json:"from_lon" validate:"required,longitude"`
	ToLat   float64 `json:"to_lat" validate:"required,latitude"`
	ToLon   float64 `json:"to_lon" validate:"required,longitude"`

	// Departure accepts "HH:MM", "HH:MM:SS", or seconds-of-day digits.
	Departure string `json:"departure"`

	// DeadlineMs optionally bounds planning time.
	DeadlineMs int `json:"deadline_ms" validate:"gte=0"`

	Preference *planner.Preference `json:"preference,omitempty"`
}

// PlanResponse wraps the planner result with the journey geometries.
type PlanResponse struct {
	PlanID   string         `json:"plan_id"`
	Strategy string         `json:"strategy"`
	Journeys []JourneyView  `json:"journeys"`
	TimedOut bool           `json:"timed_out"`
	Reason   string         `json:"reason,omitempty"`
}

// JourneyView is one ranked journey with its GeoJSON geometry.
type JourneyView struct {
	Journey  planner.Journey `json:"journey"`
	Geometry interface{}     `json:"geometry"` // GeoJSON FeatureCollection
}

// StopView decorates a dataset stop with its serving lines.
type StopView struct {
	Stop  dataset.Stop `json:"stop"`
	Lines []string     `json:"lines"`
}

// RouteView is one route with its resolved stop records.
type RouteView struct {
	ID        dataset.RouteID       `json:"id"`
	Label     string                `json:"label"`
	Mode      dataset.TransportMode `json:"mode"`
	Direction string                `json:"direction,omitempty"`
	Stops     []dataset.Stop        `json:"stops"`
	TripCount int                   `json:"trip_count"`
}
