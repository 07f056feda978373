// Package geo provides geographic helpers for the district planner.
//
// All great-circle distances come from the Haversine formula on WGS-84
// coordinates. Modal speeds are fixed constants of the core; real travel
// times on the road graph come from the roadnet oracle.
package geo

import (
	"github.com/umahmood/haversine"
)

// Modal speeds in meters per second.
const (
	WalkSpeed      = 1.2
	BikeSpeed      = 4.17
	KickboardSpeed = 5.56
	EBikeSpeed     = 5.56
)

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b Point) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lon},
		haversine.Coord{Lat: b.Lat, Lon: b.Lon},
	)
	return km * 1000.0
}

// WalkSeconds converts a walking distance in meters to seconds.
func WalkSeconds(meters float64) int {
	return int(meters / WalkSpeed)
}

// RideSeconds converts a riding distance in meters to seconds at the given speed.
func RideSeconds(meters, speed float64) int {
	return int(meters / speed)
}

// BoundingBox is the district rectangle the dataset covers.
type BoundingBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Contains reports whether p lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.LatMin && p.Lat <= b.LatMax &&
		p.Lon >= b.LonMin && p.Lon <= b.LonMax
}
