// Package dataset holds the immutable routing dataset the planner reads.
//
// The dataset is built once at startup (loader.go), validated, sealed, and
// never mutated afterwards. Concurrent queries share it without locks.
package dataset

import (
	"fmt"
	"sort"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

type StopID int32
type RouteID int32

// StopKind classifies an addressable point in the network.
type StopKind string

const (
	StopBus          StopKind = "bus"
	StopMetro        StopKind = "metro"
	StopBikeDock     StopKind = "bike-dock"
	StopMobilityCell StopKind = "mobility-cell"
)

// TransportMode classifies a route.
type TransportMode string

const (
	ModeBus      TransportMode = "bus"
	ModeMetro    TransportMode = "metro"
	ModeMobility TransportMode = "mobility"
)

// MobilityMode classifies a shared vehicle.
type MobilityMode string

const (
	MobilityBike      MobilityMode = "bike"
	MobilityKickboard MobilityMode = "kickboard"
	MobilityEBike     MobilityMode = "ebike"
)

// Speed returns the riding speed for the mode in m/s.
func (m MobilityMode) Speed() float64 {
	switch m {
	case MobilityBike:
		return geo.BikeSpeed
	case MobilityKickboard:
		return geo.KickboardSpeed
	default:
		return geo.EBikeSpeed
	}
}

type Stop struct {
	ID   StopID   `json:"id"`
	Code string   `json:"code,omitempty"`
	Name string   `json:"name"`
	Lat  float64  `json:"lat"`
	Lon  float64  `json:"lon"`
	Kind StopKind `json:"kind"`
}

func (s Stop) Point() geo.Point { return geo.Point{Lat: s.Lat, Lon: s.Lon} }

// StopTime is one scheduled call at a stop position. Seconds since midnight;
// trips crossing midnight carry values above 86400.
type StopTime struct {
	Arrival   int `json:"arrival"`
	Departure int `json:"departure"`
}

// Trip is one concrete scheduled pass along a route.
type Trip struct {
	ID        int32      `json:"id"`
	StopTimes []StopTime `json:"stop_times"`
}

// Route is an ordered stop sequence served by a family of trips. Trips are
// sorted by departure at the first stop; the no-overtaking invariant keeps
// departures at every position non-decreasing across trips.
type Route struct {
	ID        RouteID       `json:"id"`
	Mode      TransportMode `json:"mode"`
	Label     string        `json:"label"`
	Stops     []StopID      `json:"stops"`
	Direction string        `json:"direction,omitempty"`
	Trips     []Trip        `json:"trips"`
}

// Transfer is a precomputed foot connection between two stops.
type Transfer struct {
	ToStop      StopID `json:"to_stop"`
	WalkSeconds int    `json:"walk_seconds"`
}

// MobilityVehicle is a docked bike station or a virtual station aggregating
// free-floating vehicles. Availability is static nominal.
type MobilityVehicle struct {
	ID        string       `json:"id"`
	Lat       float64      `json:"lat"`
	Lon       float64      `json:"lon"`
	Mode      MobilityMode `json:"mode"`
	Capacity  int          `json:"capacity"`
	UnlockFee int          `json:"unlock_fee"`
	PerMinute int          `json:"per_minute"`
}

func (v MobilityVehicle) Point() geo.Point { return geo.Point{Lat: v.Lat, Lon: v.Lon} }

// ModeTariff prices one mobility mode. A flat tariff has PerMinute == 0.
type ModeTariff struct {
	UnlockFee int `json:"unlock_fee"`
	PerMinute int `json:"per_minute"`
}

// Tariffs are core constants overridable per dataset. Currency units are
// opaque integers.
type Tariffs struct {
	Mobility    map[MobilityMode]ModeTariff `json:"mobility"`
	TransitFlat int                         `json:"transit_flat"`
	HybridPerKm int                         `json:"hybrid_per_km"`
}

// DefaultTariffs returns the built-in tariff table.
func DefaultTariffs() Tariffs {
	return Tariffs{
		Mobility: map[MobilityMode]ModeTariff{
			MobilityBike:      {UnlockFee: 1000, PerMinute: 0},
			MobilityKickboard: {UnlockFee: 1200, PerMinute: 150},
			MobilityEBike:     {UnlockFee: 1500, PerMinute: 180},
		},
		TransitFlat: 1370,
		HybridPerKm: 100,
	}
}

// RideCost prices a mobility ride of the given duration.
func (t Tariffs) RideCost(mode MobilityMode, rideSeconds int) int {
	mt, ok := t.Mobility[mode]
	if !ok {
		return 0
	}
	minutes := (rideSeconds + 59) / 60
	return mt.UnlockFee + mt.PerMinute*minutes
}

// Dataset is the sealed routing dataset.
type Dataset struct {
	Stops     []Stop
	Routes    []Route
	Transfers map[StopID][]Transfer
	Vehicles  []MobilityVehicle
	Box       geo.BoundingBox
	GridSize  int
	Tariffs   Tariffs

	// Built by Seal.
	stopRoutes [][]RouteID        // serving routes per stop
	stopPos    []map[StopID]int32 // first position of a stop within each route
}

// Seal splits circular routes into directed acyclic variants, sorts trips,
// and builds the lookup indexes. Must be called once before planning.
func (d *Dataset) Seal() {
	d.splitCircular()

	for ri := range d.Routes {
		r := &d.Routes[ri]
		sort.SliceStable(r.Trips, func(i, j int) bool {
			return r.Trips[i].StopTimes[0].Departure < r.Trips[j].StopTimes[0].Departure
		})
	}

	d.stopRoutes = make([][]RouteID, len(d.Stops))
	d.stopPos = make([]map[StopID]int32, len(d.Routes))
	for ri := range d.Routes {
		r := &d.Routes[ri]
		pos := make(map[StopID]int32, len(r.Stops))
		for i, sid := range r.Stops {
			if _, seen := pos[sid]; !seen {
				pos[sid] = int32(i)
				d.stopRoutes[sid] = append(d.stopRoutes[sid], r.ID)
			}
		}
		d.stopPos[ri] = pos
	}
	if d.GridSize == 0 {
		d.GridSize = 30
	}
	if d.Tariffs.Mobility == nil {
		d.Tariffs = DefaultTariffs()
	}
}

// splitCircular rewrites loop lines (head stop repeated at the tail) into two
// directed variants cut at the loop midpoint, so every scanned stop sequence
// is acyclic. Branch spurs stay as their own patterns.
func (d *Dataset) splitCircular() {
	var extra []Route
	for ri := range d.Routes {
		r := &d.Routes[ri]
		n := len(r.Stops)
		if n < 4 || r.Stops[0] != r.Stops[n-1] {
			continue
		}
		mid := n / 2

		outer := Route{
			ID:        RouteID(len(d.Routes) + len(extra)),
			Mode:      r.Mode,
			Label:     r.Label,
			Stops:     append([]StopID(nil), r.Stops[mid:]...),
			Direction: "outer",
		}
		for _, tr := range r.Trips {
			outer.Trips = append(outer.Trips, Trip{
				ID:        tr.ID,
				StopTimes: append([]StopTime(nil), tr.StopTimes[mid:]...),
			})
		}
		extra = append(extra, outer)

		r.Stops = append([]StopID(nil), r.Stops[:mid+1]...)
		r.Direction = "inner"
		for ti := range r.Trips {
			r.Trips[ti].StopTimes = append([]StopTime(nil), r.Trips[ti].StopTimes[:mid+1]...)
		}
	}
	d.Routes = append(d.Routes, extra...)
}

// RoutesServing returns the routes whose sequence contains the stop.
func (d *Dataset) RoutesServing(s StopID) []RouteID { return d.stopRoutes[s] }

// StopIndexIn returns the first position of the stop within the route, or -1.
func (d *Dataset) StopIndexIn(r RouteID, s StopID) int32 {
	if p, ok := d.stopPos[r][s]; ok {
		return p
	}
	return -1
}

// EarliestTrip returns the index of the earliest trip of the route departing
// from position pos at or after t, or -1 when none remains. Binary search over
// the non-overtaking timetable.
func (d *Dataset) EarliestTrip(r RouteID, pos int32, t int) int {
	trips := d.Routes[r].Trips
	i := sort.Search(len(trips), func(i int) bool {
		return trips[i].StopTimes[pos].Departure >= t
	})
	if i == len(trips) {
		return -1
	}
	return i
}

// Validate enforces load-time invariants. A violation here is fatal at
// startup and never raised mid-query.
func (d *Dataset) Validate() error {
	for _, s := range d.Stops {
		if !d.Box.Contains(s.Point()) {
			return fmt.Errorf("dataset invariant violated: stop %d %q outside bounding box", s.ID, s.Name)
		}
	}
	for _, r := range d.Routes {
		for _, sid := range r.Stops {
			if int(sid) < 0 || int(sid) >= len(d.Stops) {
				return fmt.Errorf("dataset invariant violated: route %d references unknown stop %d", r.ID, sid)
			}
		}
		for _, tr := range r.Trips {
			if len(tr.StopTimes) != len(r.Stops) {
				return fmt.Errorf("dataset invariant violated: route %d trip %d has %d stop times, want %d",
					r.ID, tr.ID, len(tr.StopTimes), len(r.Stops))
			}
			prev := 0
			for i, st := range tr.StopTimes {
				if st.Arrival > st.Departure {
					return fmt.Errorf("dataset invariant violated: route %d trip %d departs before arriving at position %d", r.ID, tr.ID, i)
				}
				if st.Arrival < prev {
					return fmt.Errorf("dataset invariant violated: route %d trip %d times decrease at position %d", r.ID, tr.ID, i)
				}
				prev = st.Departure
			}
		}
		// Trips must not overtake: at every position, departures stay
		// non-decreasing once trips are ordered by first departure.
		order := make([]int, len(r.Trips))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool {
			return r.Trips[order[i]].StopTimes[0].Departure < r.Trips[order[j]].StopTimes[0].Departure
		})
		for pos := range r.Stops {
			prev := -1
			for _, ti := range order {
				dep := r.Trips[ti].StopTimes[pos].Departure
				if dep < prev {
					return fmt.Errorf("dataset invariant violated: route %d trips overtake at position %d", r.ID, pos)
				}
				prev = dep
			}
		}
	}
	for from, trs := range d.Transfers {
		if int(from) < 0 || int(from) >= len(d.Stops) {
			return fmt.Errorf("dataset invariant violated: transfer from unknown stop %d", from)
		}
		for _, tr := range trs {
			if int(tr.ToStop) < 0 || int(tr.ToStop) >= len(d.Stops) {
				return fmt.Errorf("dataset invariant violated: transfer to unknown stop %d", tr.ToStop)
			}
			if tr.WalkSeconds < 0 {
				return fmt.Errorf("dataset invariant violated: negative transfer time %d→%d", from, tr.ToStop)
			}
		}
	}
	for _, v := range d.Vehicles {
		if !d.Box.Contains(v.Point()) {
			return fmt.Errorf("dataset invariant violated: vehicle %s outside bounding box", v.ID)
		}
	}
	return nil
}
