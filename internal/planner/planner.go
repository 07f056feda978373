// Package planner orchestrates micro-mobility legs and RAPTOR rounds under a
// zone-derived strategy, then scores and ranks the candidate journeys.
package planner

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/roadnet"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/routing"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/spatial"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/zone"
)

// ErrOutOfBounds rejects queries outside the district bounding box.
var ErrOutOfBounds = errors.New("origin or destination outside district bounds")

const (
	// maxJourneys caps the ranked result.
	maxJourneys = 5

	// hybridVehicleCap bounds mobility anchors per mode per side.
	hybridVehicleCap = 5

	// hybridStopCap bounds transit entry/exit stops per mobility anchor.
	hybridStopCap = 5

	// dedupWindowSec treats journeys on the same transit sequence within
	// this window as duplicates.
	dedupWindowSec = 30
)

// Planner answers plan queries against the shared immutable dataset. Safe for
// concurrent use; per-query state never escapes a call.
type Planner struct {
	data *dataset.Dataset
	idx  *spatial.Index
	grid *zone.Grid
	eng  *routing.Engine
	base roadnet.Oracle
	l2   roadnet.SecondLevel
	log  *zap.Logger

	maxRounds int
}

// Option tweaks planner construction.
type Option func(*Planner)

// WithOracle replaces the haversine fallback with a real road-distance oracle.
func WithOracle(o roadnet.Oracle) Option { return func(p *Planner) { p.base = o } }

// WithSecondLevel attaches a process-wide road-distance cache.
func WithSecondLevel(l2 roadnet.SecondLevel) Option { return func(p *Planner) { p.l2 = l2 } }

// WithMaxRounds overrides the transit leg bound.
func WithMaxRounds(k int) Option { return func(p *Planner) { p.maxRounds = k } }

func New(d *dataset.Dataset, log *zap.Logger, opts ...Option) *Planner {
	p := &Planner{
		data:      d,
		idx:       spatial.NewIndex(d),
		grid:      zone.NewGrid(d.Box, d.GridSize),
		eng:       routing.NewEngine(d),
		base:      roadnet.Fallback{},
		log:       log,
		maxRounds: routing.DefaultMaxRounds,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Result is the answer to one plan query.
type Result struct {
	PlanID   string        `json:"plan_id"`
	Strategy zone.Strategy `json:"strategy"`
	Journeys []Journey     `json:"journeys"`
	TimedOut bool          `json:"timed_out"`
	Reason   string        `json:"reason,omitempty"`
}

// Plan classifies the O-D pair, gathers direct, transit and hybrid
// candidates, and returns the scored non-dominated set.
func (p *Planner) Plan(ctx context.Context, origin, dest geo.Point, departure int, pref Preference) (*Result, error) {
	if !p.data.Box.Contains(origin) || !p.data.Box.Contains(dest) {
		return nil, ErrOutOfBounds
	}
	pref.applyDefaults()

	res := &Result{PlanID: uuid.NewString()}

	// Identical O and D: a single zero-length walk.
	if origin == dest {
		res.Strategy = zone.StrategyFor(0)
		res.Journeys = []Journey{zeroJourney(origin, departure, res.Strategy.Name)}
		return res, nil
	}

	oz := p.grid.ZoneOf(origin)
	dz := p.grid.ZoneOf(dest)
	d := zone.Distance(oz, dz)
	strat := zone.StrategyFor(d)
	res.Strategy = strat

	oracle := roadnet.NewMemo(p.base, p.l2)
	q := &query{
		p: p, oracle: oracle,
		origin: origin, dest: dest,
		departure: departure, pref: pref, strat: strat,
	}

	var candidates []Journey
	candidates = append(candidates, q.directCandidates()...)

	if strat.Name != "mobility_only" {
		transit, timedOut := q.transitCandidates(ctx, oz, dz, d)
		candidates = append(candidates, transit...)
		res.TimedOut = timedOut
	}

	ranked := rankJourneys(candidates, pref, strat)
	if len(ranked) > maxJourneys {
		ranked = ranked[:maxJourneys]
	}
	res.Journeys = ranked
	if len(ranked) == 0 {
		res.Reason = "no candidate journey survives scoring"
	}

	p.log.Debug("plan complete",
		zap.String("plan_id", res.PlanID),
		zap.String("strategy", strat.Name),
		zap.Int("zone_distance", d),
		zap.Int("candidates", len(candidates)),
		zap.Int("journeys", len(ranked)),
		zap.Bool("timed_out", res.TimedOut))
	return res, nil
}

// query bundles the per-call state.
type query struct {
	p      *Planner
	oracle roadnet.Oracle

	origin, dest geo.Point
	departure    int
	pref         Preference
	strat        zone.Strategy
}

// directCandidates builds Step 2: per-mode mobility rides and the pure walk.
// Always considered regardless of strategy.
func (q *query) directCandidates() []Journey {
	var out []Journey
	for _, mode := range []dataset.MobilityMode{dataset.MobilityBike, dataset.MobilityKickboard, dataset.MobilityEBike} {
		pickup, ok1 := q.nearestVehicle(q.origin, mode)
		dropoff, ok2 := q.nearestVehicle(q.dest, mode)
		if !ok1 || !ok2 || pickup.ID == dropoff.ID {
			continue
		}
		out = append(out, q.mobilityJourney(pickup, dropoff))
	}

	if walkM := q.oracle.RoadDistance(q.origin, q.dest); walkM <= q.pref.MaxWalkDistance {
		walkSec := geo.WalkSeconds(walkM)
		out = append(out, assemble([]routing.Segment{{
			Kind:     routing.SegWalk,
			BoardStop: routing.NoStop, AlightStop: routing.NoStop,
			From: q.origin, To: q.dest,
			StartSec: q.departure, EndSec: q.departure + walkSec,
			Meters: walkM,
		}}, q.departure, q.strat.Name))
	}
	return out
}

func (q *query) nearestVehicle(p geo.Point, mode dataset.MobilityMode) (dataset.MobilityVehicle, bool) {
	hits := q.p.idx.VehiclesWithinRadius(p, q.pref.MaxWalkToStop, mode)
	if len(hits) == 0 {
		return dataset.MobilityVehicle{}, false
	}
	return q.p.data.Vehicles[hits[0].ID], true
}

// mobilityJourney is walk → ride → walk using the mode's tariff.
func (q *query) mobilityJourney(pickup, dropoff dataset.MobilityVehicle) Journey {
	walkInM := q.oracle.RoadDistance(q.origin, pickup.Point())
	rideM := q.oracle.RoadDistance(pickup.Point(), dropoff.Point())
	walkOutM := q.oracle.RoadDistance(dropoff.Point(), q.dest)

	walkInSec := geo.WalkSeconds(walkInM)
	rideSec := geo.RideSeconds(rideM, pickup.Mode.Speed())
	walkOutSec := geo.WalkSeconds(walkOutM)
	cost := q.p.data.Tariffs.RideCost(pickup.Mode, rideSec)

	t0 := q.departure
	segs := []routing.Segment{
		{
			Kind: routing.SegWalk, BoardStop: routing.NoStop, AlightStop: routing.NoStop,
			From: q.origin, To: pickup.Point(),
			StartSec: t0, EndSec: t0 + walkInSec, Meters: walkInM,
		},
		{
			Kind: segKind(pickup.Mode), BoardStop: routing.NoStop, AlightStop: routing.NoStop,
			From: pickup.Point(), To: dropoff.Point(),
			StartSec: t0 + walkInSec, EndSec: t0 + walkInSec + rideSec,
			Meters: rideM, Cost: cost,
		},
		{
			Kind: routing.SegWalk, BoardStop: routing.NoStop, AlightStop: routing.NoStop,
			From: dropoff.Point(), To: q.dest,
			StartSec: t0 + walkInSec + rideSec, EndSec: t0 + walkInSec + rideSec + walkOutSec,
			Meters: walkOutM,
		},
	}
	return assemble(segs, q.departure, q.strat.Name)
}

func segKind(m dataset.MobilityMode) routing.SegmentKind {
	switch m {
	case dataset.MobilityBike:
		return routing.SegBike
	case dataset.MobilityKickboard:
		return routing.SegKickboard
	default:
		return routing.SegEBike
	}
}

// transitCandidates runs Steps 3 and 4: the walk-anchored RAPTOR search and,
// when the strategy leans mobility, a second search over the zone-expanded
// source and target sets.
func (q *query) transitCandidates(ctx context.Context, oz, dz zone.Zone, zoneDist int) ([]Journey, bool) {
	sources := q.accessSources()
	egress := q.egressOptions()
	out, timedOut := q.searchJourneys(ctx, sources, egress)

	if q.strat.MobilityWgt > 0.2 && zoneDist >= 1 {
		sources = append(sources, q.hybridAccessSources(oz)...)
		for stop, opts := range q.hybridEgressOptions(dz) {
			egress[stop] = append(egress[stop], opts...)
		}
		hybrid, hybridTimedOut := q.searchJourneys(ctx, sources, egress)
		out = append(out, hybrid...)
		timedOut = timedOut || hybridTimedOut
	}
	return out, timedOut
}

// searchJourneys runs one RAPTOR search from the sources to the egress stops
// and turns every transit-riding target label into a journey.
func (q *query) searchJourneys(ctx context.Context, sources []routing.Source, egress map[dataset.StopID][]egressOption) ([]Journey, bool) {
	if len(sources) == 0 || len(egress) == 0 {
		return nil, false
	}

	targets := make([]dataset.StopID, 0, len(egress))
	for stop := range egress {
		targets = append(targets, stop)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	res := q.p.eng.Search(ctx, routing.Request{
		Sources:   sources,
		Targets:   targets,
		Departure: q.departure,
		MaxRounds: q.p.maxRounds,
	})

	var out []Journey
	for stop, labels := range res.Labels {
		for _, l := range labels {
			if l.Rounds == 0 {
				continue // no transit ridden; direct candidates cover this
			}
			for _, opt := range egress[stop] {
				segs := append(res.Segments(l), opt.build(l.Arrival)...)
				out = append(out, assemble(segs, q.departure, q.strat.Name))
			}
		}
	}
	return out, res.TimedOut
}

// accessSources anchors every transit stop within walking range of the origin.
func (q *query) accessSources() []routing.Source {
	var sources []routing.Source
	for _, hit := range q.transitStopsNear(q.origin) {
		stop := q.p.data.Stops[hit.ID]
		walkM := q.oracle.RoadDistance(q.origin, stop.Point())
		walkSec := geo.WalkSeconds(walkM)
		sources = append(sources, routing.Source{
			Stop:       stop.ID,
			Arrival:    q.departure + walkSec,
			WalkMeters: walkM,
			Segments: []routing.Segment{{
				Kind: routing.SegWalk, BoardStop: routing.NoStop, AlightStop: stop.ID,
				From: q.origin, To: stop.Point(),
				StartSec: q.departure, EndSec: q.departure + walkSec, Meters: walkM,
			}},
		})
	}
	return sources
}

// egressOption finishes a journey from a target stop to the destination.
type egressOption struct {
	build func(arrival int) []routing.Segment
}

// egressOptions anchors every transit stop within walking range of the
// destination.
func (q *query) egressOptions() map[dataset.StopID][]egressOption {
	opts := make(map[dataset.StopID][]egressOption)
	for _, hit := range q.transitStopsNear(q.dest) {
		stop := q.p.data.Stops[hit.ID]
		walkM := q.oracle.RoadDistance(stop.Point(), q.dest)
		walkSec := geo.WalkSeconds(walkM)
		sp, dp := stop.Point(), q.dest
		sid := stop.ID
		opts[sid] = append(opts[sid], egressOption{
			build: func(arrival int) []routing.Segment {
				return []routing.Segment{{
					Kind: routing.SegWalk, BoardStop: sid, AlightStop: routing.NoStop,
					From: sp, To: dp,
					StartSec: arrival, EndSec: arrival + walkSec, Meters: walkM,
				}}
			},
		})
	}
	return opts
}

func (q *query) transitStopsNear(p geo.Point) []spatial.Hit {
	hits := q.p.idx.StopsWithinRadius(p, q.pref.MaxWalkToStop, "")
	kept := hits[:0]
	for _, h := range hits {
		kind := q.p.data.Stops[h.ID].Kind
		if kind == dataset.StopBus || kind == dataset.StopMetro {
			kept = append(kept, h)
		}
	}
	return kept
}

// hybridAccessSources expands the source set with mobility anchors: vehicles
// within Chebyshev radius 1 of the origin zone, ridden to transit stops in
// their own cell.
func (q *query) hybridAccessSources(oz zone.Zone) []routing.Source {
	var sources []routing.Source
	for _, v := range q.vehiclesNearZone(oz, q.origin) {
		walkM := q.oracle.RoadDistance(q.origin, v.Point())
		walkSec := geo.WalkSeconds(walkM)
		for _, stop := range q.cellTransitStops(v) {
			rideM := q.oracle.RoadDistance(v.Point(), stop.Point())
			rideSec := geo.RideSeconds(rideM, v.Mode.Speed())
			cost := q.p.data.Tariffs.RideCost(v.Mode, rideSec)
			arrive := q.departure + walkSec + rideSec
			sources = append(sources, routing.Source{
				Stop:       stop.ID,
				Arrival:    arrive,
				WalkMeters: walkM,
				Cost:       cost,
				Segments: []routing.Segment{
					{
						Kind: routing.SegWalk, BoardStop: routing.NoStop, AlightStop: routing.NoStop,
						From: q.origin, To: v.Point(),
						StartSec: q.departure, EndSec: q.departure + walkSec, Meters: walkM,
					},
					{
						Kind: segKind(v.Mode), BoardStop: routing.NoStop, AlightStop: stop.ID,
						From: v.Point(), To: stop.Point(),
						StartSec: q.departure + walkSec, EndSec: arrive,
						Meters: rideM, Cost: cost,
					},
				},
			})
		}
	}
	return sources
}

// hybridEgressOptions expands the target set symmetrically: alight, walk to a
// vehicle near the destination zone, ride to the destination.
func (q *query) hybridEgressOptions(dz zone.Zone) map[dataset.StopID][]egressOption {
	opts := make(map[dataset.StopID][]egressOption)
	for _, v := range q.vehiclesNearZone(dz, q.dest) {
		rideM := q.oracle.RoadDistance(v.Point(), q.dest)
		rideSec := geo.RideSeconds(rideM, v.Mode.Speed())
		cost := q.p.data.Tariffs.RideCost(v.Mode, rideSec)
		for _, stop := range q.cellTransitStops(v) {
			walkM := q.oracle.RoadDistance(stop.Point(), v.Point())
			walkSec := geo.WalkSeconds(walkM)
			v, stop := v, stop
			opts[stop.ID] = append(opts[stop.ID], egressOption{
				build: func(arrival int) []routing.Segment {
					return []routing.Segment{
						{
							Kind: routing.SegWalk, BoardStop: stop.ID, AlightStop: routing.NoStop,
							From: stop.Point(), To: v.Point(),
							StartSec: arrival, EndSec: arrival + walkSec, Meters: walkM,
						},
						{
							Kind: segKind(v.Mode), BoardStop: routing.NoStop, AlightStop: routing.NoStop,
							From: v.Point(), To: q.dest,
							StartSec: arrival + walkSec, EndSec: arrival + walkSec + rideSec,
							Meters: rideM, Cost: cost,
						},
					}
				},
			})
		}
	}
	return opts
}

// vehiclesNearZone returns up to hybridVehicleCap vehicles per mode whose
// zone lies within Chebyshev radius 1 of z, ranked by ascending road distance
// from the endpoint.
func (q *query) vehiclesNearZone(z zone.Zone, endpoint geo.Point) []dataset.MobilityVehicle {
	type ranked struct {
		v dataset.MobilityVehicle
		m float64
	}
	perMode := make(map[dataset.MobilityMode][]ranked)
	for _, v := range q.p.data.Vehicles {
		if zone.Distance(q.p.grid.ZoneOf(v.Point()), z) > 1 {
			continue
		}
		perMode[v.Mode] = append(perMode[v.Mode], ranked{v: v, m: q.oracle.RoadDistance(endpoint, v.Point())})
	}
	var out []dataset.MobilityVehicle
	for _, rs := range perMode {
		sort.Slice(rs, func(i, j int) bool { return rs[i].m < rs[j].m })
		if len(rs) > hybridVehicleCap {
			rs = rs[:hybridVehicleCap]
		}
		for _, r := range rs {
			out = append(out, r.v)
		}
	}
	return out
}

// cellTransitStops returns up to hybridStopCap transit stops in the vehicle's
// zone cell, ranked by ascending road distance from the vehicle.
func (q *query) cellTransitStops(v dataset.MobilityVehicle) []dataset.Stop {
	vz := q.p.grid.ZoneOf(v.Point())
	type ranked struct {
		s dataset.Stop
		m float64
	}
	var rs []ranked
	for _, s := range q.p.data.Stops {
		if s.Kind != dataset.StopBus && s.Kind != dataset.StopMetro {
			continue
		}
		if q.p.grid.ZoneOf(s.Point()) != vz {
			continue
		}
		rs = append(rs, ranked{s: s, m: q.oracle.RoadDistance(v.Point(), s.Point())})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].m < rs[j].m })
	if len(rs) > hybridStopCap {
		rs = rs[:hybridStopCap]
	}
	out := make([]dataset.Stop, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.s)
	}
	return out
}
