// Package spatial provides the static nearest-neighbor index over stops and
// mobility vehicles. A uniform 100 m bucket grid is enough at district scale.
package spatial

import (
	"math"
	"sort"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

// cellMeters is the bucket edge length.
const cellMeters = 100.0

// metersPerDegLat is close enough at Seoul's latitude for bucketing; exact
// distances are always recomputed with haversine.
const metersPerDegLat = 111_320.0

// Hit is one index result, sorted ascending by distance.
type Hit struct {
	ID     int     // stop id or vehicle index, depending on the query
	Meters float64
}

type entry struct {
	p  geo.Point
	id int
}

// Index buckets all stops in one grid (their kinds kept alongside for
// filtering) and mobility vehicles in one grid per mode.
type Index struct {
	lonScale float64 // meters per degree of longitude at the district latitude
	stops    map[cell][]entry
	stopKind []dataset.StopKind
	vehicles map[dataset.MobilityMode]map[cell][]entry
}

type cell struct{ x, y int32 }

// NewIndex builds the index over the sealed dataset.
func NewIndex(d *dataset.Dataset) *Index {
	midLat := (d.Box.LatMin + d.Box.LatMax) / 2
	idx := &Index{
		lonScale: metersPerDegLat * cosDeg(midLat),
		stops:    make(map[cell][]entry),
		stopKind: make([]dataset.StopKind, len(d.Stops)),
		vehicles: make(map[dataset.MobilityMode]map[cell][]entry),
	}
	for _, s := range d.Stops {
		c := idx.cellOf(s.Point())
		idx.stops[c] = append(idx.stops[c], entry{p: s.Point(), id: int(s.ID)})
		idx.stopKind[s.ID] = s.Kind
	}
	for i, v := range d.Vehicles {
		byCell, ok := idx.vehicles[v.Mode]
		if !ok {
			byCell = make(map[cell][]entry)
			idx.vehicles[v.Mode] = byCell
		}
		c := idx.cellOf(v.Point())
		byCell[c] = append(byCell[c], entry{p: v.Point(), id: i})
	}
	return idx
}

func (idx *Index) cellOf(p geo.Point) cell {
	return cell{
		x: int32(p.Lon * idx.lonScale / cellMeters),
		y: int32(p.Lat * metersPerDegLat / cellMeters),
	}
}

// StopsWithinRadius returns stops within r meters of p, optionally filtered to
// a kind (empty = all), sorted by ascending distance.
func (idx *Index) StopsWithinRadius(p geo.Point, r float64, kind dataset.StopKind) []Hit {
	hits := idx.scan(idx.stops, p, r)
	if kind != "" {
		kept := hits[:0]
		for _, h := range hits {
			if idx.stopKind[h.ID] == kind {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	return hits
}

// VehiclesWithinRadius returns mobility vehicles of the mode within r meters
// of p, sorted by ascending distance. IDs index the dataset vehicle slice.
func (idx *Index) VehiclesWithinRadius(p geo.Point, r float64, mode dataset.MobilityMode) []Hit {
	byCell, ok := idx.vehicles[mode]
	if !ok {
		return nil
	}
	return idx.scan(byCell, p, r)
}

func (idx *Index) scan(buckets map[cell][]entry, p geo.Point, r float64) []Hit {
	center := idx.cellOf(p)
	span := int32(r/cellMeters) + 1

	var hits []Hit
	for x := center.x - span; x <= center.x+span; x++ {
		for y := center.y - span; y <= center.y+span; y++ {
			for _, e := range buckets[cell{x, y}] {
				if m := geo.HaversineM(p, e.p); m <= r {
					hits = append(hits, Hit{ID: e.id, Meters: m})
				}
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Meters < hits[j].Meters })
	return hits
}

func cosDeg(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180.0)
}
