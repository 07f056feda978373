// Package zone maps district coordinates onto the uniform N×N planning grid
// and derives the routing strategy from the origin–destination zone distance.
package zone

import (
	"math"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

// Zone is an integer grid cell.
type Zone struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Grid uniformly tiles the bounding box into Size×Size cells.
type Grid struct {
	Box  geo.BoundingBox
	Size int
}

func NewGrid(box geo.BoundingBox, size int) *Grid {
	if size <= 0 {
		size = 30
	}
	return &Grid{Box: box, Size: size}
}

// ZoneOf returns the cell containing p, clamped to the grid.
func (g *Grid) ZoneOf(p geo.Point) Zone {
	dLat := (g.Box.LatMax - g.Box.LatMin) / float64(g.Size)
	dLon := (g.Box.LonMax - g.Box.LonMin) / float64(g.Size)
	i := int(math.Floor((p.Lat - g.Box.LatMin) / dLat))
	j := int(math.Floor((p.Lon - g.Box.LonMin) / dLon))
	return Zone{I: clamp(i, g.Size), J: clamp(j, g.Size)}
}

func clamp(v, size int) int {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}

// Distance is the Chebyshev distance between two zones.
func Distance(a, b Zone) int {
	di := abs(a.I - b.I)
	dj := abs(a.J - b.J)
	if di > dj {
		return di
	}
	return dj
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Neighbors returns the up to (2r+1)² cells within Chebyshev radius r of z,
// including z itself, clipped to the grid.
func (g *Grid) Neighbors(z Zone, radius int) []Zone {
	out := make([]Zone, 0, (2*radius+1)*(2*radius+1))
	for i := z.I - radius; i <= z.I+radius; i++ {
		if i < 0 || i >= g.Size {
			continue
		}
		for j := z.J - radius; j <= z.J+radius; j++ {
			if j < 0 || j >= g.Size {
				continue
			}
			out = append(out, Zone{I: i, J: j})
		}
	}
	return out
}

// Strategy is the (name, weights) tuple derived from zone distance.
type Strategy struct {
	Name        string  `json:"name"`
	MobilityWgt float64 `json:"w_mob"`
	TransitWgt  float64 `json:"w_tr"`
}

var strategyTable = []Strategy{
	{Name: "mobility_only", MobilityWgt: 1.0, TransitWgt: 0.0},
	{Name: "mobility_first", MobilityWgt: 0.8, TransitWgt: 0.2},
	{Name: "mobility_preferred", MobilityWgt: 0.7, TransitWgt: 0.3},
	{Name: "balanced", MobilityWgt: 0.5, TransitWgt: 0.5},
	{Name: "transit_preferred", MobilityWgt: 0.3, TransitWgt: 0.7},
	{Name: "transit_first", MobilityWgt: 0.2, TransitWgt: 0.8},
	{Name: "transit_only", MobilityWgt: 0.1, TransitWgt: 0.9},
}

// StrategyFor looks up the routing strategy for a zone distance.
func StrategyFor(d int) Strategy {
	if d < 0 {
		d = 0
	}
	if d >= len(strategyTable) {
		d = len(strategyTable) - 1
	}
	return strategyTable[d]
}
