package planner

import (
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/routing"
)

// Journey is one ranked plan result.
type Journey struct {
	Segments      []routing.Segment `json:"segments"`
	TravelSeconds int               `json:"travel_seconds"`
	WalkMeters    float64           `json:"walk_meters"`
	TransferCount int               `json:"transfer_count"`
	Cost          int               `json:"cost"`
	DepartSec     int               `json:"depart_sec"`
	ArriveSec     int               `json:"arrive_sec"`
	Strategy      string            `json:"strategy"`

	score float64
}

// Score exposes the computed rank value (lower is better).
func (j Journey) Score() float64 { return j.score }

// assemble derives journey totals from a segment chain. Transfer count is the
// number of distinct transit routes used minus one, zero without transit.
func assemble(segs []routing.Segment, departure int, strategy string) Journey {
	j := Journey{Segments: segs, DepartSec: departure, ArriveSec: departure, Strategy: strategy}
	routesUsed := make(map[dataset.RouteID]bool)
	for _, s := range segs {
		if s.Kind == routing.SegWalk {
			j.WalkMeters += s.Meters
		}
		if s.Kind == routing.SegTransit {
			routesUsed[s.RouteID] = true
		}
		j.Cost += s.Cost
		if s.EndSec > j.ArriveSec {
			j.ArriveSec = s.EndSec
		}
	}
	if len(routesUsed) > 0 {
		j.TransferCount = len(routesUsed) - 1
	}
	j.TravelSeconds = j.ArriveSec - j.DepartSec
	return j
}

// zeroJourney answers the identical-origin-destination query.
func zeroJourney(p geo.Point, departure int, strategy string) Journey {
	return assemble([]routing.Segment{{
		Kind: routing.SegWalk, BoardStop: routing.NoStop, AlightStop: routing.NoStop,
		From: p, To: p, StartSec: departure, EndSec: departure,
	}}, departure, strategy)
}

// transitFingerprint is the ordered sequence of transit line labels, used for
// deduplication.
func (j Journey) transitFingerprint() string {
	fp := ""
	for _, s := range j.Segments {
		if s.Kind == routing.SegTransit {
			fp += s.Label + "→"
		}
	}
	return fp
}

// mobilitySeconds and transitSeconds split the journey duration by leg class.
func (j Journey) mobilitySeconds() int {
	total := 0
	for _, s := range j.Segments {
		switch s.Kind {
		case routing.SegBike, routing.SegKickboard, routing.SegEBike:
			total += s.EndSec - s.StartSec
		}
	}
	return total
}

func (j Journey) transitSeconds() int {
	total := 0
	for _, s := range j.Segments {
		if s.Kind == routing.SegTransit {
			total += s.EndSec - s.StartSec
		}
	}
	return total
}

// dominates applies the label domination rule to whole journeys.
func (j Journey) dominates(o Journey) bool {
	if j.TravelSeconds > o.TravelSeconds || j.TransferCount > o.TransferCount ||
		j.WalkMeters > o.WalkMeters || j.Cost > o.Cost {
		return false
	}
	return j.TravelSeconds < o.TravelSeconds || j.TransferCount < o.TransferCount ||
		j.WalkMeters < o.WalkMeters || j.Cost < o.Cost
}
