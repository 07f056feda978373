package routing

import (
	"math"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

const (
	// Infinity marks an unreached stop.
	Infinity = math.MaxInt32

	// DefaultMaxRounds bounds the number of transit legs.
	DefaultMaxRounds = 4
)

// SegmentKind tags one leg of a journey.
type SegmentKind string

const (
	SegWalk      SegmentKind = "walk"
	SegBike      SegmentKind = "bike"
	SegKickboard SegmentKind = "kickboard"
	SegEBike     SegmentKind = "ebike"
	SegTransit   SegmentKind = "transit"
)

// NoStop marks a coordinate-anchored segment endpoint.
const NoStop dataset.StopID = -1

// Segment is one leg of a journey. Transit and stop-to-stop walk legs are
// anchored at stops at both ends; mobility, access and egress legs carry
// coordinates, with BoardStop/AlightStop set to the transit stop at an end
// that touches one and NoStop at any other end.
type Segment struct {
	Kind       SegmentKind     `json:"kind"`
	RouteID    dataset.RouteID `json:"route_id,omitempty"`
	Label      string          `json:"label,omitempty"`
	BoardStop  dataset.StopID  `json:"board_stop"`
	AlightStop dataset.StopID  `json:"alight_stop"`
	From       geo.Point       `json:"from"`
	To         geo.Point       `json:"to"`
	StartSec   int             `json:"start_sec"`
	EndSec     int             `json:"end_sec"`
	Meters     float64         `json:"meters"`
	Cost       int             `json:"cost"`
}

// Source is one labeled entry point into the transit graph. Prior segments
// (access walk, mobility ride) are carried through reconstruction.
type Source struct {
	Stop       dataset.StopID
	Arrival    int
	WalkMeters float64
	Cost       int
	Segments   []Segment
}

// Request is one RAPTOR invocation.
type Request struct {
	Sources   []Source
	Targets   []dataset.StopID
	Departure int
	MaxRounds int
}

// Label is one Pareto candidate arrival at a stop. Rounds equals the number
// of transit boardings used.
type Label struct {
	Stop       dataset.StopID `json:"stop"`
	Arrival    int            `json:"arrival"`
	Rounds     int            `json:"rounds"`
	WalkMeters float64        `json:"walk_meters"`
	Cost       int            `json:"cost"`

	at int32 // arena back-pointer
}

// Dominates reports whether l is at least as good as o on every axis and
// strictly better on at least one.
func (l Label) Dominates(o Label) bool {
	if l.Arrival > o.Arrival || l.Rounds > o.Rounds || l.WalkMeters > o.WalkMeters || l.Cost > o.Cost {
		return false
	}
	return l.Arrival < o.Arrival || l.Rounds < o.Rounds || l.WalkMeters < o.WalkMeters || l.Cost < o.Cost
}

// node is one arena entry: a segment plus the index of its predecessor in the
// contiguous back-pointer vector. -1 terminates a chain.
type node struct {
	seg    Segment
	parent int32
}

// Result carries the non-dominated target labels and the arena needed to
// reconstruct their segment chains. Owned by the query that ran the search.
type Result struct {
	Labels   map[dataset.StopID][]Label
	TimedOut bool

	arena []node
}

// Segments reconstructs the ordered leg chain behind a label.
func (r *Result) Segments(l Label) []Segment {
	var rev []Segment
	for at := l.at; at >= 0; at = r.arena[at].parent {
		rev = append(rev, r.arena[at].seg)
	}
	segs := make([]Segment, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		segs = append(segs, rev[i])
	}
	return segs
}
