// RAPTOR core: multi-round earliest-arrival search over scheduled routes and
// foot transfers, from a labeled source set to a target set.
package routing

import (
	"context"
	"math"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

// Engine runs RAPTOR searches against a sealed dataset. Safe for concurrent
// use; all mutable search state is per call.
type Engine struct {
	data *dataset.Dataset
}

func NewEngine(d *dataset.Dataset) *Engine {
	return &Engine{data: d}
}

// search owns the per-query label arrays and back-pointer arena.
type search struct {
	data *dataset.Dataset
	k    int

	tau  [][]int     // tau[k][stop]: earliest arrival with k boardings
	walk [][]float64 // walk meters carried alongside
	cost [][]int
	ptr  [][]int32 // arena back-pointer per label

	arena    []node
	isTarget []bool
	bound    int // min over targets of best arrival so far
}

func (s *search) push(seg Segment, parent int32) int32 {
	s.arena = append(s.arena, node{seg: seg, parent: parent})
	return int32(len(s.arena) - 1)
}

// Search runs up to MaxRounds RAPTOR rounds. The context deadline is checked
// at round boundaries and at the top of each route scan; on expiry the
// best-so-far labels are returned with TimedOut set.
func (e *Engine) Search(ctx context.Context, req Request) *Result {
	d := e.data
	n := len(d.Stops)
	K := req.MaxRounds
	if K <= 0 {
		K = DefaultMaxRounds
	}

	st := &search{
		data:     d,
		tau:      make([][]int, K+1),
		walk:     make([][]float64, K+1),
		cost:     make([][]int, K+1),
		ptr:      make([][]int32, K+1),
		isTarget: make([]bool, n),
		bound:    Infinity,
	}
	for k := 0; k <= K; k++ {
		st.tau[k] = make([]int, n)
		st.walk[k] = make([]float64, n)
		st.cost[k] = make([]int, n)
		st.ptr[k] = make([]int32, n)
		for i := 0; i < n; i++ {
			st.tau[k][i] = Infinity
			st.ptr[k][i] = -1
		}
	}
	for _, t := range req.Targets {
		st.isTarget[t] = true
	}

	marked := bitset.New(uint(n))
	for _, src := range req.Sources {
		if src.Arrival >= st.tau[0][src.Stop] {
			continue
		}
		at := int32(-1)
		for _, seg := range src.Segments {
			at = st.push(seg, at)
		}
		st.tau[0][src.Stop] = src.Arrival
		st.walk[0][src.Stop] = src.WalkMeters
		st.cost[0][src.Stop] = src.Cost
		st.ptr[0][src.Stop] = at
		marked.Set(uint(src.Stop))
		if st.isTarget[src.Stop] && src.Arrival < st.bound {
			st.bound = src.Arrival
		}
	}

	deadline, hasDeadline := ctx.Deadline()
	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return hasDeadline && !time.Now().Before(deadline)
	}

	timedOut := false
rounds:
	for k := 1; k <= K; k++ {
		if expired() {
			timedOut = true
			break
		}
		st.k = k
		copy(st.tau[k], st.tau[k-1])
		copy(st.walk[k], st.walk[k-1])
		copy(st.cost[k], st.cost[k-1])
		copy(st.ptr[k], st.ptr[k-1])

		// Accumulate routes serving last round's improved stops, each keyed
		// by the earliest marked position in its sequence.
		scanFrom := make(map[dataset.RouteID]int32)
		for s, ok := marked.NextSet(0); ok; s, ok = marked.NextSet(s + 1) {
			sid := dataset.StopID(s)
			for _, rid := range d.RoutesServing(sid) {
				pos := d.StopIndexIn(rid, sid)
				if cur, seen := scanFrom[rid]; !seen || pos < cur {
					scanFrom[rid] = pos
				}
			}
		}

		routeMarked := bitset.New(uint(n))
		for rid, p0 := range scanFrom {
			if expired() {
				timedOut = true
				break rounds
			}
			st.scanRoute(rid, p0, routeMarked)
		}

		// Transfer relaxation: only from stops the route scan improved, and
		// results mark for the next round, never chaining within this one.
		transferMarked := bitset.New(uint(n))
		for s, ok := routeMarked.NextSet(0); ok; s, ok = routeMarked.NextSet(s + 1) {
			sid := dataset.StopID(s)
			for _, tr := range d.Transfers[sid] {
				arr := st.tau[k][sid] + tr.WalkSeconds
				if arr >= st.tau[k][tr.ToStop] || arr >= st.bound {
					continue
				}
				meters := float64(tr.WalkSeconds) * geo.WalkSpeed
				seg := Segment{
					Kind:       SegWalk,
					BoardStop:  sid,
					AlightStop: tr.ToStop,
					From:       d.Stops[sid].Point(),
					To:         d.Stops[tr.ToStop].Point(),
					StartSec:   st.tau[k][sid],
					EndSec:     arr,
					Meters:     meters,
				}
				st.tau[k][tr.ToStop] = arr
				st.walk[k][tr.ToStop] = st.walk[k][sid] + meters
				st.cost[k][tr.ToStop] = st.cost[k][sid]
				st.ptr[k][tr.ToStop] = st.push(seg, st.ptr[k][sid])
				transferMarked.Set(uint(tr.ToStop))
				if st.isTarget[tr.ToStop] && arr < st.bound {
					st.bound = arr
				}
			}
		}

		marked = routeMarked.Union(transferMarked)
		if marked.Count() == 0 {
			break
		}
	}

	return st.collect(req.Targets, K, timedOut)
}

// scanRoute walks one route from position p0, riding the earliest feasible
// trip and relaxing arrivals. Boarding always departs from a previous-round
// label, so a label created on an earlier occurrence of a repeated stop can
// never re-board within the same round.
func (s *search) scanRoute(rid dataset.RouteID, p0 int32, routeMarked *bitset.BitSet) {
	d := s.data
	route := &d.Routes[rid]
	k := s.k

	curTrip := -1
	var boardPos int32
	var boardStop dataset.StopID

	for p := p0; p < int32(len(route.Stops)); p++ {
		sid := route.Stops[p]

		if curTrip >= 0 && p > boardPos {
			arr := route.Trips[curTrip].StopTimes[p].Arrival
			if arr < s.tau[k][sid] && arr < s.bound {
				fare := s.fare(boardStop, sid)
				seg := Segment{
					Kind:       SegTransit,
					RouteID:    rid,
					Label:      route.Label,
					BoardStop:  boardStop,
					AlightStop: sid,
					From:       d.Stops[boardStop].Point(),
					To:         d.Stops[sid].Point(),
					StartSec:   route.Trips[curTrip].StopTimes[boardPos].Departure,
					EndSec:     arr,
					Cost:       fare,
				}
				s.tau[k][sid] = arr
				s.walk[k][sid] = s.walk[k-1][boardStop]
				s.cost[k][sid] = s.cost[k-1][boardStop] + fare
				s.ptr[k][sid] = s.push(seg, s.ptr[k-1][boardStop])
				routeMarked.Set(uint(sid))
				if s.isTarget[sid] && arr < s.bound {
					s.bound = arr
				}
			}
		}

		// Re-seek when the previous-round arrival here can catch an earlier
		// trip than the one currently ridden.
		prev := s.tau[k-1][sid]
		if prev < Infinity && prev < s.bound {
			if t := d.EarliestTrip(rid, p, prev); t >= 0 && (curTrip < 0 || t < curTrip) {
				curTrip = t
				boardPos = p
				boardStop = sid
			}
		}
	}
}

// fare prices one transit leg: the flat base fare on the first boarding, the
// per-km hybrid surcharge on boardings after the first transfer.
func (s *search) fare(board, alight dataset.StopID) int {
	if s.k == 1 {
		return s.data.Tariffs.TransitFlat
	}
	km := geo.HaversineM(s.data.Stops[board].Point(), s.data.Stops[alight].Point()) / 1000.0
	return s.data.Tariffs.HybridPerKm * int(math.Ceil(km))
}

// collect gathers the dominance-free label set per target across rounds.
func (s *search) collect(targets []dataset.StopID, K int, timedOut bool) *Result {
	res := &Result{
		Labels:   make(map[dataset.StopID][]Label),
		TimedOut: timedOut,
		arena:    s.arena,
	}
	for _, t := range targets {
		var cands []Label
		for k := 0; k <= K; k++ {
			if s.tau[k][t] >= Infinity {
				continue
			}
			if k > 0 && s.tau[k][t] == s.tau[k-1][t] {
				continue // carried copy, not a k-round improvement
			}
			cands = append(cands, Label{
				Stop:       t,
				Arrival:    s.tau[k][t],
				Rounds:     k,
				WalkMeters: s.walk[k][t],
				Cost:       s.cost[k][t],
				at:         s.ptr[k][t],
			})
		}
		kept := make([]Label, 0, len(cands))
		for i, c := range cands {
			dominated := false
			for j, o := range cands {
				if i != j && (o.Dominates(c) || (j < i && o == c)) {
					dominated = true
					break
				}
			}
			if !dominated {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			res.Labels[t] = kept
		}
	}
	return res
}
