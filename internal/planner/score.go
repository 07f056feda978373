package planner

import (
	"math"
	"sort"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/routing"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/zone"
)

// Scoring constants.
const (
	alpha = 1.0
	beta  = 0.2
	gamma = 0.3
)

// rankJourneys scores the candidate set, drops dominated and duplicate
// journeys, and returns the rest sorted by ascending score.
func rankJourneys(cands []Journey, pref Preference, strat zone.Strategy) []Journey {
	if len(cands) == 0 {
		return nil
	}

	var maxTime, maxTransfers, maxWalk, maxCost float64
	for _, j := range cands {
		maxTime = math.Max(maxTime, float64(j.TravelSeconds))
		maxTransfers = math.Max(maxTransfers, float64(j.TransferCount))
		maxWalk = math.Max(maxWalk, j.WalkMeters)
		maxCost = math.Max(maxCost, float64(j.Cost))
	}
	norm := func(x, max float64) float64 {
		if max <= 0 {
			return 0
		}
		return math.Min(x/max, 1.0)
	}

	wTime, wTransfer, wWalk, wCost := pref.normalized()
	for i := range cands {
		j := &cands[i]
		score := alpha*wTime*norm(float64(j.TravelSeconds), maxTime) +
			alpha*wTransfer*norm(float64(j.TransferCount), maxTransfers) +
			alpha*wWalk*norm(j.WalkMeters, maxWalk) +
			alpha*wCost*norm(float64(j.Cost), maxCost)
		score -= beta * mobilityBonus(*j, pref)
		score -= gamma * strategyBonus(*j, strat)
		j.score = score
	}

	// Drop dominated journeys.
	kept := make([]Journey, 0, len(cands))
	for i, j := range cands {
		dominated := false
		for k, o := range cands {
			if i == k {
				continue
			}
			if o.dominates(j) {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, j)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score < kept[j].score })

	// Deduplicate: same ordered transit labels within the time window keeps
	// only the better-scored journey.
	var out []Journey
	for _, j := range kept {
		dup := false
		for _, o := range out {
			if j.transitFingerprint() == o.transitFingerprint() &&
				absInt(j.TravelSeconds-o.TravelSeconds) <= dedupWindowSec {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, j)
		}
	}
	return out
}

// mobilityBonus averages the user's preference over the journey's mobility
// segments; zero when the journey has none.
func mobilityBonus(j Journey, pref Preference) float64 {
	sum, count := 0.0, 0
	for _, s := range j.Segments {
		var mode dataset.MobilityMode
		switch s.Kind {
		case routing.SegBike:
			mode = dataset.MobilityBike
		case routing.SegKickboard:
			mode = dataset.MobilityKickboard
		case routing.SegEBike:
			mode = dataset.MobilityEBike
		default:
			continue
		}
		sum += pref.MobilityPreference[mode]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// strategyBonus rewards journeys whose modal split matches the strategy.
func strategyBonus(j Journey, strat zone.Strategy) float64 {
	if j.TravelSeconds <= 0 {
		return 0
	}
	total := float64(j.TravelSeconds)
	return strat.MobilityWgt*(float64(j.mobilitySeconds())/total) +
		strat.TransitWgt*(float64(j.transitSeconds())/total)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
