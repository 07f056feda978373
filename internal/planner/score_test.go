package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/routing"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/zone"
)

func walkJourney(depart, seconds int, meters float64) Journey {
	return assemble([]routing.Segment{{
		Kind: routing.SegWalk, BoardStop: routing.NoStop, AlightStop: routing.NoStop,
		From: geo.Point{Lat: 37.50, Lon: 127.03}, To: geo.Point{Lat: 37.51, Lon: 127.04},
		StartSec: depart, EndSec: depart + seconds, Meters: meters,
	}}, depart, "balanced")
}

func transitJourney(depart, seconds int, label string, cost int) Journey {
	return assemble([]routing.Segment{{
		Kind: routing.SegTransit, RouteID: 0, Label: label,
		BoardStop: 0, AlightStop: 1,
		From: geo.Point{Lat: 37.50, Lon: 127.03}, To: geo.Point{Lat: 37.51, Lon: 127.04},
		StartSec: depart, EndSec: depart + seconds, Cost: cost,
	}}, depart, "balanced")
}

func TestRankDropsDominated(t *testing.T) {
	strat := zone.StrategyFor(3)
	// Second journey is worse on time and walk, equal elsewhere.
	good := walkJourney(28800, 600, 700)
	bad := walkJourney(28800, 900, 900)

	out := rankJourneys([]Journey{bad, good}, DefaultPreference(), strat)
	require.Len(t, out, 1)
	assert.Equal(t, 600, out[0].TravelSeconds)
}

func TestRankKeepsParetoIncomparable(t *testing.T) {
	strat := zone.StrategyFor(3)
	fastButCostly := transitJourney(28800, 600, "Metro 2", 1370)
	slowButFree := walkJourney(28800, 1200, 400)

	out := rankJourneys([]Journey{fastButCostly, slowButFree}, DefaultPreference(), strat)
	assert.Len(t, out, 2)
}

func TestRankDeduplicatesSameTransitSequence(t *testing.T) {
	strat := zone.StrategyFor(3)
	// a and b are Pareto-incomparable duplicates 20 s apart on the same line;
	// c rides the same line far outside the window.
	a := transitJourney(28800, 600, "Metro 2", 1370)
	b := transitJourney(28800, 620, "Metro 2", 1200)
	c := transitJourney(28800, 900, "Metro 2", 1000)

	out := rankJourneys([]Journey{a, b, c}, DefaultPreference(), strat)
	require.Len(t, out, 2)
	assert.Greater(t, absInt(out[0].TravelSeconds-out[1].TravelSeconds), dedupWindowSec,
		"duplicates within the window must collapse to one")
}

func TestRankSortedAscending(t *testing.T) {
	strat := zone.StrategyFor(3)
	js := []Journey{
		transitJourney(28800, 1800, "Bus 1", 1370),
		walkJourney(28800, 700, 500),
		transitJourney(28800, 650, "Metro 2", 1370),
	}
	out := rankJourneys(js, DefaultPreference(), strat)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i-1].score, out[i].score)
	}
}

func TestMobilityBonusAveragesOverMobilitySegments(t *testing.T) {
	pref := DefaultPreference()
	j := assemble([]routing.Segment{
		{Kind: routing.SegWalk, StartSec: 0, EndSec: 100, Meters: 120},
		{Kind: routing.SegKickboard, StartSec: 100, EndSec: 400, Meters: 1500, Cost: 1950},
	}, 0, "mobility_only")

	assert.InDelta(t, 0.5, mobilityBonus(j, pref), 1e-9)
	assert.Zero(t, mobilityBonus(walkJourney(0, 100, 120), pref))
}

func TestStrategyBonusModalSplit(t *testing.T) {
	strat := zone.Strategy{Name: "balanced", MobilityWgt: 0.5, TransitWgt: 0.5}
	j := assemble([]routing.Segment{
		{Kind: routing.SegKickboard, StartSec: 0, EndSec: 300},
		{Kind: routing.SegTransit, RouteID: 0, Label: "Bus 1", BoardStop: 0, AlightStop: 1, StartSec: 300, EndSec: 900},
	}, 0, "balanced")

	// 300/900 mobility, 600/900 transit.
	want := 0.5*(300.0/900.0) + 0.5*(600.0/900.0)
	assert.InDelta(t, want, strategyBonus(j, strat), 1e-9)
}

func TestAssembleTransferCount(t *testing.T) {
	j := assemble([]routing.Segment{
		{Kind: routing.SegTransit, RouteID: 0, Label: "Bus 1", StartSec: 0, EndSec: 600},
		{Kind: routing.SegWalk, StartSec: 600, EndSec: 700, Meters: 120},
		{Kind: routing.SegTransit, RouteID: 1, Label: "Metro 2", StartSec: 700, EndSec: 1200},
	}, 0, "balanced")
	assert.Equal(t, 1, j.TransferCount)
	assert.Equal(t, 1200, j.TravelSeconds)
	assert.InDelta(t, 120.0, j.WalkMeters, 1e-9)
}

func TestPreferenceValidate(t *testing.T) {
	p := DefaultPreference()
	assert.NoError(t, p.Validate())

	p.TimeWeight = 1.5
	assert.ErrorIs(t, p.Validate(), ErrInvalidPreference)

	p = DefaultPreference()
	p.MobilityPreference["segway"] = 0.5
	assert.ErrorIs(t, p.Validate(), ErrInvalidPreference)
}
