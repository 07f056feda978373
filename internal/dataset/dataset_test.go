package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

func testBox() geo.BoundingBox {
	return geo.BoundingBox{LatMin: 37.46, LatMax: 37.56, LonMin: 126.99, LonMax: 127.15}
}

func linearRoute(id RouteID, stops []StopID, firstDep, hop int, trips int) Route {
	r := Route{ID: id, Mode: ModeBus, Label: "Bus T", Stops: stops}
	for t := 0; t < trips; t++ {
		trip := Trip{ID: int32(t)}
		at := firstDep + t*600
		for range stops {
			trip.StopTimes = append(trip.StopTimes, StopTime{Arrival: at, Departure: at})
			at += hop
		}
		r.Trips = append(r.Trips, trip)
	}
	return r
}

func TestSealBuildsIndexes(t *testing.T) {
	d := &Dataset{
		Stops: []Stop{
			{ID: 0, Name: "A", Lat: 37.50, Lon: 127.02, Kind: StopBus},
			{ID: 1, Name: "B", Lat: 37.51, Lon: 127.03, Kind: StopBus},
			{ID: 2, Name: "C", Lat: 37.52, Lon: 127.04, Kind: StopMetro},
		},
		Routes: []Route{linearRoute(0, []StopID{0, 1, 2}, 8*3600, 120, 3)},
		Box:    testBox(),
	}
	require.NoError(t, d.Validate())
	d.Seal()

	assert.Equal(t, []RouteID{0}, d.RoutesServing(1))
	assert.Equal(t, int32(2), d.StopIndexIn(0, 2))
	assert.Equal(t, int32(-1), d.StopIndexIn(0, StopID(99)))
	assert.Equal(t, 30, d.GridSize)
}

func TestEarliestTripBinarySearch(t *testing.T) {
	d := &Dataset{
		Stops: []Stop{
			{ID: 0, Name: "A", Lat: 37.50, Lon: 127.02},
			{ID: 1, Name: "B", Lat: 37.51, Lon: 127.03},
		},
		Routes: []Route{linearRoute(0, []StopID{0, 1}, 8*3600, 120, 4)},
		Box:    testBox(),
	}
	d.Seal()

	// Departures at stop 0: 28800, 29400, 30000, 30600.
	assert.Equal(t, 0, d.EarliestTrip(0, 0, 0))
	assert.Equal(t, 1, d.EarliestTrip(0, 0, 28801))
	assert.Equal(t, 3, d.EarliestTrip(0, 0, 30600))
	assert.Equal(t, -1, d.EarliestTrip(0, 0, 30601))
}

func TestEarliestTripEmptyRoute(t *testing.T) {
	d := &Dataset{
		Stops: []Stop{
			{ID: 0, Name: "A", Lat: 37.50, Lon: 127.02},
			{ID: 1, Name: "B", Lat: 37.51, Lon: 127.03},
		},
		Routes: []Route{{ID: 0, Mode: ModeBus, Label: "empty", Stops: []StopID{0, 1}}},
		Box:    testBox(),
	}
	d.Seal()
	assert.Equal(t, -1, d.EarliestTrip(0, 0, 0))
}

func TestSplitCircularLoop(t *testing.T) {
	// Loop line A B C D A splits into two acyclic variants.
	stops := []Stop{
		{ID: 0, Name: "A", Lat: 37.50, Lon: 127.02, Kind: StopMetro},
		{ID: 1, Name: "B", Lat: 37.51, Lon: 127.03, Kind: StopMetro},
		{ID: 2, Name: "C", Lat: 37.52, Lon: 127.04, Kind: StopMetro},
		{ID: 3, Name: "D", Lat: 37.53, Lon: 127.05, Kind: StopMetro},
	}
	d := &Dataset{
		Stops:  stops,
		Routes: []Route{linearRoute(0, []StopID{0, 1, 2, 3, 0}, 8*3600, 120, 2)},
		Box:    testBox(),
	}
	d.Seal()

	require.Len(t, d.Routes, 2)
	for _, r := range d.Routes {
		seen := map[StopID]bool{}
		for _, s := range r.Stops {
			assert.False(t, seen[s], "route %d revisits stop %d", r.ID, s)
			seen[s] = true
		}
		for _, tr := range r.Trips {
			assert.Len(t, tr.StopTimes, len(r.Stops))
		}
	}
	assert.Equal(t, "inner", d.Routes[0].Direction)
	assert.Equal(t, "outer", d.Routes[1].Direction)
}

func TestValidateRejectsBadData(t *testing.T) {
	base := func() *Dataset {
		return &Dataset{
			Stops: []Stop{
				{ID: 0, Name: "A", Lat: 37.50, Lon: 127.02},
				{ID: 1, Name: "B", Lat: 37.51, Lon: 127.03},
			},
			Routes: []Route{linearRoute(0, []StopID{0, 1}, 8*3600, 120, 1)},
			Box:    testBox(),
		}
	}

	d := base()
	d.Stops[0].Lat = 38.0
	assert.ErrorContains(t, d.Validate(), "outside bounding box")

	d = base()
	d.Routes[0].Stops[1] = 42
	assert.ErrorContains(t, d.Validate(), "unknown stop")

	d = base()
	d.Routes[0].Trips[0].StopTimes[1].Arrival = 0
	assert.ErrorContains(t, d.Validate(), "times decrease")

	d = base()
	d.Transfers = map[StopID][]Transfer{0: {{ToStop: 1, WalkSeconds: -5}}}
	assert.ErrorContains(t, d.Validate(), "negative transfer")

	// Second trip departs later at the first stop but overtakes at the last.
	d = base()
	d.Routes[0].Trips = append(d.Routes[0].Trips, Trip{ID: 1, StopTimes: []StopTime{
		{Arrival: 28900, Departure: 28900},
		{Arrival: 28910, Departure: 28910},
	}})
	assert.ErrorContains(t, d.Validate(), "overtake")
}

func TestRideCost(t *testing.T) {
	tf := DefaultTariffs()
	assert.Equal(t, 1000, tf.RideCost(MobilityBike, 600))
	// 5 minutes kickboard: 1200 + 5*150.
	assert.Equal(t, 1950, tf.RideCost(MobilityKickboard, 300))
	// 301 s rounds up to 6 minutes.
	assert.Equal(t, 2100, tf.RideCost(MobilityKickboard, 301))
	assert.Equal(t, 1500+2*180, tf.RideCost(MobilityEBike, 120))
}
