package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/planner"
)

func testDataset() *dataset.Dataset {
	trips := func(first, hop, every, count, stops int) []dataset.Trip {
		var out []dataset.Trip
		for t := 0; t < count; t++ {
			trip := dataset.Trip{ID: int32(t)}
			at := first + t*every
			for s := 0; s < stops; s++ {
				trip.StopTimes = append(trip.StopTimes, dataset.StopTime{Arrival: at, Departure: at})
				at += hop
			}
			out = append(out, trip)
		}
		return out
	}
	d := &dataset.Dataset{
		Stops: []dataset.Stop{
			{ID: 0, Name: "A", Lat: 37.4950, Lon: 127.0200, Kind: dataset.StopBus},
			{ID: 1, Name: "B", Lat: 37.5050, Lon: 127.0400, Kind: dataset.StopMetro},
		},
		Routes: []dataset.Route{
			{ID: 0, Mode: dataset.ModeBus, Label: "Bus 1", Stops: []dataset.StopID{0, 1}, Trips: trips(28800, 600, 600, 4, 2)},
		},
		Transfers: map[dataset.StopID][]dataset.Transfer{},
		Vehicles: []dataset.MobilityVehicle{
			{ID: "kb-1", Lat: 37.4952, Lon: 127.0202, Mode: dataset.MobilityKickboard},
		},
		Box: geo.BoundingBox{LatMin: 37.46, LatMax: 37.56, LonMin: 126.99, LonMax: 127.15},
	}
	d.Seal()
	return d
}

func newTestHandler() *PlannerHandler {
	d := testDataset()
	log := zap.NewNop()
	return NewPlannerHandler(d, planner.New(d, log), log)
}

func router(h *PlannerHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/plan", h.Plan)
	r.Get("/api/v1/stops", h.Stops)
	r.Get("/api/v1/stops/{id}", h.StopDetails)
	r.Get("/api/v1/routes", h.Routes)
	r.Get("/api/v1/routes/{id}", h.RouteDetails)
	r.Get("/api/v1/vehicles", h.Vehicles)
	return r
}

func TestParseDeparture(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 8*3600 + 30*60, false},
		{"08:30", 8*3600 + 30*60, false},
		{"23:55:10", 23*3600 + 55*60 + 10, false},
		{"28800", 28800, false},
		{"86500", 86500, false}, // past-midnight seconds stay valid
		{"8:99", 0, true},
		{"noon", 0, true},
		{"-5", 0, true},
	}
	for _, tc := range cases {
		got, err := parseDeparture(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestPlanEndpoint(t *testing.T) {
	srv := httptest.NewServer(router(newTestHandler()))
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"from_lat": 37.4949, "from_lon": 127.0201,
		"to_lat": 37.5051, "to_lon": 127.0401,
		"departure": "07:50",
	})
	resp, err := http.Post(srv.URL+"/api/v1/plan", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		PlanID   string `json:"plan_id"`
		Strategy string `json:"strategy"`
		Journeys []struct {
			Journey  planner.Journey        `json:"journey"`
			Geometry map[string]interface{} `json:"geometry"`
		} `json:"journeys"`
		TimedOut bool `json:"timed_out"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.PlanID)
	assert.NotEmpty(t, out.Strategy)
	require.NotEmpty(t, out.Journeys)
	assert.Equal(t, "FeatureCollection", out.Journeys[0].Geometry["type"])
}

func TestPlanEndpointOutOfBounds(t *testing.T) {
	srv := httptest.NewServer(router(newTestHandler()))
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"from_lat": 38.9, "from_lon": 127.0201,
		"to_lat": 37.5051, "to_lon": 127.0401,
	})
	resp, err := http.Post(srv.URL+"/api/v1/plan", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlanEndpointRejectsBadBody(t *testing.T) {
	srv := httptest.NewServer(router(newTestHandler()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/plan", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStopsViewportAndDetails(t *testing.T) {
	srv := httptest.NewServer(router(newTestHandler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stops?min_lat=37.49&min_lon=127.01&max_lat=37.50&max_lon=127.03")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stops []dataset.Stop
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stops))
	require.Len(t, stops, 1)
	assert.Equal(t, "A", stops[0].Name)

	resp2, err := http.Get(srv.URL + "/api/v1/stops/0")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var view struct {
		Stop  dataset.Stop `json:"stop"`
		Lines []string     `json:"lines"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&view))
	assert.Equal(t, []string{"Bus 1"}, view.Lines)

	resp3, err := http.Get(srv.URL + "/api/v1/stops/99")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestRoutesAndVehicles(t *testing.T) {
	srv := httptest.NewServer(router(newTestHandler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/routes/0")
	require.NoError(t, err)
	defer resp.Body.Close()
	var rv struct {
		Label     string         `json:"label"`
		Stops     []dataset.Stop `json:"stops"`
		TripCount int            `json:"trip_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rv))
	assert.Equal(t, "Bus 1", rv.Label)
	assert.Len(t, rv.Stops, 2)
	assert.Equal(t, 4, rv.TripCount)

	resp2, err := http.Get(srv.URL + "/api/v1/vehicles?mode=kickboard")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var vs []dataset.MobilityVehicle
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&vs))
	require.Len(t, vs, 1)
	assert.Equal(t, "kb-1", vs[0].ID)
}
