package roadnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

func TestFallbackIsDetourScaledHaversine(t *testing.T) {
	a := geo.Point{Lat: 37.4979, Lon: 127.0276}
	b := geo.Point{Lat: 37.5006, Lon: 127.0364}
	got := Fallback{}.RoadDistance(a, b)
	want := 1.3 * geo.HaversineM(a, b)
	if math.Abs(got-want) > 0.01 {
		t.Errorf("RoadDistance = %v, want %v", got, want)
	}
}

type countingOracle struct{ calls int }

func (c *countingOracle) RoadDistance(a, b geo.Point) float64 {
	c.calls++
	return geo.HaversineM(a, b)
}

func TestMemoAmortizesRepeatedCalls(t *testing.T) {
	base := &countingOracle{}
	memo := NewMemo(base, nil)

	a := geo.Point{Lat: 37.4979, Lon: 127.0276}
	b := geo.Point{Lat: 37.5006, Lon: 127.0364}

	first := memo.RoadDistance(a, b)
	second := memo.RoadDistance(a, b)
	reversed := memo.RoadDistance(b, a)

	assert.Equal(t, first, second)
	assert.Equal(t, first, reversed, "pair key must be symmetric")
	assert.Equal(t, 1, base.calls, "base oracle consulted once")
}

func TestMemoQuantizesNearbyPoints(t *testing.T) {
	base := &countingOracle{}
	memo := NewMemo(base, nil)

	a := geo.Point{Lat: 37.4979, Lon: 127.0276}
	b := geo.Point{Lat: 37.5006, Lon: 127.0364}
	// ~1 m perturbation lands in the same ~5 m bucket.
	a2 := geo.Point{Lat: a.Lat + 0.000005, Lon: a.Lon}

	memo.RoadDistance(a, b)
	memo.RoadDistance(a2, b)
	assert.Equal(t, 1, base.calls)
}

type mapL2 struct {
	m    map[pairKey]float64
	gets int
}

func (m *mapL2) Get(k pairKey) (float64, bool) { m.gets++; v, ok := m.m[k]; return v, ok }
func (m *mapL2) Put(k pairKey, v float64)      { m.m[k] = v }

func TestMemoFillsSecondLevel(t *testing.T) {
	base := &countingOracle{}
	l2 := &mapL2{m: make(map[pairKey]float64)}

	a := geo.Point{Lat: 37.4979, Lon: 127.0276}
	b := geo.Point{Lat: 37.5006, Lon: 127.0364}

	q1 := NewMemo(base, l2)
	q1.RoadDistance(a, b)
	assert.Equal(t, 1, base.calls)

	// A second query's memo starts cold but hits the shared level.
	q2 := NewMemo(base, l2)
	q2.RoadDistance(a, b)
	assert.Equal(t, 1, base.calls, "second query must be served by L2")
}
