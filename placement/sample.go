package placement

import (
	"math"
	"math/rand"

	"github.com/fogleman/poissondisc"
	"github.com/paulmach/orb"
)

const (
	metersPerDegreeLat = 110_540.0
	metersPerDegreeLon = 111_320.0
)

// SamplePoints scatters candidate points inside bound so that no two are
// closer than spacingMeters. Sampling runs in a local metric plane around the
// bound center, so spacing holds at any latitude the bound is small enough for.
func SamplePoints(bound orb.Bound, spacingMeters float64, seed int64) []Point {
	if spacingMeters <= 0 || bound.IsEmpty() {
		return nil
	}

	lonScale := metersPerDegreeLon * math.Cos(bound.Center().Lat()*math.Pi/180)
	width := (bound.Max.Lon() - bound.Min.Lon()) * lonScale
	height := (bound.Max.Lat() - bound.Min.Lat()) * metersPerDegreeLat

	rnd := rand.New(rand.NewSource(seed))
	samples := poissondisc.Sample(0, 0, width, height, spacingMeters, 30, rnd)

	points := make([]Point, 0, len(samples))
	for i, s := range samples {
		lon := bound.Min.Lon() + s.X/lonScale
		lat := bound.Min.Lat() + s.Y/metersPerDegreeLat
		points = append(points, NewPoint(PointID(i+1), lon, lat))
	}
	return points
}
