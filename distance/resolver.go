// Package distance resolves travel distances between geographic points,
// either as the crow flies or along a routed road network.
package distance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/royalcat/geoplace/placement"
)

var (
	ErrInvalidLocation    = errors.New("invalid location")
	ErrDistanceTooLarge   = errors.New("distance is too large for road routing")
	ErrRoutingFetchFailed = errors.New("road network fetch failed")
)

// Location is a point with an altitude in meters. A missing altitude is zero.
type Location struct {
	Point    orb.Point
	Altitude float64
}

func At(p *placement.Point) Location {
	return Location{Point: p.Location, Altitude: p.AltitudeOrZero()}
}

type Resolver interface {
	DistanceInMeters(ctx context.Context, origin, destination Location) (float64, error)
}

// StraightLine is the great-circle distance composed with the altitude
// difference.
type StraightLine struct{}

var _ Resolver = StraightLine{}

func (StraightLine) DistanceInMeters(_ context.Context, origin, destination Location) (float64, error) {
	if !valid(origin) || !valid(destination) {
		return 0, fmt.Errorf("%w: %v -> %v", ErrInvalidLocation, origin, destination)
	}

	surface := geo.DistanceHaversine(origin.Point, destination.Point)
	return math.Hypot(surface, destination.Altitude-origin.Altitude), nil
}

func valid(l Location) bool {
	if math.IsNaN(l.Altitude) || math.IsInf(l.Altitude, 0) {
		return false
	}
	lon, lat := l.Point.Lon(), l.Point.Lat()
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
