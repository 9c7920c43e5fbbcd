package placement

import (
	"fmt"

	"github.com/paulmach/orb"
)

type PointID int64

func (id PointID) String() string {
	return fmt.Sprintf("point/%d", int64(id))
}

// Object is a typed object placed onto a point. Name is the type key: two
// objects are the same type iff their names match, whatever their rates.
type Object struct {
	Name            string
	IndependentRate float64
	// ContextRate is the contribution after the adjacency penalty. Nil until a
	// scoring pass writes it.
	ContextRate *float64
}

func NewObject(name string, independentRate float64) Object {
	return Object{Name: name, IndependentRate: independentRate}
}

func (o *Object) SameType(other *Object) bool {
	if o == nil || other == nil {
		return false
	}
	return o.Name == other.Name
}

func (o *Object) SetContextRate(rate float64) {
	o.ContextRate = &rate
}

func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.ContextRate != nil {
		rate := *o.ContextRate
		c.ContextRate = &rate
	}
	return &c
}

// Point is a candidate location. Location holds longitude and latitude.
type Point struct {
	ID       PointID
	Location orb.Point
	Altitude *float64
	Object   *Object
}

func NewPoint(id PointID, lon, lat float64) Point {
	return Point{ID: id, Location: orb.Point{lon, lat}}
}

// AltitudeOrZero returns the altitude, treating a missing one as sea level.
func (p *Point) AltitudeOrZero() float64 {
	if p.Altitude == nil {
		return 0
	}
	return *p.Altitude
}

func (p *Point) Clone() *Point {
	c := *p
	if p.Altitude != nil {
		alt := *p.Altitude
		c.Altitude = &alt
	}
	c.Object = p.Object.Clone()
	return &c
}
