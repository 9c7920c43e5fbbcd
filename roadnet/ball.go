package roadnet

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"
)

const ballEpsilon = 1e-12

type circle struct {
	c r2.Vec
	r float64
}

func (c circle) contains(p r2.Vec) bool {
	return r2.Norm(r2.Sub(p, c.c)) <= c.r+ballEpsilon
}

func diameterCircle(a, b r2.Vec) circle {
	return circle{c: r2.Scale(0.5, r2.Add(a, b)), r: r2.Norm(r2.Sub(a, b)) / 2}
}

func circumcircle(a, b, c r2.Vec) circle {
	ab, ac := r2.Sub(b, a), r2.Sub(c, a)
	d := 2 * r2.Cross(ab, ac)
	if math.Abs(d) < ballEpsilon {
		// collinear: the farthest pair spans the circle
		best := diameterCircle(a, b)
		for _, cand := range []circle{diameterCircle(a, c), diameterCircle(b, c)} {
			if cand.r > best.r {
				best = cand
			}
		}
		return best
	}

	abl, acl := r2.Dot(ab, ab), r2.Dot(ac, ac)
	off := r2.Vec{
		X: (ac.Y*abl - ab.Y*acl) / d,
		Y: (ab.X*acl - ac.X*abl) / d,
	}
	return circle{c: r2.Add(a, off), r: r2.Norm(off)}
}

// BoundingBall returns the smallest circle enclosing every point, treating
// coordinates as a plane. The radius is in degrees.
func BoundingBall(points []orb.Point) (orb.Point, float64) {
	if len(points) == 0 {
		return orb.Point{}, 0
	}

	vs := make([]r2.Vec, len(points))
	for i, p := range points {
		vs[i] = r2.Vec{X: p.X(), Y: p.Y()}
	}

	ball := circle{c: vs[0]}
	for i := 1; i < len(vs); i++ {
		if ball.contains(vs[i]) {
			continue
		}
		ball = circle{c: vs[i]}
		for j := 0; j < i; j++ {
			if ball.contains(vs[j]) {
				continue
			}
			ball = diameterCircle(vs[i], vs[j])
			for k := 0; k < j; k++ {
				if !ball.contains(vs[k]) {
					ball = circumcircle(vs[i], vs[j], vs[k])
				}
			}
		}
	}

	return orb.Point{ball.c.X, ball.c.Y}, ball.r
}
