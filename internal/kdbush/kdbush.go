// Package kdbush is a static 2-D KD index over points with attached data.
// The tree is built once and never modified, which keeps it compact enough to
// rebuild for every fetched road network.
package kdbush

import (
	"math"
)

// Point is an indexed coordinate. X is longitude and Y latitude when used for
// geographic data.
type Point[T any] struct {
	X, Y float64
	Data T
}

type KDBush[T any] struct {
	NodeSize int
	Points   []Point[T]

	idxs   []int     // point indexes in tree order
	coords []float64 // interleaved x,y in tree order
}

func NewBush[T any](points []Point[T], nodeSize int) *KDBush[T] {
	b := KDBush[T]{}
	b.buildIndex(points, nodeSize)
	return &b
}

func (bush *KDBush[T]) Len() int {
	return len(bush.Points)
}

// Range returns indexes into Points of every item inside the bounding box.
func (bush *KDBush[T]) Range(minX, minY, maxX, maxY float64) []int {
	result := []int{}
	if len(bush.idxs) == 0 {
		return result
	}

	stack := []int{0, len(bush.idxs) - 1, 0}
	var x, y float64

	for len(stack) > 0 {
		axis := stack[len(stack)-1]
		right := stack[len(stack)-2]
		left := stack[len(stack)-3]
		stack = stack[:len(stack)-3]

		if right-left <= bush.NodeSize {
			for i := left; i <= right; i++ {
				x = bush.coords[2*i]
				y = bush.coords[2*i+1]
				if x >= minX && x <= maxX && y >= minY && y <= maxY {
					result = append(result, bush.idxs[i])
				}
			}
			continue
		}

		m := (left + right) / 2

		x = bush.coords[2*m]
		y = bush.coords[2*m+1]

		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			result = append(result, bush.idxs[m])
		}

		nextAxis := (axis + 1) % 2

		if (axis == 0 && minX <= x) || (axis != 0 && minY <= y) {
			stack = append(stack, left, m-1, nextAxis)
		}

		if (axis == 0 && maxX >= x) || (axis != 0 && maxY >= y) {
			stack = append(stack, m+1, right, nextAxis)
		}
	}
	return result
}

// Within calls handler for every point inside the planar radius around
// (qx, qy). Returning false from handler stops the walk.
func (bush *KDBush[T]) Within(qx, qy float64, radius float64, handler func(p Point[T]) bool) {
	if len(bush.idxs) == 0 {
		return
	}

	stack := []int{0, len(bush.idxs) - 1, 0}
	r2 := radius * radius

	for len(stack) > 0 {
		axis := stack[len(stack)-1]
		right := stack[len(stack)-2]
		left := stack[len(stack)-3]
		stack = stack[:len(stack)-3]

		if right-left <= bush.NodeSize {
			for i := left; i <= right; i++ {
				if squaredDist(bush.coords[2*i], bush.coords[2*i+1], qx, qy) <= r2 {
					if !handler(bush.Points[bush.idxs[i]]) {
						return
					}
				}
			}
			continue
		}

		m := (left + right) / 2
		x := bush.coords[2*m]
		y := bush.coords[2*m+1]

		if squaredDist(x, y, qx, qy) <= r2 {
			if !handler(bush.Points[bush.idxs[m]]) {
				return
			}
		}

		nextAxis := (axis + 1) % 2

		if (axis == 0 && (qx-radius <= x)) || (axis != 0 && (qy-radius <= y)) {
			stack = append(stack, left, m-1, nextAxis)
		}

		if (axis == 0 && (qx+radius >= x)) || (axis != 0 && (qy+radius >= y)) {
			stack = append(stack, m+1, right, nextAxis)
		}
	}
}

const nearestStartRadius = 0.0005 // degrees, roughly 50 m

// Nearest finds the point minimizing metric(p) among geographic (lon, lat)
// points. The search radius doubles until something is found, then widens by
// the longitude shrink factor so a closer point just outside the planar circle
// is not missed. maxRadius bounds the search in degrees.
func (bush *KDBush[T]) Nearest(lon, lat, maxRadius float64, metric func(p Point[T]) float64) (Point[T], bool) {
	var best Point[T]
	bestDist := math.Inf(1)
	if len(bush.idxs) == 0 {
		return best, false
	}

	visit := func(p Point[T]) bool {
		if d := metric(p); d < bestDist {
			best, bestDist = p, d
		}
		return true
	}

	for radius := nearestStartRadius; radius <= maxRadius*2; radius *= 2 {
		bush.Within(lon, lat, radius, visit)
		if math.IsInf(bestDist, 1) {
			continue
		}

		shrink := math.Cos(lat * math.Pi / 180)
		if shrink < 0.01 {
			shrink = 0.01
		}
		bush.Within(lon, lat, radius/shrink, visit)
		return best, true
	}

	return best, false
}

func (bush *KDBush[T]) buildIndex(points []Point[T], nodeSize int) {
	bush.NodeSize = nodeSize
	bush.Points = points

	bush.idxs = make([]int, len(points))
	bush.coords = make([]float64, 2*len(points))

	for i, v := range points {
		bush.idxs[i] = i
		bush.coords[i*2] = v.X
		bush.coords[i*2+1] = v.Y
	}

	sortKD(bush.idxs, bush.coords, bush.NodeSize, 0, len(bush.idxs)-1, 0)
}

func sortKD(idxs []int, coords []float64, nodeSize int, left, right, depth int) {
	if (right - left) <= nodeSize {
		return
	}

	m := (left + right) / 2

	floydRivest(idxs, coords, m, left, right, depth%2)

	sortKD(idxs, coords, nodeSize, left, m-1, depth+1)
	sortKD(idxs, coords, nodeSize, m+1, right, depth+1)
}

// floydRivest partially sorts so that the k-th element along axis inc is in
// place with smaller elements on its left.
func floydRivest(idxs []int, coords []float64, k, left, right, inc int) {
	for right > left {
		if (right - left) > 600 {
			n := float64(right - left + 1)
			m := float64(k - left + 1)
			z := math.Log(n)
			s := 0.5 * math.Exp(2.0*z/3.0)
			sd := 0.5 * math.Sqrt(z*s*(n-s)/n)
			if m-n/2.0 < 0 {
				sd = -sd
			}
			newLeft := max(left, int(math.Floor(float64(k)-m*s/n+sd)))
			newRight := min(right, int(math.Floor(float64(k)+(n-m)*s/n+sd)))
			floydRivest(idxs, coords, k, newLeft, newRight, inc)
		}

		t := coords[2*k+inc]
		i := left
		j := right

		swapItem(idxs, coords, left, k)
		if coords[2*right+inc] > t {
			swapItem(idxs, coords, left, right)
		}

		for i < j {
			swapItem(idxs, coords, i, j)
			i++
			j--
			for coords[2*i+inc] < t {
				i++
			}
			for coords[2*j+inc] > t {
				j--
			}
		}

		if coords[2*left+inc] == t {
			swapItem(idxs, coords, left, j)
		} else {
			j++
			swapItem(idxs, coords, j, right)
		}

		if j <= k {
			left = j + 1
		}
		if k <= j {
			right = j - 1
		}
	}
}

func swapItem(idxs []int, coords []float64, i, j int) {
	idxs[i], idxs[j] = idxs[j], idxs[i]
	coords[2*i], coords[2*j] = coords[2*j], coords[2*i]
	coords[2*i+1], coords[2*j+1] = coords[2*j+1], coords[2*i+1]
}

func squaredDist(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return dx*dx + dy*dy
}
