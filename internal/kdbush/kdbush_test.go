package kdbush_test

import (
	"math"
	"slices"
	"testing"

	"github.com/royalcat/geoplace/internal/kdbush"
)

func gridPoints(n int, step float64) []kdbush.Point[int] {
	points := []kdbush.Point[int]{}
	for i := range n {
		for j := range n {
			points = append(points, kdbush.Point[int]{X: float64(i) * step, Y: float64(j) * step, Data: i*n + j})
		}
	}
	return points
}

func TestRange(t *testing.T) {
	bush := kdbush.NewBush(gridPoints(30, 1), 8)

	got := bush.Range(2.5, 2.5, 4.5, 4.5)
	if len(got) != 4 {
		t.Fatalf("expected 4 points in range, got %d", len(got))
	}
	for _, idx := range got {
		p := bush.Points[idx]
		if p.X < 2.5 || p.X > 4.5 || p.Y < 2.5 || p.Y > 4.5 {
			t.Fatalf("point %v outside the range", p)
		}
	}
}

func TestWithinStops(t *testing.T) {
	bush := kdbush.NewBush(gridPoints(10, 1), 4)

	calls := 0
	bush.Within(5, 5, 3, func(p kdbush.Point[int]) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("expected handler to stop after first point, got %d calls", calls)
	}
}

func TestNearest(t *testing.T) {
	points := gridPoints(50, 0.001)
	bush := kdbush.NewBush(points, 16)

	qx, qy := 0.0213, 0.0178
	metric := func(p kdbush.Point[int]) float64 {
		return math.Hypot(p.X-qx, p.Y-qy)
	}

	got, ok := bush.Nearest(qx, qy, 1, metric)
	if !ok {
		t.Fatal("expected a nearest point")
	}

	want := slices.MinFunc(points, func(a, b kdbush.Point[int]) int {
		da, db := metric(a), metric(b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
	if got.Data != want.Data {
		t.Fatalf("expected point %d, got %d", want.Data, got.Data)
	}
}

func TestNearestEmpty(t *testing.T) {
	bush := kdbush.NewBush[int](nil, 16)
	if _, ok := bush.Nearest(0, 0, 1, func(kdbush.Point[int]) float64 { return 0 }); ok {
		t.Fatal("expected no point in an empty index")
	}
}

func TestNearestOutOfReach(t *testing.T) {
	bush := kdbush.NewBush([]kdbush.Point[int]{{X: 10, Y: 10, Data: 1}}, 16)
	metric := func(p kdbush.Point[int]) float64 { return math.Hypot(p.X, p.Y) }
	if _, ok := bush.Nearest(0, 0, 0.01, metric); ok {
		t.Fatal("expected no point within the search limit")
	}
}
