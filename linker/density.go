package linker

import "math"

// MinimumDensity is the density of a tree over n nodes, the sparsest
// connected graph.
func MinimumDensity(n int) float64 {
	if n > 1 {
		return 2 / float64(n)
	}
	return 0
}

func MinimumEdges(n int) int {
	if n > 1 {
		return n - 1
	}
	return 0
}

// EdgesForDensity is the number of edges a graph of n nodes has at density d,
// rounded half up.
func EdgesForDensity(n int, d float64) int {
	if n <= 1 {
		return 0
	}
	raw := d * float64(n) * float64(n-1) / 2
	return int(math.Floor(raw + 0.5))
}
