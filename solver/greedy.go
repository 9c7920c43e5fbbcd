// Package solver assigns objects to placement points.
package solver

import (
	"cmp"
	"slices"

	"github.com/royalcat/geoplace/placement"
)

// Greedy places objects one point at a time, least connected points first,
// choosing the type that contributes most given the neighbours placed so far.
// A type placed next to the same type contributes its rate times
// (1 - penalty).
type Greedy struct {
	penalty float64
}

func NewGreedy(penalty float64) (*Greedy, error) {
	if err := placement.ValidatePenalty(penalty); err != nil {
		return nil, err
	}
	return &Greedy{penalty: penalty}, nil
}

type bucket struct {
	object placement.Object
	left   int
}

// Place returns a copy of network with objects assigned. Previous assignments
// are discarded. The number of objects is not checked against the number of
// points: when objects run out the remaining points stay empty, and surplus
// objects are left unplaced.
func (g *Greedy) Place(network *placement.Network, objects []placement.Object) (*placement.Network, error) {
	result := network.Clone()
	buckets := bucketByType(objects)

	order := result.IDs()
	slices.SortStableFunc(order, func(a, b placement.PointID) int {
		return cmp.Compare(result.Degree(a), result.Degree(b))
	})

	for _, id := range order {
		p, err := result.MustPoint(id)
		if err != nil {
			return nil, err
		}
		p.Object = nil
	}

	for _, id := range order {
		p, _ := result.Point(id)
		neighbours := result.Neighbors(id)

		best := -1
		var bestRate float64
		for i, b := range buckets {
			rate := b.object.IndependentRate
			if hasTypeAmong(result, neighbours, &b.object) {
				rate *= 1 - g.penalty
			}
			if best == -1 || rate > bestRate {
				best, bestRate = i, rate
			}
		}
		if best == -1 {
			break
		}

		obj := buckets[best].object.Clone()
		obj.SetContextRate(bestRate)
		p.Object = obj

		buckets[best].left--
		if buckets[best].left == 0 {
			buckets = slices.Delete(buckets, best, best+1)
		}
	}

	return result, nil
}

// bucketByType counts objects per type name in order of first appearance.
// The first object seen represents its type.
func bucketByType(objects []placement.Object) []bucket {
	buckets := []bucket{}
	index := map[string]int{}
	for _, o := range objects {
		i, ok := index[o.Name]
		if !ok {
			i = len(buckets)
			index[o.Name] = i
			buckets = append(buckets, bucket{object: placement.Object{Name: o.Name, IndependentRate: o.IndependentRate}})
		}
		buckets[i].left++
	}
	return buckets
}

// hasTypeAmong reports whether any of ids already holds an object of obj's type.
// Points not yet processed hold nothing.
func hasTypeAmong(n *placement.Network, ids []placement.PointID, obj *placement.Object) bool {
	for _, id := range ids {
		if p, ok := n.Point(id); ok && p.Object.SameType(obj) {
			return true
		}
	}
	return false
}
