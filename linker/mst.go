// Package linker connects placement points: a minimum spanning tree over
// resolved distances forms the backbone, optionally densified with the
// shortest remaining pairs.
package linker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/royalcat/geoplace/distance"
	"github.com/royalcat/geoplace/placement"
)

var (
	ErrPairwiseDistance = errors.New("pairwise distance failed")
	ErrInvalidDensity   = errors.New("density must be within [0, 1]")
)

// PairwiseDistanceError reports the pair whose distance could not be resolved.
type PairwiseDistanceError struct {
	U, V placement.PointID
	Err  error
}

func (e *PairwiseDistanceError) Error() string {
	return fmt.Sprintf("distance between %s and %s: %s", e.U, e.V, e.Err)
}

func (e *PairwiseDistanceError) Unwrap() []error {
	return []error{ErrPairwiseDistance, e.Err}
}

type pair struct {
	u, v   placement.PointID
	weight float64
}

// MST builds backbone links from a minimum spanning tree of the complete
// graph weighted by resolved distance.
type MST struct {
	resolver distance.Resolver
	density  *float64
	log      *slog.Logger
}

// NewMST creates a builder. A nil density skips densification.
func NewMST(resolver distance.Resolver, density *float64, log *slog.Logger) (*MST, error) {
	if density != nil && (*density < 0 || *density > 1 || math.IsNaN(*density)) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDensity, *density)
	}
	if log == nil {
		log = slog.Default()
	}
	return &MST{resolver: resolver, density: density, log: log.With("component", "mst")}, nil
}

// BuildLinks returns a copy of network with backbone links added and, when a
// density is set, densification links up to that density. Existing links are
// kept and do not count towards the density target.
func (m *MST) BuildLinks(ctx context.Context, network *placement.Network) (*placement.Network, error) {
	result := network.Clone()
	fixed := result.Size()

	pairs, err := m.resolvePairs(ctx, result)
	if err != nil {
		return nil, err
	}

	// pairs come in (lower id, higher id) order, which breaks weight ties
	slices.SortStableFunc(pairs, func(a, b pair) int {
		return cmp.Compare(a.weight, b.weight)
	})

	backbone := 0
	for _, p := range spanningTree(result.IDs(), pairs) {
		if result.HasLink(p.u, p.v) {
			continue
		}
		if err := result.Link(p.u, p.v, placement.LinkBackbone); err != nil {
			return nil, err
		}
		backbone++
	}

	densified := 0
	if m.density != nil {
		target := EdgesForDensity(result.Order(), *m.density)

		for _, p := range pairs {
			if result.Size()-fixed >= target {
				break
			}
			if result.HasLink(p.u, p.v) {
				continue
			}
			if err := result.Link(p.u, p.v, placement.LinkDensification); err != nil {
				return nil, err
			}
			densified++
		}
	}

	m.log.Debug("built links", "points", result.Order(), "fixed", fixed, "backbone", backbone, "densification", densified)
	return result, nil
}

// spanningTree runs Kruskal over pairs already sorted by weight. Pairs with an
// infinite weight are still taken so disconnected clusters get joined.
func spanningTree(ids []placement.PointID, sorted []pair) []pair {
	parent := make(map[placement.PointID]placement.PointID, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	var find func(placement.PointID) placement.PointID
	find = func(id placement.PointID) placement.PointID {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}

	tree := make([]pair, 0, max(len(ids)-1, 0))
	for _, p := range sorted {
		if len(tree) == len(ids)-1 {
			break
		}
		ru, rv := find(p.u), find(p.v)
		if ru == rv {
			continue
		}
		parent[rv] = ru
		tree = append(tree, p)
	}
	return tree
}

// resolvePairs returns every unordered pair with its distance, ordered by
// (lower id, higher id).
func (m *MST) resolvePairs(ctx context.Context, network *placement.Network) ([]pair, error) {
	ids := network.IDs()
	pairs := make([]pair, 0, len(ids)*(len(ids)-1)/2)

	for i, u := range ids {
		pu, err := network.MustPoint(u)
		if err != nil {
			return nil, err
		}
		for _, v := range ids[i+1:] {
			pv, err := network.MustPoint(v)
			if err != nil {
				return nil, err
			}

			d, err := m.resolver.DistanceInMeters(ctx, distance.At(pu), distance.At(pv))
			if err != nil {
				return nil, &PairwiseDistanceError{U: u, V: v, Err: err}
			}
			if math.IsNaN(d) {
				return nil, &PairwiseDistanceError{U: u, V: v, Err: fmt.Errorf("distance is NaN")}
			}
			pairs = append(pairs, pair{u: u, v: v, weight: d})
		}
	}
	return pairs, nil
}
