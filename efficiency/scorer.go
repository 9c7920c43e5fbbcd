// Package efficiency scores a placement under the adjacent same type penalty.
package efficiency

import "github.com/royalcat/geoplace/placement"

// Scorer computes each placed object's context rate and their total. An object
// with a same type neighbour contributes its rate times (1 - penalty), and so
// does the neighbour.
type Scorer struct {
	penalty float64
}

func NewScorer(penalty float64) (*Scorer, error) {
	if err := placement.ValidatePenalty(penalty); err != nil {
		return nil, err
	}
	return &Scorer{penalty: penalty}, nil
}

// Score returns a copy of network with context rates written and the total
// efficiency. Points without an object are skipped.
func (s *Scorer) Score(network *placement.Network) (*placement.Network, float64, error) {
	result := network.Clone()
	keep := 1 - s.penalty

	pending := map[placement.PointID]bool{}
	ids := result.IDs()
	for _, id := range ids {
		pending[id] = true
	}

	total := 0.0
	for _, id := range ids {
		if !pending[id] {
			continue
		}
		delete(pending, id)

		p, err := result.MustPoint(id)
		if err != nil {
			return nil, 0, err
		}
		if p.Object == nil {
			continue
		}

		sameType := false
		for _, nid := range result.Neighbors(id) {
			np, err := result.MustPoint(nid)
			if err != nil {
				return nil, 0, err
			}
			if np.Object == nil {
				delete(pending, nid)
				continue
			}
			if !np.Object.SameType(p.Object) {
				continue
			}

			sameType = true
			if pending[nid] {
				delete(pending, nid)
				rate := np.Object.IndependentRate * keep
				np.Object.SetContextRate(rate)
				total += rate
			}
		}

		rate := p.Object.IndependentRate
		if sameType {
			rate *= keep
		}
		p.Object.SetContextRate(rate)
		total += rate
	}

	return result, total, nil
}
