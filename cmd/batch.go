package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/royalcat/geoplace/efficiency"
	"github.com/royalcat/geoplace/planner"
)

type scoreResult struct {
	Name       string
	Points     int
	Efficiency float64
}

// scoreFiles scores every placed network concurrently. Networks share nothing,
// so each worker gets its own copy from disk.
func scoreFiles(ctx context.Context, penalty float64, files []string, threads int) ([]scoreResult, error) {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	scorer, err := efficiency.NewScorer(penalty)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[scoreResult]().
		WithContext(ctx).
		WithMaxGoroutines(threads)

	for _, name := range files {
		p.Go(func(ctx context.Context) (scoreResult, error) {
			if err := ctx.Err(); err != nil {
				return scoreResult{}, err
			}

			_, network, err := readNetwork(name)
			if err != nil {
				return scoreResult{}, err
			}
			if !planner.ScoreAllowed(network) {
				return scoreResult{}, fmt.Errorf("%s: %w", name, planner.ErrScoreNotAllowed)
			}

			_, total, err := scorer.Score(network)
			if err != nil {
				return scoreResult{}, fmt.Errorf("%s: %w", name, err)
			}
			return scoreResult{Name: name, Points: network.Order(), Efficiency: total}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b scoreResult) int {
		return strings.Compare(a.Name, b.Name)
	})
	return results, nil
}
