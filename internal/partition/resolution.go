package partition

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/community"

	"stealthcompany.com/appointment-network/internal/graph"
)

// ResolutionSweep runs Louvain across a range of resolution parameters and
// keeps the candidate scoring the highest standard modularity. Scoring every
// candidate at resolution 1.0 keeps the comparison consistent across the
// sweep; on a tie the earliest resolution wins.
type ResolutionSweep struct {
	Seed        int64
	Resolutions []float64
}

func (r *ResolutionSweep) Name() string { return BackendResolutionSweep }

func (r *ResolutionSweep) Partition(g *graph.Graph) (*Partition, error) {
	resolutions := r.Resolutions
	if len(resolutions) == 0 {
		resolutions = []float64{1.0}
	}

	wg := buildWeighted(g)

	var best *Partition
	for _, resolution := range resolutions {
		src := rand.NewPCG(uint64(r.Seed), uint64(r.Seed))
		communities := community.Modularize(wg, resolution, src).Communities()
		q := community.Q(wg, communities, 1.0)

		if best == nil || q > best.Modularity {
			best = &Partition{
				Algorithm:  BackendResolutionSweep,
				Resolution: resolution,
				Modularity: q,
				Groups:     sortGroups(groupsToIDs(communities, g), g),
			}
		}
	}
	return best, nil
}
