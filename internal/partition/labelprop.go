package partition

import (
	"math/rand/v2"

	"stealthcompany.com/appointment-network/internal/graph"
)

const defaultMaxIterations = 100

// LabelPropagation implements asynchronous weighted label propagation. Every
// node starts under its own label and repeatedly adopts the label carrying
// the most edge weight among its neighbours until no label changes or the
// iteration cap is hit. Node visit order is shuffled each sweep with a seeded
// generator and vote ties go to the lexicographically smallest label, so the
// algorithm is fully deterministic for a given seed.
type LabelPropagation struct {
	Seed          int64
	MaxIterations int
}

func (l *LabelPropagation) Name() string { return BackendLabelPropagation }

func (l *LabelPropagation) Partition(g *graph.Graph) (*Partition, error) {
	ids := nodeIDsByIndex(g)
	adj := neighborLists(g)

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	maxIterations := l.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	rng := rand.New(rand.NewPCG(uint64(l.Seed), uint64(l.Seed)))
	order := make([]string, len(ids))
	copy(order, ids)

	for iter := 0; iter < maxIterations; iter++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		changed := false
		for _, id := range order {
			next := dominantLabel(id, adj[id], labels)
			if next != labels[id] {
				labels[id] = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	groups := sortGroups(groupByLabel(ids, labels), g)
	return &Partition{
		Algorithm:  BackendLabelPropagation,
		Resolution: 1.0,
		Modularity: modularityOf(g, groups, 1.0),
		Groups:     groups,
	}, nil
}

type weightedNeighbor struct {
	id     string
	weight float64
}

func neighborLists(g *graph.Graph) map[string][]weightedNeighbor {
	adj := make(map[string][]weightedNeighbor, g.NodeCount())
	for _, e := range g.Edges {
		w := float64(e.Weight)
		adj[e.PatientID] = append(adj[e.PatientID], weightedNeighbor{id: e.SiteID, weight: w})
		adj[e.SiteID] = append(adj[e.SiteID], weightedNeighbor{id: e.PatientID, weight: w})
	}
	return adj
}

// dominantLabel tallies weighted votes from the node's neighbours. Isolated
// nodes keep their own label.
func dominantLabel(id string, neighbors []weightedNeighbor, labels map[string]string) string {
	if len(neighbors) == 0 {
		return labels[id]
	}

	votes := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		votes[labels[n.id]] += n.weight
	}

	var (
		bestLabel string
		bestVotes float64
	)
	for label, v := range votes {
		switch {
		case v > bestVotes:
			bestLabel, bestVotes = label, v
		case v == bestVotes && (bestLabel == "" || label < bestLabel):
			bestLabel = label
		}
	}
	return bestLabel
}

func groupByLabel(ids []string, labels map[string]string) [][]string {
	byLabel := make(map[string][]string)
	var order []string
	for _, id := range ids {
		label := labels[id]
		if _, seen := byLabel[label]; !seen {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], id)
	}

	groups := make([][]string, 0, len(order))
	for _, label := range order {
		groups = append(groups, byLabel[label])
	}
	return groups
}
