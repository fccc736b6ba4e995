package partition

import (
	"math/rand/v2"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"stealthcompany.com/appointment-network/internal/graph"
)

// Louvain maximizes weighted modularity through gonum's Louvain
// implementation. The seed fixes the node traversal order so repeated runs
// over the same graph agree.
type Louvain struct {
	Seed       int64
	Resolution float64
}

func (l *Louvain) Name() string { return BackendLouvain }

func (l *Louvain) Partition(g *graph.Graph) (*Partition, error) {
	resolution := l.Resolution
	if resolution <= 0 {
		resolution = 1.0
	}

	wg := buildWeighted(g)
	src := rand.NewPCG(uint64(l.Seed), uint64(l.Seed))
	reduced := community.Modularize(wg, resolution, src)
	communities := reduced.Communities()

	groups := sortGroups(groupsToIDs(communities, g), g)
	return &Partition{
		Algorithm:  BackendLouvain,
		Resolution: resolution,
		Modularity: community.Q(wg, communities, resolution),
		Groups:     groups,
	}, nil
}

// buildWeighted mirrors the bipartite graph as a gonum weighted undirected
// graph keyed by node index.
func buildWeighted(g *graph.Graph) *simple.WeightedUndirectedGraph {
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := int64(0); i < int64(g.NodeCount()); i++ {
		wg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		p := g.Patient(e.PatientID)
		s := g.Site(e.SiteID)
		wg.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(p.Index),
			T: simple.Node(s.Index),
			W: float64(e.Weight),
		})
	}
	return wg
}

// groupsToIDs translates gonum node groupings back to node IDs.
func groupsToIDs(communities [][]gograph.Node, g *graph.Graph) [][]string {
	ids := nodeIDsByIndex(g)
	groups := make([][]string, len(communities))
	for i, comm := range communities {
		group := make([]string, len(comm))
		for j, n := range comm {
			group[j] = ids[n.ID()]
		}
		groups[i] = group
	}
	return groups
}

// modularityOf scores an arbitrary node grouping against the graph at the
// given resolution.
func modularityOf(g *graph.Graph, groups [][]string, resolution float64) float64 {
	wg := buildWeighted(g)
	pos := indexByID(g)
	communities := make([][]gograph.Node, len(groups))
	for i, group := range groups {
		nodes := make([]gograph.Node, len(group))
		for j, id := range group {
			nodes[j] = simple.Node(pos[id])
		}
		communities[i] = nodes
	}
	return community.Q(wg, communities, resolution)
}
