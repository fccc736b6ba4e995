package graph

import (
	"math"

	"github.com/rs/zerolog/log"
)

// ApplyBackbone reduces the graph to its significant edges using the
// disparity filter. For a node of degree k with incident weights w_i summing
// to W, the incident edge survives the node's test when (w/W)^(k-1) < alpha.
// Every node with degree above one runs the test independently and an edge
// failing at either endpoint is removed. Nodes are never removed, so the
// filtered graph may contain isolated nodes.
func ApplyBackbone(g *Graph, alpha float64) *Graph {
	adj := g.adjacency()

	remove := make(map[*Edge]bool)
	for _, nodeID := range g.NodeIDs() {
		incident := adj[nodeID]
		if len(incident) <= 1 {
			continue
		}

		total := 0
		for _, e := range incident {
			total += e.Weight
		}
		k := float64(len(incident) - 1)

		for _, e := range incident {
			p := math.Pow(float64(e.Weight)/float64(total), k)
			if p < alpha {
				continue
			}
			remove[e] = true
		}
	}

	if len(remove) == 0 {
		return g
	}

	kept := make([]*Edge, 0, len(g.Edges)-len(remove))
	for _, e := range g.Edges {
		if !remove[e] {
			kept = append(kept, e)
		}
	}

	log.Info().
		Int("edges_before", len(g.Edges)).
		Int("edges_after", len(kept)).
		Float64("alpha", alpha).
		Msg("Applied disparity backbone filter")

	return g.withEdges(kept)
}
