// Package partition groups the nodes of the patient-site graph into
// communities. Backends are interchangeable behind the Partitioner interface
// and are selected by configuration, optionally in a comparison mode that
// runs several backends and keeps the highest-modularity result. A uniform
// minimum-size filter is applied after whichever backend runs.
package partition

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/config"
	"stealthcompany.com/appointment-network/internal/graph"
)

// ErrUnavailable reports that no partitioning backend could produce a
// result, either because the configured backend does not exist or because
// every backend in a comparison run failed.
var ErrUnavailable = errors.New("partitioning unavailable")

// Supported backend identifiers.
const (
	BackendLouvain          = "louvain"
	BackendLabelPropagation = "label_propagation"
	BackendResolutionSweep  = "resolution_sweep"
)

// Partition is the result of one community detection pass. Groups holds the
// node IDs of each community; members are ordered by graph index and groups
// by their lowest-index member, so identical inputs produce identical output.
type Partition struct {
	Algorithm  string
	Resolution float64
	Modularity float64
	Groups     [][]string
}

// Membership maps every node ID to the index of its group.
func (p *Partition) Membership() map[string]int {
	members := make(map[string]int)
	for i, group := range p.Groups {
		for _, id := range group {
			members[id] = i
		}
	}
	return members
}

// Partitioner assigns every node of the graph to exactly one community.
type Partitioner interface {
	Name() string
	Partition(g *graph.Graph) (*Partition, error)
}

// New returns the backend registered under the given name. Unknown names
// yield an error wrapping ErrUnavailable.
func New(name string, cfg config.PartitionerConfig, seed int64) (Partitioner, error) {
	switch name {
	case BackendLouvain:
		return &Louvain{Seed: seed, Resolution: 1.0}, nil
	case BackendLabelPropagation:
		return &LabelPropagation{Seed: seed, MaxIterations: defaultMaxIterations}, nil
	case BackendResolutionSweep:
		return &ResolutionSweep{Seed: seed, Resolutions: cfg.Resolutions}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, name)
	}
}

// Detect runs community detection as configured and applies the minimum-size
// filter to the winning result.
func Detect(g *graph.Graph, cfg config.AnalysisConfig) (*Partition, error) {
	if g.EdgeCount() == 0 {
		return nil, errors.New("graph has no edges to partition")
	}

	part, err := detectBest(g, cfg.Partitioner, cfg.Sampling.Seed)
	if err != nil {
		return nil, err
	}

	groups, err := ApplyMinSize(part.Groups, cfg.MinCommunitySize)
	if err != nil {
		return nil, fmt.Errorf("failed to filter communities by size: %w", err)
	}
	part.Groups = groups

	log.Info().
		Str("algorithm", part.Algorithm).
		Float64("modularity", part.Modularity).
		Int("communities", len(part.Groups)).
		Msg("Community detection complete")

	return part, nil
}

// detectBest runs the configured backend, or every backend listed for a
// comparison run. Comparison keeps the partition with the highest modularity;
// on a tie the backend listed first wins.
func detectBest(g *graph.Graph, cfg config.PartitionerConfig, seed int64) (*Partition, error) {
	if !cfg.Compare {
		backend, err := New(cfg.Backend, cfg, seed)
		if err != nil {
			return nil, err
		}
		return backend.Partition(g)
	}

	backends := cfg.Backends
	if len(backends) == 0 {
		backends = []string{cfg.Backend}
	}

	var best *Partition
	for _, name := range backends {
		backend, err := New(name, cfg, seed)
		if err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("Skipping unavailable partitioning backend")
			continue
		}

		part, err := backend.Partition(g)
		if err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("Partitioning backend failed")
			continue
		}

		log.Info().
			Str("backend", name).
			Float64("modularity", part.Modularity).
			Int("communities", len(part.Groups)).
			Msg("Evaluated partitioning backend")

		if best == nil || part.Modularity > best.Modularity {
			best = part
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no backend produced a partition", ErrUnavailable)
	}
	return best, nil
}

// nodeIDsByIndex returns every node ID positioned at its graph index.
func nodeIDsByIndex(g *graph.Graph) []string {
	ids := make([]string, g.NodeCount())
	for _, p := range g.Patients {
		ids[p.Index] = p.ID
	}
	for _, s := range g.Sites {
		ids[s.Index] = s.ID
	}
	return ids
}

// indexByID is the inverse of nodeIDsByIndex.
func indexByID(g *graph.Graph) map[string]int64 {
	pos := make(map[string]int64, g.NodeCount())
	for _, p := range g.Patients {
		pos[p.ID] = p.Index
	}
	for _, s := range g.Sites {
		pos[s.ID] = s.Index
	}
	return pos
}

// sortGroups orders members within each group by graph index and groups by
// their lowest-index member. Backends call this before returning so output is
// stable regardless of internal map iteration order.
func sortGroups(groups [][]string, g *graph.Graph) [][]string {
	pos := indexByID(g)
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return pos[group[i]] < pos[group[j]] })
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) == 0 || len(groups[j]) == 0 {
			return len(groups[j]) == 0
		}
		return pos[groups[i][0]] < pos[groups[j][0]]
	})
	return groups
}
