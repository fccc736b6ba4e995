package ingest

import (
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog/log"
)

// Sample returns a uniform subset of at most maxRecords rows. The same seed,
// cap and input always select the identical subset, and the surviving rows
// keep their original input order so downstream first-observed semantics stay
// reproducible. A cap of zero or below disables sampling.
func Sample(rows []RawRecord, maxRecords int, seed int64) []RawRecord {
	if maxRecords <= 0 || len(rows) <= maxRecords {
		log.Info().Int("rows", len(rows)).Msg("Dataset within sampling cap, keeping all rows")
		return rows
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	rng.Shuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})

	idx = idx[:maxRecords]
	sort.Ints(idx)

	sampled := make([]RawRecord, len(idx))
	for i, j := range idx {
		sampled[i] = rows[j]
	}

	log.Info().
		Int("original", len(rows)).
		Int("sampled", len(sampled)).
		Int64("seed", seed).
		Msg("Sampled appointment rows")

	return sampled
}
