package partition

import "fmt"

// ApplyMinSize dissolves every community smaller than minSize and merges its
// members into the largest surviving community, the first encountered winning
// a size tie. When nothing survives, the dissolved members form one community
// if they meet the minimum on their own; otherwise the partition has failed.
func ApplyMinSize(groups [][]string, minSize int) ([][]string, error) {
	var (
		kept       [][]string
		dissolved  []string
		largest    = -1
		largestLen = 0
	)

	for _, group := range groups {
		if len(group) < minSize {
			dissolved = append(dissolved, group...)
			continue
		}
		if len(group) > largestLen {
			largest = len(kept)
			largestLen = len(group)
		}
		kept = append(kept, group)
	}

	if len(dissolved) == 0 {
		if len(kept) == 0 {
			return nil, fmt.Errorf("no community met the minimum size of %d", minSize)
		}
		return kept, nil
	}

	switch {
	case largest >= 0:
		merged := make([]string, 0, len(kept[largest])+len(dissolved))
		merged = append(merged, kept[largest]...)
		merged = append(merged, dissolved...)
		kept[largest] = merged
	case len(dissolved) >= minSize:
		kept = append(kept, dissolved)
	default:
		return nil, fmt.Errorf("no community met the minimum size of %d", minSize)
	}

	return kept, nil
}
