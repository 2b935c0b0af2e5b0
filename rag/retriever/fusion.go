package retriever

import (
	"sort"

	"github.com/smallnest/campusrag/rag"
)

const (
	// DefaultRRFK is the Reciprocal Rank Fusion smoothing constant.
	DefaultRRFK = 60
	// DefaultPoolSize bounds the fused candidate list.
	DefaultPoolSize = 24
)

// Fuse merges ranked lists with Reciprocal Rank Fusion. Each hit contributes
// 1/(k+rank+1) with a 0-based rank; a candidate present in several lists sums
// its contributions. Lists are consumed in order, so on equal scores the
// candidate first seen in an earlier list (then at an earlier rank) comes
// first. The result holds at most limit entries.
func Fuse(k, limit int, lists ...[]rag.Candidate) []rag.FusedCandidate {
	if k <= 0 {
		k = DefaultRRFK
	}
	if limit <= 0 {
		limit = DefaultPoolSize
	}

	index := make(map[string]int)
	fused := make([]rag.FusedCandidate, 0)

	for _, list := range lists {
		for _, c := range list {
			contribution := 1.0 / float64(k+c.Rank+1)
			if i, ok := index[c.ID]; ok {
				fused[i].Score += contribution
				continue
			}
			index[c.ID] = len(fused)
			fused = append(fused, rag.FusedCandidate{
				ID:      c.ID,
				Score:   contribution,
				Payload: c.Payload,
			})
		}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
