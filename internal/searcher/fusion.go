package searcher

import (
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/campaignsearch/internal/storage"
)

// DefaultRRFConstant is the k in 1/(k + rank + 1)
const DefaultRRFConstant = 60.0

// FusedCandidate is one deduplicated item after rank fusion
type FusedCandidate struct {
	ID         uuid.UUID
	Score      float64 // RawScore divided by the best RawScore of the query
	RawScore   float64
	VectorRank int // -1 when the vector channel did not return the item
	TextRank   int // -1 when the keyword channel did not return the item
	Record     *storage.AssetRecord
}

// Fuse merges the two ranked channel lists with Reciprocal Rank Fusion.
//
// Each appearance contributes 1/(k + rank + 1) with rank 0 as the best hit.
// Items are deduplicated by ID and keep the record of the first channel that
// returned them. Scores are normalized so the best candidate scores 1.0.
// Equal scores keep first-encounter order: vector hits, then keyword-only hits.
func Fuse(vector, text []storage.ChannelHit, k float64) []FusedCandidate {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	fused := make([]FusedCandidate, 0, len(vector)+len(text))
	index := make(map[uuid.UUID]int, len(vector)+len(text))

	for rank, hit := range vector {
		if _, seen := index[hit.ID]; seen {
			continue
		}
		index[hit.ID] = len(fused)
		fused = append(fused, FusedCandidate{
			ID:         hit.ID,
			RawScore:   contribution(k, rank),
			VectorRank: rank,
			TextRank:   -1,
			Record:     hit.Record,
		})
	}

	for rank, hit := range text {
		if i, seen := index[hit.ID]; seen {
			if fused[i].TextRank >= 0 {
				continue
			}
			fused[i].TextRank = rank
			fused[i].RawScore += contribution(k, rank)
			if fused[i].Record == nil {
				fused[i].Record = hit.Record
			}
			continue
		}
		index[hit.ID] = len(fused)
		fused = append(fused, FusedCandidate{
			ID:         hit.ID,
			RawScore:   contribution(k, rank),
			VectorRank: -1,
			TextRank:   rank,
			Record:     hit.Record,
		})
	}

	if len(fused) == 0 {
		return fused
	}

	best := 0.0
	for _, c := range fused {
		if c.RawScore > best {
			best = c.RawScore
		}
	}
	for i := range fused {
		fused[i].Score = fused[i].RawScore / best
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}

func contribution(k float64, rank int) float64 {
	return 1.0 / (k + float64(rank) + 1)
}
