package retrieval

import (
	"math"
	"sort"

	"github.com/hyperjump/studybuddy/internal/models"
)

// DefaultRRFConstant dampens the contribution of top ranks in reciprocal rank fusion.
const DefaultRRFConstant = 60

// FusedResult holds a chunk with its fused score and the 1-based rank it had in each list (0 = absent).
type FusedResult struct {
	Chunk        models.Chunk
	Score        float64
	SemanticRank int
	KeywordRank  int
}

// FuseRanks merges two rankings by reciprocal rank fusion: score = Σ 1/(c + rank).
// Ties are broken by semantic rank, then keyword rank; chunks absent from the semantic list come last.
func FuseRanks(semantic, keyword []models.Chunk, c int) []*FusedResult {
	byID := make(map[string]*FusedResult, len(semantic)+len(keyword))
	for i, ch := range semantic {
		if _, seen := byID[ch.ID]; seen {
			continue
		}
		byID[ch.ID] = &FusedResult{Chunk: ch, SemanticRank: i + 1, Score: 1 / float64(c+i+1)}
	}
	for i, ch := range keyword {
		res, ok := byID[ch.ID]
		if !ok {
			res = &FusedResult{Chunk: ch}
			byID[ch.ID] = res
		}
		if res.KeywordRank != 0 {
			continue
		}
		res.KeywordRank = i + 1
		res.Score += 1 / float64(c+i+1)
	}

	results := make([]*FusedResult, 0, len(byID))
	for _, res := range byID {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := rankOrLast(a.SemanticRank), rankOrLast(b.SemanticRank); ra != rb {
			return ra < rb
		}
		if ra, rb := rankOrLast(a.KeywordRank), rankOrLast(b.KeywordRank); ra != rb {
			return ra < rb
		}
		return a.Chunk.ID < b.Chunk.ID
	})
	return results
}

// Fuse returns the chunks of FuseRanks in fused order.
func Fuse(semantic, keyword []models.Chunk, c int) []models.Chunk {
	fused := FuseRanks(semantic, keyword, c)
	out := make([]models.Chunk, len(fused))
	for i, f := range fused {
		out[i] = f.Chunk
	}
	return out
}

func rankOrLast(rank int) int {
	if rank == 0 {
		return math.MaxInt
	}
	return rank
}
