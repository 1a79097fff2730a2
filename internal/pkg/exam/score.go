package exam

import (
	"math"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// dimensions each question type contributes to. Type 4 is a warm-up, it
// scores nothing.
var typeDimensions = map[int][]string{
	1: {"quality"},
	2: {"key", "detail"},
	3: {"structure", "logic"},
	4: {},
	5: {"key", "detail"},
	6: {"key", "detail"},
}

// Aggregate reduces per-slot dimension scores into session-level
// averages and the weighted total. A dimension is averaged only over
// slots whose type contributes to it; with no contributing slot it stays
// exactly 0. Unfinished slots must come in as zero maps, they still
// count toward the divisor.
func Aggregate(scores []map[string]float64, types []int) persistence.ScoreInfo {
	sum := map[string]float64{}
	cnt := map[string]int{}
	for i, qType := range types {
		if i >= len(scores) {
			break
		}
		for _, dim := range typeDimensions[qType] {
			sum[dim] += scores[i][dim]
			cnt[dim]++
		}
	}
	avg := func(dim string) float64 {
		if cnt[dim] == 0 {
			return 0
		}
		return sum[dim] / float64(cnt[dim])
	}
	res := persistence.ScoreInfo{Quality: avg("quality"), Key: avg("key"),
		Detail: avg("detail"), Structure: avg("structure"), Logic: avg("logic")}
	res.Total = round6(res.Quality*0.30 + res.Key*0.35 + res.Detail*0.15 +
		res.Structure*0.10 + res.Logic*0.10)
	return res
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// zeroScore is the documented convention for unfinished or errored slots
func zeroScore() map[string]float64 {
	return map[string]float64{"quality": 0, "key": 0, "detail": 0, "structure": 0, "logic": 0}
}
