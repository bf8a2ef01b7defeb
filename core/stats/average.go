package stats

import (
	"sort"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
)

// PassThreshold is the minimum subject average to pass it.
const PassThreshold = 6.0

type weighted struct {
	value  float64
	weight float64
}

// WeightedAverage returns Σ(normalized × weight) / Σ weight over the grades.
// Grades with a non-positive weight or max value are ignored, ok is false when none remain.
func WeightedAverage(grades []school.GradeRecord) (avg float64, ok bool) {
	pairs := make([]weighted, 0, len(grades))
	for _, g := range grades {
		if g.Weight <= 0 || g.MaxValue <= 0 {
			continue
		}
		pairs = append(pairs, weighted{value: g.Normalized(), weight: g.Weight})
	}
	return weightedMean(pairs)
}

// weightedMean sums in sorted order so the result does not depend on the input order.
func weightedMean(pairs []weighted) (float64, bool) {
	if len(pairs) == 0 {
		return 0, false
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].value != pairs[j].value {
			return pairs[i].value < pairs[j].value
		}
		return pairs[i].weight < pairs[j].weight
	})

	var sum, totalWeight float64
	for _, p := range pairs {
		sum += p.value * p.weight
		totalWeight += p.weight
	}
	if totalWeight == 0 {
		return 0, false
	}
	return sum / totalWeight, true
}

// Mean returns the arithmetic mean of `vals`, 0 when empty.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// Percentage returns part/total × 100 rounded to 2 decimals, 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return core.Round(float64(part)/float64(total)*100, 2)
}
