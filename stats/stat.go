// Package stats holds the statistical helpers used by the evaluation
// pipeline ahead of model fitting.
package stats

import (
	"math"
	"sort"
)

// OutlierOptions controls percentile fence based outlier handling of a
// training segment.
type OutlierOptions struct {
	NumPasses       int
	UpperPercentile float64
	LowerPercentile float64
	TukeyFactor     float64
}

func NewOutlierOptions() *OutlierOptions {
	return &OutlierOptions{
		NumPasses:       3,
		UpperPercentile: 0.9,
		LowerPercentile: 0.1,
		TukeyFactor:     1.0,
	}
}

// Fences returns the lower and upper Tukey fences of the series for the given
// percentile pair and fence factor.
func Fences(y []float64, lowerPerc, upperPerc, tukeyFactor float64) (float64, float64) {
	lowerPerc = math.Max(lowerPerc, 0.0)
	upperPerc = math.Min(upperPerc, 1.0)
	tukeyFactor = math.Max(tukeyFactor, 0.0)

	yCopy := make([]float64, 0, len(y))
	for _, v := range y {
		if math.IsNaN(v) {
			continue
		}
		yCopy = append(yCopy, v)
	}
	sort.Float64s(yCopy)

	lowerIdx := int(math.Floor(float64(len(yCopy)) * lowerPerc))
	upperIdx := int(math.Ceil(float64(len(yCopy))*upperPerc)) - 1
	if upperIdx >= len(yCopy) {
		upperIdx = len(yCopy) - 1
	}
	if lowerIdx > upperIdx {
		lowerIdx = upperIdx
	}

	lower := yCopy[lowerIdx]
	upper := yCopy[upperIdx]
	innerRange := upper - lower
	lower -= innerRange * tukeyFactor
	upper += innerRange * tukeyFactor
	return lower, upper
}

// DetectOutliers returns the indexes of values at or beyond the Tukey fences.
func DetectOutliers(y []float64, lowerPerc, upperPerc, tukeyFactor float64) []int {
	lower, upper := Fences(y, lowerPerc, upperPerc, tukeyFactor)

	var outlierIdx []int
	for i := 0; i < len(y); i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		if y[i] >= upper || y[i] <= lower {
			outlierIdx = append(outlierIdx, i)
		}
	}
	return outlierIdx
}

// ClipOutliers winsorizes the series in place, pulling values beyond the
// fences back to the fence. Returns the number of clipped values.
func ClipOutliers(y []float64, lowerPerc, upperPerc, tukeyFactor float64) int {
	lower, upper := Fences(y, lowerPerc, upperPerc, tukeyFactor)

	var clipped int
	for i := 0; i < len(y); i++ {
		switch {
		case math.IsNaN(y[i]):
		case y[i] > upper:
			y[i] = upper
			clipped++
		case y[i] < lower:
			y[i] = lower
			clipped++
		}
	}
	return clipped
}
