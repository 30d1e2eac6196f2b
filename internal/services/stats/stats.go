package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation (divide by N, not N-1).
// Returns 0 for an empty slice.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sum2 := 0.0
	for _, v := range values {
		d := v - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(values)))
}

// Percentile returns the p-th percentile (p in [0,100]) using linear
// interpolation between ranks. The input need not be sorted.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, p)
}

// PercentileSorted is Percentile over an already ascending slice.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median returns the 50th percentile.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// ZScore returns (value-mean)/stdDev, defined as 0 when stdDev is 0 so a
// degenerate baseline never produces NaN or Inf.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// LinearRegression fits y = slope*x + intercept over implicit x = 0..n-1 and
// returns slope, intercept, and R² from the population variance
// decomposition. n < 2 returns slope 0, intercept = first value (or 0), R² 0.
func LinearRegression(values []float64) (slope, intercept, r2 float64) {
	n := float64(len(values))
	if len(values) < 2 {
		if len(values) == 1 {
			return 0, values[0], 0
		}
		return 0, 0, 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, values[0], 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range values {
		pred := slope*float64(i) + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	r2 = 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return slope, intercept, r2
}

// MovingAverage returns the trailing simple moving average with the given
// window. If the series is shorter than the window, the input is returned
// unchanged (no padding).
func MovingAverage(series []float64, window int) []float64 {
	if window <= 0 || len(series) < window {
		return series
	}
	out := make([]float64, 0, len(series)-window+1)
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sanitize maps NaN and ±Inf to 0 so degenerate arithmetic never escapes
// into a result structure.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
