package forecast

import (
	"math"

	"LedgerCast/internal/domain/models"
	"LedgerCast/internal/services/stats"
)

const (
	seasonLength = 12

	// Seasonal multipliers are clamped after every update and renormalized
	// to mean 1 every seasonLength steps to stop drift.
	seasonalClampMin = 0.1
	seasonalClampMax = 10.0

	// Grid search ranges for the smoothing parameters. One-step-ahead
	// squared forecast error on the net cash flow series is minimized.
	alphaMin, alphaMax, alphaStep = 0.1, 0.9, 0.2
	betaMin, betaMax, betaStep    = 0.05, 0.3, 0.05
	gammaMin, gammaMax, gammaStep = 0.05, 0.3, 0.05
)

// fitHoltWinters grid-searches the smoothing parameters over the net cash
// flow series and returns the fitted end state. Series shorter than a full
// season plus one point cannot seed the seasonal component; Fitted stays
// false and the blend falls back to trend or mean reversion.
func fitHoltWinters(history []models.MonthlyCashFlow, nets []float64) models.HoltWintersState {
	if len(nets) <= seasonLength {
		return models.HoltWintersState{}
	}

	best := models.HoltWintersState{}
	bestSSE := math.Inf(1)

	for alpha := alphaMin; alpha <= alphaMax+1e-9; alpha += alphaStep {
		for beta := betaMin; beta <= betaMax+1e-9; beta += betaStep {
			for gamma := gammaMin; gamma <= gammaMax+1e-9; gamma += gammaStep {
				state, sse := runSmoothing(history, nets, alpha, beta, gamma)
				if sse < bestSSE {
					bestSSE = sse
					best = state
				}
			}
		}
	}
	return best
}

// runSmoothing plays the triple-smoothing recurrence through the series and
// returns the end state plus the one-step-ahead SSE. Additive trend,
// multiplicative seasonality; every ratio is guarded so a zero level or
// seasonal never produces NaN/Inf.
func runSmoothing(history []models.MonthlyCashFlow, nets []float64, alpha, beta, gamma float64) (models.HoltWintersState, float64) {
	level, trend, seasonal := initState(history, nets)

	sse := 0.0
	for t := seasonLength; t < len(nets); t++ {
		mi := int(history[t].Month.Month()) - 1
		si := seasonal[mi]
		if si == 0 {
			si = 1
		}

		predicted := (level + trend) * si
		err := nets[t] - predicted
		sse += err * err

		deseasoned := nets[t] / si
		newLevel := alpha*deseasoned + (1-alpha)*(level+trend)
		newTrend := beta*(newLevel-level) + (1-beta)*trend
		if newLevel != 0 {
			seasonal[mi] = stats.Clamp(gamma*(nets[t]/newLevel)+(1-gamma)*seasonal[mi], seasonalClampMin, seasonalClampMax)
		}
		level, trend = newLevel, newTrend

		if (t-seasonLength+1)%seasonLength == 0 {
			renormalizeSeasonal(&seasonal)
		}
	}

	state := models.HoltWintersState{
		Level:    stats.Sanitize(level),
		Trend:    stats.Sanitize(trend),
		Seasonal: seasonal,
		Alpha:    alpha,
		Beta:     beta,
		Gamma:    gamma,
		Fitted:   true,
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		sse = math.Inf(1)
		state.Fitted = false
	}
	return state, sse
}

// initState seeds level from the first season's mean, trend from the
// season-over-season average step, and seasonal multipliers from the first
// season's ratios to its mean.
func initState(history []models.MonthlyCashFlow, nets []float64) (float64, float64, [12]float64) {
	level := stats.Mean(nets[:seasonLength])
	trend := 0.0
	if len(nets) >= 2*seasonLength {
		second := stats.Mean(nets[seasonLength : 2*seasonLength])
		trend = (second - level) / seasonLength
	} else {
		rest := stats.Mean(nets[seasonLength:])
		trend = (rest - level) / float64(len(nets)-seasonLength)
	}

	var seasonal [12]float64
	for i := range seasonal {
		seasonal[i] = 1
	}
	if level != 0 {
		for t := 0; t < seasonLength; t++ {
			mi := int(history[t].Month.Month()) - 1
			seasonal[mi] = stats.Clamp(nets[t]/level, seasonalClampMin, seasonalClampMax)
		}
		renormalizeSeasonal(&seasonal)
	}
	return level, trend, seasonal
}

func renormalizeSeasonal(seasonal *[12]float64) {
	total := 0.0
	for _, v := range seasonal {
		total += v
	}
	if total == 0 {
		return
	}
	scale := seasonLength / total
	for i := range seasonal {
		seasonal[i] = stats.Clamp(seasonal[i]*scale, seasonalClampMin, seasonalClampMax)
	}
}
