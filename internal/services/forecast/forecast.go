package forecast

import (
	"math"
	"time"

	"LedgerCast/internal/domain/models"
	"LedgerCast/internal/services/stats"
)

const (
	// Blend weights per data-quality tier. Empirical; see named method
	// strings in the snapshot.
	hwWeightHW, hwWeightTrend, hwWeightDamped = 0.5, 0.3, 0.2
	trendWeightTrend, trendWeightDamped       = 0.6, 0.4
	meanWeightDamped, meanWeightAvg           = 0.7, 0.3

	// Damped moving average reverts toward the long-run mean with this
	// per-month factor.
	maDampingFactor = 0.8

	// Confidence interval half-width: netStdDev × ciZ × (1 + ciWiden×h),
	// h zero-based, so uncertainty widens linearly with horizon.
	ciZ     = 1.96
	ciWiden = 0.1

	// Runway heuristic: runway ends at the first month where cumulative
	// forecast cash falls below -runwayReserve × average monthly inflows.
	runwayReserve = 3.0

	// Deviation classification thresholds, in percent.
	deviationOnTrackPct     = 10.0
	deviationSignificantPct = 50.0

	methodHoltWinters   = "holt_winters_blend"
	methodTrend         = "trend_blend"
	methodMeanReversion = "mean_reversion"
)

// Forecast projects the trained model forward. Untrained or nil models
// return Available=false. The artifact is never mutated: calling Forecast
// twice on the same model yields identical output.
func (s *Model) Forecast(m *models.TrainedForecastModel, months int) models.ForecastSnapshot {
	if m == nil || m.DataMonths < MinTrainMonths {
		return models.ForecastSnapshot{Available: false}
	}
	if months <= 0 {
		months = 12
	}

	method := blendMethod(m)
	lastMonth := time.Now().UTC()
	if len(m.History) > 0 {
		lastMonth = m.History[len(m.History)-1].Month
	}

	points := make([]models.ForecastPoint, 0, months)
	for h := 1; h <= months; h++ {
		future := lastMonth.AddDate(0, h, 0)
		mi := int(future.Month()) - 1

		net := s.blendNet(m, method, h, mi)
		inflow := componentProjection(m.InflowTrend, m.AvgInflows, m.InflowSeasonal[mi], m.DataMonths, h)
		outflow := componentProjection(m.OutflowTrend, m.AvgOutflows, m.OutflowSeasonal[mi], m.DataMonths, h)

		// When both component trends are reliable the decomposition beats
		// the blended net figure.
		if m.InflowTrend.RSquared > TrendReliableR2 && m.OutflowTrend.RSquared > TrendReliableR2 {
			net = inflow - outflow
		}

		halfWidth := m.NetStdDev * ciZ * (1 + ciWiden*float64(h-1))
		points = append(points, models.ForecastPoint{
			Month:       time.Date(future.Year(), future.Month(), 1, 0, 0, 0, 0, time.UTC),
			Inflows:     stats.Sanitize(inflow),
			Outflows:    stats.Sanitize(outflow),
			NetCashFlow: stats.Sanitize(net),
			Lower:       stats.Sanitize(net - halfWidth),
			Upper:       stats.Sanitize(net + halfWidth),
		})
	}

	return models.ForecastSnapshot{
		OrgID:       m.OrgID,
		GeneratedAt: time.Now().UTC(),
		Available:   true,
		Method:      method,
		Months:      points,
	}
}

func blendMethod(m *models.TrainedForecastModel) string {
	switch {
	case m.DataMonths >= SeasonalFloorMonths && m.HoltWinters.Fitted:
		return methodHoltWinters
	case m.NetTrend.RSquared > TrendReliableR2:
		return methodTrend
	default:
		return methodMeanReversion
	}
}

// blendNet combines the three candidate estimates for horizon h with the
// weights of the chosen method.
func (s *Model) blendNet(m *models.TrainedForecastModel, method string, h, monthIdx int) float64 {
	hw := holtWintersProjection(m, h, monthIdx)
	ts := trendSeasonal(m.NetTrend, m.NetSeasonal[monthIdx], m.DataMonths, h)
	damped := dampedMA(m.MovingAvg3, m.AvgNet, h)

	switch method {
	case methodHoltWinters:
		return hwWeightHW*hw + hwWeightTrend*ts + hwWeightDamped*damped
	case methodTrend:
		return trendWeightTrend*ts + trendWeightDamped*damped
	default:
		return meanWeightDamped*damped + meanWeightAvg*m.AvgNet
	}
}

func holtWintersProjection(m *models.TrainedForecastModel, h, monthIdx int) float64 {
	if !m.HoltWinters.Fitted {
		return m.AvgNet
	}
	si := m.HoltWinters.Seasonal[monthIdx]
	if si == 0 {
		si = 1
	}
	return (m.HoltWinters.Level + float64(h)*m.HoltWinters.Trend) * si
}

func trendSeasonal(trend models.TrendComponent, seasonalIdx float64, dataMonths, h int) float64 {
	v := trend.Intercept + trend.Slope*float64(dataMonths-1+h)
	if seasonalIdx != 0 {
		v *= seasonalIdx
	}
	return v
}

// componentProjection is the inflow/outflow path: trend×seasonal when the
// trend is reliable, seasonal-scaled average otherwise.
func componentProjection(trend models.TrendComponent, avg, seasonalIdx float64, dataMonths, h int) float64 {
	base := avg
	if trend.RSquared > TrendReliableR2 {
		base = trend.Intercept + trend.Slope*float64(dataMonths-1+h)
	}
	if seasonalIdx != 0 {
		base *= seasonalIdx
	}
	if base < 0 {
		base = 0 // gross flows cannot go negative
	}
	return base
}

func dampedMA(ma3, avg float64, h int) float64 {
	return avg + (ma3-avg)*math.Pow(maDampingFactor, float64(h))
}

// ForecastedMetrics derives burn rate, a heuristic runway, and the seasonal
// peak/trough calendar months.
func (s *Model) ForecastedMetrics(m *models.TrainedForecastModel, months int) models.ForecastedMetrics {
	snap := s.Forecast(m, months)
	if !snap.Available {
		return models.ForecastedMetrics{}
	}

	var burnSum float64
	var burnMonths int
	var netSum, cumulative float64
	runway := len(snap.Months)
	crossed := false
	floor := -runwayReserve * m.AvgInflows

	for i, p := range snap.Months {
		netSum += p.NetCashFlow
		if p.NetCashFlow < 0 {
			burnSum += -p.NetCashFlow
			burnMonths++
		}
		cumulative += p.NetCashFlow
		if !crossed && cumulative < floor {
			runway = i + 1
			crossed = true
		}
	}

	burnRate := 0.0
	if burnMonths > 0 {
		burnRate = burnSum / float64(burnMonths)
	}

	peak, trough := seasonalExtremes(m.NetSeasonal)

	return models.ForecastedMetrics{
		Available:      true,
		BurnRate:       stats.Sanitize(burnRate),
		RunwayMonths:   runway,
		PeakMonth:      peak,
		TroughMonth:    trough,
		AvgNetForecast: stats.Sanitize(netSum / float64(len(snap.Months))),
	}
}

func seasonalExtremes(idx [12]float64) (peak, trough int) {
	all0 := true
	for _, v := range idx {
		if v != 0 {
			all0 = false
			break
		}
	}
	if all0 {
		return 0, 0
	}
	pi, ti := 0, 0
	for i := 1; i < 12; i++ {
		if idx[i] > idx[pi] {
			pi = i
		}
		if idx[i] < idx[ti] {
			ti = i
		}
	}
	return pi + 1, ti + 1
}

// DetectDeviation compares realized flows against the one-month-ahead
// forecast and classifies the gap.
func (s *Model) DetectDeviation(m *models.TrainedForecastModel, actualInflows, actualOutflows float64) models.DeviationReport {
	snap := s.Forecast(m, 1)
	if !snap.Available || len(snap.Months) == 0 {
		return models.DeviationReport{}
	}

	forecastNet := snap.Months[0].NetCashFlow
	actualNet := actualInflows - actualOutflows

	denom := math.Abs(forecastNet)
	if denom < 1 {
		denom = 1
	}
	pct := math.Abs(actualNet-forecastNet) / denom * 100

	status := models.DeviationOnTrack
	switch {
	case pct < deviationOnTrackPct:
		status = models.DeviationOnTrack
	case pct > deviationSignificantPct:
		status = models.DeviationSignificant
	case actualNet > forecastNet:
		status = models.DeviationAboveForecast
	default:
		status = models.DeviationBelowForecast
	}

	return models.DeviationReport{
		Available:       true,
		Status:          status,
		ForecastNet:     stats.Sanitize(forecastNet),
		ActualNet:       stats.Sanitize(actualNet),
		NetDeviationPct: stats.Sanitize(pct),
	}
}
