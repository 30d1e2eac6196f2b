package forecast

import (
	"time"

	"LedgerCast/internal/domain/models"
	domsvc "LedgerCast/internal/domain/service"
	"LedgerCast/internal/services/stats"
)

const (
	// MinTrainTransactions and MinTrainMonths are the hard training floors:
	// fewer raw transactions or aggregated months aborts training with
	// success=false.
	MinTrainTransactions = 30
	MinTrainMonths       = 6

	// SeasonalFloorMonths is the minimum history before seasonal indices
	// and the smoothing model are considered meaningful. Heuristic, kept as
	// a named constant.
	SeasonalFloorMonths = 12

	// TrendReliableR2 marks a fitted linear trend as trustworthy enough to
	// drive the blend. Heuristic tuning value.
	TrendReliableR2 = 0.5

	// HistoryRetainMonths bounds the raw series kept inside the artifact.
	HistoryRetainMonths = 24
)

// Model implements the cash-flow forecaster. Stateless: the trained
// artifact is the only state, and it is owned by the caller.
type Model struct{}

// New creates the forecaster service.
func New() *Model { return &Model{} }

var _ domsvc.CashFlowForecaster = (*Model)(nil)

// Train recomputes the full artifact from the monthly history. There is no
// incremental update; a successful run supersedes the previous artifact for
// the organization. Insufficient data returns Success=false, never an error.
func (s *Model) Train(orgID string, history []models.MonthlyCashFlow, txnCount int) models.TrainResult {
	res := models.TrainResult{
		DataMonths:       len(history),
		TransactionCount: txnCount,
	}
	if txnCount < MinTrainTransactions || len(history) < MinTrainMonths {
		res.Reason = "insufficient data"
		return res
	}

	inflows := make([]float64, len(history))
	outflows := make([]float64, len(history))
	nets := make([]float64, len(history))
	for i, m := range history {
		inflows[i] = m.Inflows
		outflows[i] = m.Outflows
		nets[i] = m.NetCashFlow
	}

	m := &models.TrainedForecastModel{
		OrgID:            orgID,
		SchemaVersion:    models.ModelSchemaVersion,
		TrainedAt:        time.Now().UTC(),
		DataMonths:       len(history),
		TransactionCount: txnCount,

		AvgInflows:  stats.Mean(inflows),
		AvgOutflows: stats.Mean(outflows),
		AvgNet:      stats.Mean(nets),

		InflowStdDev:  stats.StdDev(inflows),
		OutflowStdDev: stats.StdDev(outflows),
		NetStdDev:     stats.StdDev(nets),

		InflowTrend:  fitTrend(inflows),
		OutflowTrend: fitTrend(outflows),
		NetTrend:     fitTrend(nets),

		InflowSeasonal:  seasonalIndices(history, inflows),
		OutflowSeasonal: seasonalIndices(history, outflows),
		NetSeasonal:     seasonalIndices(history, nets),

		MovingAvg3: trailingMean(nets, 3),
		MovingAvg6: trailingMean(nets, 6),
	}

	m.HoltWinters = fitHoltWinters(history, nets)

	keep := len(history)
	if keep > HistoryRetainMonths {
		keep = HistoryRetainMonths
	}
	m.History = append([]models.MonthlyCashFlow(nil), history[len(history)-keep:]...)

	res.Success = true
	res.Model = m
	return res
}

func fitTrend(values []float64) models.TrendComponent {
	slope, intercept, r2 := stats.LinearRegression(values)
	return models.TrendComponent{
		Slope:     stats.Sanitize(slope),
		Intercept: stats.Sanitize(intercept),
		RSquared:  stats.Sanitize(r2),
	}
}

// seasonalIndices computes, per calendar month, the ratio of that month's
// historical average to the overall average, normalized to mean 1 across
// the twelve months. Without a full year of history all indices stay 0.
func seasonalIndices(history []models.MonthlyCashFlow, values []float64) [12]float64 {
	var idx [12]float64
	if len(history) < SeasonalFloorMonths {
		return idx
	}

	overall := stats.Mean(values)
	if overall == 0 {
		return idx
	}

	var sums, counts [12]float64
	for i, m := range history {
		mi := int(m.Month.Month()) - 1
		sums[mi] += values[i]
		counts[mi]++
	}
	for i := range idx {
		if counts[i] == 0 {
			idx[i] = 1
			continue
		}
		idx[i] = stats.Sanitize((sums[i] / counts[i]) / overall)
	}

	// Renormalize so the indices average to exactly 1.
	total := 0.0
	for _, v := range idx {
		total += v
	}
	if total == 0 {
		return [12]float64{}
	}
	scale := 12 / total
	for i := range idx {
		idx[i] = stats.Sanitize(idx[i] * scale)
	}
	return idx
}

func trailingMean(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < window {
		window = len(values)
	}
	return stats.Mean(values[len(values)-window:])
}
