package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
)

// monthlyHistory builds n months ending in the month before now, with flows
// produced by the generator.
func monthlyHistory(n int, gen func(i int) (inflows, outflows float64)) []models.MonthlyCashFlow {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.MonthlyCashFlow, 0, n)
	for i := 0; i < n; i++ {
		in, outf := gen(i)
		out = append(out, models.MonthlyCashFlow{
			Month:       start.AddDate(0, i, 0),
			Inflows:     in,
			Outflows:    outf,
			NetCashFlow: in - outf,
		})
	}
	return out
}

func steadyHistory(n int) []models.MonthlyCashFlow {
	return monthlyHistory(n, func(i int) (float64, float64) {
		return 50000, 40000
	})
}

func TestTrainInsufficientTransactions(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(12), 20)

	assert.False(t, res.Success)
	assert.Equal(t, "insufficient data", res.Reason)
	assert.Equal(t, 12, res.DataMonths)
	assert.Equal(t, 20, res.TransactionCount)
	assert.Nil(t, res.Model)
}

func TestTrainInsufficientMonths(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(2), 500)

	assert.False(t, res.Success)
	assert.Equal(t, "insufficient data", res.Reason)
	assert.Nil(t, res.Model)
}

func TestTrainSteadyHistory(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(24), 500)

	require.True(t, res.Success)
	require.NotNil(t, res.Model)
	m := res.Model

	assert.Equal(t, "org-1", m.OrgID)
	assert.Equal(t, models.ModelSchemaVersion, m.SchemaVersion)
	assert.Equal(t, 24, m.DataMonths)
	assert.InDelta(t, 50000, m.AvgInflows, 1e-6)
	assert.InDelta(t, 40000, m.AvgOutflows, 1e-6)
	assert.InDelta(t, 10000, m.AvgNet, 1e-6)
	assert.InDelta(t, 0, m.NetStdDev, 1e-6)
	assert.Len(t, m.History, HistoryRetainMonths)
}

func TestTrainHistoryTruncation(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(36), 500)

	require.True(t, res.Success)
	require.Len(t, res.Model.History, HistoryRetainMonths)
	// The retained window is the most recent months.
	last := res.Model.History[len(res.Model.History)-1].Month
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), last)
}

func TestSeasonalIndicesMeanOne(t *testing.T) {
	// December-heavy revenue pattern over two full years.
	history := monthlyHistory(24, func(i int) (float64, float64) {
		in := 50000.0
		if (i+1)%12 == 0 { // history starts in January, so i=11,23 are December
			in = 110000
		}
		return in, 40000
	})

	svc := New()
	res := svc.Train("org-1", history, 500)
	require.True(t, res.Success)

	idx := res.Model.InflowSeasonal
	total := 0.0
	for _, v := range idx {
		total += v
	}
	assert.InDelta(t, 12.0, total, 1e-6)
	// December index must be the peak.
	for i := 0; i < 11; i++ {
		assert.Less(t, idx[i], idx[11])
	}
}

func TestSeasonalIndicesNeedFullYear(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(8), 500)
	require.True(t, res.Success)
	assert.Equal(t, [12]float64{}, res.Model.NetSeasonal)
}

func TestForecastUntrained(t *testing.T) {
	svc := New()
	assert.False(t, svc.Forecast(nil, 12).Available)
	assert.False(t, svc.Forecast(&models.TrainedForecastModel{DataMonths: 3}, 12).Available)
}

func TestForecastIdempotent(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(24), 500)
	require.True(t, res.Success)

	a := svc.Forecast(res.Model, 6)
	b := svc.Forecast(res.Model, 6)

	require.True(t, a.Available)
	require.Len(t, a.Months, 6)
	require.Len(t, b.Months, 6)
	for i := range a.Months {
		assert.Equal(t, a.Months[i].Month, b.Months[i].Month)
		assert.Equal(t, a.Months[i].NetCashFlow, b.Months[i].NetCashFlow)
		assert.Equal(t, a.Months[i].Lower, b.Months[i].Lower)
		assert.Equal(t, a.Months[i].Upper, b.Months[i].Upper)
	}
}

func TestForecastConfidenceIntervalWidens(t *testing.T) {
	// Noisy nets so NetStdDev is non-zero.
	history := monthlyHistory(24, func(i int) (float64, float64) {
		in := 50000.0 + float64(i%5)*2000
		return in, 40000
	})

	svc := New()
	res := svc.Train("org-1", history, 500)
	require.True(t, res.Success)
	require.Greater(t, res.Model.NetStdDev, 0.0)

	snap := svc.Forecast(res.Model, 12)
	require.True(t, snap.Available)
	require.Len(t, snap.Months, 12)

	prev := -1.0
	for _, p := range snap.Months {
		width := p.Upper - p.Lower
		assert.Greater(t, width, prev)
		prev = width
	}
}

func TestForecastMonthsFollowHistory(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(24), 500)
	require.True(t, res.Success)

	snap := svc.Forecast(res.Model, 3)
	require.True(t, snap.Available)
	lastTrained := res.Model.History[len(res.Model.History)-1].Month
	for i, p := range snap.Months {
		assert.Equal(t, lastTrained.AddDate(0, i+1, 0), p.Month)
	}
}

func TestForecastDefaultHorizon(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(24), 500)
	require.True(t, res.Success)
	assert.Len(t, svc.Forecast(res.Model, 0).Months, 12)
}

func TestForecastedMetrics(t *testing.T) {
	// Burning: expenses above revenue every month.
	history := monthlyHistory(24, func(i int) (float64, float64) {
		return 40000, 50000
	})

	svc := New()
	res := svc.Train("org-1", history, 500)
	require.True(t, res.Success)

	m := svc.ForecastedMetrics(res.Model, 12)
	require.True(t, m.Available)
	assert.Greater(t, m.BurnRate, 0.0)
	assert.LessOrEqual(t, m.RunwayMonths, 12)
	assert.Negative(t, m.AvgNetForecast)
}

func TestForecastedMetricsUntrained(t *testing.T) {
	svc := New()
	m := svc.ForecastedMetrics(nil, 12)
	assert.False(t, m.Available)
}

func TestDetectDeviationClassification(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(24), 500)
	require.True(t, res.Success)

	oneAhead := svc.Forecast(res.Model, 1)
	require.True(t, oneAhead.Available)
	forecastNet := oneAhead.Months[0].NetCashFlow
	require.False(t, math.Abs(forecastNet) < 1)

	onTrack := svc.DetectDeviation(res.Model, 50000, 50000-forecastNet*1.02)
	assert.Equal(t, models.DeviationOnTrack, onTrack.Status)

	above := svc.DetectDeviation(res.Model, 50000, 50000-forecastNet*1.3)
	assert.Equal(t, models.DeviationAboveForecast, above.Status)

	significant := svc.DetectDeviation(res.Model, 50000, 50000-forecastNet*3)
	assert.Equal(t, models.DeviationSignificant, significant.Status)

	below := svc.DetectDeviation(res.Model, 50000, 50000-forecastNet*0.7)
	assert.Equal(t, models.DeviationBelowForecast, below.Status)
}

func TestDetectDeviationUntrained(t *testing.T) {
	svc := New()
	rep := svc.DetectDeviation(nil, 1000, 900)
	assert.False(t, rep.Available)
}

func TestHoltWintersFitsLongSeasonalSeries(t *testing.T) {
	history := monthlyHistory(30, func(i int) (float64, float64) {
		in := 50000 + 10000*math.Sin(2*math.Pi*float64(i)/12)
		return in, 40000
	})

	svc := New()
	res := svc.Train("org-1", history, 500)
	require.True(t, res.Success)
	assert.True(t, res.Model.HoltWinters.Fitted)

	for _, si := range res.Model.HoltWinters.Seasonal {
		assert.GreaterOrEqual(t, si, 0.1)
		assert.LessOrEqual(t, si, 10.0)
	}
}

func TestHoltWintersNeedsFullSeason(t *testing.T) {
	svc := New()
	res := svc.Train("org-1", steadyHistory(10), 500)
	require.True(t, res.Success)
	assert.False(t, res.Model.HoltWinters.Fitted)
}
