package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
)

func steadySpend(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestComputeBaselineEmpty(t *testing.T) {
	d := NewDetector("org-1", 0)
	b := d.ComputeBaseline(nil)
	assert.Equal(t, 0, b.SampleSize)
	assert.Nil(t, d.DetectZScore(1000, b, "daily_expenses"))
	assert.Nil(t, d.DetectIQR(1000, b, "daily_expenses"))
}

func TestComputeBaselineThresholdsWiden(t *testing.T) {
	d := NewDetector("org-1", 2.0)
	b := d.ComputeBaseline([]float64{90, 95, 100, 100, 105, 110})

	assert.Equal(t, 6, b.SampleSize)
	assert.InDelta(t, 100, b.Mean, 1e-9)
	// Upper threshold takes the wider of mean+2σ and Q3+1.5·IQR.
	assert.GreaterOrEqual(t, b.UpperThreshold, b.Mean+2*b.StdDev)
	assert.GreaterOrEqual(t, b.UpperThreshold, b.Q3+1.5*b.IQR)
	assert.LessOrEqual(t, b.LowerThreshold, b.Mean-2*b.StdDev)
}

func TestDetectZScoreSpike(t *testing.T) {
	d := NewDetector("org-1", 2.0)

	// 13 quiet days around 100 with slight noise, then a 1000 spike.
	history := []float64{98, 101, 99, 100, 102, 97, 100, 103, 99, 100, 101, 98, 102}
	b := d.ComputeBaseline(history)

	res := d.DetectZScore(1000, b, "daily_expenses")
	require.NotNil(t, res)
	assert.True(t, res.IsAnomaly)
	assert.Equal(t, models.DetectorZScore, res.Detector)
	assert.Equal(t, models.SeverityCritical, res.Severity)
	assert.Equal(t, "org-1", res.OrgID)
	assert.Equal(t, 1000.0, res.ObservedValue)
	assert.Greater(t, res.DeviationScore, 4.0)
	assert.NotEmpty(t, res.Title)
	assert.NotEmpty(t, res.Description)
}

func TestDetectZScoreUnremarkable(t *testing.T) {
	d := NewDetector("org-1", 2.0)
	b := d.ComputeBaseline([]float64{98, 101, 99, 100, 102, 97, 100, 103})
	assert.Nil(t, d.DetectZScore(101, b, "daily_expenses"))
}

func TestDetectZScoreFlatBaseline(t *testing.T) {
	// Identical history: stdDev 0 means z-score is defined as 0, so even a
	// huge value must not flag through this strategy.
	d := NewDetector("org-1", 2.0)
	b := d.ComputeBaseline(steadySpend(14, 100))
	assert.Nil(t, d.DetectZScore(1e6, b, "daily_expenses"))
}

func TestSensitivityMonotonic(t *testing.T) {
	history := []float64{90, 95, 100, 100, 105, 110, 98, 102, 97, 103, 99, 101, 100, 100}
	value := 112.0 // roughly 2.7 sigmas above the 100 mean

	strict := NewDetector("org-1", 1.5)
	loose := NewDetector("org-1", 3.5)

	strictHit := strict.DetectZScore(value, strict.ComputeBaseline(history), "daily_expenses")
	looseHit := loose.DetectZScore(value, loose.ComputeBaseline(history), "daily_expenses")

	require.NotNil(t, strictHit)
	assert.Nil(t, looseHit)
}

func TestDetectIQROutlier(t *testing.T) {
	d := NewDetector("org-1", 2.0)
	b := d.ComputeBaseline([]float64{90, 95, 100, 100, 105, 110, 98, 102})

	res := d.DetectIQR(200, b, "daily_expenses")
	require.NotNil(t, res)
	assert.Equal(t, models.DetectorIQR, res.Detector)
	assert.Greater(t, res.DeviationScore, iqrFlagScore)

	// Within the quartile band: nothing.
	assert.Nil(t, d.DetectIQR(100, b, "daily_expenses"))
}

func TestDetectIQRZeroIQR(t *testing.T) {
	d := NewDetector("org-1", 2.0)
	b := d.ComputeBaseline(steadySpend(10, 100))
	require.Equal(t, 0.0, b.IQR)
	assert.Nil(t, d.DetectIQR(1e6, b, "daily_expenses"))
}

func TestDetectMovingAverage(t *testing.T) {
	d := NewDetector("org-1", 2.0)

	history := steadySpend(10, 100)
	res := d.DetectMovingAverage(400, history, "daily_expenses", 7)
	require.NotNil(t, res)
	assert.Equal(t, models.DetectorMovingAverage, res.Detector)
	assert.Equal(t, 7, res.Context["window"])

	// History shorter than the window: no opinion.
	assert.Nil(t, d.DetectMovingAverage(400, steadySpend(3, 100), "daily_expenses", 7))
}

func TestDetectSeasonal(t *testing.T) {
	d := NewDetector("org-1", 2.0)

	byWeekday := map[time.Weekday][]float64{
		time.Monday: {100, 102, 98, 101, 99},
		time.Sunday: {10, 12},
	}

	res := d.DetectSeasonal(300, byWeekday, time.Monday, "daily_expenses")
	require.NotNil(t, res)
	assert.Equal(t, models.DetectorSeasonal, res.Detector)
	assert.Equal(t, "Monday", res.Context["weekday"])
	assert.Equal(t, 5, res.Context["weekday_samples"])

	// Under the sample floor for that weekday.
	assert.Nil(t, d.DetectSeasonal(300, byWeekday, time.Sunday, "daily_expenses"))
}

func TestSeverityTiers(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, zSeverity(4.5))
	assert.Equal(t, models.SeverityHigh, zSeverity(3.2))
	assert.Equal(t, models.SeverityMedium, zSeverity(2.7))
	assert.Equal(t, models.SeverityLow, zSeverity(2.1))

	assert.Equal(t, models.SeverityCritical, iqrSeverity(3.5))
	assert.Equal(t, models.SeverityHigh, iqrSeverity(2.6))
	assert.Equal(t, models.SeverityMedium, iqrSeverity(2.1))
	assert.Equal(t, models.SeverityLow, iqrSeverity(1.7))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$950", formatAmount(950))
	assert.Equal(t, "$1.5K", formatAmount(1500))
	assert.Equal(t, "$2.3M", formatAmount(2_300_000))
	assert.Equal(t, "-$1.5K", formatAmount(-1500))
}
