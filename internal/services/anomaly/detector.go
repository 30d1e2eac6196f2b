package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"LedgerCast/internal/domain/models"
	"LedgerCast/internal/services/stats"
)

const (
	// DefaultSensitivity is the z-score / sigma threshold applied by every
	// detection strategy unless the caller overrides it.
	DefaultSensitivity = 2.0

	// DefaultMovingAverageWindow is the trailing window for the moving
	// average strategy.
	DefaultMovingAverageWindow = 7

	// MinSeasonalSamples is the minimum number of same-weekday observations
	// needed before the seasonal strategy has a usable baseline.
	MinSeasonalSamples = 4

	// IQR score thresholds and severity tiers.
	iqrFlagScore     = 1.5
	iqrCriticalScore = 3.0
	iqrHighScore     = 2.5
	iqrMediumScore   = 2.0

	// Z-score severity tiers.
	zCritical = 4.0
	zHigh     = 3.0
	zMedium   = 2.5
)

// Detector flags statistically abnormal values against baselines computed
// from history. Detection itself is side-effect free; persistence of
// baselines and events belongs to the caller.
type Detector struct {
	orgID       string
	sensitivity float64
}

// NewDetector creates a detector for one organization. A non-positive
// sensitivity falls back to the default.
func NewDetector(orgID string, sensitivity float64) *Detector {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	return &Detector{orgID: orgID, sensitivity: sensitivity}
}

// Sensitivity returns the configured sigma threshold.
func (d *Detector) Sensitivity() float64 { return d.sensitivity }

// ComputeBaseline derives an immutable statistical snapshot from values.
// Thresholds take the wider of the classical mean±k·σ and quartile±1.5·IQR
// bounds to cut false positives. Empty input returns an all-zero baseline.
func (d *Detector) ComputeBaseline(values []float64) models.StatisticalBaseline {
	if len(values) == 0 {
		return models.StatisticalBaseline{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := stats.Mean(sorted)
	stdDev := stats.StdDev(sorted)
	q1 := stats.PercentileSorted(sorted, 25)
	median := stats.PercentileSorted(sorted, 50)
	q3 := stats.PercentileSorted(sorted, 75)
	iqr := q3 - q1

	upper := math.Max(mean+d.sensitivity*stdDev, q3+1.5*iqr)
	lower := math.Min(mean-d.sensitivity*stdDev, q1-1.5*iqr)

	return models.StatisticalBaseline{
		Mean:           mean,
		StdDev:         stdDev,
		Median:         median,
		Q1:             q1,
		Q3:             q3,
		IQR:            iqr,
		UpperThreshold: upper,
		LowerThreshold: lower,
		SampleSize:     len(sorted),
	}
}

// DetectZScore flags value when its z-score against the baseline meets the
// sensitivity threshold. Returns nil when the value is unremarkable or the
// baseline is empty.
func (d *Detector) DetectZScore(value float64, b models.StatisticalBaseline, metric string) *models.AnomalyResult {
	if b.SampleSize == 0 {
		return nil
	}
	z := stats.ZScore(value, b.Mean, b.StdDev)
	if math.Abs(z) < d.sensitivity {
		return nil
	}

	dir := "above"
	if z < 0 {
		dir = "below"
	}
	res := d.newResult(models.DetectorZScore, metric, z, value, b.Mean)
	res.Severity = zSeverity(math.Abs(z))
	res.Title = fmt.Sprintf("Unusual %s: %s", metric, formatAmount(value))
	res.Description = fmt.Sprintf("%s of %s is %.1f standard deviations %s the typical %s",
		metric, formatAmount(value), math.Abs(z), dir, formatAmount(b.Mean))
	return res
}

// DetectIQR flags value by its distance beyond the quartiles in IQR units.
// Secondary, coarser signal than the z-score test.
func (d *Detector) DetectIQR(value float64, b models.StatisticalBaseline, metric string) *models.AnomalyResult {
	if b.SampleSize == 0 || b.IQR == 0 {
		return nil
	}

	var score float64
	dir := "above"
	switch {
	case value > b.Q3:
		score = (value - b.Q3) / b.IQR
	case value < b.Q1:
		score = (b.Q1 - value) / b.IQR
		dir = "below"
	default:
		return nil
	}
	if score < iqrFlagScore {
		return nil
	}

	res := d.newResult(models.DetectorIQR, metric, score, value, b.Median)
	res.Severity = iqrSeverity(score)
	res.Title = fmt.Sprintf("Outlier %s: %s", metric, formatAmount(value))
	res.Description = fmt.Sprintf("%s of %s is %.1fx the interquartile range %s the normal band (%s to %s)",
		metric, formatAmount(value), score, dir, formatAmount(b.Q1), formatAmount(b.Q3))
	return res
}

// DetectMovingAverage compares current against the trailing-window mean of
// history. Returns nil when history is shorter than the window. The window
// standard deviation is floored at 1 to avoid division blowups on flat
// history.
func (d *Detector) DetectMovingAverage(current float64, history []float64, metric string, window int) *models.AnomalyResult {
	if window <= 0 {
		window = DefaultMovingAverageWindow
	}
	if len(history) < window {
		return nil
	}

	tail := history[len(history)-window:]
	avg := stats.Mean(tail)
	sd := stats.StdDev(tail)
	if sd < 1 {
		sd = 1
	}
	deviation := (current - avg) / sd
	if math.Abs(deviation) < d.sensitivity {
		return nil
	}

	dir := "above"
	if deviation < 0 {
		dir = "below"
	}
	res := d.newResult(models.DetectorMovingAverage, metric, deviation, current, avg)
	res.Severity = zSeverity(math.Abs(deviation))
	res.Title = fmt.Sprintf("%s spike: %s", metric, formatAmount(current))
	res.Description = fmt.Sprintf("%s of %s is %.1f standard deviations %s the %d-period average of %s",
		metric, formatAmount(current), math.Abs(deviation), dir, window, formatAmount(avg))
	res.Context["window"] = window
	return res
}

// DetectSeasonal evaluates current against a baseline built only from the
// same weekday's history. Needs at least MinSeasonalSamples observations for
// that weekday.
func (d *Detector) DetectSeasonal(current float64, historyByWeekday map[time.Weekday][]float64, weekday time.Weekday, metric string) *models.AnomalyResult {
	sameDay := historyByWeekday[weekday]
	if len(sameDay) < MinSeasonalSamples {
		return nil
	}

	b := d.ComputeBaseline(sameDay)
	res := d.DetectZScore(current, b, metric)
	if res == nil {
		return nil
	}
	res.Detector = models.DetectorSeasonal
	res.Title = fmt.Sprintf("Unusual %s for a %s: %s", metric, weekday, formatAmount(current))
	res.Context["weekday"] = weekday.String()
	res.Context["weekday_samples"] = len(sameDay)
	return res
}

func (d *Detector) newResult(detector, metric string, score, observed, expected float64) *models.AnomalyResult {
	return &models.AnomalyResult{
		ID:             uuid.New().String(),
		OrgID:          d.orgID,
		Timestamp:      time.Now().UTC(),
		IsAnomaly:      true,
		DeviationScore: stats.Sanitize(score),
		ObservedValue:  stats.Sanitize(observed),
		ExpectedValue:  stats.Sanitize(expected),
		Detector:       detector,
		MetricName:     metric,
		Context:        make(map[string]any),
	}
}

func zSeverity(absZ float64) string {
	switch {
	case absZ >= zCritical:
		return models.SeverityCritical
	case absZ >= zHigh:
		return models.SeverityHigh
	case absZ >= zMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func iqrSeverity(score float64) string {
	switch {
	case score >= iqrCriticalScore:
		return models.SeverityCritical
	case score >= iqrHighScore:
		return models.SeverityHigh
	case score >= iqrMediumScore:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// formatAmount renders a currency magnitude with $K/$M scaling.
func formatAmount(v float64) string {
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%s$%.1fM", sign, abs/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%s$%.1fK", sign, abs/1_000)
	default:
		return fmt.Sprintf("%s$%.0f", sign, abs)
	}
}
