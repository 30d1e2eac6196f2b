package models

import "time"

// Severity levels for flagged anomalies, ordered from least to most severe.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Detector names identify which strategy flagged an anomaly.
const (
	DetectorZScore        = "zscore"
	DetectorIQR           = "iqr"
	DetectorMovingAverage = "moving_average"
	DetectorSeasonal      = "seasonal"
)

// StatisticalBaseline is an immutable snapshot computed from a finite sample.
// A SampleSize of 0 means no data: consumers must short-circuit to neutral
// output rather than divide by anything in here.
type StatisticalBaseline struct {
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	Median         float64 `json:"median"`
	Q1             float64 `json:"q1"`
	Q3             float64 `json:"q3"`
	IQR            float64 `json:"iqr"`
	UpperThreshold float64 `json:"upper_threshold"`
	LowerThreshold float64 `json:"lower_threshold"`
	SampleSize     int     `json:"sample_size"`
}

// AnomalyResult is produced per evaluated (value, baseline) pair. It is
// transient here; persistence belongs to the anomaly store.
type AnomalyResult struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"org_id"`
	Timestamp      time.Time      `json:"timestamp"`
	IsAnomaly      bool           `json:"is_anomaly"`
	Severity       string         `json:"severity"`
	DeviationScore float64        `json:"deviation_score"`
	ObservedValue  float64        `json:"observed_value"`
	ExpectedValue  float64        `json:"expected_value"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Detector       string         `json:"detector"`
	MetricName     string         `json:"metric_name"`
	Context        map[string]any `json:"context,omitempty"`
}

// SeverityRank orders severities for comparison and suppression. Unknown
// severities rank below low.
func SeverityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
