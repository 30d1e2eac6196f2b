package models

import "time"

// ModelSchemaVersion tags persisted model artifacts so callers can detect
// and ignore stale shapes after an upgrade.
const ModelSchemaVersion = "1.0.0"

// Deviation classifications returned by forecast-vs-actual comparison.
const (
	DeviationOnTrack       = "on_track"
	DeviationAboveForecast = "above_forecast"
	DeviationBelowForecast = "below_forecast"
	DeviationSignificant   = "significant_deviation"
)

// TrendComponent is a fitted linear trend over the monthly series.
type TrendComponent struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// HoltWintersState is the fitted exponential-smoothing state for the net
// cash flow series. Seasonal multipliers are kept clamped to [0.1, 10].
type HoltWintersState struct {
	Level    float64     `json:"level"`
	Trend    float64     `json:"trend"`
	Seasonal [12]float64 `json:"seasonal"`
	Alpha    float64     `json:"alpha"`
	Beta     float64     `json:"beta"`
	Gamma    float64     `json:"gamma"`
	Fitted   bool        `json:"fitted"`
}

// TrainedForecastModel is the durable per-organization artifact. It is
// replaced wholesale on retrain, never patched incrementally.
type TrainedForecastModel struct {
	OrgID            string    `json:"org_id"`
	SchemaVersion    string    `json:"schema_version"`
	TrainedAt        time.Time `json:"trained_at"`
	DataMonths       int       `json:"data_months"`
	TransactionCount int       `json:"transaction_count"`

	AvgInflows  float64 `json:"avg_inflows"`
	AvgOutflows float64 `json:"avg_outflows"`
	AvgNet      float64 `json:"avg_net"`

	InflowStdDev  float64 `json:"inflow_std_dev"`
	OutflowStdDev float64 `json:"outflow_std_dev"`
	NetStdDev     float64 `json:"net_std_dev"`

	InflowTrend  TrendComponent `json:"inflow_trend"`
	OutflowTrend TrendComponent `json:"outflow_trend"`
	NetTrend     TrendComponent `json:"net_trend"`

	// Seasonal indices per calendar month (January at index 0): ratio of
	// that month's historical average to the overall average, 0 when no
	// full-year history exists yet.
	InflowSeasonal  [12]float64 `json:"inflow_seasonal"`
	OutflowSeasonal [12]float64 `json:"outflow_seasonal"`
	NetSeasonal     [12]float64 `json:"net_seasonal"`

	HoltWinters HoltWintersState `json:"holt_winters"`

	MovingAvg3 float64 `json:"moving_avg_3"`
	MovingAvg6 float64 `json:"moving_avg_6"`

	// History keeps the raw monthly series the model was trained on.
	History []MonthlyCashFlow `json:"history"`
}

// TrainResult reports a training attempt. Insufficient data is an expected
// steady state, so it surfaces as Success=false rather than an error.
type TrainResult struct {
	Success          bool                  `json:"success"`
	Reason           string                `json:"reason,omitempty"`
	DataMonths       int                   `json:"data_months"`
	TransactionCount int                   `json:"transaction_count"`
	Model            *TrainedForecastModel `json:"model,omitempty"`
}

// ForecastPoint is one projected future month with its confidence interval.
type ForecastPoint struct {
	Month       time.Time `json:"month"`
	Inflows     float64   `json:"inflows"`
	Outflows    float64   `json:"outflows"`
	NetCashFlow float64   `json:"net_cash_flow"`
	Lower       float64   `json:"lower"`
	Upper       float64   `json:"upper"`
}

// ForecastSnapshot is the full rolling projection. Available=false means the
// model is untrained; all numeric fields are then zero.
type ForecastSnapshot struct {
	OrgID       string          `json:"org_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Available   bool            `json:"available"`
	Method      string          `json:"method,omitempty"`
	Months      []ForecastPoint `json:"months,omitempty"`
}

// ForecastedMetrics derives operator-facing scalars from a forecast.
type ForecastedMetrics struct {
	Available      bool    `json:"available"`
	BurnRate       float64 `json:"burn_rate"`
	RunwayMonths   int     `json:"runway_months"`
	PeakMonth      int     `json:"peak_month"`   // calendar month 1..12
	TroughMonth    int     `json:"trough_month"` // calendar month 1..12
	AvgNetForecast float64 `json:"avg_net_forecast"`
}

// DeviationReport classifies realized flows against the one-month-ahead
// forecast.
type DeviationReport struct {
	Available       bool    `json:"available"`
	Month           string  `json:"month,omitempty"` // YYYY-MM of the realized flows
	Status          string  `json:"status,omitempty"`
	ForecastNet     float64 `json:"forecast_net"`
	ActualNet       float64 `json:"actual_net"`
	NetDeviationPct float64 `json:"net_deviation_pct"`
}
