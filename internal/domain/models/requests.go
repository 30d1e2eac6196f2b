package models

// Requests for the analytics HTTP endpoints. Defined in domain for
// consistency and reuse across handlers.

type TrainRequest struct {
	OrgID      string `query:"org_id" json:"org_id" validate:"required"`
	MonthsBack int    `query:"months_back" json:"months_back" default:"24" validate:"gte=6,lte=60"`
}

type ForecastRequest struct {
	OrgID  string `query:"org_id" json:"org_id" validate:"required"`
	Months int    `query:"months" json:"months" default:"12" validate:"gte=1,lte=36"`
}

type ForecastMetricsRequest struct {
	OrgID  string `query:"org_id" json:"org_id" validate:"required"`
	Months int    `query:"months" json:"months" default:"12" validate:"gte=1,lte=36"`
}

type DeviationRequest struct {
	OrgID          string  `json:"org_id" validate:"required"`
	Month          string  `json:"month" validate:"required"` // "2006-01"
	ActualInflows  float64 `json:"actual_inflows" validate:"gte=0"`
	ActualOutflows float64 `json:"actual_outflows" validate:"gte=0"`
}

type AnomalyScanRequest struct {
	OrgID       string  `query:"org_id" json:"org_id" validate:"required"`
	DaysBack    int     `query:"days_back" json:"days_back" default:"30" validate:"gte=7,lte=90"`
	Sensitivity float64 `query:"sensitivity" json:"sensitivity" default:"2.0" validate:"gte=1,lte=5"`
}

type ScenarioRequest struct {
	OrgID          string              `json:"org_id" validate:"required"`
	ForecastMonths int                 `json:"forecast_months" default:"12" validate:"gte=1,lte=60"`
	Simulations    int                 `json:"simulations" default:"1000" validate:"gte=100,lte=20000"`
	Assumptions    ScenarioAssumptions `json:"assumptions" validate:"required"`
}

type SensitivityRequest struct {
	OrgID          string              `json:"org_id" validate:"required"`
	ForecastMonths int                 `json:"forecast_months" default:"12" validate:"gte=1,lte=60"`
	Assumptions    ScenarioAssumptions `json:"assumptions" validate:"required"`
}
