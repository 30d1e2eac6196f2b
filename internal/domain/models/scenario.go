package models

import "time"

// RunwayInfinite is the sentinel runway (in months) reported when net cash
// flow is non-negative and the organization is not burning cash.
const RunwayInfinite = 999

// PlannedHire is an additive monthly cost active from StartMonth onward.
// Salary and Benefits are annual figures.
type PlannedHire struct {
	Role       string  `json:"role"`
	Salary     float64 `json:"salary"`
	Benefits   float64 `json:"benefits"`
	StartMonth int     `json:"start_month"`
}

// PlannedExpense is an additive monthly cost active within
// [StartMonth, EndMonth]. EndMonth 0 means open-ended.
type PlannedExpense struct {
	Name       string  `json:"name"`
	Monthly    float64 `json:"monthly"`
	StartMonth int     `json:"start_month"`
	EndMonth   int     `json:"end_month"`
}

// ScenarioAssumptions is a pure input value object; the engine never
// mutates it. Growth rates and volatilities are monthly fractions.
type ScenarioAssumptions struct {
	StartingCash      float64          `json:"starting_cash"`
	RevenueGrowthRate float64          `json:"revenue_growth_rate"`
	ExpenseGrowthRate float64          `json:"expense_growth_rate"`
	RevenueVolatility float64          `json:"revenue_volatility"`
	ExpenseVolatility float64          `json:"expense_volatility"`
	PlannedHires      []PlannedHire    `json:"planned_hires,omitempty"`
	PlannedExpenses   []PlannedExpense `json:"planned_expenses,omitempty"`
	FundraiseAmount   float64          `json:"fundraise_amount,omitempty"`
	FundraiseMonth    int              `json:"fundraise_month,omitempty"`
}

// ScenarioBaseline is derived from recent ledger history and seeds the
// starting revenue/expense levels of a scenario.
type ScenarioBaseline struct {
	AvgMonthlyRevenue  float64 `json:"avg_monthly_revenue"`
	AvgMonthlyExpenses float64 `json:"avg_monthly_expenses"`
	RevenueGrowthRate  float64 `json:"revenue_growth_rate"`
	ExpenseGrowthRate  float64 `json:"expense_growth_rate"`
	HistoryMonths      int     `json:"history_months"`
}

// MonthProjection is one month of a deterministic cash path.
type MonthProjection struct {
	Month           int     `json:"month"`
	Revenue         float64 `json:"revenue"`
	Expenses        float64 `json:"expenses"`
	NetCashFlow     float64 `json:"net_cash_flow"`
	EndingCash      float64 `json:"ending_cash"`
	RunwayRemaining float64 `json:"runway_remaining"`
}

// ForecastResult is the single deterministic path. Immutable once returned.
type ForecastResult struct {
	Projections   []MonthProjection `json:"projections"`
	EndingCash    float64           `json:"ending_cash"`
	RunwayMonths  float64           `json:"runway_months"`
	TotalRevenue  float64           `json:"total_revenue"`
	TotalExpenses float64           `json:"total_expenses"`
}

// MonteCarloMonth aggregates one future month across all simulations.
type MonteCarloMonth struct {
	Month               int     `json:"month"`
	P10                 float64 `json:"p10"`
	P50                 float64 `json:"p50"`
	P90                 float64 `json:"p90"`
	SurvivalProbability float64 `json:"survival_probability"`
}

// MonteCarloResult is the simulation summary. RunwayDistribution is a
// histogram over first-zero-crossing month indices (1-based; the series
// length bucket counts paths that never crossed).
type MonteCarloResult struct {
	Simulations           int               `json:"simulations"`
	Months                []MonteCarloMonth `json:"months"`
	ExpectedRunway        float64           `json:"expected_runway"`
	ProbabilityOfSurvival float64           `json:"probability_of_survival"`
	RunwayDistribution    map[int]int       `json:"runway_distribution"`
}

// ScenarioResult bundles both projection modes with the baseline they were
// built from.
type ScenarioResult struct {
	OrgID         string              `json:"org_id"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Baseline      ScenarioBaseline    `json:"baseline"`
	Assumptions   ScenarioAssumptions `json:"assumptions"`
	Deterministic ForecastResult      `json:"deterministic"`
	MonteCarlo    MonteCarloResult    `json:"monte_carlo"`
}

// SensitivityResult reports the runway impact of perturbing one driver.
type SensitivityResult struct {
	Driver      string  `json:"driver"`
	Delta       float64 `json:"delta"`
	BaseRunway  float64 `json:"base_runway"`
	NewRunway   float64 `json:"new_runway"`
	Impact      float64 `json:"impact"`
	Sensitivity float64 `json:"sensitivity"`
}
