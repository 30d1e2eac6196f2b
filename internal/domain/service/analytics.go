package service

import (
	"LedgerCast/internal/domain/models"
)

// CashFlowForecaster trains the seasonal smoothing model over monthly
// history and projects it forward. Implementations are pure: all entry
// points are total and never propagate NaN/Inf into results.
type CashFlowForecaster interface {
	Train(orgID string, history []models.MonthlyCashFlow, txnCount int) models.TrainResult
	Forecast(m *models.TrainedForecastModel, months int) models.ForecastSnapshot
	ForecastedMetrics(m *models.TrainedForecastModel, months int) models.ForecastedMetrics
	DetectDeviation(m *models.TrainedForecastModel, actualInflows, actualOutflows float64) models.DeviationReport
}

// ScenarioEngine builds deterministic and Monte Carlo projections from a
// historical baseline plus user assumptions.
type ScenarioEngine interface {
	Deterministic(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months int) models.ForecastResult
	MonteCarlo(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months, simulations int) models.MonteCarloResult
	Sensitivity(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months int) []models.SensitivityResult
}
