package usecase

import (
	"context"
	"math"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	domsvc "LedgerCast/internal/domain/service"
	"LedgerCast/internal/services/scenario"
	applogger "LedgerCast/pkg/logger"
	"LedgerCast/pkg/util"
)

// ScenarioRunner seeds scenario baselines from the ledger and delegates the
// projection math to the engine. Reported currency figures are rounded to
// whole units at this boundary; the engine itself stays unrounded.
type ScenarioRunner struct {
	ledger  domrepo.LedgerStore
	engine  domsvc.ScenarioEngine
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewScenarioRunner(ledger domrepo.LedgerStore, engine domsvc.ScenarioEngine, metrics domrepo.Metrics, logger *applogger.Logger) *ScenarioRunner {
	return &ScenarioRunner{ledger: ledger, engine: engine, metrics: metrics, logger: logger}
}

// Run produces the deterministic projection and the Monte Carlo bands for
// the assumptions. An organization without history still runs: the baseline
// degenerates to zero levels and the assumptions carry the scenario.
func (r *ScenarioRunner) Run(ctx context.Context, orgID string, a models.ScenarioAssumptions, months, simulations int) (models.ScenarioResult, error) {
	baseline, err := r.baseline(ctx, orgID)
	if err != nil {
		return models.ScenarioResult{}, err
	}

	started := time.Now()
	det := r.engine.Deterministic(baseline, a, months)
	mc := r.engine.MonteCarlo(baseline, a, months, simulations)
	r.metrics.RecordLatency("scenario", time.Since(started).Seconds())

	roundProjection(&det)
	return models.ScenarioResult{
		OrgID:         orgID,
		GeneratedAt:   time.Now().UTC(),
		Baseline:      baseline,
		Assumptions:   a,
		Deterministic: det,
		MonteCarlo:    mc,
	}, nil
}

// Sensitivity ranks the scenario drivers by their runway impact.
func (r *ScenarioRunner) Sensitivity(ctx context.Context, orgID string, a models.ScenarioAssumptions, months int) ([]models.SensitivityResult, error) {
	baseline, err := r.baseline(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return r.engine.Sensitivity(baseline, a, months), nil
}

func (r *ScenarioRunner) baseline(ctx context.Context, orgID string) (models.ScenarioBaseline, error) {
	now := time.Now().UTC()
	from := util.MonthStart(now).AddDate(0, -scenario.BaselineHistoryMonths, 0)

	history, err := r.ledger.MonthlyCashFlows(ctx, orgID, from, now)
	if err != nil {
		r.metrics.RecordError("scenario_history_fetch")
		return models.ScenarioBaseline{}, err
	}
	if len(history) == 0 {
		r.logger.Debug("scenario baseline empty", applogger.String("org_id", orgID))
	}
	return scenario.BaselineFromHistory(history), nil
}

// roundProjection rounds reported currency figures to whole units.
func roundProjection(res *models.ForecastResult) {
	for i := range res.Projections {
		p := &res.Projections[i]
		p.Revenue = math.Round(p.Revenue)
		p.Expenses = math.Round(p.Expenses)
		p.NetCashFlow = math.Round(p.NetCashFlow)
		p.EndingCash = math.Round(p.EndingCash)
	}
	res.EndingCash = math.Round(res.EndingCash)
	res.TotalRevenue = math.Round(res.TotalRevenue)
	res.TotalExpenses = math.Round(res.TotalExpenses)
}
