package scenario

import (
	"math"

	"LedgerCast/internal/domain/models"
	domsvc "LedgerCast/internal/domain/service"
	"LedgerCast/internal/services/stats"
)

const (
	// DefaultSimulations bounds Monte Carlo work when the caller does not
	// tune it; total work is O(simulations × months).
	DefaultSimulations = 1000

	// BaselineHistoryMonths is the most recent history considered when
	// seeding a scenario baseline.
	BaselineHistoryMonths = 6

	monthsPerYear = 12
)

// Engine builds deterministic and Monte Carlo projections. All randomness
// flows through the injected normal source so simulations are reproducible
// under a seeded sampler.
type Engine struct {
	normal stats.NormalSource
}

// NewEngine creates an engine drawing from the given normal source.
func NewEngine(normal stats.NormalSource) *Engine {
	return &Engine{normal: normal}
}

var _ domsvc.ScenarioEngine = (*Engine)(nil)

// BaselineFromHistory seeds scenario levels from up to the last six months
// of flows: average revenue/expense levels plus trailing-vs-leading 3-month
// growth converted to a monthly rate.
func BaselineFromHistory(history []models.MonthlyCashFlow) models.ScenarioBaseline {
	if len(history) > BaselineHistoryMonths {
		history = history[len(history)-BaselineHistoryMonths:]
	}
	b := models.ScenarioBaseline{HistoryMonths: len(history)}
	if len(history) == 0 {
		return b
	}

	revenues := make([]float64, len(history))
	expenses := make([]float64, len(history))
	for i, m := range history {
		revenues[i] = m.Inflows
		expenses[i] = m.Outflows
	}
	b.AvgMonthlyRevenue = stats.Mean(revenues)
	b.AvgMonthlyExpenses = stats.Mean(expenses)
	b.RevenueGrowthRate = monthlyGrowth(revenues)
	b.ExpenseGrowthRate = monthlyGrowth(expenses)
	return b
}

// monthlyGrowth compares the trailing 3-month average to the leading
// 3-month average and converts the ratio to a per-month rate.
func monthlyGrowth(values []float64) float64 {
	if len(values) < 6 {
		return 0
	}
	leading := stats.Mean(values[:3])
	trailing := stats.Mean(values[len(values)-3:])
	if leading <= 0 {
		return 0
	}
	ratio := trailing / leading
	if ratio <= 0 {
		return 0
	}
	span := float64(len(values) - 3)
	return stats.Sanitize(math.Pow(ratio, 1/span) - 1)
}

// effectiveGrowth prefers the caller's assumption and falls back to the
// rate observed in history.
func effectiveGrowth(assumed, observed float64) float64 {
	if assumed != 0 {
		return assumed
	}
	return observed
}

// Deterministic compounds a single path under the assumptions. Month fields
// in the assumptions (hire start, expense range, fundraise) are zero-based
// offsets from the first forecast month. Figures stay unrounded internally;
// rounding to whole currency units happens at the reporting boundary.
func (e *Engine) Deterministic(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months int) models.ForecastResult {
	return e.runPath(baseline, a, months, false)
}

// runSingleSimulation perturbs each month's growth multiplier by
// volatility × N(0,1) independently for revenue and expenses. With both
// volatilities zero it reduces to the deterministic path exactly.
func (e *Engine) runSingleSimulation(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months int) models.ForecastResult {
	return e.runPath(baseline, a, months, true)
}

func (e *Engine) runPath(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months int, stochastic bool) models.ForecastResult {
	if months <= 0 {
		months = 12
	}

	revGrowth := effectiveGrowth(a.RevenueGrowthRate, baseline.RevenueGrowthRate)
	expGrowth := effectiveGrowth(a.ExpenseGrowthRate, baseline.ExpenseGrowthRate)

	revenue := baseline.AvgMonthlyRevenue
	baseExpense := baseline.AvgMonthlyExpenses
	cash := a.StartingCash

	res := models.ForecastResult{Projections: make([]models.MonthProjection, 0, months)}

	for m := 1; m <= months; m++ {
		offset := m - 1 // zero-based month offset

		rg, eg := revGrowth, expGrowth
		if stochastic {
			rg += a.RevenueVolatility * e.normal.Norm()
			eg += a.ExpenseVolatility * e.normal.Norm()
		}
		if m > 1 {
			revenue *= 1 + rg
			baseExpense *= 1 + eg
		}

		expenses := baseExpense
		for _, h := range a.PlannedHires {
			if offset >= h.StartMonth {
				expenses += (h.Salary + h.Benefits) / monthsPerYear
			}
		}
		for _, pe := range a.PlannedExpenses {
			if offset >= pe.StartMonth && (pe.EndMonth == 0 || offset <= pe.EndMonth) {
				expenses += pe.Monthly
			}
		}

		if a.FundraiseAmount > 0 && offset == a.FundraiseMonth {
			cash += a.FundraiseAmount
		}

		net := revenue - expenses
		cash += net

		runway := float64(models.RunwayInfinite)
		if net < 0 && cash > 0 {
			runway = cash / -net
		} else if cash <= 0 {
			runway = 0
		}

		res.Projections = append(res.Projections, models.MonthProjection{
			Month:           m,
			Revenue:         stats.Sanitize(revenue),
			Expenses:        stats.Sanitize(expenses),
			NetCashFlow:     stats.Sanitize(net),
			EndingCash:      stats.Sanitize(cash),
			RunwayRemaining: stats.Sanitize(runway),
		})
		res.TotalRevenue += revenue
		res.TotalExpenses += expenses
	}

	res.EndingCash = stats.Sanitize(cash)
	res.RunwayMonths = runwayFromPath(res.Projections)
	return res
}

// runwayFromPath returns the fractional month at which cash runs out, or
// the sentinel when the path never burns down within (or beyond) the
// horizon.
func runwayFromPath(path []models.MonthProjection) float64 {
	prevCash := 0.0
	for i, p := range path {
		if i == 0 {
			prevCash = p.EndingCash - p.NetCashFlow
		}
		if p.EndingCash <= 0 {
			frac := 0.0
			if p.NetCashFlow < 0 {
				frac = prevCash / -p.NetCashFlow
				frac = stats.Clamp(frac, 0, 1)
			}
			return stats.Sanitize(float64(i) + frac)
		}
		prevCash = p.EndingCash
	}
	if len(path) == 0 {
		return 0
	}
	last := path[len(path)-1]
	if last.NetCashFlow < 0 {
		extra := last.EndingCash / -last.NetCashFlow
		total := float64(len(path)) + extra
		if total > models.RunwayInfinite {
			total = models.RunwayInfinite
		}
		return stats.Sanitize(total)
	}
	return models.RunwayInfinite
}

// MonteCarlo repeats the deterministic mechanics with independent per-month
// growth perturbations. The merge is a deterministic reduction over the
// recorded cash paths, so a parallel implementation would produce the same
// aggregate for the same draws.
func (e *Engine) MonteCarlo(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months, simulations int) models.MonteCarloResult {
	if simulations <= 0 {
		simulations = DefaultSimulations
	}
	if months <= 0 {
		months = 12
	}

	cashByMonth := make([][]float64, months)
	for i := range cashByMonth {
		cashByMonth[i] = make([]float64, 0, simulations)
	}
	crossings := make(map[int]int, months+1)
	survived := 0
	runwaySum := 0.0

	for s := 0; s < simulations; s++ {
		path := e.runSingleSimulation(baseline, a, months)

		crossing := months // sentinel: never crossed within the horizon
		alive := true
		for i, p := range path.Projections {
			cashByMonth[i] = append(cashByMonth[i], p.EndingCash)
			if alive && p.EndingCash <= 0 {
				crossing = i + 1
				alive = false
			}
		}
		if alive {
			survived++
		}
		crossings[crossing]++
		runwaySum += float64(crossing)
	}

	out := models.MonteCarloResult{
		Simulations:           simulations,
		Months:                make([]models.MonteCarloMonth, months),
		ExpectedRunway:        stats.Sanitize(runwaySum / float64(simulations)),
		ProbabilityOfSurvival: float64(survived) / float64(simulations),
		RunwayDistribution:    crossings,
	}

	for i := 0; i < months; i++ {
		cells := cashByMonth[i]
		alive := 0
		for _, c := range cells {
			if c > 0 {
				alive++
			}
		}
		out.Months[i] = models.MonteCarloMonth{
			Month:               i + 1,
			P10:                 stats.Percentile(cells, 10),
			P50:                 stats.Percentile(cells, 50),
			P90:                 stats.Percentile(cells, 90),
			SurvivalProbability: float64(alive) / float64(len(cells)),
		}
	}
	return out
}

// Sensitivity drivers and their fixed perturbation deltas.
const (
	DriverRevenueGrowth     = "revenue_growth"
	DriverExpenseGrowth     = "expense_growth"
	DriverRevenueVolatility = "revenue_volatility"
	DriverExpenseVolatility = "expense_volatility"
	DriverStartingCash      = "starting_cash"

	growthDelta     = 0.01
	volatilityDelta = 0.01
	cashDelta       = 10000.0
)

// Sensitivity perturbs each named driver, reruns the deterministic
// forecast, and reports runway impact sorted by descending absolute impact.
func (e *Engine) Sensitivity(baseline models.ScenarioBaseline, a models.ScenarioAssumptions, months int) []models.SensitivityResult {
	base := e.Deterministic(baseline, a, months).RunwayMonths

	perturb := func(driver string, delta float64, mutate func(*models.ScenarioAssumptions)) models.SensitivityResult {
		mod := a // value copy; assumptions are never mutated
		mutate(&mod)
		next := e.Deterministic(baseline, mod, months).RunwayMonths
		impact := next - base
		return models.SensitivityResult{
			Driver:      driver,
			Delta:       delta,
			BaseRunway:  base,
			NewRunway:   next,
			Impact:      stats.Sanitize(impact),
			Sensitivity: stats.Sanitize(impact / delta),
		}
	}

	results := []models.SensitivityResult{
		perturb(DriverRevenueGrowth, growthDelta, func(m *models.ScenarioAssumptions) {
			m.RevenueGrowthRate = effectiveGrowth(m.RevenueGrowthRate, baseline.RevenueGrowthRate) + growthDelta
		}),
		perturb(DriverExpenseGrowth, growthDelta, func(m *models.ScenarioAssumptions) {
			m.ExpenseGrowthRate = effectiveGrowth(m.ExpenseGrowthRate, baseline.ExpenseGrowthRate) + growthDelta
		}),
		perturb(DriverRevenueVolatility, volatilityDelta, func(m *models.ScenarioAssumptions) {
			m.RevenueVolatility += volatilityDelta
		}),
		perturb(DriverExpenseVolatility, volatilityDelta, func(m *models.ScenarioAssumptions) {
			m.ExpenseVolatility += volatilityDelta
		}),
		perturb(DriverStartingCash, cashDelta, func(m *models.ScenarioAssumptions) {
			m.StartingCash += cashDelta
		}),
	}

	// Sort by |impact| descending; stable for equal impacts.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && math.Abs(results[j].Impact) > math.Abs(results[j-1].Impact); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	return results
}
