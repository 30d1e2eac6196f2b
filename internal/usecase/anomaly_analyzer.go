package usecase

import (
	"context"
	"sort"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	"LedgerCast/internal/services/anomaly"
	applogger "LedgerCast/pkg/logger"
)

const (
	// baselineWindowDays of older history establish the expected daily
	// spend before the evaluated window begins.
	baselineWindowDays = 90

	// minAggregateDays is the fail-soft floor: fewer aggregate days yields
	// an empty result instead of an error. A brand-new organization is an
	// expected steady state.
	minAggregateDays = 14

	// minGroupMonths of history per vendor/category before monthly spend
	// anomalies are evaluated for it.
	minGroupMonths = 3
)

// AnomalyAnalyzer orchestrates transaction anomaly scans: aggregation via
// the ledger store, pure detection via the detector, persistence and
// alerting at the boundary.
type AnomalyAnalyzer struct {
	ledger  domrepo.LedgerStore
	store   domrepo.AnomalyStore
	alerts  domrepo.AlertPublisher
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewAnomalyAnalyzer(ledger domrepo.LedgerStore, store domrepo.AnomalyStore, alerts domrepo.AlertPublisher, metrics domrepo.Metrics, logger *applogger.Logger) *AnomalyAnalyzer {
	return &AnomalyAnalyzer{ledger: ledger, store: store, alerts: alerts, metrics: metrics, logger: logger}
}

// AnalyzeTransactions scans the most recent daysBack days of daily expense
// totals against a baseline built from the 90 days before them, then flags
// vendor- and category-level monthly spend anomalies. Persistence failures
// are logged and never abort the computed result.
func (a *AnomalyAnalyzer) AnalyzeTransactions(ctx context.Context, orgID string, daysBack int, sensitivity float64) ([]models.AnomalyResult, error) {
	if daysBack <= 0 {
		daysBack = 30
	}
	det := anomaly.NewDetector(orgID, sensitivity)

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -(daysBack + baselineWindowDays))

	daily, err := a.ledger.DailyExpenseTotals(ctx, orgID, from, now)
	if err != nil {
		return nil, err
	}
	if len(daily) < minAggregateDays {
		return []models.AnomalyResult{}, nil
	}

	results := a.scanDaily(det, daily, daysBack)
	results = append(results, a.scanGroupTotals(ctx, det, orgID, from, now)...)

	sort.SliceStable(results, func(i, j int) bool {
		return models.SeverityRank(results[i].Severity) > models.SeverityRank(results[j].Severity)
	})

	a.persist(ctx, orgID, det, daily, daysBack, results)
	return results, nil
}

// scanDaily evaluates each recent day with the z-score test first and IQR
// only as a secondary, non-duplicating signal.
func (a *AnomalyAnalyzer) scanDaily(det *anomaly.Detector, daily []models.DailyTotal, daysBack int) []models.AnomalyResult {
	split := len(daily) - daysBack
	if split < 0 {
		split = 0
	}

	baselineValues := make([]float64, 0, split)
	for _, d := range daily[:split] {
		baselineValues = append(baselineValues, d.Total)
	}
	baseline := det.ComputeBaseline(baselineValues)

	var out []models.AnomalyResult
	for _, d := range daily[split:] {
		res := det.DetectZScore(d.Total, baseline, "daily expenses")
		if res == nil {
			res = det.DetectIQR(d.Total, baseline, "daily expenses")
		}
		if res == nil {
			continue
		}
		res.Context["day"] = d.Day.Format("2006-01-02")
		out = append(out, *res)
	}
	return out
}

// scanGroupTotals flags vendor and category months that deviate from that
// group's own monthly history. Requires at least three months per group;
// low-severity hits are suppressed at this level to reduce noise.
func (a *AnomalyAnalyzer) scanGroupTotals(ctx context.Context, det *anomaly.Detector, orgID string, from, to time.Time) []models.AnomalyResult {
	var out []models.AnomalyResult

	for _, kind := range []string{"vendor", "category"} {
		var totals []models.MonthlyTotal
		var err error
		if kind == "vendor" {
			totals, err = a.ledger.VendorMonthlyTotals(ctx, orgID, from, to)
		} else {
			totals, err = a.ledger.CategoryMonthlyTotals(ctx, orgID, from, to)
		}
		if err != nil {
			a.logger.Warn("group totals unavailable",
				applogger.String("org_id", orgID),
				applogger.String("kind", kind),
				applogger.Error(err))
			a.metrics.RecordError("anomaly_group_fetch")
			continue
		}

		grouped := make(map[string][]models.MonthlyTotal)
		for _, t := range totals {
			grouped[t.Key] = append(grouped[t.Key], t)
		}
		for key, series := range grouped {
			if len(series) < minGroupMonths {
				continue
			}
			sort.Slice(series, func(i, j int) bool { return series[i].Month.Before(series[j].Month) })

			history := make([]float64, len(series)-1)
			for i := 0; i < len(series)-1; i++ {
				history[i] = series[i].Total
			}
			latest := series[len(series)-1]

			res := det.DetectZScore(latest.Total, det.ComputeBaseline(history), kind+" "+key)
			if res == nil || models.SeverityRank(res.Severity) <= models.SeverityRank(models.SeverityLow) {
				continue
			}
			res.Context[kind] = key
			res.Context["month"] = latest.Month.Format("2006-01")
			out = append(out, *res)
		}
	}
	return out
}

// persist saves the baseline and events and publishes alerts. All failures
// degrade to logs; the in-memory result has already been computed.
func (a *AnomalyAnalyzer) persist(ctx context.Context, orgID string, det *anomaly.Detector, daily []models.DailyTotal, daysBack int, results []models.AnomalyResult) {
	split := len(daily) - daysBack
	if split < 0 {
		split = 0
	}
	values := make([]float64, 0, split)
	for _, d := range daily[:split] {
		values = append(values, d.Total)
	}
	if err := a.store.SaveBaseline(ctx, orgID, "daily_expenses", det.ComputeBaseline(values)); err != nil {
		a.logger.Warn("anomaly baseline not saved", applogger.String("org_id", orgID), applogger.Error(err))
		a.metrics.RecordError("anomaly_baseline_save")
	}
	if len(results) == 0 {
		return
	}
	if err := a.store.SaveEvents(ctx, results); err != nil {
		a.logger.Warn("anomaly events not saved", applogger.String("org_id", orgID), applogger.Error(err))
		a.metrics.RecordError("anomaly_event_save")
	}
	for _, r := range results {
		a.metrics.RecordAnomaly(orgID, r.Detector, r.Severity)
		if a.alerts == nil {
			continue
		}
		if err := a.alerts.Publish(ctx, r); err != nil {
			a.logger.Warn("anomaly alert not published", applogger.String("org_id", orgID), applogger.Error(err))
			a.metrics.RecordError("anomaly_alert_publish")
		}
	}
}
