package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
)

// noisyDays builds n daily totals alternating around 100, ending with the
// given recent values appended after them.
func noisyDays(n int, recent ...float64) []models.DailyTotal {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.DailyTotal, 0, n+len(recent))
	for i := 0; i < n; i++ {
		v := 95.0
		if i%2 == 1 {
			v = 105
		}
		out = append(out, models.DailyTotal{Day: start.AddDate(0, 0, i), Total: v})
	}
	for i, v := range recent {
		out = append(out, models.DailyTotal{Day: start.AddDate(0, 0, n+i), Total: v})
	}
	return out
}

func newAnalyzerFixture(t *testing.T, ledger *fakeLedger) (*AnomalyAnalyzer, *fakeAnomalyStore, *fakeAlerts, *fakeMetrics) {
	t.Helper()
	store := newFakeAnomalyStore()
	alerts := &fakeAlerts{}
	metrics := newFakeMetrics()
	a := NewAnomalyAnalyzer(ledger, store, alerts, metrics, testLogger(t))
	return a, store, alerts, metrics
}

func TestAnalyzeTransactionsDailySpike(t *testing.T) {
	// 90 baseline days around 100, then 13 quiet days and one 1000 spike.
	recent := make([]float64, 0, 14)
	for i := 0; i < 13; i++ {
		recent = append(recent, 100)
	}
	recent = append(recent, 1000)
	ledger := &fakeLedger{daily: noisyDays(90, recent...)}
	a, store, alerts, metrics := newAnalyzerFixture(t, ledger)

	results, err := a.AnalyzeTransactions(context.Background(), "org-1", 14, 2.0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, models.DetectorZScore, res.Detector)
	assert.Equal(t, models.SeverityCritical, res.Severity)
	assert.Equal(t, 1000.0, res.ObservedValue)
	spikeDay := ledger.daily[len(ledger.daily)-1].Day
	assert.Equal(t, spikeDay.Format("2006-01-02"), res.Context["day"])

	// Baseline, events, and alerts all persisted.
	b, ok := store.baselines["org-1/daily_expenses"]
	require.True(t, ok)
	assert.Equal(t, 90, b.SampleSize)
	assert.Len(t, store.events, 1)
	assert.Len(t, alerts.published, 1)
	assert.Equal(t, 1, metrics.anomalies)
}

func TestAnalyzeTransactionsQuietLedger(t *testing.T) {
	ledger := &fakeLedger{daily: noisyDays(90, 100, 100, 100, 100, 100)}
	a, store, alerts, _ := newAnalyzerFixture(t, ledger)

	results, err := a.AnalyzeTransactions(context.Background(), "org-1", 5, 2.0)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Baseline is still refreshed, but there is nothing to alert on.
	assert.Len(t, store.baselines, 1)
	assert.Empty(t, store.events)
	assert.Empty(t, alerts.published)
}

func TestAnalyzeTransactionsNewOrganization(t *testing.T) {
	ledger := &fakeLedger{daily: noisyDays(10)}
	a, store, _, _ := newAnalyzerFixture(t, ledger)

	results, err := a.AnalyzeTransactions(context.Background(), "org-new", 30, 2.0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, store.baselines)
}

func TestAnalyzeTransactionsLedgerError(t *testing.T) {
	ledger := &fakeLedger{dailyErr: errors.New("clickhouse down")}
	a, _, _, _ := newAnalyzerFixture(t, ledger)

	_, err := a.AnalyzeTransactions(context.Background(), "org-1", 14, 2.0)
	assert.Error(t, err)
}

func TestAnalyzeTransactionsPersistenceFailSoft(t *testing.T) {
	recent := make([]float64, 0, 14)
	for i := 0; i < 13; i++ {
		recent = append(recent, 100)
	}
	recent = append(recent, 1000)
	ledger := &fakeLedger{daily: noisyDays(90, recent...)}

	store := newFakeAnomalyStore()
	store.baselineErr = errors.New("clickhouse down")
	store.saveEventErr = errors.New("clickhouse down")
	alerts := &fakeAlerts{publishErr: errors.New("kafka down")}
	metrics := newFakeMetrics()
	a := NewAnomalyAnalyzer(ledger, store, alerts, metrics, testLogger(t))

	results, err := a.AnalyzeTransactions(context.Background(), "org-1", 14, 2.0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 1, metrics.errorCount("anomaly_baseline_save"))
	assert.Equal(t, 1, metrics.errorCount("anomaly_event_save"))
	assert.Equal(t, 1, metrics.errorCount("anomaly_alert_publish"))
}

func TestAnalyzeTransactionsVendorMonthAnomaly(t *testing.T) {
	month := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	vendor := []models.MonthlyTotal{
		{Key: "aws", Month: month, Total: 90},
		{Key: "aws", Month: month.AddDate(0, 1, 0), Total: 110},
		{Key: "aws", Month: month.AddDate(0, 2, 0), Total: 95},
		{Key: "aws", Month: month.AddDate(0, 3, 0), Total: 105},
		{Key: "aws", Month: month.AddDate(0, 4, 0), Total: 100},
		{Key: "aws", Month: month.AddDate(0, 5, 0), Total: 1000},
		// Too little history for this vendor: never evaluated.
		{Key: "new-tool", Month: month.AddDate(0, 4, 0), Total: 10},
		{Key: "new-tool", Month: month.AddDate(0, 5, 0), Total: 5000},
	}
	ledger := &fakeLedger{
		daily:       noisyDays(90, 100, 100, 100, 100, 100),
		vendor:      vendor,
		categoryErr: errors.New("clickhouse down"),
	}
	a, _, _, metrics := newAnalyzerFixture(t, ledger)

	results, err := a.AnalyzeTransactions(context.Background(), "org-1", 5, 2.0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "aws", res.Context["vendor"])
	assert.Equal(t, "2025-08", res.Context["month"])
	assert.Equal(t, 1000.0, res.ObservedValue)

	// The category fetch failure degrades to a metric, not an error.
	assert.Equal(t, 1, metrics.errorCount("anomaly_group_fetch"))
}

func TestAnalyzeTransactionsSuppressesLowSeverityGroups(t *testing.T) {
	month := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	// History mean 100, stddev ~7.07; 115 is ~2.1 sigmas: flagged by the
	// detector at sensitivity 2.0 but only low severity.
	vendor := []models.MonthlyTotal{
		{Key: "aws", Month: month, Total: 90},
		{Key: "aws", Month: month.AddDate(0, 1, 0), Total: 110},
		{Key: "aws", Month: month.AddDate(0, 2, 0), Total: 95},
		{Key: "aws", Month: month.AddDate(0, 3, 0), Total: 105},
		{Key: "aws", Month: month.AddDate(0, 4, 0), Total: 100},
		{Key: "aws", Month: month.AddDate(0, 5, 0), Total: 115},
	}
	ledger := &fakeLedger{daily: noisyDays(90, 100, 100, 100, 100, 100), vendor: vendor}
	a, _, _, _ := newAnalyzerFixture(t, ledger)

	results, err := a.AnalyzeTransactions(context.Background(), "org-1", 5, 2.0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnalyzeTransactionsSortedBySeverity(t *testing.T) {
	// Two recent anomalies of different magnitude.
	recent := make([]float64, 0, 14)
	for i := 0; i < 12; i++ {
		recent = append(recent, 100)
	}
	recent = append(recent, 120, 1000) // ~4 sigmas, then huge
	ledger := &fakeLedger{daily: noisyDays(90, recent...)}
	a, _, _, _ := newAnalyzerFixture(t, ledger)

	results, err := a.AnalyzeTransactions(context.Background(), "org-1", 14, 2.0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t,
			models.SeverityRank(results[i-1].Severity),
			models.SeverityRank(results[i].Severity))
	}
}
