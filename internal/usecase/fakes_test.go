package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"LedgerCast/internal/domain/models"
	applogger "LedgerCast/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// fakeLedger serves canned aggregates and records call arguments.
type fakeLedger struct {
	daily        []models.DailyTotal
	dailyErr     error
	monthly      []models.MonthlyCashFlow
	monthlyErr   error
	txnCount     int
	vendor       []models.MonthlyTotal
	vendorErr    error
	category     []models.MonthlyTotal
	categoryErr  error
	activeOrgs   []string
	activeErr    error
	storedBatch  [][]*models.Transaction
	storeBatchMu sync.Mutex
}

func (f *fakeLedger) Init(context.Context) error { return nil }

func (f *fakeLedger) StoreBatch(_ context.Context, txns []*models.Transaction) error {
	f.storeBatchMu.Lock()
	defer f.storeBatchMu.Unlock()
	f.storedBatch = append(f.storedBatch, txns)
	return nil
}

func (f *fakeLedger) FetchTransactions(context.Context, string, time.Time, time.Time) ([]*models.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) CountTransactions(context.Context, string, time.Time, time.Time) (int, error) {
	return f.txnCount, nil
}

func (f *fakeLedger) DailyExpenseTotals(context.Context, string, time.Time, time.Time) ([]models.DailyTotal, error) {
	return f.daily, f.dailyErr
}

func (f *fakeLedger) MonthlyCashFlows(context.Context, string, time.Time, time.Time) ([]models.MonthlyCashFlow, error) {
	return f.monthly, f.monthlyErr
}

func (f *fakeLedger) VendorMonthlyTotals(context.Context, string, time.Time, time.Time) ([]models.MonthlyTotal, error) {
	return f.vendor, f.vendorErr
}

func (f *fakeLedger) CategoryMonthlyTotals(context.Context, string, time.Time, time.Time) ([]models.MonthlyTotal, error) {
	return f.category, f.categoryErr
}

func (f *fakeLedger) ActiveOrgIDs(context.Context, time.Time) ([]string, error) {
	return f.activeOrgs, f.activeErr
}

func (f *fakeLedger) Health(context.Context) error { return nil }
func (f *fakeLedger) Close() error                 { return nil }

// fakeModelStore keeps artifacts in a map and simulates the training lock.
type fakeModelStore struct {
	mu        sync.Mutex
	saved     map[string]*models.TrainedForecastModel
	locked    map[string]bool
	saveErr   error
	loadErr   error
	denyAll   bool
	loadCalls int
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{
		saved:  make(map[string]*models.TrainedForecastModel),
		locked: make(map[string]bool),
	}
}

func (f *fakeModelStore) Load(_ context.Context, orgID string) (*models.TrainedForecastModel, error) {
	f.mu.Lock()
	f.loadCalls++
	f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[orgID], nil
}

func (f *fakeModelStore) Save(_ context.Context, m *models.TrainedForecastModel) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[m.OrgID] = m
	return nil
}

func (f *fakeModelStore) Invalidate(_ context.Context, orgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, orgID)
	return nil
}

func (f *fakeModelStore) TryLock(_ context.Context, orgID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll || f.locked[orgID] {
		return false, nil
	}
	f.locked[orgID] = true
	return true, nil
}

func (f *fakeModelStore) Unlock(_ context.Context, orgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locked, orgID)
	return nil
}

// fakeAnomalyStore records what was persisted.
type fakeAnomalyStore struct {
	baselines    map[string]models.StatisticalBaseline
	events       []models.AnomalyResult
	baselineErr  error
	saveEventErr error
}

func newFakeAnomalyStore() *fakeAnomalyStore {
	return &fakeAnomalyStore{baselines: make(map[string]models.StatisticalBaseline)}
}

func (f *fakeAnomalyStore) SaveBaseline(_ context.Context, orgID, metric string, b models.StatisticalBaseline) error {
	if f.baselineErr != nil {
		return f.baselineErr
	}
	f.baselines[orgID+"/"+metric] = b
	return nil
}

func (f *fakeAnomalyStore) SaveEvents(_ context.Context, events []models.AnomalyResult) error {
	if f.saveEventErr != nil {
		return f.saveEventErr
	}
	f.events = append(f.events, events...)
	return nil
}

// fakeAlerts records published anomalies.
type fakeAlerts struct {
	published  []models.AnomalyResult
	publishErr error
}

func (f *fakeAlerts) Publish(_ context.Context, a models.AnomalyResult) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, a)
	return nil
}

func (f *fakeAlerts) Close() error { return nil }

// fakeMetrics counts recorder calls by label.
type fakeMetrics struct {
	mu        sync.Mutex
	anomalies int
	trainings map[bool]int
	errors    map[string]int
	latencies map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		trainings: make(map[bool]int),
		errors:    make(map[string]int),
		latencies: make(map[string]int),
	}
}

func (f *fakeMetrics) RecordAnomaly(string, string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomalies++
}

func (f *fakeMetrics) RecordTraining(_ string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trainings[success]++
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLatency(op string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latencies[op]++
}

func (f *fakeMetrics) errorCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[kind]
}

// fakeQueue records published queue messages.
type fakeQueue struct {
	mu       sync.Mutex
	types    []string
	payloads []interface{}
	err      error
}

func (f *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, msgType)
	f.payloads = append(f.payloads, payload)
	return nil
}

// steadyMonths builds n flat months ending January 2023 + n.
func steadyMonths(n int, inflows, outflows float64) []models.MonthlyCashFlow {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.MonthlyCashFlow, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.MonthlyCashFlow{
			Month:       start.AddDate(0, i, 0),
			Inflows:     inflows,
			Outflows:    outflows,
			NetCashFlow: inflows - outflows,
		})
	}
	return out
}
