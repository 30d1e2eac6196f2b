package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerCast/internal/domain/models"
	svccache "LedgerCast/internal/service/cache"
	forecastsvc "LedgerCast/internal/services/forecast"
)

func newForecasterFixture(t *testing.T, ledger *fakeLedger, store *fakeModelStore) (*Forecaster, *svccache.ModelCache, *fakeMetrics) {
	t.Helper()
	cache := svccache.NewModelCache(time.Minute)
	metrics := newFakeMetrics()
	f := NewForecaster(ledger, store, forecastsvc.New(), cache, metrics, testLogger(t))
	return f, cache, metrics
}

func TestForecasterTrainSuccess(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	f, cache, metrics := newForecasterFixture(t, ledger, store)

	// A stale cached artifact must be dropped by a successful retrain.
	cache.Set("org-1", &models.TrainedForecastModel{OrgID: "org-1"})

	res, err := f.Train(context.Background(), "org-1", 24)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Empty(t, res.Reason)

	saved := store.saved["org-1"]
	require.NotNil(t, saved)
	assert.Equal(t, models.ModelSchemaVersion, saved.SchemaVersion)

	_, cached := cache.Get("org-1")
	assert.False(t, cached)

	// Lock released after training.
	locked, err := store.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	assert.Equal(t, 1, metrics.trainings[true])
}

func TestForecasterTrainLocked(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	f, _, _ := newForecasterFixture(t, ledger, store)

	locked, err := store.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = f.Train(context.Background(), "org-1", 24)
	assert.ErrorIs(t, err, ErrTrainingInProgress)
}

func TestForecasterTrainSaveFailureKeepsResult(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	store.saveErr = errors.New("redis down")
	f, _, metrics := newForecasterFixture(t, ledger, store)

	res, err := f.Train(context.Background(), "org-1", 24)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "model not saved", res.Reason)
	require.NotNil(t, res.Model)
	assert.Equal(t, 1, metrics.errorCount("model_save"))
}

func TestForecasterTrainInsufficientData(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 10}
	store := newFakeModelStore()
	f, _, metrics := newForecasterFixture(t, ledger, store)

	res, err := f.Train(context.Background(), "org-1", 24)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient data", res.Reason)
	assert.Empty(t, store.saved)
	assert.Equal(t, 1, metrics.trainings[false])
}

func TestForecasterForecastHitsCacheOnRepeat(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	f, _, _ := newForecasterFixture(t, ledger, store)

	_, err := f.Train(context.Background(), "org-1", 24)
	require.NoError(t, err)

	snap, err := f.Forecast(context.Background(), "org-1", 6)
	require.NoError(t, err)
	require.True(t, snap.Available)
	require.Len(t, snap.Months, 6)
	assert.Equal(t, 1, store.loadCalls)

	// Second read comes from the in-process cache.
	snap2, err := f.Forecast(context.Background(), "org-1", 6)
	require.NoError(t, err)
	assert.True(t, snap2.Available)
	assert.Equal(t, 1, store.loadCalls)
}

func TestForecasterForecastUntrained(t *testing.T) {
	f, _, _ := newForecasterFixture(t, &fakeLedger{}, newFakeModelStore())

	snap, err := f.Forecast(context.Background(), "org-1", 6)
	require.NoError(t, err)
	assert.False(t, snap.Available)
}

func TestForecasterStaleSchemaTreatedAsUntrained(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	f, cache, _ := newForecasterFixture(t, ledger, store)

	_, err := f.Train(context.Background(), "org-1", 24)
	require.NoError(t, err)
	store.saved["org-1"].SchemaVersion = "0"

	snap, err := f.Forecast(context.Background(), "org-1", 6)
	require.NoError(t, err)
	assert.False(t, snap.Available)

	// The mismatched artifact must not be cached either.
	_, cached := cache.Get("org-1")
	assert.False(t, cached)
}

func TestForecasterLoadErrorPropagates(t *testing.T) {
	store := newFakeModelStore()
	store.loadErr = errors.New("redis down")
	f, _, metrics := newForecasterFixture(t, &fakeLedger{}, store)

	_, err := f.Forecast(context.Background(), "org-1", 6)
	assert.Error(t, err)
	assert.Equal(t, 1, metrics.errorCount("model_load"))
}

func TestForecasterMetricsAndDeviation(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	f, _, _ := newForecasterFixture(t, ledger, store)

	_, err := f.Train(context.Background(), "org-1", 24)
	require.NoError(t, err)

	m, err := f.Metrics(context.Background(), "org-1", 12)
	require.NoError(t, err)
	assert.True(t, m.Available)

	rep, err := f.Deviation(context.Background(), "org-1", "2026-02", 50000, 40000)
	require.NoError(t, err)
	assert.True(t, rep.Available)
	assert.Equal(t, "2026-02", rep.Month)
	assert.Equal(t, models.DeviationOnTrack, rep.Status)
}
