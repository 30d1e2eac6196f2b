package usecase

import (
	"context"
	"errors"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	domsvc "LedgerCast/internal/domain/service"
	svccache "LedgerCast/internal/service/cache"
	applogger "LedgerCast/pkg/logger"
	"LedgerCast/pkg/util"
)

const (
	// trainLockTTL bounds how long a crashed trainer can hold the lock.
	trainLockTTL = 2 * time.Minute

	defaultMonthsBack = 24
)

// ErrTrainingInProgress is returned when another trainer holds the lock for
// the organization.
var ErrTrainingInProgress = errors.New("model training already in progress")

// Forecaster coordinates model training and forecasting. Trained artifacts
// live in the shared model store with an in-process read cache in front;
// retraining replaces the artifact wholesale and invalidates the cache.
type Forecaster struct {
	ledger  domrepo.LedgerStore
	store   domrepo.ModelStore
	svc     domsvc.CashFlowForecaster
	cache   *svccache.ModelCache
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewForecaster(ledger domrepo.LedgerStore, store domrepo.ModelStore, svc domsvc.CashFlowForecaster, cache *svccache.ModelCache, metrics domrepo.Metrics, logger *applogger.Logger) *Forecaster {
	return &Forecaster{ledger: ledger, store: store, svc: svc, cache: cache, metrics: metrics, logger: logger}
}

// Train aggregates the organization's monthly flows and retrains the model.
// A successful run persists the new artifact and invalidates the in-process
// cache; a persistence failure is reported in the result but never discards
// the in-memory model already computed.
func (f *Forecaster) Train(ctx context.Context, orgID string, monthsBack int) (models.TrainResult, error) {
	if monthsBack <= 0 {
		monthsBack = defaultMonthsBack
	}

	locked, err := f.store.TryLock(ctx, orgID, trainLockTTL)
	if err != nil {
		return models.TrainResult{}, err
	}
	if !locked {
		return models.TrainResult{}, ErrTrainingInProgress
	}
	defer func() {
		if err := f.store.Unlock(ctx, orgID); err != nil {
			f.logger.Warn("train lock not released", applogger.String("org_id", orgID), applogger.Error(err))
		}
	}()

	now := time.Now().UTC()
	from := util.MonthStart(now).AddDate(0, -monthsBack, 0)

	started := time.Now()
	history, err := f.ledger.MonthlyCashFlows(ctx, orgID, from, now)
	if err != nil {
		f.metrics.RecordError("train_history_fetch")
		return models.TrainResult{}, err
	}
	txnCount, err := f.ledger.CountTransactions(ctx, orgID, from, now)
	if err != nil {
		f.metrics.RecordError("train_count_fetch")
		return models.TrainResult{}, err
	}

	res := f.svc.Train(orgID, history, txnCount)
	f.metrics.RecordTraining(orgID, res.Success)
	f.metrics.RecordLatency("train", time.Since(started).Seconds())

	if !res.Success {
		f.logger.Info("model training skipped",
			applogger.String("org_id", orgID),
			applogger.String("reason", res.Reason),
			applogger.Int("data_months", res.DataMonths),
			applogger.Int("transactions", res.TransactionCount))
		return res, nil
	}

	if err := f.store.Save(ctx, res.Model); err != nil {
		f.logger.Error("trained model not saved", applogger.String("org_id", orgID), applogger.Error(err))
		f.metrics.RecordError("model_save")
		res.Reason = "model not saved"
	}
	f.cache.Invalidate(orgID)

	f.logger.Info("model trained",
		applogger.String("org_id", orgID),
		applogger.Int("data_months", res.DataMonths),
		applogger.Int("transactions", res.TransactionCount))
	return res, nil
}

// Forecast projects the cached model forward. A missing or stale artifact
// yields an unavailable snapshot, not an error; callers retrain to recover.
func (f *Forecaster) Forecast(ctx context.Context, orgID string, months int) (models.ForecastSnapshot, error) {
	m, err := f.model(ctx, orgID)
	if err != nil {
		return models.ForecastSnapshot{}, err
	}
	return f.svc.Forecast(m, months), nil
}

// Metrics derives burn rate, runway, and seasonal extremes from the forecast.
func (f *Forecaster) Metrics(ctx context.Context, orgID string, months int) (models.ForecastedMetrics, error) {
	m, err := f.model(ctx, orgID)
	if err != nil {
		return models.ForecastedMetrics{}, err
	}
	return f.svc.ForecastedMetrics(m, months), nil
}

// Deviation compares realized flows for the given month against the
// one-month-ahead forecast.
func (f *Forecaster) Deviation(ctx context.Context, orgID, month string, actualInflows, actualOutflows float64) (models.DeviationReport, error) {
	m, err := f.model(ctx, orgID)
	if err != nil {
		return models.DeviationReport{}, err
	}
	rep := f.svc.DetectDeviation(m, actualInflows, actualOutflows)
	rep.Month = month
	return rep, nil
}

// model loads the artifact through the in-process cache. Artifacts with a
// different schema version are treated as untrained rather than deserialized
// into a mismatched struct.
func (f *Forecaster) model(ctx context.Context, orgID string) (*models.TrainedForecastModel, error) {
	if m, ok := f.cache.Get(orgID); ok {
		return m, nil
	}
	m, err := f.store.Load(ctx, orgID)
	if err != nil {
		f.metrics.RecordError("model_load")
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if m.SchemaVersion != models.ModelSchemaVersion {
		f.logger.Warn("stale model artifact ignored",
			applogger.String("org_id", orgID),
			applogger.String("schema_version", m.SchemaVersion))
		return nil, nil
	}
	f.cache.Set(orgID, m)
	return m, nil
}
