package repository

import (
	"context"
	"time"

	"LedgerCast/internal/domain/models"
)

// LedgerStore provides access to the per-organization transaction ledger.
// Aggregations return zero-filled, chronologically ascending series.
type LedgerStore interface {
	Init(ctx context.Context) error // ensure tables exist
	StoreBatch(ctx context.Context, txns []*models.Transaction) error
	FetchTransactions(ctx context.Context, orgID string, from, to time.Time) ([]*models.Transaction, error)
	CountTransactions(ctx context.Context, orgID string, from, to time.Time) (int, error)
	DailyExpenseTotals(ctx context.Context, orgID string, from, to time.Time) ([]models.DailyTotal, error)
	MonthlyCashFlows(ctx context.Context, orgID string, from, to time.Time) ([]models.MonthlyCashFlow, error)
	VendorMonthlyTotals(ctx context.Context, orgID string, from, to time.Time) ([]models.MonthlyTotal, error)
	CategoryMonthlyTotals(ctx context.Context, orgID string, from, to time.Time) ([]models.MonthlyTotal, error)
	// ActiveOrgIDs lists organizations with ledger activity since the
	// given time; drives scheduled retraining.
	ActiveOrgIDs(ctx context.Context, since time.Time) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// ModelStore persists the trained forecast model artifact, one per
// organization, replaced wholesale on retrain.
type ModelStore interface {
	Load(ctx context.Context, orgID string) (*models.TrainedForecastModel, error)
	Save(ctx context.Context, m *models.TrainedForecastModel) error
	Invalidate(ctx context.Context, orgID string) error
	// TryLock guards retraining against concurrent forecasts of the same
	// organization's artifact.
	TryLock(ctx context.Context, orgID string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, orgID string) error
}

// AnomalyStore persists baselines and flagged events. Failures here must not
// abort the in-memory analysis already computed.
type AnomalyStore interface {
	SaveBaseline(ctx context.Context, orgID, metric string, b models.StatisticalBaseline) error
	SaveEvents(ctx context.Context, events []models.AnomalyResult) error
}

// AlertPublisher pushes flagged anomalies to the alerting layer.
type AlertPublisher interface {
	Publish(ctx context.Context, a models.AnomalyResult) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordAnomaly(orgID, detector, severity string)
	RecordTraining(orgID string, success bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
