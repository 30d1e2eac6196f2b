//go:build wireinject
// +build wireinject

package di

import (
	"LedgerCast/pkg/config"
	"LedgerCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideLedgerStore,
		ProvideAnomalyStore,
		ProvideModelStore,
		ProvideAlertsHub,
		ProvideAlertPublisher,
		ProvideModelCache,

		// Use cases
		ProvideForecaster,
		ProvideAnomalyAnalyzer,
		ProvideScenarioRunner,
		ProvideIngestPipeline,
		ProvideLedgerIngestHandler,
		ProvideRetrainQueue,
		ProvideRetrainScheduler,

		// Transport
		ProvideAnalyticsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
