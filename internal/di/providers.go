package di

import (
	"context"
	"fmt"
	"time"

	"LedgerCast/internal/domain/repository"
	"LedgerCast/internal/handler/api"
	"LedgerCast/internal/handler/ws"
	mid "LedgerCast/internal/middleware"
	internalrepo "LedgerCast/internal/repository"
	svccache "LedgerCast/internal/service/cache"
	"LedgerCast/internal/services/forecast"
	"LedgerCast/internal/services/scenario"
	"LedgerCast/internal/services/stats"
	"LedgerCast/internal/usecase"
	pkgcache "LedgerCast/pkg/cache"
	pkgch "LedgerCast/pkg/clickhouse"
	"LedgerCast/pkg/config"
	pkghttp "LedgerCast/pkg/http"
	pkgkafka "LedgerCast/pkg/kafka"
	applogger "LedgerCast/pkg/logger"
	"LedgerCast/pkg/metrics"
	"LedgerCast/pkg/queue"
	"LedgerCast/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the shared Redis cache service.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	host, port := splitHostPort(cfg.Redis.Addr)
	cache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideLedgerStore creates the ClickHouse-backed ledger store and
// ensures its schema exists.
func ProvideLedgerStore(chClient *pkgch.Client, logger *applogger.Logger) (repository.LedgerStore, error) {
	store := internalrepo.NewCHLedgerStore(chClient)
	store.SetLogger(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideAnomalyStore creates the ClickHouse anomaly store.
func ProvideAnomalyStore(chClient *pkgch.Client) (repository.AnomalyStore, error) {
	store := internalrepo.NewCHAnomalyStore(chClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideModelStore creates the cache-backed forecast model store.
func ProvideModelStore(cache *pkgcache.RedisCache) repository.ModelStore {
	return internalrepo.NewCacheModelStore(cache)
}

// ProvideAlertsHub creates the websocket broadcast hub.
func ProvideAlertsHub(logger *applogger.Logger) *ws.AlertsHub {
	return ws.NewAlertsHub(logger)
}

// ProvideAlertPublisher fans alerts out to Kafka, the websocket hub, and
// the webhook when one is configured.
func ProvideAlertPublisher(producer *pkgkafka.Producer, hub *ws.AlertsHub, cfg *config.Config) repository.AlertPublisher {
	sinks := []repository.AlertPublisher{
		internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertTopic),
		hub,
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		timeout := cfg.Alerts.Webhook.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client := pkghttp.NewClient(pkghttp.WithTimeout(timeout))
		sinks = append(sinks, internalrepo.NewWebhookAlertPublisher(client, cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Token))
	}
	return internalrepo.NewMultiAlertPublisher(sinks...)
}

// ProvideModelCache creates the in-process forecast model cache.
func ProvideModelCache(cfg *config.Config) *svccache.ModelCache {
	ttl := cfg.Forecast.ModelCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return svccache.NewModelCache(ttl)
}

// ProvideForecaster creates the forecasting use case.
func ProvideForecaster(
	ledger repository.LedgerStore,
	store repository.ModelStore,
	cache *svccache.ModelCache,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.Forecaster {
	return usecase.NewForecaster(ledger, store, forecast.New(), cache, m, logger)
}

// ProvideAnomalyAnalyzer creates the anomaly scan use case.
func ProvideAnomalyAnalyzer(
	ledger repository.LedgerStore,
	store repository.AnomalyStore,
	alerts repository.AlertPublisher,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.AnomalyAnalyzer {
	return usecase.NewAnomalyAnalyzer(ledger, store, alerts, m, logger)
}

// ProvideScenarioRunner creates the scenario use case with a time-seeded
// sampler; tests inject fixed seeds instead.
func ProvideScenarioRunner(ledger repository.LedgerStore, m repository.Metrics, logger *applogger.Logger) *usecase.ScenarioRunner {
	engine := scenario.NewEngine(stats.NewBoxMuller(time.Now().UnixNano()))
	return usecase.NewScenarioRunner(ledger, engine, m, logger)
}

// ProvideIngestPipeline creates the batching pipeline in front of the
// ledger store.
func ProvideIngestPipeline(ledger repository.LedgerStore, m repository.Metrics, cfg *config.Config) *mid.IngestPipeline {
	opts := []mid.PipelineOption{}
	if cfg.Ingest.BatchSize > 0 {
		opts = append(opts, mid.WithBatchSize(cfg.Ingest.BatchSize))
	}
	if cfg.Ingest.FlushInterval > 0 {
		opts = append(opts, mid.WithFlushInterval(cfg.Ingest.FlushInterval))
	}
	if cfg.Ingest.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Ingest.BufferSize))
	}
	return mid.NewIngestPipeline(ledger, m, opts...)
}

// ProvideLedgerIngestHandler registers the handler for the ingest topic.
func ProvideLedgerIngestHandler(
	pipeline *mid.IngestPipeline,
	cache *svccache.ModelCache,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.LedgerIngestHandler {
	return usecase.NewLedgerIngestHandler(cfg.Kafka.IngestTopic, pipeline, cache, m, logger)
}

// ProvideRetrainQueue creates the Redis-backed retrain queue with its job
// registered.
func ProvideRetrainQueue(
	cache *pkgcache.RedisCache,
	forecaster *usecase.Forecaster,
	logger *applogger.Logger,
	cfg *config.Config,
) *queue.RedisQueue {
	qc := &queue.QueueConfig{
		Workers:    cfg.Forecast.Retrain.Workers,
		RetryLimit: cfg.Forecast.Retrain.RetryLimit,
		RetryDelay: cfg.Forecast.Retrain.RetryDelay,
	}
	q := queue.NewRedisQueue(logger, qc, cache.Client(), queue.ModeProducerConsumer,
		queue.WithKeyPrefix("ledgercast:retrain"))
	q.RegisterJob(usecase.NewRetrainJob(forecaster, logger))
	return q
}

// ProvideRetrainScheduler creates the periodic retrain sweep.
func ProvideRetrainScheduler(
	ledger repository.LedgerStore,
	q *queue.RedisQueue,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.RetrainScheduler {
	if !cfg.Forecast.Retrain.Enabled {
		return nil
	}
	return usecase.NewRetrainScheduler(ledger, q, logger,
		cfg.Forecast.Retrain.Interval,
		cfg.Forecast.Retrain.Lookback,
		cfg.Forecast.Retrain.MonthsBack,
	)
}

// ProvideAnalyticsHandler creates the HTTP handler.
func ProvideAnalyticsHandler(
	logger *applogger.Logger,
	forecaster *usecase.Forecaster,
	analyzer *usecase.AnomalyAnalyzer,
	scenarios *usecase.ScenarioRunner,
) *api.AnalyticsHandler {
	return api.NewAnalyticsHandler(logger, forecaster, analyzer, scenarios)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handler *api.AnalyticsHandler,
	hub *ws.AlertsHub,
	consumer *pkgkafka.Consumer,
	ingest *usecase.LedgerIngestHandler,
	pipeline *mid.IngestPipeline,
	retrainQueue *queue.RedisQueue,
	scheduler *usecase.RetrainScheduler,
	alerts repository.AlertPublisher,
	chClient *pkgch.Client,
	redisCache *pkgcache.RedisCache,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if agg := cfg.Logging.Aggregation; agg.Enabled && agg.Topic != "" {
		interval := agg.FlushInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		threshold := agg.CountThreshold
		if threshold <= 0 {
			threshold = 100
		}
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   interval,
			CountThreshold: threshold,
			Topic:          agg.Topic,
			Publisher:      queue.NewRedisPublisher(logger, redisCache.Client(), queue.WithKeyPrefix("ledgercast:logs")),
		})
	}
	return server.New(cfg, logger, server.Components{
		API:          handler,
		AlertsHub:    hub,
		Consumer:     consumer,
		Ingest:       ingest,
		Pipeline:     pipeline,
		RetrainQueue: retrainQueue,
		Scheduler:    scheduler,
		Alerts:       alerts,
		ClickHouse:   chClient,
		Redis:        redisCache,
	})
}

func splitHostPort(addr string) (string, int) {
	host := addr
	port := 6379
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			p := 0
			for _, ch := range addr[i+1:] {
				if ch < '0' || ch > '9' {
					return host, port
				}
				p = p*10 + int(ch-'0')
			}
			if p > 0 {
				port = p
			}
			break
		}
	}
	return host, port
}
