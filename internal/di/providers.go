package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	domrepo "BarFlow/internal/domain/repository"
	"BarFlow/internal/handler/api"
	internalrepo "BarFlow/internal/repository"
	"BarFlow/internal/service/binance"
	"BarFlow/internal/service/polygon"
	"BarFlow/internal/service/ratelimit"
	"BarFlow/internal/usecase"
	"BarFlow/pkg/cache"
	pkgch "BarFlow/pkg/clickhouse"
	"BarFlow/pkg/config"
	xhttp "BarFlow/pkg/http"
	pkgkafka "BarFlow/pkg/kafka"
	applogger "BarFlow/pkg/logger"
	"BarFlow/pkg/metrics"
	"BarFlow/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// bars schema exists. The cleanup closes the connection pool.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
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
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideBarStore creates the ClickHouse-backed bar store.
func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, log *applogger.Logger) domrepo.BarStore {
	return internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database, log)
}

// ProvideLimiter creates the shared provider rate limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideProviders builds the provider registry. Binance is always
// present; Polygon joins when an API key is configured.
func ProvideProviders(cfg *config.Config, limiter *ratelimit.Limiter, log *applogger.Logger) map[string]domrepo.BarProvider {
	providers := map[string]domrepo.BarProvider{}

	bn := binance.NewClient(
		cfg.Providers.Binance.BaseURL,
		cfg.Providers.Binance.Timeout,
		limiter,
		cfg.Providers.Binance.RequestsPerMinute,
		log,
	)
	providers[bn.Name()] = bn

	if cfg.Providers.Polygon.APIKey != "" {
		pg := polygon.NewClient(
			cfg.Providers.Polygon.BaseURL,
			cfg.Providers.Polygon.APIKey,
			cfg.Providers.Polygon.Timeout,
			limiter,
			cfg.Providers.Polygon.RequestsPerMinute,
			log,
		)
		providers[pg.Name()] = pg
	}
	return providers
}

// ProvideBackfiller creates the gap backfiller.
func ProvideBackfiller(store domrepo.BarStore, m domrepo.Metrics, log *applogger.Logger) *usecase.Backfiller {
	return usecase.NewBackfiller(store, m, log)
}

// ProvideRollup creates the rollup cache coordinator.
func ProvideRollup(store domrepo.BarStore, bf *usecase.Backfiller, m domrepo.Metrics, log *applogger.Logger) *usecase.Rollup {
	return usecase.NewRollup(store, bf, m, log)
}

// ProvideDataService creates the public data service facade.
func ProvideDataService(
	store domrepo.BarStore,
	providers map[string]domrepo.BarProvider,
	bf *usecase.Backfiller,
	ru *usecase.Rollup,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.DataService {
	return usecase.NewDataService(store, providers, bf, ru, m, log)
}

// ProvideCache creates the response cache: layered memory+Redis when
// Redis is configured, plain in-process memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Host),
		cache.WithRedisPort(cfg.Cache.Port),
		cache.WithRedisPassword(cfg.Cache.Password),
		cache.WithRedisDB(cfg.Cache.DB),
		cache.WithRedisPrefix("barflow"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideHTTPHandler creates the bars API handler.
func ProvideHTTPHandler(log *applogger.Logger, svc *usecase.DataService, c cache.Service, cfg *config.Config) xhttp.Handler {
	return api.NewBarsHandler(log, svc, c, cfg.Cache.TTL)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when no brokers
// are configured.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
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
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, herr error) {
			log.Warn("kafka message failed",
				applogger.String("topic", topic),
				applogger.Error(herr),
			)
		},
	})
	return consumer, nil
}

// ProvideKafkaProducer creates a Kafka producer for the tick topic, or
// nil when the stream writes directly to the store.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Stream.Backend != "kafka" {
		return nil, nil
	}
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

// ProvideResampler creates the tick-to-minute resampler for the stream
// provider.
func ProvideResampler(cfg *config.Config, store domrepo.BarStore, m domrepo.Metrics, log *applogger.Logger) *usecase.TickResampler {
	return usecase.NewTickResampler(cfg.Kafka.Topic, cfg.Stream.Provider, store, m, log)
}

// ProvideTickStream creates the live tick stream client.
func ProvideTickStream(cfg *config.Config, log *applogger.Logger) domrepo.TickStream {
	return binance.NewStream(
		cfg.Providers.Binance.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		log,
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	resampler *usecase.TickResampler,
	stream domrepo.TickStream,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, log, handler, consumer, producer, resampler, stream, chClient)
}
