package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"BarFlow/internal/usecase"
	pkgch "BarFlow/pkg/clickhouse"
	"BarFlow/pkg/config"
	xhttp "BarFlow/pkg/http"
	pkgkafka "BarFlow/pkg/kafka"
	applogger "BarFlow/pkg/logger"

	domrepo "BarFlow/internal/domain/repository"
)

var errNoStream = errors.New("tick stream not configured")

// App owns the long-running process modes: Run serves the HTTP API (plus
// the Kafka tick consumer when configured), RunStream pumps the provider
// WebSocket into the canonical 1m series.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
	producer    *pkgkafka.Producer
	resampler   *usecase.TickResampler
	stream      domrepo.TickStream
	chClient    *pkgch.Client
}

// New assembles the application from its wired dependencies. consumer,
// producer, and stream may be nil depending on the configured mode.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	resampler *usecase.TickResampler,
	stream domrepo.TickStream,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		httpHandler: handler,
		consumer:    consumer,
		producer:    producer,
		resampler:   resampler,
		stream:      stream,
		chClient:    chClient,
	}
}

// Run starts the HTTP API and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Consume the tick topic into the resampler when Kafka is configured,
	// so the API node also keeps the 1m series current.
	if a.consumer != nil && a.resampler != nil {
		a.consumer.RegisterHandler(a.resampler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.resampler.Topic()))
	}

	a.waitForSignal()
	return a.shutdown(ctx)
}

// RunStream connects the live tick stream and folds it into minute bars
// until interrupted. With stream.backend=kafka the raw ticks are published
// instead and a consumer group does the folding.
func (a *App) RunStream() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.stream == nil {
		a.log.Error("stream mode requires a configured tick stream")
		return errNoStream
	}
	if err := a.stream.Connect(ctx); err != nil {
		return err
	}
	if err := a.stream.Subscribe(ctx); err != nil {
		return err
	}

	toKafka := a.cfg.Stream.Backend == "kafka" && a.producer != nil
	if toKafka && a.consumer != nil && a.resampler != nil {
		a.consumer.RegisterHandler(a.resampler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
	}

	go a.pump(ctx, toKafka)
	a.log.Info("stream started",
		applogger.String("provider", a.cfg.Stream.Provider),
		applogger.String("backend", a.cfg.Stream.Backend),
		applogger.Strings("symbols", a.cfg.Stream.Symbols),
	)

	a.waitForSignal()
	return a.shutdown(ctx)
}

// pump moves ticks from the stream into the backend, reconnecting on
// read errors until ctx is done.
func (a *App) pump(ctx context.Context, toKafka bool) {
	for {
		ticks, errs := a.stream.Read(ctx)
		for tick := range ticks {
			if toKafka {
				if err := a.producer.Publish(ctx, a.cfg.Kafka.Topic, []byte(tick.Symbol), tick); err != nil {
					a.log.Warn("tick publish failed", applogger.Error(err))
				}
				continue
			}
			if err := a.resampler.Ingest(ctx, tick.Symbol, tick.Time(), tick.Price, tick.Volume); err != nil {
				a.log.Warn("tick ingest failed", applogger.Error(err))
			}
		}
		if err, ok := <-errs; ok && err != nil {
			a.log.Warn("stream read error", applogger.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := a.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error("stream reconnect failed", applogger.Error(err))
		}
	}
}

func (a *App) waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	a.log.Info("shutdown signal received")
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("stream close error", applogger.Error(err))
		}
	}

	// Persist the open minute bars before the process exits.
	if a.resampler != nil {
		if err := a.resampler.Flush(ctx); err != nil {
			a.log.Warn("resampler flush error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
