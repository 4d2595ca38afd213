//go:build wireinject
// +build wireinject

package di

import (
	"BarFlow/internal/usecase"
	"BarFlow/pkg/config"
	"BarFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up the long-running application (serve and stream
// modes). Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaConsumer,
		ProvideKafkaProducer,
		ProvideCache,

		// Store and providers
		ProvideBarStore,
		ProvideLimiter,
		ProvideProviders,
		ProvideTickStream,

		// Use cases
		ProvideBackfiller,
		ProvideRollup,
		ProvideDataService,
		ProvideResampler,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeService wires up just the data service for one-shot CLI
// commands. The cleanup closes the ClickHouse pool.
func InitializeService(cfg *config.Config) (*usecase.DataService, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideBarStore,
		ProvideLimiter,
		ProvideProviders,
		ProvideBackfiller,
		ProvideRollup,
		ProvideDataService,
	)
	return nil, nil, nil
}
