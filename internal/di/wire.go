//go:build wireinject
// +build wireinject

package di

import (
	"MarketRelay/pkg/config"
	"MarketRelay/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Relay core
		ProvideHub,
		ProvideUpstream,
		ProvideDecoder,
		ProvideBackoff,
		ProvideRelaySupervisor,

		// Mirrors
		ProvideKafkaProducer,
		ProvideMirrors,

		// HTTP
		ProvideRateLimiter,
		ProvideWSHandler,
		ProvideRelayHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
