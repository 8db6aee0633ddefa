// Package di provides dependency injection configuration for the
// tractwise pipeline.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tractwise/tractwise/internal/app"
	"github.com/tractwise/tractwise/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Geometry layer
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideNormalizer)

	// Stage engines
	do.Provide(injector, providers.ProvideOverlayEngine)
	do.Provide(injector, providers.ProvideAllocator)
	do.Provide(injector, providers.ProvideAligner)
	do.Provide(injector, providers.ProvidePipeline)

	// IO layer
	do.Provide(injector, providers.ProvideGeoJSONLoader)
	do.Provide(injector, providers.ProvideCSVLoader)
	do.Provide(injector, providers.ProvideDatesLoader)
	do.Provide(injector, providers.ProvideCensusClient)
	do.Provide(injector, providers.ProvideCSVWriter)
	do.Provide(injector, providers.ProvideStore)

	// Application
	do.Provide(injector, app.Provide)

	return injector
}
