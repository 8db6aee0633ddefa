// Package providers contains dependency injection providers for the
// tractwise pipeline.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/tractwise/tractwise/internal/allocate"
	"github.com/tractwise/tractwise/internal/config"
	"github.com/tractwise/tractwise/internal/export"
	"github.com/tractwise/tractwise/internal/geometry"
	"github.com/tractwise/tractwise/internal/ingest"
	"github.com/tractwise/tractwise/internal/logger"
	"github.com/tractwise/tractwise/internal/overlay"
	"github.com/tractwise/tractwise/internal/pipeline"
	"github.com/tractwise/tractwise/internal/timeseries"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting tractwise",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"overlay_mode", cfg.Pipeline.OverlayMode,
		"target_crs", cfg.Pipeline.TargetCRS,
	)

	return log, nil
}

// ProvideRegistry provides the coordinate system registry.
func ProvideRegistry(i do.Injector) (*geometry.Registry, error) {
	return geometry.NewRegistry(), nil
}

// ProvideNormalizer provides the CRS normalizer.
func ProvideNormalizer(i do.Injector) (*geometry.Normalizer, error) {
	registry := do.MustInvoke[*geometry.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)
	return geometry.NewNormalizer(registry, log.Logger), nil
}

// ProvideOverlayEngine provides the overlay engine.
func ProvideOverlayEngine(i do.Injector) (*overlay.Engine, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return overlay.NewEngine(log.Logger), nil
}

// ProvideAllocator provides the allocation engine.
func ProvideAllocator(i do.Injector) (*allocate.Engine, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return allocate.NewEngine(log.Logger), nil
}

// ProvideAligner provides the time series aligner.
func ProvideAligner(i do.Injector) (*timeseries.Aligner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return timeseries.NewAligner(log.Logger), nil
}

// ProvidePipeline provides the assembled pipeline.
func ProvidePipeline(i do.Injector) (*pipeline.Pipeline, error) {
	normalizer := do.MustInvoke[*geometry.Normalizer](i)
	ov := do.MustInvoke[*overlay.Engine](i)
	al := do.MustInvoke[*allocate.Engine](i)
	ts := do.MustInvoke[*timeseries.Aligner](i)
	log := do.MustInvoke[*logger.Logger](i)
	return pipeline.New(normalizer, ov, al, ts, log.Logger), nil
}

// ProvideGeoJSONLoader provides the boundary file loader.
func ProvideGeoJSONLoader(i do.Injector) (*ingest.GeoJSONLoader, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return ingest.NewGeoJSONLoader(log.Logger), nil
}

// ProvideCSVLoader provides the attribute extract loader.
func ProvideCSVLoader(i do.Injector) (*ingest.CSVLoader, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return ingest.NewCSVLoader(log.Logger), nil
}

// ProvideDatesLoader provides the event year loader.
func ProvideDatesLoader(i do.Injector) (*ingest.DatesLoader, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return ingest.NewDatesLoader(log.Logger), nil
}

// ProvideCensusClient provides the Census API client.
func ProvideCensusClient(i do.Injector) (*ingest.CensusClient, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return ingest.NewCensusClient(cfg.Census.BaseURL, cfg.Census.APIKey, cfg.Census.Timeout, log.Logger), nil
}

// ProvideCSVWriter provides the CSV exporter.
func ProvideCSVWriter(i do.Injector) (*export.CSVWriter, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return export.NewCSVWriter(log.Logger), nil
}

// StoreHandle wraps the results store for lifecycle management.
type StoreHandle struct {
	Store *export.Store
}

// Shutdown closes the store if one was opened.
func (h *StoreHandle) Shutdown() error {
	if h.Store == nil {
		return nil
	}
	return h.Store.Close()
}

// ProvideStore provides the SQLite results store. The handle is empty
// when no SQLite output path is configured.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Output.SQLitePath == "" {
		return &StoreHandle{}, nil
	}

	log := do.MustInvoke[*logger.Logger](i)
	store, err := export.Open(cfg.Output.SQLitePath, log.Logger)
	if err != nil {
		return nil, err
	}
	return &StoreHandle{Store: store}, nil
}
