// Package app wires configuration, ingest, the pipeline, and export
// into one runnable command.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/samber/do/v2"

	"github.com/tractwise/tractwise/internal/config"
	"github.com/tractwise/tractwise/internal/di/providers"
	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/export"
	"github.com/tractwise/tractwise/internal/id"
	"github.com/tractwise/tractwise/internal/ingest"
	"github.com/tractwise/tractwise/internal/logger"
	"github.com/tractwise/tractwise/internal/pipeline"
)

// Boundary files are standard GeoJSON, so coordinates arrive as
// WGS 84 lon/lat and get projected during normalization.
const boundaryCRS = 4326

// Property and column names matching the NHGIS extracts and district
// shapefile exports this tool is pointed at.
var (
	tractOptions = ingest.GeoJSONOptions{
		IDProperty: "GEOID",
		CRS:        boundaryCRS,
	}
	districtOptions = ingest.GeoJSONOptions{
		IDProperty:        "NAME",
		EventYearProperty: "designated",
		CRS:               boundaryCRS,
	}
	datesOptions = ingest.DatesOptions{
		IDColumn:   "district",
		YearColumn: "designated",
	}
	snapshotOptions = ingest.CSVOptions{
		IDComposite: []string{"STATEA", "COUNTYA", "TRACTA"},
		YearColumn:  "YEAR",
		Rename: map[string]string{
			"AV0AA": "pop_total",
			"B18AA": "pop_white",
			"B18AB": "pop_black",
			"A43AA": "units_total",
			"A43AB": "units_owner",
			"A43AC": "units_rental",
		},
		Derived: []ingest.Derivation{
			{Name: "pop_poc", Add: []string{"pop_total"}, Subtract: []string{"pop_white"}},
		},
	}
	// censusVariables maps API variable codes (2020 PL 94-171
	// redistricting table) to the same canonical names the CSV path
	// produces.
	censusVariables = map[string]string{
		"P1_001N": "pop_total",
		"P1_003N": "pop_white",
		"P1_004N": "pop_black",
		"H1_001N": "units_total",
	}
	ratioMetrics = []domain.RatioMetric{
		{Name: "pct_poc", Numerator: "pop_poc", Denominator: "pop_total"},
		{Name: "pct_rental", Numerator: "units_rental", Denominator: "units_total"},
	}
)

// App runs the interpolation end to end.
type App struct {
	cfg      *config.Config
	logger   *logger.Logger
	pipeline *pipeline.Pipeline
	geojson  *ingest.GeoJSONLoader
	csv      *ingest.CSVLoader
	dates    *ingest.DatesLoader
	census   *ingest.CensusClient
	writer   *export.CSVWriter
	store    *export.Store
}

// Provide builds the app from the DI container.
func Provide(i do.Injector) (*App, error) {
	storeHandle := do.MustInvoke[*providers.StoreHandle](i)
	return &App{
		cfg:      do.MustInvoke[*config.Config](i),
		logger:   do.MustInvoke[*logger.Logger](i),
		pipeline: do.MustInvoke[*pipeline.Pipeline](i),
		geojson:  do.MustInvoke[*ingest.GeoJSONLoader](i),
		csv:      do.MustInvoke[*ingest.CSVLoader](i),
		dates:    do.MustInvoke[*ingest.DatesLoader](i),
		census:   do.MustInvoke[*ingest.CensusClient](i),
		writer:   do.MustInvoke[*export.CSVWriter](i),
		store:    storeHandle.Store,
	}, nil
}

// Run loads the inputs, executes the pipeline, and writes every
// configured output.
func (a *App) Run(ctx context.Context) error {
	in, err := a.loadInputs(ctx)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		TargetCRS:       a.cfg.Pipeline.TargetCRS,
		Mode:            domain.ParseOverlayMode(a.cfg.Pipeline.OverlayMode),
		SliverThreshold: a.cfg.Pipeline.SliverThreshold,
		Workers:         a.cfg.Pipeline.Workers,
		DropUndated:     a.cfg.Pipeline.DropUndated,
		SkipInvalid:     a.cfg.Pipeline.SkipInvalidGeometries,
		Metrics:         ratioMetrics,
	}

	result, err := a.pipeline.Run(ctx, in, opts)
	if err != nil {
		return err
	}
	result.Report.Log(a.logger.Logger)

	if err := a.writer.WriteTimeSeries(a.cfg.Output.CSVPath, result.Series); err != nil {
		return err
	}
	if err := a.writer.WriteStatus(statusPath(a.cfg.Output.CSVPath), result.Status); err != nil {
		return err
	}

	if a.store != nil {
		runID := id.MustGenerate("run")
		summary := runSummary(runID, result.Report)
		if err := a.store.SaveRun(summary, result.Series); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) loadInputs(ctx context.Context) (pipeline.Input, error) {
	var in pipeline.Input

	sources, err := a.geojson.LoadRegions(a.cfg.Input.TractsPath, tractOptions)
	if err != nil {
		return in, err
	}
	targets, err := a.geojson.LoadRegions(a.cfg.Input.DistrictsPath, districtOptions)
	if err != nil {
		return in, err
	}
	snapshots, err := a.loadSnapshots(ctx)
	if err != nil {
		return in, err
	}

	if a.cfg.Input.EventYearsPath != "" {
		years, err := a.dates.LoadEventYears(a.cfg.Input.EventYearsPath, datesOptions)
		if err != nil {
			return in, err
		}
		ingest.ApplyEventYears(targets, years)
	}

	eventYears := make(map[string]int)
	for _, t := range targets {
		if t.EventYear != nil {
			eventYears[t.ID] = *t.EventYear
		}
	}

	in = pipeline.Input{
		Sources:    sources,
		Targets:    targets,
		Snapshots:  snapshots,
		EventYears: eventYears,
	}
	return in, nil
}

// loadSnapshots reads the attribute extract when one is configured and
// pulls from the Census API otherwise. Config validation guarantees
// that exactly the needed query fields are present for the API path.
func (a *App) loadSnapshots(ctx context.Context) (*domain.SnapshotSet, error) {
	if a.cfg.Input.SnapshotsPath != "" {
		return a.csv.LoadSnapshots(a.cfg.Input.SnapshotsPath, snapshotOptions)
	}

	snaps, err := a.census.FetchSnapshots(ctx, ingest.CensusQuery{
		Dataset:   a.cfg.Census.Dataset,
		Year:      a.cfg.Census.Year,
		Variables: censusVariables,
		State:     a.cfg.Census.State,
		County:    a.cfg.Census.County,
	})
	if err != nil {
		return nil, err
	}

	set := domain.NewSnapshotSet()
	for _, snap := range snaps {
		// The PL tables carry no direct people-of-color count, so
		// derive it the same way the CSV path does.
		total, okTotal := snap.Values["pop_total"]
		white, okWhite := snap.Values["pop_white"]
		if okTotal && okWhite {
			snap.Values["pop_poc"] = total - white
		}
		if err := set.Add(snap); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func statusPath(csvPath string) string {
	base := strings.TrimSuffix(csvPath, ".csv")
	return base + "_status.csv"
}

func runSummary(runID string, r *pipeline.Report) export.RunSummary {
	return export.RunSummary{
		ID:                runID,
		CreatedAt:         time.Now(),
		OverlayMode:       r.Mode,
		TargetCRS:         r.TargetCRS,
		Sources:           r.Sources,
		Targets:           r.Targets,
		Slices:            r.Slices,
		SuppressedSlivers: r.SuppressedSlivers,
		SkippedInvalid:    r.SkippedInvalid,
		UnmatchedSources:  r.UnmatchedSources,
		UnmatchedTargets:  r.UnmatchedTargets,
		MissingSnapshots:  r.MissingSnapshots,
		DegenerateAreas:   r.DegenerateAreas,
	}
}
