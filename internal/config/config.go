// Package config provides application configuration management with
// support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Input    InputConfig
	Pipeline PipelineConfig
	Output   OutputConfig
	Census   CensusConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// InputConfig holds the paths of the pipeline's input files.
type InputConfig struct {
	// TractsPath is the GeoJSON file of source regions (census tracts).
	TractsPath string
	// DistrictsPath is the GeoJSON file of target regions (historic districts).
	DistrictsPath string
	// SnapshotsPath is the long-format CSV of attribute values by (tract, year).
	SnapshotsPath string
	// EventYearsPath is an optional CSV of district designation years.
	EventYearsPath string
}

// PipelineConfig holds tuning knobs for the interpolation run.
type PipelineConfig struct {
	// TargetCRS is the EPSG code of the projected system all geometry
	// is normalized to before any area is computed (default: 2248,
	// Maryland State Plane NAD83, US survey feet).
	TargetCRS int
	// OverlayMode is "intersection" or "union" (default: union).
	OverlayMode string
	// SliverThreshold is the minimum slice area kept, in square units
	// of the target CRS (default: 1e-6).
	SliverThreshold float64
	// Workers caps the number of concurrent per-year workers
	// (default: 0, meaning no cap - one worker per census year).
	Workers int
	// DropUndated excludes districts without a designation year from
	// the time-series output (default: false; they are kept with a
	// null years-since value).
	DropUndated bool
	// SkipInvalidGeometries turns malformed input polygons into
	// logged skips instead of aborting the run (default: false).
	SkipInvalidGeometries bool
}

// OutputConfig holds output destinations.
type OutputConfig struct {
	// CSVPath is the long-format output table (default: by_district.csv).
	CSVPath string
	// SQLitePath, when set, also persists the run to a SQLite database.
	SQLitePath string
}

// CensusConfig holds Census API client configuration. The client is
// the fallback snapshot source: when no snapshots CSV is configured,
// tract attributes are fetched from the API instead, scoped by the
// dataset, year, state, and county below.
type CensusConfig struct {
	// BaseURL is the API root (default: https://api.census.gov/data).
	BaseURL string
	// APIKey authenticates requests; optional but raises the quota.
	APIKey string
	// Dataset is the API path segment (default: dec/pl).
	Dataset string
	// Year is the census year to fetch.
	Year int
	// State and County are FIPS codes scoping the tract query.
	State  string
	County string
	// Timeout bounds a single API request (default: 30s).
	Timeout time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")

	tractsPath := flag.String("tracts", "", "GeoJSON file of census tracts")
	districtsPath := flag.String("districts", "", "GeoJSON file of historic districts")
	snapshotsPath := flag.String("snapshots", "", "CSV of attribute values by tract and year")
	eventYearsPath := flag.String("designation-years", "", "CSV of district designation years")

	targetCRS := flag.String("target-crs", "", "EPSG code geometry is normalized to (default: 2248)")
	overlayMode := flag.String("overlay-mode", "", "Overlay mode: intersection or union (default: union)")
	sliverThreshold := flag.String("sliver-threshold", "", "Minimum slice area kept (default: 1e-6)")
	workers := flag.String("workers", "", "Cap on concurrent per-year workers (default: no cap)")
	dropUndated := flag.String("drop-undated", "", "Drop districts without a designation year (default: false)")
	skipInvalid := flag.String("skip-invalid-geometries", "", "Skip malformed polygons instead of aborting (default: false)")

	csvPath := flag.String("out", "", "Output CSV path (default: by_district.csv)")
	sqlitePath := flag.String("out-sqlite", "", "Optional SQLite output path")

	censusDataset := flag.String("census-dataset", "", "Census API dataset path (default: dec/pl)")
	censusYear := flag.String("census-year", "", "Census year to fetch when no snapshots CSV is given")
	censusState := flag.String("census-state", "", "State FIPS code for the census query")
	censusCounty := flag.String("census-county", "", "County FIPS code for the census query")
	censusTimeout := flag.String("census-timeout", "", "Census API request timeout (default: 30s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Input: InputConfig{
			TractsPath:     getConfigValue(*tractsPath, "TRACTS_PATH", ""),
			DistrictsPath:  getConfigValue(*districtsPath, "DISTRICTS_PATH", ""),
			SnapshotsPath:  getConfigValue(*snapshotsPath, "SNAPSHOTS_PATH", ""),
			EventYearsPath: getConfigValue(*eventYearsPath, "DESIGNATION_YEARS_PATH", ""),
		},
		Pipeline: PipelineConfig{
			TargetCRS:             getIntConfigValue(*targetCRS, "TARGET_CRS", 2248),
			OverlayMode:           getConfigValue(*overlayMode, "OVERLAY_MODE", "union"),
			SliverThreshold:       getFloatConfigValue(*sliverThreshold, "SLIVER_THRESHOLD", 1e-6),
			Workers:               getIntConfigValue(*workers, "WORKERS", 0),
			DropUndated:           getBoolConfigValue(*dropUndated, "DROP_UNDATED", false),
			SkipInvalidGeometries: getBoolConfigValue(*skipInvalid, "SKIP_INVALID_GEOMETRIES", false),
		},
		Output: OutputConfig{
			CSVPath:    getConfigValue(*csvPath, "OUTPUT_CSV_PATH", "by_district.csv"),
			SQLitePath: getConfigValue(*sqlitePath, "OUTPUT_SQLITE_PATH", ""),
		},
		Census: CensusConfig{
			BaseURL: getConfigValue("", "CENSUS_BASE_URL", "https://api.census.gov/data"),
			APIKey:  getConfigValue("", "CENSUS_API_KEY", ""),
			Dataset: getConfigValue(*censusDataset, "CENSUS_DATASET", "dec/pl"),
			Year:    getIntConfigValue(*censusYear, "CENSUS_YEAR", 0),
			State:   getConfigValue(*censusState, "CENSUS_STATE", ""),
			County:  getConfigValue(*censusCounty, "CENSUS_COUNTY", ""),
		},
	}

	timeoutStr := getConfigValue(*censusTimeout, "CENSUS_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid census timeout %q: %w", timeoutStr, err)
	}
	cfg.Census.Timeout = timeout

	// Expand relative input paths so a run can be launched from anywhere.
	if err := cfg.expandInputPaths(); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	validModes := map[string]bool{
		"intersection": true,
		"union":        true,
	}
	if !validModes[c.Pipeline.OverlayMode] {
		return fmt.Errorf("invalid overlay mode: %s (must be intersection or union)", c.Pipeline.OverlayMode)
	}

	if c.Pipeline.TargetCRS <= 0 {
		return fmt.Errorf("invalid target CRS: %d", c.Pipeline.TargetCRS)
	}

	if c.Pipeline.SliverThreshold < 0 {
		return fmt.Errorf("sliver threshold must be non-negative, got %g", c.Pipeline.SliverThreshold)
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Pipeline.Workers)
	}

	if c.Output.CSVPath == "" {
		return errors.New("output CSV path cannot be empty")
	}

	// Snapshots come from exactly one of two sources: a CSV extract,
	// or the Census API (which needs a fully scoped query).
	if c.Input.SnapshotsPath == "" {
		if c.Census.State == "" || c.Census.County == "" || c.Census.Year == 0 {
			return errors.New("either SNAPSHOTS_PATH or a census query (CENSUS_STATE, CENSUS_COUNTY, CENSUS_YEAR) is required")
		}
	}

	return nil
}

// expandInputPaths expands ~ and makes every configured path absolute.
func (c *Config) expandInputPaths() error {
	for _, p := range []*string{
		&c.Input.TractsPath,
		&c.Input.DistrictsPath,
		&c.Input.SnapshotsPath,
		&c.Input.EventYearsPath,
		&c.Output.CSVPath,
		&c.Output.SQLitePath,
	} {
		if *p == "" {
			continue
		}
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
