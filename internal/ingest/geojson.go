// Package ingest loads regions, attribute snapshots, and event years
// from the formats the pipeline consumes: GeoJSON boundary files,
// NHGIS-style CSV extracts, and the Census API.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

// GeoJSONOptions controls how features become regions.
type GeoJSONOptions struct {
	// IDProperty names the feature property holding the region ID.
	// When empty, the feature's top-level "id" member is used.
	IDProperty string
	// EventYearProperty, when set, names a property holding the
	// region's event year. Features without it stay undated.
	EventYearProperty string
	// CRS is the EPSG code the file's coordinates are expressed in.
	// GeoJSON itself is nominally WGS 84, but boundary files exported
	// from state plane workflows routinely are not.
	CRS int
}

// geoJSONFeature is decoded by hand rather than through the geom
// feature types so that geometry parsing can skip validation: the
// overlay engine owns the malformed-polygon policy (abort or
// skip-and-count), and validating here would abort the whole file
// before that policy could apply.
type geoJSONFeature struct {
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoJSONCollection struct {
	Features []geoJSONFeature `json:"features"`
}

// GeoJSONLoader reads boundary files into regions.
type GeoJSONLoader struct {
	logger *slog.Logger
}

// NewGeoJSONLoader creates a loader.
func NewGeoJSONLoader(logger *slog.Logger) *GeoJSONLoader {
	return &GeoJSONLoader{logger: logger}
}

// LoadRegions reads a GeoJSON FeatureCollection from path. Every
// feature must carry an ID; numeric properties other than the ID and
// event-year properties are kept as region attributes. Geometry is
// parsed but not validated.
func (l *GeoJSONLoader) LoadRegions(path string, opts GeoJSONOptions) ([]domain.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "read boundary file %s", path)
	}

	var fc geoJSONCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "parse GeoJSON %s", path)
	}

	regions := make([]domain.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, err := featureID(f, opts.IDProperty)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeValidation, "%s feature %d", path, i)
		}

		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			return nil, errors.Validationf("%s feature %d (%s): missing geometry", path, i, id)
		}
		g, err := geom.UnmarshalGeoJSON(f.Geometry, geom.NoValidate{})
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeValidation, "%s feature %d (%s)", path, i, id)
		}

		r := domain.Region{
			ID:       id,
			Geometry: g,
			CRS:      opts.CRS,
		}

		for name, v := range f.Properties {
			if name == opts.IDProperty {
				continue
			}
			num, ok := asFloat(v)
			if !ok {
				continue
			}
			if name == opts.EventYearProperty {
				year := int(num)
				r.EventYear = &year
				continue
			}
			if r.Attributes == nil {
				r.Attributes = make(map[string]float64)
			}
			r.Attributes[name] = num
		}

		regions = append(regions, r)
	}

	l.logger.Info("loaded boundary file",
		"path", path,
		"regions", len(regions),
		"crs", opts.CRS,
	)
	return regions, nil
}

func featureID(f geoJSONFeature, property string) (string, error) {
	var raw any
	if property != "" {
		raw = f.Properties[property]
		if raw == nil {
			return "", fmt.Errorf("missing property %q", property)
		}
	} else {
		raw = f.ID
		if raw == nil {
			return "", fmt.Errorf("feature has no id")
		}
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty region ID")
		}
		return v, nil
	case float64:
		// JSON numbers arrive as float64; GEOIDs are integral.
		return fmt.Sprintf("%.0f", v), nil
	default:
		return "", fmt.Errorf("region ID has unsupported type %T", raw)
	}
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
