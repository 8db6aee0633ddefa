package geometry

import (
	"log/slog"
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

// Normalizer reprojects regions into one projected system and caches
// each region's planar area. It never mutates caller-owned geometry;
// normalized regions are new values.
type Normalizer struct {
	registry *Registry
	logger   *slog.Logger
}

// NewNormalizer creates a normalizer backed by the given CRS registry.
func NewNormalizer(registry *Registry, logger *slog.Logger) *Normalizer {
	return &Normalizer{registry: registry, logger: logger}
}

// Normalize returns copies of the regions expressed in the target
// system, with Area computed and cached.
//
// The target must be a projected, linear-unit system: area ratios in
// degrees are meaningless. Regions already in the target system pass
// through unchanged (geometries are immutable and safe to share).
// A region in an unknown system, or one whose coordinates have no
// image under the target projection, fails the whole call with a
// projection error - downstream area math would be invalid.
func (n *Normalizer) Normalize(regions []domain.Region, targetCode int) ([]domain.Region, error) {
	target, err := n.registry.Lookup(targetCode)
	if err != nil {
		return nil, err
	}
	if target.Geographic {
		return nil, errors.Projectionf("target EPSG:%d is geographic; areas require a projected system", targetCode)
	}

	out := make([]domain.Region, 0, len(regions))
	for _, region := range regions {
		normalized, err := n.normalizeOne(region, target)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}

	n.logger.Debug("regions normalized",
		"count", len(out),
		"target_crs", targetCode,
	)
	return out, nil
}

func (n *Normalizer) normalizeOne(region domain.Region, target System) (domain.Region, error) {
	g := region.Geometry

	switch {
	case region.CRS == target.Code:
		// Already in the pipeline system.

	default:
		source, err := n.registry.Lookup(region.CRS)
		if err != nil {
			return domain.Region{}, errors.Wrapf(err, errors.CodeProjection, "region %s", region.ID)
		}

		if source.Geographic {
			g = g.TransformXY(func(xy geom.XY) geom.XY {
				x, y := target.Projection.Forward(xy.X, xy.Y)
				return geom.XY{X: x, Y: y}
			})
		} else {
			// Planar to planar goes through geographic coordinates.
			g = g.TransformXY(func(xy geom.XY) geom.XY {
				lon, lat := source.Projection.Inverse(xy.X, xy.Y)
				x, y := target.Projection.Forward(lon, lat)
				return geom.XY{X: x, Y: y}
			})
		}
	}

	area := g.Area()
	if math.IsNaN(area) || math.IsInf(area, 0) {
		return domain.Region{}, errors.Projectionf("region %s: projection to EPSG:%d is undefined for its coordinates", region.ID, target.Code)
	}

	normalized := region
	normalized.Geometry = g
	normalized.CRS = target.Code
	normalized.Area = area
	return normalized, nil
}
