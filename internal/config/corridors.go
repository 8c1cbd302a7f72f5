package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/radiancefleet/core/pkg/models"
)

// CorridorsConfig is corridors.yaml: precomputed named polygons, reduced to
// bounding boxes for the detectors' cheap intersection tests (§3 "Corridors
// are precomputed; detectors query by bounding box").
type CorridorsConfig struct {
	Corridors []CorridorDef `yaml:"corridors"`
}

type CorridorDef struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"corridor_type"`
	MinLat        float64  `yaml:"min_lat"`
	MinLon        float64  `yaml:"min_lon"`
	MaxLat        float64  `yaml:"max_lat"`
	MaxLon        float64  `yaml:"max_lon"`
	RiskWeight    float64  `yaml:"risk_weight"`
	IsJammingZone bool     `yaml:"is_jamming_zone"`
	IsOffshoreTerminal bool `yaml:"is_offshore_terminal"`
	IsArctic      bool     `yaml:"is_arctic"`
	Tags          []string `yaml:"tags"`
}

func LoadCorridorsConfig(path string) (*CorridorsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading corridors config: %w", err)
	}
	var cfg CorridorsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing corridors config: %w", err)
	}
	return &cfg, nil
}

// ToModels converts the loaded definitions into models.Corridor records
// ready for bulk import by the corridor-import step referenced in the
// Design Notes ("corridor import inside bulk setup calls flush, not
// commit").
func (c *CorridorsConfig) ToModels() []models.Corridor {
	out := make([]models.Corridor, 0, len(c.Corridors))
	for i, d := range c.Corridors {
		out = append(out, models.Corridor{
			ID:   int64(i + 1),
			Name: d.Name,
			Type: models.CorridorType(d.Type),
			BBox: models.BoundingBox{
				MinLat: d.MinLat, MinLon: d.MinLon,
				MaxLat: d.MaxLat, MaxLon: d.MaxLon,
			},
			RiskMultiplier:     d.RiskWeight,
			IsJammingZone:      d.IsJammingZone,
			IsOffshoreTerminal: d.IsOffshoreTerminal,
			IsArctic:           d.IsArctic,
			Tags:               d.Tags,
		})
	}
	return out
}

// DarkZones extracts the subset of corridors tagged dark_zone as
// models.DarkZone records, the shape detect/gap expects. Dark zones are
// modeled as corridors with corridor_type: dark_zone in corridors.yaml
// rather than a separate file, since they share every other field
// (name, bounding box) with an ordinary corridor.
func (c *CorridorsConfig) DarkZones() []models.DarkZone {
	var out []models.DarkZone
	for i, d := range c.Corridors {
		if models.CorridorType(d.Type) != models.CorridorDarkZone {
			continue
		}
		out = append(out, models.DarkZone{
			ID:   int64(i + 1),
			Name: d.Name,
			BBox: models.BoundingBox{MinLat: d.MinLat, MinLon: d.MinLon, MaxLat: d.MaxLat, MaxLon: d.MaxLon},
		})
	}
	return out
}

// coverageTable is the static substring mapping from §6. Order matters:
// priority when multiple substrings match a corridor name is the order
// listed here (spec.md §9 Open Question, resolved in that direction since
// §6 presents the table as an ordered list).
var coverageTable = []struct {
	substr  string
	quality models.CoverageQuality
}{
	{"baltic", models.CoverageGood},
	{"turkish straits", models.CoverageGood},
	{"black sea", models.CoveragePoor},
	{"persian gulf", models.CoverageNone},
	{"singapore", models.CoveragePartial},
	{"mediterranean", models.CoverageModerate},
	{"far east", models.CoveragePartial},
	{"nakhodka", models.CoveragePartial},
}

// CoverageQualityForCorridor applies the §6 static table, case-insensitive,
// in listed priority order.
func CoverageQualityForCorridor(corridorName string) models.CoverageQuality {
	lower := strings.ToLower(corridorName)
	for _, entry := range coverageTable {
		if strings.Contains(lower, entry.substr) {
			return entry.quality
		}
	}
	return models.CoverageUnknown
}
