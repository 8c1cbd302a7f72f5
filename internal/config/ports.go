package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/radiancefleet/core/pkg/models"
)

// PortsConfig is ports.yaml: static port locations used by the draught and
// loitering detectors' proximity checks. Ports change rarely enough that,
// like corridors, a flat file beats a live table for this.
type PortsConfig struct {
	Ports []PortDef `yaml:"ports"`
}

type PortDef struct {
	Name               string  `yaml:"name"`
	Lat                float64 `yaml:"lat"`
	Lon                float64 `yaml:"lon"`
	IsOffshoreTerminal bool    `yaml:"is_offshore_terminal"`
}

func LoadPortsConfig(path string) (*PortsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading ports config: %w", err)
	}
	var cfg PortsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing ports config: %w", err)
	}
	return &cfg, nil
}

// ToModels converts the loaded definitions into models.Port records.
func (c *PortsConfig) ToModels() []models.Port {
	out := make([]models.Port, 0, len(c.Ports))
	for i, d := range c.Ports {
		out = append(out, models.Port{
			ID: int64(i + 1), Name: d.Name, Lat: d.Lat, Lon: d.Lon,
			IsOffshoreTerminal: d.IsOffshoreTerminal,
		})
	}
	return out
}
