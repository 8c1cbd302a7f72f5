package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PIClubsConfig is legitimate_pi_clubs.yaml: the International Group
// membership list used for the pi_validation legitimacy deduction, plus a
// fraudulent-club blocklist that feeds PIStatus classification.
type PIClubsConfig struct {
	LegitimateClubs []PIClub `yaml:"legitimate_clubs"`
	KnownFraudulent []string `yaml:"known_fraudulent"`
	LastUpdated     string   `yaml:"last_updated"`
}

type PIClub struct {
	Name  string `yaml:"name"`
	Short string `yaml:"short"`
}

func (c *PIClubsConfig) IsLegitimate(clubName string) bool {
	for _, club := range c.LegitimateClubs {
		if club.Name == clubName || club.Short == clubName {
			return true
		}
	}
	return false
}

func (c *PIClubsConfig) IsFraudulent(clubName string) bool {
	for _, name := range c.KnownFraudulent {
		if name == clubName {
			return true
		}
	}
	return false
}

// FraudulentRegistryConfig is fraudulent_registries.yaml: flag-state
// registries tiered by how aggressively they're associated with sanctions
// evasion, feeding the fraudulent_registry_tier_* scoring signals.
type FraudulentRegistryConfig struct {
	Tier0Fraudulent []RegistryEntry `yaml:"tier_0_fraudulent"`
	Tier1HighRisk   []RegistryEntry `yaml:"tier_1_high_risk"`
	Tier2Monitored  []RegistryEntry `yaml:"tier_2_monitored"`
}

type RegistryEntry struct {
	CountryCode string `yaml:"country_code"`
	Name        string `yaml:"name"`
}

// Tier returns 0, 1, 2 or -1 (not listed) for a flag country code.
func (c *FraudulentRegistryConfig) Tier(countryCode string) int {
	for _, e := range c.Tier0Fraudulent {
		if e.CountryCode == countryCode {
			return 0
		}
	}
	for _, e := range c.Tier1HighRisk {
		if e.CountryCode == countryCode {
			return 1
		}
	}
	for _, e := range c.Tier2Monitored {
		if e.CountryCode == countryCode {
			return 2
		}
	}
	return -1
}

// ScrappedVesselsConfig is scrapped_vessels.yaml: IMOs known to have been
// demolished, used by the scrapped-IMO-reuse spoofing sub-detector.
type ScrappedVesselsConfig struct {
	ScrappedIMOs []ScrappedIMO `yaml:"scrapped_imos"`
}

type ScrappedIMO struct {
	IMO          string `yaml:"imo"`
	Name         string `yaml:"name"`
	ScrappedYear int    `yaml:"scrapped_year"`
	Notes        string `yaml:"notes"`
}

func (c *ScrappedVesselsConfig) IsScrapped(imo string) (ScrappedIMO, bool) {
	for _, s := range c.ScrappedIMOs {
		if s.IMO == imo {
			return s, true
		}
	}
	return ScrappedIMO{}, false
}

func loadYAML[T any](path string) (*T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var v T
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &v, nil
}

func LoadPIClubsConfig(path string) (*PIClubsConfig, error) {
	return loadYAML[PIClubsConfig](path)
}

func LoadFraudulentRegistryConfig(path string) (*FraudulentRegistryConfig, error) {
	return loadYAML[FraudulentRegistryConfig](path)
}

func LoadScrappedVesselsConfig(path string) (*ScrappedVesselsConfig, error) {
	return loadYAML[ScrappedVesselsConfig](path)
}
