package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario seeds a run's initial DCU switch state and fault RNG seed from
// a file instead of always starting cold and randomly, for reproducing a
// specific training exercise.
type Scenario struct {
	Switches struct {
		BatteryLU bool `yaml:"battery_lu"`
		BatteryPS bool `yaml:"battery_ps"`
		O2        bool `yaml:"o2"`
		Fan       bool `yaml:"fan"`
		Pump      bool `yaml:"pump"`
		CO2       bool `yaml:"co2"`
	} `yaml:"switches"`
	FaultSeed int64 `yaml:"fault_seed"`
}

// LoadScenario reads a scenario YAML file. A blank path is not an error:
// it signals "no scenario, run with defaults."
func LoadScenario(path string) (*Scenario, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %q: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file %q: %w", path, err)
	}
	return &s, nil
}
