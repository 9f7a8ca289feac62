package sim

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"heatsense/core"
)

// Scenario describes one simulated run.
type Scenario struct {
	Name           string         `yaml:"name"`
	Duration       time.Duration  `yaml:"duration"`
	Step           time.Duration  `yaml:"step"`            // plant and poll interval
	TickPeriod     time.Duration  `yaml:"tick_period"`     // 0 keeps the standby rate
	ReportInterval time.Duration  `yaml:"report_interval"` // 0 disables periodic reports
	ControlPeriod  time.Duration  `yaml:"control_period"`  // bang-bang control interval
	NvFile         string         `yaml:"nv_file"`         // empty keeps the record in memory
	Heaters        []HeaterConfig `yaml:"heaters"`
	Probe          ProbeConfig    `yaml:"probe"`
}

// HeaterConfig describes a heater, its thermistor and the thermal plant.
type HeaterConfig struct {
	Name     string  `yaml:"name"`
	R25      float64 `yaml:"r25"`
	Beta     float64 `yaml:"beta"`
	SeriesR  float64 `yaml:"series_r"`
	Ambient  float64 `yaml:"ambient"`   // C
	HeatRate float64 `yaml:"heat_rate"` // C/s at full power, ignoring losses
	Loss     float64 `yaml:"loss"`      // 1/s towards ambient
	Target   float64 `yaml:"target"`    // 0 leaves the heater off
	// Fault injection. Zero durations never fire.
	DisconnectAt time.Duration `yaml:"disconnect_at"`
	ShortAt      time.Duration `yaml:"short_at"`
}

// ProbeConfig describes the probe and the Z move towards the bed.
type ProbeConfig struct {
	Type         string        `yaml:"type"` // switch, ir, modulated-ir, ultrasonic
	StartHeight  float64       `yaml:"start_height"`
	Speed        float64       `yaml:"speed"` // mm/s downwards, 0 holds position
	StartAt      time.Duration `yaml:"start_at"`
	Peak         float64       `yaml:"peak"`          // reflected ADC counts at zero height
	Scale        float64       `yaml:"scale"`         // mm at which the reflection halves
	AmbientLevel float64       `yaml:"ambient_level"` // ADC counts without the emitter
	SwitchHeight float64       `yaml:"switch_height"`
}

// Default returns a bed and a hot end heating to typical targets with a
// modulated IR probe descending from 5 mm.
func Default() *Scenario {
	return &Scenario{
		Name:           "default",
		Duration:       20 * time.Second,
		Step:           100 * time.Microsecond,
		ReportInterval: 2 * time.Second,
		ControlPeriod:  100 * time.Millisecond,
		Heaters: []HeaterConfig{
			{Name: "bed", R25: 10000, Beta: 3988, SeriesR: 4700, Ambient: 22, HeatRate: 2, Loss: 0.01, Target: 60},
			{Name: "e0", R25: 100000, Beta: 4388, SeriesR: 4700, Ambient: 22, HeatRate: 25, Loss: 0.05, Target: 200},
		},
		Probe: ProbeConfig{
			Type:         "modulated-ir",
			StartHeight:  5,
			Speed:        1,
			StartAt:      10 * time.Second,
			Peak:         3000,
			Scale:        1,
			AmbientLevel: 300,
		},
	}
}

// Load reads a scenario from a YAML file. A missing file yields Default and
// missing fields keep their defaults.
func Load(filename string) (*Scenario, error) {
	sc := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return sc, nil
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Save writes the scenario as YAML.
func (s *Scenario) Save(filename string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}

// Validate checks the scenario can be run.
func (s *Scenario) Validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("scenario %q: step must be positive", s.Name)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("scenario %q: duration must be positive", s.Name)
	}
	if len(s.Heaters) == 0 || len(s.Heaters) > core.MaxHeaters {
		return fmt.Errorf("scenario %q: need 1 to %d heaters, got %d", s.Name, core.MaxHeaters, len(s.Heaters))
	}
	for i, h := range s.Heaters {
		if h.R25 <= 0 || h.Beta <= 0 || h.SeriesR <= 0 {
			return fmt.Errorf("scenario %q: heater %d: thermistor parameters must be positive", s.Name, i)
		}
	}
	if _, err := ParseProbeType(s.Probe.Type); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return nil
}

// ParseProbeType maps a probe name to its type. Empty selects the switch.
func ParseProbeType(name string) (core.ProbeType, error) {
	if name == "" {
		return core.ProbeSwitch, nil
	}
	for t := core.ProbeSwitch; t.Valid(); t++ {
		if strings.EqualFold(t.String(), name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown probe type %q", name)
}
