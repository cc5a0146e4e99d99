package fps

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultSafeModeBeta is the minimum beta angle, in degrees, enforced
// when a profile sets safe_mode to the bare boolean true rather than
// an explicit {min_beta: ...} mapping.
const defaultSafeModeBeta = 165.0

// Config is the top-level configuration surface: one or more named
// profiles, each describing a full array (channels, motor geometry,
// timeouts, poller cadence, safe-mode floor).
type Config struct {
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig describes one array: which channels make up its bus,
// the motor geometry shared by every positioner, and the timing used
// throughout initialisation, polling, and safe-mode enforcement.
type ProfileConfig struct {
	ChannelType string           `yaml:"channel_type"`
	Channels    []ChannelConfig  `yaml:"channels"`
	MotorSteps  MotorStepsConfig `yaml:"motor_steps"`
	MotorSpeed  MotorSpeedConfig `yaml:"motor_speed"`

	InitialiseTimeout time.Duration `yaml:"initialise_timeout"`
	CommandTimeout    time.Duration `yaml:"command_timeout"`

	StatusPollerDelay   time.Duration `yaml:"status_poller_delay"`
	PositionPollerDelay time.Duration `yaml:"position_poller_delay"`

	SafeMode SafeModeConfig `yaml:"safe_mode"`

	Kaiju KaijuConfig `yaml:"kaiju"`
}

// ChannelConfig describes one bus transport within a profile.
type ChannelConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Bitrate int    `yaml:"bitrate"`

	SyncGPIOChip   string `yaml:"sync_gpio_chip"`
	SyncGPIOOffset int    `yaml:"sync_gpio_offset"`
}

// MotorStepsConfig is the steps-per-revolution constant for each axis,
// used by every degrees<->steps conversion in this module.
type MotorStepsConfig struct {
	Alpha int `yaml:"alpha"`
	Beta  int `yaml:"beta"`
}

// MotorSpeedConfig is the default commanded RPM for each axis when a
// caller does not override it.
type MotorSpeedConfig struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

// SafeModeConfig is the minimum allowed beta angle while safe mode is
// active. UnmarshalYAML accepts either a bare boolean (true maps to
// defaultSafeModeBeta, false disables the floor) or an explicit
// mapping with a min_beta key.
type SafeModeConfig struct {
	Enabled bool
	MinBeta float64
}

func (s *SafeModeConfig) UnmarshalYAML(value *yaml.Node) error {
	var asBool bool
	if err := value.Decode(&asBool); err == nil {
		s.Enabled = asBool
		if asBool {
			s.MinBeta = defaultSafeModeBeta
		}
		return nil
	}

	var asStruct struct {
		MinBeta float64 `yaml:"min_beta"`
	}
	if err := value.Decode(&asStruct); err != nil {
		return fmt.Errorf("fps: safe_mode must be a bool or a mapping with min_beta: %w", err)
	}

	s.Enabled = true
	s.MinBeta = asStruct.MinBeta

	return nil
}

// KaijuConfig carries the subset of focal-plane metadata this module
// needs but does not interpret itself.
type KaijuConfig struct {
	// LatticePosition is the default (alpha, beta) fold angle, in
	// degrees, used by ArrayController.IsFolded when a caller doesn't
	// supply its own fold point.
	LatticePosition FoldAngles `yaml:"lattice_position"`
}

// FoldAngles is an (alpha, beta) pair of degree angles. It unmarshals
// from a two-element YAML sequence, e.g. `lattice_position: [0, 180]`.
type FoldAngles struct {
	Alpha float64
	Beta  float64
}

func (f *FoldAngles) UnmarshalYAML(value *yaml.Node) error {
	var pair [2]float64
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("fps: lattice_position must be a [alpha, beta] sequence: %w", err)
	}
	f.Alpha, f.Beta = pair[0], pair[1]
	return nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fps: read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("fps: parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// Profile looks up a named profile, returning an error if it is not
// present.
func (c *Config) Profile(name string) (ProfileConfig, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return ProfileConfig{}, fmt.Errorf("fps: unknown profile %q", name)
	}
	return p, nil
}
