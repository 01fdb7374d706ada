package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"uav-control-manager/internal/types"
)

// Config is the immutable configuration of the manager. Anything that can
// change at runtime lives in Toggles instead.
type Config struct {
	UAV               UAVConfig               `yaml:"uav"`
	Rates             RatesConfig             `yaml:"rates"`
	NullTracker       string                  `yaml:"null_tracker"`
	InitialController string                  `yaml:"initial_controller"`
	Trackers          []TrackerConfig         `yaml:"trackers"`
	Controllers       []ControllerConfig      `yaml:"controllers"`
	Safety            SafetyConfig            `yaml:"safety"`
	SafetyArea        SafetyAreaConfig        `yaml:"safety_area"`
	Bumper            BumperConfig            `yaml:"bumper"`
	Constraints       types.Constraints       `yaml:"constraints"`
	VelocityReference VelocityReferenceConfig `yaml:"velocity_reference"`
	Pirouette         PirouetteConfig         `yaml:"pirouette"`
	Joystick          JoystickConfig          `yaml:"joystick"`
	Frames            []FrameConfig           `yaml:"frames"`
	Transport         TransportConfig         `yaml:"transport"`
	Log               LogConfig               `yaml:"log"`
}

type UAVConfig struct {
	Name         string            `yaml:"name"`
	Mass         float64           `yaml:"mass"`
	WorkingFrame string            `yaml:"working_frame"`
	ThrustModel  types.ThrustModel `yaml:"thrust_model"`
	// MinThrustNullTracker is the thrust of the neutral command.
	MinThrustNullTracker float64 `yaml:"min_thrust_null_tracker"`
}

// RatesConfig holds periodic task rates in Hz.
type RatesConfig struct {
	Safety    float64 `yaml:"safety"`
	Eland     float64 `yaml:"eland"`
	Failsafe  float64 `yaml:"failsafe"`
	Bumper    float64 `yaml:"bumper"`
	Pirouette float64 `yaml:"pirouette"`
	Joystick  float64 `yaml:"joystick"`
	Status    float64 `yaml:"status"`
}

type TrackerConfig struct {
	Name            string             `yaml:"name"`
	Kind            string             `yaml:"kind"`
	HumanSwitchable bool               `yaml:"human_switchable"`
	Params          map[string]float64 `yaml:"params"`
}

type ControllerConfig struct {
	Name                        string             `yaml:"name"`
	Kind                        string             `yaml:"kind"`
	HumanSwitchable             bool               `yaml:"human_switchable"`
	ElandThreshold              float64            `yaml:"eland_threshold"`
	FailsafeThreshold           float64            `yaml:"failsafe_threshold"`
	OdometryInnovationThreshold float64            `yaml:"odometry_innovation_threshold"`
	// unset inherits safety.odometry_innovation_heading
	OdometryInnovationHeading float64            `yaml:"odometry_innovation_heading"`
	Params                    map[string]float64 `yaml:"params"`
}

type SafetyConfig struct {
	// SwitchCooldown suppresses safety triggers after a plugin switch, seconds.
	SwitchCooldown float64 `yaml:"switch_cooldown"`
	// StateInputTimeout is the vehicle state silence that triggers failsafe.
	StateInputTimeout float64 `yaml:"state_input_timeout"`

	TiltLimitEland            float64              `yaml:"tilt_limit_eland"`
	TiltLimitDisarm           float64              `yaml:"tilt_limit_disarm"`
	YawErrorEland             float64              `yaml:"yaw_error_eland"`
	OdometryInnovationHeading float64              `yaml:"odometry_innovation_heading"`
	TiltErrorDisarm           TiltErrorDisarmConfig `yaml:"tilt_error_disarm"`

	Eland      ElandConfig      `yaml:"eland"`
	EHover     EHoverConfig     `yaml:"ehover"`
	Failsafe   FailsafeConfig   `yaml:"failsafe"`
	Escalation EscalationConfig `yaml:"escalating_failsafe"`
}

type TiltErrorDisarmConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	Timeout   float64 `yaml:"timeout"`
}

type ElandConfig struct {
	Tracker          string  `yaml:"tracker"`
	Controller       string  `yaml:"controller"`
	CutoffMassFactor float64 `yaml:"cutoff_mass_factor"`
	CutoffTimeout    float64 `yaml:"cutoff_timeout"`
	Disarm           bool    `yaml:"disarm"`
}

type EHoverConfig struct {
	Tracker    string `yaml:"tracker"`
	Controller string `yaml:"controller"`
}

type FailsafeConfig struct {
	Controller       string  `yaml:"controller"`
	CutoffMassFactor float64 `yaml:"cutoff_mass_factor"`
	CutoffTimeout    float64 `yaml:"cutoff_timeout"`
	Disarm           bool    `yaml:"disarm"`
}

type EscalationConfig struct {
	Timeout  float64         `yaml:"timeout"`
	EHover   bool            `yaml:"ehover"`
	Eland    bool            `yaml:"eland"`
	Failsafe bool            `yaml:"failsafe"`
	RC       RCChannelConfig `yaml:"rc"`
}

type RCChannelConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Channel   int     `yaml:"channel"`
	Threshold float64 `yaml:"threshold"`
}

type SafetyAreaConfig struct {
	Enabled          bool             `yaml:"enabled"`
	HeightLimits     bool             `yaml:"height_limits"`
	MinHeight        float64          `yaml:"min_height"`
	MaxHeight        float64          `yaml:"max_height"`
	Border           [][2]float64     `yaml:"border"`
	Obstacles        []ObstacleConfig `yaml:"obstacles"`
	SnapTrajectories bool             `yaml:"snap_trajectories"`
}

type ObstacleConfig struct {
	Points [][2]float64 `yaml:"points"`
	MinZ   float64      `yaml:"min_z"`
	MaxZ   float64      `yaml:"max_z"`
}

type BumperConfig struct {
	Enabled          bool            `yaml:"enabled"`
	Hugging          bool            `yaml:"hugging"`
	HorizontalMargin float64         `yaml:"horizontal_margin"`
	VerticalMargin   float64         `yaml:"vertical_margin"`
	Timeout          float64         `yaml:"timeout"`
	Repulsion        RepulsionConfig `yaml:"repulsion"`
}

type RepulsionConfig struct {
	Enabled            bool    `yaml:"enabled"`
	HorizontalDistance float64 `yaml:"horizontal_distance"`
	VerticalDistance   float64 `yaml:"vertical_distance"`
	HorizontalOffset   float64 `yaml:"horizontal_offset"`
	VerticalOffset     float64 `yaml:"vertical_offset"`
}

// VelocityReferenceConfig tunes the stopping-point extrapolation used to
// validate velocity references.
type VelocityReferenceConfig struct {
	StoppingFactor float64 `yaml:"stopping_factor"`
	TimeMargin     float64 `yaml:"time_margin"`
}

type PirouetteConfig struct {
	Speed float64 `yaml:"speed"`
}

type JoystickConfig struct {
	Enabled bool         `yaml:"enabled"`
	RCGoto  RCGotoConfig `yaml:"rc_goto"`
}

type RCGotoConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Channel     int     `yaml:"channel"`
	Threshold   float64 `yaml:"threshold"`
	Speed       float64 `yaml:"speed"`
	HeadingRate float64 `yaml:"heading_rate"`
	AxisX       int     `yaml:"axis_x"`
	AxisY       int     `yaml:"axis_y"`
	AxisZ       int     `yaml:"axis_z"`
	AxisHeading int     `yaml:"axis_heading"`
}

// FrameConfig is a static frame expressed relative to the working frame.
type FrameConfig struct {
	Name        string     `yaml:"name"`
	Translation [3]float64 `yaml:"translation"`
	Yaw         float64    `yaml:"yaw"`
}

type TransportConfig struct {
	Redis   RedisConfig   `yaml:"redis"`
	ZMQ     ZMQConfig     `yaml:"zmq"`
	HTTP    HTTPConfig    `yaml:"http"`
	Journal JournalConfig `yaml:"journal"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Evdev   EvdevConfig   `yaml:"evdev"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DB      int    `yaml:"db"`
}

type ZMQConfig struct {
	Enabled          bool   `yaml:"enabled"`
	TelemetryAddress string `yaml:"telemetry_address"`
	CommandAddress   string `yaml:"command_address"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type GPIOConfig struct {
	Enabled bool           `yaml:"enabled"`
	Chip    string         `yaml:"chip"`
	Lines   map[string]int `yaml:"lines"`
}

type EvdevConfig struct {
	Enabled bool           `yaml:"enabled"`
	Device  string         `yaml:"device"`
	Buttons map[string]int `yaml:"buttons"`
}

type LogConfig struct {
	Level int `yaml:"level"`
}

// Load reads a YAML file on top of Default, normalises and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default, normalises and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// disabled maps a non-positive threshold to +Inf.
func disabled(v float64) float64 {
	if v <= 0 {
		return math.Inf(1)
	}
	return v
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func (c *Config) normalize() {
	s := &c.Safety
	s.TiltLimitEland = disabled(s.TiltLimitEland)
	s.TiltLimitDisarm = disabled(s.TiltLimitDisarm)
	s.YawErrorEland = disabled(s.YawErrorEland)
	s.OdometryInnovationHeading = disabled(s.OdometryInnovationHeading)
	s.TiltErrorDisarm.Threshold = disabled(s.TiltErrorDisarm.Threshold)

	for i := range c.Controllers {
		ctrl := &c.Controllers[i]
		ctrl.ElandThreshold = disabled(ctrl.ElandThreshold)
		ctrl.FailsafeThreshold = disabled(ctrl.FailsafeThreshold)
		ctrl.OdometryInnovationThreshold = disabled(ctrl.OdometryInnovationThreshold)
		ctrl.OdometryInnovationHeading = orDefault(ctrl.OdometryInnovationHeading, s.OdometryInnovationHeading)
	}

	d := Default()
	c.Rates.Safety = orDefault(c.Rates.Safety, d.Rates.Safety)
	c.Rates.Eland = orDefault(c.Rates.Eland, d.Rates.Eland)
	c.Rates.Failsafe = orDefault(c.Rates.Failsafe, d.Rates.Failsafe)
	c.Rates.Bumper = orDefault(c.Rates.Bumper, d.Rates.Bumper)
	c.Rates.Pirouette = orDefault(c.Rates.Pirouette, d.Rates.Pirouette)
	c.Rates.Joystick = orDefault(c.Rates.Joystick, d.Rates.Joystick)
	c.Rates.Status = orDefault(c.Rates.Status, d.Rates.Status)

	if !c.SafetyArea.HeightLimits {
		c.SafetyArea.MinHeight = math.Inf(-1)
		c.SafetyArea.MaxHeight = math.Inf(1)
	}
}

var (
	ErrNoTrackers    = errors.New("no trackers configured")
	ErrNoControllers = errors.New("no controllers configured")
)

// Validate checks that every name the manager refers to resolves.
func (c *Config) Validate() error {
	if len(c.Trackers) == 0 {
		return ErrNoTrackers
	}
	if len(c.Controllers) == 0 {
		return ErrNoControllers
	}
	if c.UAV.Mass <= 0 {
		return fmt.Errorf("uav mass must be positive, got %v", c.UAV.Mass)
	}
	if c.UAV.ThrustModel.MaxForce <= 0 {
		return fmt.Errorf("thrust model max force must be positive, got %v", c.UAV.ThrustModel.MaxForce)
	}

	trackers := make(map[string]bool)
	for _, t := range c.Trackers {
		if trackers[t.Name] {
			return fmt.Errorf("duplicate tracker %q", t.Name)
		}
		trackers[t.Name] = true
	}
	controllers := make(map[string]bool)
	for _, ct := range c.Controllers {
		if controllers[ct.Name] {
			return fmt.Errorf("duplicate controller %q", ct.Name)
		}
		controllers[ct.Name] = true
	}

	for _, ref := range []struct{ kind, name string }{
		{"null tracker", c.NullTracker},
		{"eland tracker", c.Safety.Eland.Tracker},
		{"ehover tracker", c.Safety.EHover.Tracker},
	} {
		if !trackers[ref.name] {
			return fmt.Errorf("%s %q is not a configured tracker", ref.kind, ref.name)
		}
	}
	for _, ref := range []struct{ kind, name string }{
		{"initial controller", c.InitialController},
		{"eland controller", c.Safety.Eland.Controller},
		{"ehover controller", c.Safety.EHover.Controller},
		{"failsafe controller", c.Safety.Failsafe.Controller},
	} {
		if !controllers[ref.name] {
			return fmt.Errorf("%s %q is not a configured controller", ref.kind, ref.name)
		}
	}

	if !c.Constraints.Valid() {
		return errors.New("default constraints must be finite and non-negative")
	}
	if c.SafetyArea.Enabled && len(c.SafetyArea.Border) < 3 {
		return errors.New("safety area border needs at least three points")
	}
	return nil
}

// Period converts a rate in Hz to a tick period.
func Period(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}

// Seconds converts a configured number of seconds to a duration.
func Seconds(s float64) time.Duration {
	if math.IsInf(s, 1) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}
