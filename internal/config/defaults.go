package config

import (
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

// Default returns a configuration that flies a single vehicle with the
// built-in plugins and no transports enabled.
func Default() *Config {
	return &Config{
		UAV: UAVConfig{
			Name:                 "uav1",
			Mass:                 2.0,
			WorkingFrame:         "world",
			ThrustModel:          types.ThrustModel{MaxForce: 40},
			MinThrustNullTracker: 0,
		},
		Rates: RatesConfig{
			Safety:    100,
			Eland:     30,
			Failsafe:  100,
			Bumper:    10,
			Pirouette: 20,
			Joystick:  30,
			Status:    2,
		},
		NullTracker:       "NullTracker",
		InitialController: "PDController",
		Trackers: []TrackerConfig{
			{Name: "NullTracker", Kind: "none"},
			{Name: "PointTracker", Kind: "point", HumanSwitchable: true},
			{Name: "LandoffTracker", Kind: "landoff"},
		},
		Controllers: []ControllerConfig{
			{
				Name:                        "PDController",
				Kind:                        "pd",
				HumanSwitchable:             true,
				ElandThreshold:              1.5,
				FailsafeThreshold:           2.5,
				OdometryInnovationThreshold: 1.5,
			},
			{Name: "FailsafeController", Kind: "failsafe"},
		},
		Safety: SafetyConfig{
			SwitchCooldown:            1.0,
			StateInputTimeout:         0.5,
			TiltLimitEland:            1.0,
			TiltLimitDisarm:           1.5,
			YawErrorEland:             1.0,
			OdometryInnovationHeading: 0.5,
			TiltErrorDisarm: TiltErrorDisarmConfig{
				Enabled:   true,
				Threshold: 0.7,
				Timeout:   0.5,
			},
			Eland: ElandConfig{
				Tracker:          "LandoffTracker",
				Controller:       "PDController",
				CutoffMassFactor: 0.5,
				CutoffTimeout:    2.0,
				Disarm:           true,
			},
			EHover: EHoverConfig{
				Tracker:    "PointTracker",
				Controller: "PDController",
			},
			Failsafe: FailsafeConfig{
				Controller:       "FailsafeController",
				CutoffMassFactor: 0.5,
				CutoffTimeout:    2.0,
				Disarm:           true,
			},
			Escalation: EscalationConfig{
				Timeout:  2.0,
				EHover:   true,
				Eland:    true,
				Failsafe: true,
				RC:       RCChannelConfig{Channel: 10, Threshold: 0.5},
			},
		},
		SafetyArea: SafetyAreaConfig{
			HeightLimits:     true,
			MinHeight:        0.5,
			MaxHeight:        20,
			SnapTrajectories: true,
		},
		Bumper: BumperConfig{
			HorizontalMargin: 1.0,
			VerticalMargin:   0.5,
			Timeout:          1.0,
			Repulsion: RepulsionConfig{
				HorizontalDistance: 1.5,
				VerticalDistance:   0.8,
				HorizontalOffset:   0.2,
				VerticalOffset:     0.2,
			},
		},
		Constraints: types.Constraints{
			Horizontal:         types.AxisLimits{Speed: 2, Acceleration: 2, Jerk: 20, Snap: 20},
			VerticalAscending:  types.AxisLimits{Speed: 1, Acceleration: 1, Jerk: 10, Snap: 10},
			VerticalDescending: types.AxisLimits{Speed: 0.5, Acceleration: 1, Jerk: 10, Snap: 10},
			Heading:            types.AxisLimits{Speed: 1, Acceleration: 2, Jerk: 10, Snap: 10},
			AngularRate:        r3.Vec{X: 10, Y: 10, Z: 2},
			Tilt:               0.6,
		},
		VelocityReference: VelocityReferenceConfig{
			StoppingFactor: 1.5,
			TimeMargin:     1.0,
		},
		Pirouette: PirouetteConfig{Speed: 0.5},
		Joystick: JoystickConfig{
			RCGoto: RCGotoConfig{
				Channel:     9,
				Threshold:   0.5,
				Speed:       1.0,
				HeadingRate: 0.5,
				AxisX:       1,
				AxisY:       0,
				AxisZ:       2,
				AxisHeading: 3,
			},
		},
		Transport: TransportConfig{
			Redis: RedisConfig{Host: "127.0.0.1", Port: 6379},
			ZMQ: ZMQConfig{
				TelemetryAddress: "tcp://127.0.0.1:5600",
				CommandAddress:   "tcp://*:5601",
			},
			HTTP:    HTTPConfig{Address: ":8090"},
			Journal: JournalConfig{Path: "/var/lib/control-manager/journal.db"},
			GPIO:    GPIOConfig{Chip: "gpiochip0"},
			Evdev:   EvdevConfig{Device: "/dev/input/js-buttons"},
		},
		Log: LogConfig{Level: 3},
	}
}
