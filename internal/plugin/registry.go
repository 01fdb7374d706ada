package plugin

import (
	"fmt"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/plugin/controllers"
	"uav-control-manager/internal/plugin/trackers"
	"uav-control-manager/internal/types"
)

// Tracker kinds
const (
	KindNone    = "none"
	KindPoint   = "point"
	KindLandoff = "landoff"
)

// Controller kinds
const (
	KindPD       = "pd"
	KindFailsafe = "failsafe"
)

// Env is what every plugin may know about the vehicle.
type Env struct {
	Mass        float64
	Thrust      types.ThrustModel
	Constraints types.Constraints
}

// NewTracker instantiates a built-in tracker.
func NewTracker(kind string, params map[string]float64, env Env) (Tracker, error) {
	switch kind {
	case KindNone:
		return trackers.NewNull(), nil
	case KindPoint:
		return trackers.NewPoint(params, env.Constraints), nil
	case KindLandoff:
		return trackers.NewLandoff(params, env.Constraints), nil
	default:
		return nil, fmt.Errorf("%w: tracker %q", ErrUnknownKind, kind)
	}
}

// NewController instantiates a built-in controller.
func NewController(kind string, params map[string]float64, env Env) (Controller, error) {
	uav := controllers.UAV{Mass: env.Mass, Thrust: env.Thrust}
	switch kind {
	case KindPD:
		return controllers.NewPD(params, uav, env.Constraints), nil
	case KindFailsafe:
		return controllers.NewFailsafe(params, uav), nil
	default:
		return nil, fmt.Errorf("%w: controller %q", ErrUnknownKind, kind)
	}
}

// TrackerSlot is a configured tracker instance.
type TrackerSlot struct {
	Name            string
	Kind            string
	HumanSwitchable bool
	Tracker         Tracker
}

// ControllerSlot is a configured controller instance with the thresholds the
// safety supervisor applies while it is active.
type ControllerSlot struct {
	Name                        string
	Kind                        string
	HumanSwitchable             bool
	ElandThreshold              float64
	FailsafeThreshold           float64
	OdometryInnovationThreshold float64
	OdometryInnovationHeading   float64
	Controller                  Controller
}

// EnvFromConfig derives the plugin environment from the configuration.
func EnvFromConfig(cfg *config.Config) Env {
	return Env{
		Mass:        cfg.UAV.Mass,
		Thrust:      cfg.UAV.ThrustModel,
		Constraints: cfg.Constraints,
	}
}

// BuildTrackers instantiates every configured tracker in order.
func BuildTrackers(cfgs []config.TrackerConfig, env Env) ([]TrackerSlot, error) {
	slots := make([]TrackerSlot, 0, len(cfgs))
	for _, c := range cfgs {
		t, err := NewTracker(c.Kind, c.Params, env)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracker %s: %w", c.Name, err)
		}
		slots = append(slots, TrackerSlot{
			Name:            c.Name,
			Kind:            c.Kind,
			HumanSwitchable: c.HumanSwitchable,
			Tracker:         t,
		})
	}
	return slots, nil
}

// BuildControllers instantiates every configured controller in order.
func BuildControllers(cfgs []config.ControllerConfig, env Env) ([]ControllerSlot, error) {
	slots := make([]ControllerSlot, 0, len(cfgs))
	for _, c := range cfgs {
		ctrl, err := NewController(c.Kind, c.Params, env)
		if err != nil {
			return nil, fmt.Errorf("failed to create controller %s: %w", c.Name, err)
		}
		slots = append(slots, ControllerSlot{
			Name:                        c.Name,
			Kind:                        c.Kind,
			HumanSwitchable:             c.HumanSwitchable,
			ElandThreshold:              c.ElandThreshold,
			FailsafeThreshold:           c.FailsafeThreshold,
			OdometryInnovationThreshold: c.OdometryInnovationThreshold,
			OdometryInnovationHeading:   c.OdometryInnovationHeading,
			Controller:                  ctrl,
		})
	}
	return slots, nil
}

// TrackerIndex returns the index of the named tracker or -1.
func TrackerIndex(slots []TrackerSlot, name string) int {
	for i, s := range slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// ControllerIndex returns the index of the named controller or -1.
func ControllerIndex(slots []ControllerSlot, name string) int {
	for i, s := range slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}
