// Package command maps named operations with JSON payloads onto the control
// manager's command surface. The Redis lists and the HTTP routes both go
// through Dispatch so the two surfaces cannot drift apart.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"uav-control-manager/internal/types"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrBadPayload       = errors.New("bad payload")
)

// Surface is the part of the control manager the transports drive.
type Surface interface {
	SwitchTracker(name string) types.Response
	SwitchController(name string) types.Response
	SetReference(ref types.Reference) types.Response
	SetVelocityReference(vel types.VelocityReference) types.Response
	SetTrajectory(traj types.Trajectory) types.TrajectoryResponse
	ValidateReference(ref types.Reference) types.Response
	ValidateReferences(refs []types.Reference) types.ValidationResponse
	Goto(x, y, z, heading float64) types.Response
	GotoRelative(dx, dy, dz, dheading float64) types.Response
	Hover() types.Response
	EHover() types.Response
	Eland() types.Response
	Failsafe() types.Response
	EscalatingFailsafe() types.Response
	SetConstraints(c types.Constraints) types.Response
	Disarm() types.Response
	Motors(on bool) types.Response
	EnableCallbacks(enabled bool) types.Response
	SetSafetyArea(enabled bool) types.Response
	SetBumper(enabled bool) types.Response
	SetBumperRepulsion(enabled bool) types.Response
	SetMinHeight(h float64) types.Response
	StartTrajectoryTracking() types.Response
	StopTrajectoryTracking() types.Response
	ResumeTrajectoryTracking() types.Response
	GotoTrajectoryStart() types.Response
	ResetTracker() types.Response
	Pirouette() types.Response
	HandleJoystickButton(button string) types.Response
}

type namePayload struct {
	Name string `json:"name"`
}

type enabledPayload struct {
	Enabled bool `json:"enabled"`
}

type heightPayload struct {
	Height float64 `json:"height"`
}

type gotoPayload struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

type buttonPayload struct {
	Button string `json:"button"`
}

// trajectoryPayload carries the sampling period in seconds.
type trajectoryPayload struct {
	FrameID    string            `json:"frame_id"`
	Points     []types.Reference `json:"points"`
	Dt         float64           `json:"dt"`
	FlyNow     bool              `json:"fly_now"`
	UseHeading bool              `json:"use_heading"`
}

func (p trajectoryPayload) trajectory() types.Trajectory {
	return types.Trajectory{
		FrameID:    p.FrameID,
		Points:     p.Points,
		Dt:         time.Duration(p.Dt * float64(time.Second)),
		FlyNow:     p.FlyNow,
		UseHeading: p.UseHeading,
	}
}

type handler func(s Surface, payload []byte) (interface{}, error)

func decode(payload []byte, v interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty", ErrBadPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// simple wraps an operation without arguments.
func simple(fn func(Surface) types.Response) handler {
	return func(s Surface, _ []byte) (interface{}, error) {
		return fn(s), nil
	}
}

func toggle(fn func(Surface, bool) types.Response) handler {
	return func(s Surface, payload []byte) (interface{}, error) {
		var p enabledPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return fn(s, p.Enabled), nil
	}
}

func named(fn func(Surface, string) types.Response) handler {
	return func(s Surface, payload []byte) (interface{}, error) {
		var p namePayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, fmt.Errorf("%w: missing name", ErrBadPayload)
		}
		return fn(s, p.Name), nil
	}
}

var operations = map[string]handler{
	"switch-tracker":    named(Surface.SwitchTracker),
	"switch-controller": named(Surface.SwitchController),

	"reference": func(s Surface, payload []byte) (interface{}, error) {
		var ref types.Reference
		if err := decode(payload, &ref); err != nil {
			return nil, err
		}
		return s.SetReference(ref), nil
	},
	"velocity-reference": func(s Surface, payload []byte) (interface{}, error) {
		var vel types.VelocityReference
		if err := decode(payload, &vel); err != nil {
			return nil, err
		}
		return s.SetVelocityReference(vel), nil
	},
	"trajectory": func(s Surface, payload []byte) (interface{}, error) {
		var p trajectoryPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return s.SetTrajectory(p.trajectory()), nil
	},
	"validate-reference": func(s Surface, payload []byte) (interface{}, error) {
		var ref types.Reference
		if err := decode(payload, &ref); err != nil {
			return nil, err
		}
		return s.ValidateReference(ref), nil
	},
	"validate-references": func(s Surface, payload []byte) (interface{}, error) {
		var refs []types.Reference
		if err := decode(payload, &refs); err != nil {
			return nil, err
		}
		return s.ValidateReferences(refs), nil
	},
	"goto": func(s Surface, payload []byte) (interface{}, error) {
		var p gotoPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return s.Goto(p.X, p.Y, p.Z, p.Heading), nil
	},
	"goto-relative": func(s Surface, payload []byte) (interface{}, error) {
		var p gotoPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return s.GotoRelative(p.X, p.Y, p.Z, p.Heading), nil
	},
	"constraints": func(s Surface, payload []byte) (interface{}, error) {
		var c types.Constraints
		if err := decode(payload, &c); err != nil {
			return nil, err
		}
		return s.SetConstraints(c), nil
	},
	"min-height": func(s Surface, payload []byte) (interface{}, error) {
		var p heightPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return s.SetMinHeight(p.Height), nil
	},
	"joystick-button": func(s Surface, payload []byte) (interface{}, error) {
		var p buttonPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return s.HandleJoystickButton(p.Button), nil
	},

	"hover":               simple(Surface.Hover),
	"ehover":              simple(Surface.EHover),
	"eland":               simple(Surface.Eland),
	"failsafe":            simple(Surface.Failsafe),
	"escalating-failsafe": simple(Surface.EscalatingFailsafe),
	"disarm":              simple(Surface.Disarm),
	"start-tracking":      simple(Surface.StartTrajectoryTracking),
	"stop-tracking":       simple(Surface.StopTrajectoryTracking),
	"resume-tracking":     simple(Surface.ResumeTrajectoryTracking),
	"goto-start":          simple(Surface.GotoTrajectoryStart),
	"reset-tracker":       simple(Surface.ResetTracker),
	"pirouette":           simple(Surface.Pirouette),

	"motors": func(s Surface, payload []byte) (interface{}, error) {
		var p struct {
			On bool `json:"on"`
		}
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return s.Motors(p.On), nil
	},
	"callbacks":        toggle(Surface.EnableCallbacks),
	"safety-area":      toggle(Surface.SetSafetyArea),
	"bumper":           toggle(Surface.SetBumper),
	"bumper-repulsion": toggle(Surface.SetBumperRepulsion),
}

// Dispatch runs the named operation. The result is one of the response
// types and is meant to be encoded as JSON.
func Dispatch(s Surface, op string, payload []byte) (interface{}, error) {
	h, ok := operations[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return h(s, payload)
}

// Operations lists the known operation names in order.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
