// Package validator is the gate every externally requested reference,
// velocity reference and trajectory passes before it reaches a tracker.
//
// The order of checks is fixed: finiteness, transformation into the working
// frame, bumper, geofence.
package validator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/bumper"
	"uav-control-manager/internal/config"
	"uav-control-manager/internal/types"
)

var (
	ErrNonFinite       = errors.New("reference contains non-finite values")
	ErrEmptyTrajectory = errors.New("trajectory is empty")
	ErrTransform       = errors.New("could not transform reference to the working frame")
	ErrBumper          = errors.New("reference violates the bumper")
	ErrGeofence        = errors.New("reference violates the safety area")
)

// Transformer resolves frames.
type Transformer interface {
	TransformReference(ref types.Reference, target string) (types.Reference, error)
	TransformVector(v r3.Vec, from, target string) (r3.Vec, error)
}

// SafetyArea is the geofence engine.
type SafetyArea interface {
	IsPointValid2d(p r3.Vec) bool
	IsPointValid3d(p r3.Vec) bool
	IsPathValid2d(from, to r3.Vec) bool
	IsPathValid3d(from, to r3.Vec) bool
}

// BumperSource yields the latest fresh bumper snapshot.
type BumperSource interface {
	Latest() (types.BumperSnapshot, bool)
}

// Validator is stateless apart from its collaborators and is safe for
// concurrent use.
type Validator struct {
	workingFrame string
	transformer  Transformer
	area         SafetyArea
	bumper       BumperSource
	toggles      *config.Toggles

	bumperParams bumper.Params
	heights      bool
	snap         bool
	velocity     config.VelocityReferenceConfig
}

// New builds a validator. area and bumperSrc may be nil when the deployment
// has no safety area or no bumper sensor.
func New(cfg *config.Config, toggles *config.Toggles, transformer Transformer, area SafetyArea, bumperSrc BumperSource) *Validator {
	return &Validator{
		workingFrame: cfg.UAV.WorkingFrame,
		transformer:  transformer,
		area:         area,
		bumper:       bumperSrc,
		toggles:      toggles,
		bumperParams: bumper.Params{
			HorizontalMargin: cfg.Bumper.HorizontalMargin,
			VerticalMargin:   cfg.Bumper.VerticalMargin,
			Hugging:          cfg.Bumper.Hugging,
		},
		heights:  cfg.SafetyArea.HeightLimits,
		snap:     cfg.SafetyArea.SnapTrajectories,
		velocity: cfg.VelocityReference,
	}
}

// gate captures the toggles and the bumper snapshot once per validation so a
// trajectory is checked against one consistent view.
type gate struct {
	v         *Validator
	state     types.VehicleState
	area      bool
	snapshot  types.BumperSnapshot
	useBumper bool
}

func (v *Validator) newGate(state types.VehicleState) gate {
	t := v.toggles.Snapshot()
	g := gate{v: v, state: state, area: t.SafetyArea && v.area != nil}
	if t.Bumper && v.bumper != nil {
		g.snapshot, g.useBumper = v.bumper.Latest()
	}
	return g
}

func (g gate) pointValid(p r3.Vec) bool {
	if !g.area {
		return true
	}
	if g.v.heights {
		return g.v.area.IsPointValid3d(p)
	}
	return g.v.area.IsPointValid2d(p)
}

func (g gate) pathValid(from, to r3.Vec) bool {
	if !g.area {
		return true
	}
	if g.v.heights {
		return g.v.area.IsPathValid3d(from, to)
	}
	return g.v.area.IsPathValid2d(from, to)
}

func (g gate) checkBumper(p r3.Vec) (r3.Vec, bool, error) {
	if !g.useBumper {
		return p, false, nil
	}
	out, modified, err := bumper.CheckPoint(g.snapshot, g.state.Position, g.state.Heading(), p, g.v.bumperParams)
	if err != nil {
		return p, false, fmt.Errorf("%w: %v", ErrBumper, err)
	}
	return out, modified, nil
}

func (v *Validator) transform(ref types.Reference) (types.Reference, error) {
	out, err := v.transformer.TransformReference(ref, v.workingFrame)
	if err != nil {
		return types.Reference{}, fmt.Errorf("%w: %v", ErrTransform, err)
	}
	if !out.IsFinite() {
		return types.Reference{}, fmt.Errorf("%w: after transformation", ErrNonFinite)
	}
	return out, nil
}

// ValidateReference checks a single reference. from is the last known
// position the vehicle would fly from. The boolean reports that the bumper
// clamped the reference.
func (v *Validator) ValidateReference(ref types.Reference, state types.VehicleState, from r3.Vec) (types.Reference, bool, error) {
	if !ref.IsFinite() {
		return types.Reference{}, false, ErrNonFinite
	}

	out, err := v.transform(ref)
	if err != nil {
		return types.Reference{}, false, err
	}

	g := v.newGate(state)

	pos, modified, err := g.checkBumper(out.Position)
	if err != nil {
		return types.Reference{}, false, err
	}
	out.Position = pos

	if !g.pointValid(out.Position) {
		return types.Reference{}, false, fmt.Errorf("%w: point is outside", ErrGeofence)
	}
	if !g.pathValid(from, out.Position) {
		return types.Reference{}, false, fmt.Errorf("%w: path leaves the area", ErrGeofence)
	}
	return out, modified, nil
}

// ValidateGeofence checks only the geofence part of the gate, for references
// that are deliberately exempt from the bumper (repulsion).
func (v *Validator) ValidateGeofence(ref types.Reference, from r3.Vec) (types.Reference, error) {
	if !ref.IsFinite() {
		return types.Reference{}, ErrNonFinite
	}
	out, err := v.transform(ref)
	if err != nil {
		return types.Reference{}, err
	}
	g := v.newGate(types.VehicleState{})
	if !g.pointValid(out.Position) || !g.pathValid(from, out.Position) {
		return types.Reference{}, fmt.Errorf("%w: repulsion target is outside", ErrGeofence)
	}
	return out, nil
}
