package validator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

// horizon returns how far ahead, in seconds, a velocity is extrapolated to
// find where the vehicle would stop.
func (v *Validator) horizon(speed, accel float64) float64 {
	if accel <= 0 {
		return v.velocity.TimeMargin
	}
	return v.velocity.StoppingFactor*speed/accel + v.velocity.TimeMargin
}

// EquivalentReference converts a working-frame velocity reference into the
// point the vehicle would reach before stopping.
func (v *Validator) EquivalentReference(vel types.VelocityReference, state types.VehicleState, c types.Constraints) types.Reference {
	ref := types.Reference{FrameID: v.workingFrame, Position: state.Position, Heading: state.Heading()}

	horizontal := types.Horizontal(vel.Velocity)
	th := v.horizon(r3.Norm(horizontal), c.Horizontal.Acceleration)
	ref.Position = r3.Add(ref.Position, r3.Scale(th, horizontal))

	if vel.UseAltitude {
		ref.Position.Z = vel.Altitude
	} else {
		vz := vel.Velocity.Z
		tv := v.horizon(math.Abs(vz), c.VerticalFor(vz).Acceleration)
		ref.Position.Z = state.Position.Z + vz*tv
	}

	if vel.UseHeading {
		ref.Heading = vel.Heading
	}
	return ref
}

// ValidateVelocityReference transforms a velocity reference into the working
// frame and validates its equivalent stopping point. The tracker receives the
// transformed velocity reference, not the equivalent point.
func (v *Validator) ValidateVelocityReference(vel types.VelocityReference, state types.VehicleState, c types.Constraints, from r3.Vec) (types.VelocityReference, error) {
	if !vel.IsFinite() {
		return types.VelocityReference{}, ErrNonFinite
	}

	out := vel
	velocity, err := v.transformer.TransformVector(vel.Velocity, vel.FrameID, v.workingFrame)
	if err != nil {
		return types.VelocityReference{}, fmt.Errorf("%w: %v", ErrTransform, err)
	}
	out.Velocity = velocity

	anchor, err := v.transform(types.Reference{
		FrameID:  vel.FrameID,
		Position: r3.Vec{Z: vel.Altitude},
		Heading:  vel.Heading,
	})
	if err != nil {
		return types.VelocityReference{}, err
	}
	out.Altitude = anchor.Position.Z
	out.Heading = anchor.Heading
	out.FrameID = v.workingFrame

	eq := v.EquivalentReference(out, state, c)
	if _, _, err := v.ValidateReference(eq, state, from); err != nil {
		return types.VelocityReference{}, err
	}
	return out, nil
}
