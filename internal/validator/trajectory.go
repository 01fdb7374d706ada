package validator

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

// ValidateTrajectory checks every point of a trajectory. The result may be
// shorter than the input (truncated at the first unfixable violation) or
// have interior runs replaced by interpolation; either sets the boolean.
func (v *Validator) ValidateTrajectory(traj types.Trajectory, state types.VehicleState, from r3.Vec) (types.Trajectory, bool, error) {
	if len(traj.Points) == 0 {
		return types.Trajectory{}, false, ErrEmptyTrajectory
	}
	for i, p := range traj.Points {
		if !p.IsFinite() {
			return types.Trajectory{}, false, fmt.Errorf("%w: point %d", ErrNonFinite, i)
		}
	}

	out := traj.Clone()
	for i, p := range out.Points {
		if p.FrameID == "" {
			p.FrameID = traj.FrameID
		}
		tp, err := v.transform(p)
		if err != nil {
			return types.Trajectory{}, false, fmt.Errorf("point %d: %w", i, err)
		}
		out.Points[i] = tp
	}
	out.FrameID = v.workingFrame

	g := v.newGate(state)
	modified := false

	// bumper: clamp or truncate
	for i := range out.Points {
		pos, clamped, err := g.checkBumper(out.Points[i].Position)
		if err != nil {
			if i == 0 {
				return types.Trajectory{}, false, fmt.Errorf("first point: %w", err)
			}
			out.Points = out.Points[:i]
			modified = true
			break
		}
		if clamped {
			out.Points[i].Position = pos
			modified = true
		}
	}

	if !g.area {
		return out, modified, nil
	}

	points, repaired, err := g.repairGeofence(out.Points, from, v.snap)
	if err != nil {
		return types.Trajectory{}, false, err
	}
	out.Points = points
	return out, modified || repaired, nil
}

// repairGeofence applies the geofence to a trajectory. Without snapping it
// truncates at the first violation. With snapping, a run of invalid points
// bounded by valid ones is replaced by a straight line between them; a run
// reaching the end, or a segment between two valid points that leaves the
// area, is cut off.
func (g gate) repairGeofence(points []types.Reference, from r3.Vec, snap bool) ([]types.Reference, bool, error) {
	if !g.pointValid(points[0].Position) || !g.pathValid(from, points[0].Position) {
		return nil, false, fmt.Errorf("%w: trajectory starts outside", ErrGeofence)
	}

	n := len(points)
	segmentOK := func(i int) bool {
		return g.pointValid(points[i].Position) && g.pathValid(points[i-1].Position, points[i].Position)
	}

	if !snap {
		for i := 1; i < n; i++ {
			if !segmentOK(i) {
				return points[:i], true, nil
			}
		}
		return points, false, nil
	}

	modified := false
	for i := 1; i < n; {
		if segmentOK(i) {
			i++
			continue
		}

		j := i
		for j < n && !g.pointValid(points[j].Position) {
			j++
		}
		// j == i: both ends are valid but the segment between them is not,
		// so there is nothing to interpolate over
		if j == n || j == i {
			return points[:i], true, nil
		}

		a, b := points[i-1], points[j]
		span := float64(j - (i - 1))
		for k := i; k < j; k++ {
			t := float64(k-(i-1)) / span
			points[k].Position = types.Lerp(a.Position, b.Position, t)
			points[k].Heading = types.WrapAngle(a.Heading + t*types.AngleDiff(b.Heading, a.Heading))
		}
		for k := i; k <= j; k++ {
			if !segmentOK(k) {
				return nil, false, fmt.Errorf("%w: trajectory cannot be repaired around point %d", ErrGeofence, i)
			}
		}
		modified = true
		i = j + 1
	}
	return points, modified, nil
}
