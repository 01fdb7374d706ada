package core

import (
	"uav-control-manager/internal/types"
)

// SetConstraints replaces the requested constraints. The sanitized copy the
// plugins see is recomputed right away.
func (m *ControlManager) SetConstraints(c types.Constraints) types.Response {
	if !c.Valid() {
		return types.Fail("constraints must be finite and non-negative")
	}

	m.constraintsMu.Lock()
	m.requested = c
	m.constraintsMu.Unlock()

	m.reconcile(true)
	return types.Ok("constraints set")
}

// reconcileConstraints clips the requested constraints by whatever the
// active controller enforces itself and hands them to the plugins when they
// change.
func (m *ControlManager) reconcileConstraints() {
	m.reconcile(false)
}

func (m *ControlManager) reconcile(force bool) {
	var enforcing types.ConstraintOverride
	if att := m.latestAttitude(); att != nil {
		enforcing = att.Enforcing
	}

	m.constraintsMu.Lock()
	sanitized := m.requested.Clip(enforcing)
	changed := sanitized != m.sanitized
	m.sanitized = sanitized
	m.constraintsMu.Unlock()

	if changed || force {
		m.applyConstraints(sanitized)
	}
}

// Constraints returns the requested and the sanitized constraints.
func (m *ControlManager) Constraints() (requested, sanitized types.Constraints) {
	m.constraintsMu.Lock()
	defer m.constraintsMu.Unlock()
	return m.requested, m.sanitized
}
