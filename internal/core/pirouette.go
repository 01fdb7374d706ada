package core

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

type pirouetteState struct {
	active   bool
	position r3.Vec
	start    float64
	swept    float64
	last     time.Time
}

// Pirouette turns the vehicle once around its vertical axis on the spot.
func (m *ControlManager) Pirouette() types.Response {
	if !m.flyingNormally() {
		return types.Fail("pirouette needs the vehicle flying normally")
	}
	if reason, blocked := m.referenceBlocked(); blocked {
		return types.Fail("pirouette refused: %s", reason)
	}
	state, ok := m.vehicleState()
	if !ok {
		return types.Fail("pirouette refused: no vehicle state")
	}

	origin, heading := state.Position, state.Heading()
	if pos, _ := m.commands(); pos != nil {
		origin, heading = pos.Position, pos.Heading
	}

	m.auxMu.Lock()
	m.pirouette = pirouetteState{
		active:   true,
		position: origin,
		start:    heading,
		last:     m.now(),
	}
	m.auxMu.Unlock()

	m.pirouetteTask.Start()
	m.logger.Infof("Pirouette started")
	return types.Ok("pirouette started")
}

func (m *ControlManager) pirouetteTick() {
	now := m.now()

	m.auxMu.Lock()
	p := &m.pirouette
	if !p.active {
		m.auxMu.Unlock()
		m.pirouetteTask.Stop()
		return
	}
	p.swept = math.Min(2*math.Pi, p.swept+m.cfg.Pirouette.Speed*now.Sub(p.last).Seconds())
	p.last = now
	done := p.swept >= 2*math.Pi
	ref := types.Reference{
		FrameID:  m.cfg.UAV.WorkingFrame,
		Position: p.position,
		Heading:  types.WrapAngle(p.start + p.swept),
	}
	if done {
		p.active = false
	}
	m.auxMu.Unlock()

	if r := m.setReference(ref); !r.Success {
		m.logger.Warnf("Pirouette aborted: %s", r.Message)
		m.cancelPirouette()
		return
	}
	if done {
		m.pirouetteTask.Stop()
		m.logger.Infof("Pirouette finished")
	}
}

func (m *ControlManager) cancelPirouette() {
	m.auxMu.Lock()
	was := m.pirouette.active
	m.pirouette.active = false
	m.auxMu.Unlock()

	if was {
		m.pirouetteTask.Stop()
		m.logger.Infof("Pirouette cancelled")
	}
}
