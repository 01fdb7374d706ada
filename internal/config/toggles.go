package config

import "sync"

// ToggleState is a snapshot of the runtime toggles.
type ToggleState struct {
	SafetyArea      bool
	Bumper          bool
	BumperRepulsion bool
	Callbacks       bool
	Joystick        bool
}

// Toggles holds the few settings the command surface may flip at runtime.
type Toggles struct {
	mu    sync.RWMutex
	state ToggleState
}

// NewToggles seeds the toggles from the static configuration.
func NewToggles(cfg *Config) *Toggles {
	return &Toggles{state: ToggleState{
		SafetyArea:      cfg.SafetyArea.Enabled,
		Bumper:          cfg.Bumper.Enabled,
		BumperRepulsion: cfg.Bumper.Repulsion.Enabled,
		Callbacks:       true,
		Joystick:        cfg.Joystick.Enabled,
	}}
}

func (t *Toggles) Snapshot() ToggleState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Toggles) update(fn func(*ToggleState)) {
	t.mu.Lock()
	fn(&t.state)
	t.mu.Unlock()
}

func (t *Toggles) SetSafetyArea(v bool) { t.update(func(s *ToggleState) { s.SafetyArea = v }) }

func (t *Toggles) SetBumper(v bool) { t.update(func(s *ToggleState) { s.Bumper = v }) }

func (t *Toggles) SetBumperRepulsion(v bool) {
	t.update(func(s *ToggleState) { s.BumperRepulsion = v })
}

func (t *Toggles) SetCallbacks(v bool) { t.update(func(s *ToggleState) { s.Callbacks = v }) }

func (t *Toggles) SetJoystick(v bool) { t.update(func(s *ToggleState) { s.Joystick = v }) }
