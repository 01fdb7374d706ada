package types

import "time"

// Status is the supervisory snapshot published to diagnostics consumers.
type Status struct {
	Stamp            time.Time       `json:"stamp"`
	UAV              string          `json:"uav"`
	ActiveTracker    string          `json:"active_tracker"`
	ActiveController string          `json:"active_controller"`
	Trackers         []string        `json:"trackers"`
	Controllers      []string        `json:"controllers"`
	TrackerStatus    PluginStatus    `json:"tracker_status"`
	Landing          LandingState    `json:"landing"`
	Escalation       EscalationState `json:"escalation"`

	MotorsOn     bool          `json:"motors_on"`
	Armed        bool          `json:"armed"`
	Offboard     bool          `json:"offboard"`
	HaveState    bool          `json:"have_state"`
	StateAge     time.Duration `json:"state_age"`
	LastSwitchAt time.Time     `json:"last_switch_at"`

	ElandTriggered    bool `json:"eland_triggered"`
	FailsafeTriggered bool `json:"failsafe_triggered"`
	DisarmTriggered   bool `json:"disarm_triggered"`
	FailsafeActive    bool `json:"failsafe_active"`

	BumperEngaged   bool `json:"bumper_engaged"`
	PirouetteActive bool `json:"pirouette_active"`
	RCGotoActive    bool `json:"rc_goto_active"`

	SafetyArea      bool        `json:"safety_area"`
	Bumper          bool        `json:"bumper"`
	BumperRepulsion bool        `json:"bumper_repulsion"`
	Callbacks       bool        `json:"callbacks"`
	MinHeight       float64     `json:"min_height"`
	Constraints     Constraints `json:"constraints"`
}
