package types

// PluginStatus is what a tracker or controller reports about itself.
type PluginStatus struct {
	Active           bool   `json:"active"`
	CallbacksEnabled bool   `json:"callbacks_enabled"`
	HaveGoal         bool   `json:"have_goal"`
	Tracking         bool   `json:"tracking"`
	TrajectoryLength int    `json:"trajectory_length"`
	TrajectoryIndex  int    `json:"trajectory_index"`
	Message          string `json:"message,omitempty"`
}
