package hardware

import "time"

const (
	EV_SYN = 0x00
	EV_KEY = 0x01

	// inputEventSize is sizeof(struct input_event) on 32-bit time_t targets.
	inputEventSize = 16

	// eviocgkey is EVIOCGKEY(128).
	eviocgkey     = 0x80804518
	keyBitmapSize = 128

	consumer = "control-manager"

	// Output line names
	LineGripper   = "gripper"
	LineStatusLED = "status_led"

	releasePulse = 500 * time.Millisecond
)
