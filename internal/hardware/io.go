package hardware

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"uav-control-manager/internal/logger"
)

// LineRequester opens one output line. gpiocdev.Chip satisfies it through
// chipRequester; tests substitute a fake.
type LineRequester interface {
	RequestOutput(offset int, initial int) (OutputLine, error)
	Close() error
}

// OutputLine is a requested output line.
type OutputLine interface {
	SetValue(value int) error
	Close() error
}

type chipRequester struct {
	chip *gpiocdev.Chip
}

func (c chipRequester) RequestOutput(offset int, initial int) (OutputLine, error) {
	return c.chip.RequestLine(offset,
		gpiocdev.AsOutput(initial),
		gpiocdev.WithConsumer(consumer))
}

func (c chipRequester) Close() error {
	return c.chip.Close()
}

// OpenChip opens a GPIO chip by name, e.g. "gpiochip0".
func OpenChip(name string) (LineRequester, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", name, err)
	}
	return chipRequester{chip: chip}, nil
}

// Outputs drives the digital output lines: the payload gripper and the
// emergency status LED.
type Outputs struct {
	logger  *logger.Logger
	chip    LineRequester
	mapping map[string]int
	lines   map[string]OutputLine
	mu      sync.Mutex
	pulseMu sync.Mutex
	sleep   func(time.Duration)
}

func NewOutputs(chip LineRequester, mapping map[string]int, l *logger.Logger) *Outputs {
	return &Outputs{
		logger:  l,
		chip:    chip,
		mapping: mapping,
		lines:   make(map[string]OutputLine),
		sleep:   time.Sleep,
	}
}

// Initialize requests every mapped line as an output driven low.
func (o *Outputs) Initialize() error {
	o.logger.Infof("Initializing GPIO outputs")

	names := make([]string, 0, len(o.mapping))
	for name := range o.mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range names {
		offset := o.mapping[name]
		line, err := o.chip.RequestOutput(offset, 0)
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d for %s: %w", offset, name, err)
		}
		o.lines[name] = line
		o.logger.Infof("Configured DO %s: line=%d", name, offset)
	}
	return nil
}

func (o *Outputs) WriteDigitalOutput(channel string, value bool) error {
	o.mu.Lock()
	line, ok := o.lines[channel]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}

	val := 0
	if value {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}

	o.logger.Debugf("Set DO %s=%v", channel, value)
	return nil
}

// ReleasePayload pulses the gripper line.
func (o *Outputs) ReleasePayload() error {
	o.pulseMu.Lock()
	defer o.pulseMu.Unlock()

	o.logger.Warnf("Releasing payload")
	if err := o.WriteDigitalOutput(LineGripper, true); err != nil {
		return err
	}
	o.sleep(releasePulse)
	return o.WriteDigitalOutput(LineGripper, false)
}

// SetEmergency switches the status LED.
func (o *Outputs) SetEmergency(on bool) error {
	return o.WriteDigitalOutput(LineStatusLED, on)
}

func (o *Outputs) Cleanup() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger.Infof("Cleaning up GPIO outputs")
	for name, line := range o.lines {
		if err := line.SetValue(0); err != nil {
			o.logger.Warnf("Failed to reset %s: %v", name, err)
		}
		line.Close()
		delete(o.lines, name)
	}
	if o.chip != nil {
		o.chip.Close()
	}
}
