package hardware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"uav-control-manager/internal/logger"
)

type InputEvent struct {
	Sec   int32
	Usec  int32
	Type  uint16
	Code  uint16
	Value int32
}

// decodeEvent parses one struct input_event.
func decodeEvent(buf []byte) (InputEvent, bool) {
	if len(buf) != inputEventSize {
		return InputEvent{}, false
	}
	return InputEvent{
		Sec:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Usec:  int32(binary.LittleEndian.Uint32(buf[4:8])),
		Type:  binary.LittleEndian.Uint16(buf[8:10]),
		Code:  binary.LittleEndian.Uint16(buf[10:12]),
		Value: int32(binary.LittleEndian.Uint32(buf[12:16])),
	}, true
}

// keyPressed reads one key from an EVIOCGKEY bitmap.
func keyPressed(bitmap []byte, code uint16) bool {
	byteOffset := int(code / 8)
	if byteOffset >= len(bitmap) {
		return false
	}
	return bitmap[byteOffset]&(1<<(code%8)) != 0
}

// ButtonCallback receives the name of a pressed button.
type ButtonCallback func(button string)

// Buttons maps evdev key presses of the joystick button box to named
// commands.
type Buttons struct {
	logger   *logger.Logger
	path     string
	input    io.ReadCloser
	names    map[uint16]string
	callback ButtonCallback

	mu       sync.Mutex
	pressed  map[uint16]bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewButtons builds a button reader. mapping goes from button name to key
// code; two names on one key code is an error.
func NewButtons(path string, mapping map[string]int, callback ButtonCallback, l *logger.Logger) (*Buttons, error) {
	names := make(map[uint16]string, len(mapping))
	for name, code := range mapping {
		if code <= 0 || code >= keyBitmapSize*8 {
			return nil, fmt.Errorf("button %s: key code %d out of range", name, code)
		}
		if other, ok := names[uint16(code)]; ok {
			return nil, fmt.Errorf("buttons %s and %s share key code %d", other, name, code)
		}
		names[uint16(code)] = name
	}
	return &Buttons{
		logger:   l,
		path:     path,
		names:    names,
		callback: callback,
		pressed:  make(map[uint16]bool),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Initialize opens the input device, logs already held buttons and starts
// the monitor.
func (b *Buttons) Initialize() error {
	b.logger.Infof("Opening input device: %s", b.path)
	f, err := os.OpenFile(b.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open input device %s: %w", b.path, err)
	}

	if err := b.readInitialState(f); err != nil {
		b.logger.Warnf("Failed to read initial button states: %v", err)
	}
	b.start(f)
	return nil
}

func (b *Buttons) start(r io.ReadCloser) {
	b.input = r
	go b.monitorInputs()
}

func (b *Buttons) readInitialState(f *os.File) error {
	bitmap := make([]byte, keyBitmapSize)
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		uintptr(eviocgkey),
		uintptr(unsafe.Pointer(&bitmap[0])),
	)
	if errno != 0 {
		return fmt.Errorf("EVIOCGKEY ioctl failed: %v", errno)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for code, name := range b.names {
		if keyPressed(bitmap, code) {
			// held at start-up: wait for a release before acting on it
			b.pressed[code] = true
			b.logger.Warnf("Button %s (code %d) is held at start-up", name, code)
		}
	}
	return nil
}

func (b *Buttons) monitorInputs() {
	defer close(b.done)

	buffer := make([]byte, inputEventSize)
	for {
		_, err := io.ReadFull(b.input, buffer)
		select {
		case <-b.stopChan:
			b.logger.Infof("Stopping button monitoring")
			return
		default:
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				b.logger.Warnf("Input device closed")
				return
			}
			b.logger.ThrottledWarnf(5*time.Second, "Error reading input: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		ev, ok := decodeEvent(buffer)
		if ok && ev.Type == EV_KEY {
			b.handleKeyEvent(ev)
		}
	}
}

func (b *Buttons) handleKeyEvent(ev InputEvent) {
	// only press (1) and release (0), no autorepeat
	if ev.Value > 1 {
		return
	}
	name, known := b.names[ev.Code]
	if !known {
		b.logger.Debugf("Unmapped key code: %d", ev.Code)
		return
	}

	b.mu.Lock()
	was := b.pressed[ev.Code]
	if ev.Value == 0 {
		delete(b.pressed, ev.Code)
	} else {
		b.pressed[ev.Code] = true
	}
	b.mu.Unlock()

	if ev.Value == 1 && !was {
		b.logger.Infof("Button %s pressed", name)
		b.callback(name)
	}
}

func (b *Buttons) Cleanup() {
	close(b.stopChan)
	if b.input != nil {
		b.input.Close()
		<-b.done
	}
}
