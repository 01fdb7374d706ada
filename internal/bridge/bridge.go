// Package bridge links the control manager to the flight stack over ZeroMQ.
// Telemetry arrives on a SUB socket as [topic, json] frames; commands leave
// on a PUB socket in the same layout.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"

	"uav-control-manager/internal/logger"
	"uav-control-manager/internal/types"
)

// Inbound topics
const (
	TopicState        = "state"
	TopicFlightStatus = "flight-status"
	TopicRC           = "rc"
)

// Outbound topics
const (
	TopicAttitude = "attitude"
	TopicDisarm   = "disarm"
)

const pollTimeout = 500 * time.Millisecond

var (
	ErrClosed       = errors.New("bridge is closed")
	ErrInvalidFrame = errors.New("invalid message frame")
	ErrUnknownTopic = errors.New("unknown topic")
)

// Handler receives decoded telemetry.
type Handler interface {
	OnVehicleState(s types.VehicleState)
	OnFlightStackStatus(st types.FlightStackStatus)
	OnRCChannels(rc types.RCChannels)
}

type disarmMessage struct {
	Stamp time.Time `json:"stamp"`
}

type Bridge struct {
	zctx   *zmq4.Context
	sub    *zmq4.Socket
	pub    *zmq4.Socket
	poller *zmq4.Poller
	logger *logger.Logger
	now    func() time.Time

	pubMu   sync.Mutex
	running atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// New connects the telemetry socket and binds the command socket.
func New(telemetryAddr, commandAddr string, l *logger.Logger) (*Bridge, error) {
	zctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZeroMQ context: %w", err)
	}

	sub, err := zctx.NewSocket(zmq4.SUB)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}
	b := &Bridge{zctx: zctx, sub: sub, logger: l, now: time.Now}

	if err := sub.SetLinger(0); err != nil {
		b.teardown()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	for _, topic := range []string{TopicState, TopicFlightStatus, TopicRC} {
		if err := sub.SetSubscribe(topic); err != nil {
			b.teardown()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	if err := sub.Connect(telemetryAddr); err != nil {
		b.teardown()
		return nil, fmt.Errorf("failed to connect to %s: %w", telemetryAddr, err)
	}

	pub, err := zctx.NewSocket(zmq4.PUB)
	if err != nil {
		b.teardown()
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	b.pub = pub
	if err := pub.SetLinger(0); err != nil {
		b.teardown()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := pub.Bind(commandAddr); err != nil {
		b.teardown()
		return nil, fmt.Errorf("failed to bind to %s: %w", commandAddr, err)
	}

	b.poller = zmq4.NewPoller()
	b.poller.Add(sub, zmq4.POLLIN)

	l.Infof("Bridge receiving telemetry from %s, publishing commands on %s", telemetryAddr, commandAddr)
	return b, nil
}

// Start runs the receive loop, handing telemetry to h.
func (b *Bridge) Start(h Handler) {
	if b.closed.Load() || !b.running.CompareAndSwap(false, true) {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.logger.Infof("Bridge receiver started")

		for b.running.Load() {
			sockets, err := b.poller.Poll(pollTimeout)
			if err != nil {
				if b.running.Load() {
					b.logger.ThrottledWarnf(time.Second, "Error polling telemetry socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			frames, err := b.sub.RecvMessageBytes(0)
			if err != nil {
				if b.running.Load() {
					b.logger.ThrottledWarnf(time.Second, "Error receiving telemetry: %v", err)
				}
				continue
			}
			if err := dispatch(frames, h); err != nil {
				b.logger.ThrottledWarnf(time.Second, "Dropping telemetry: %v", err)
			}
		}
		b.logger.Infof("Bridge receiver stopped")
	}()
}

// dispatch decodes one multipart message and hands it to h.
func dispatch(frames [][]byte, h Handler) error {
	if len(frames) != 2 {
		return fmt.Errorf("%w: %d frames", ErrInvalidFrame, len(frames))
	}
	topic, payload := string(frames[0]), frames[1]

	switch topic {
	case TopicState:
		var s types.VehicleState
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFrame, topic, err)
		}
		h.OnVehicleState(s)
	case TopicFlightStatus:
		var st types.FlightStackStatus
		if err := json.Unmarshal(payload, &st); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFrame, topic, err)
		}
		h.OnFlightStackStatus(st)
	case TopicRC:
		var rc types.RCChannels
		if err := json.Unmarshal(payload, &rc); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFrame, topic, err)
		}
		h.OnRCChannels(rc)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return nil
}

func (b *Bridge) send(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if b.closed.Load() {
		return ErrClosed
	}
	if _, err := b.pub.SendMessage(topic, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", topic, err)
	}
	return nil
}

// Publish sends an attitude or rate command to the flight stack.
func (b *Bridge) Publish(cmd types.OutputCommand) error {
	return b.send(TopicAttitude, cmd)
}

// Disarm asks the flight stack to disarm.
func (b *Bridge) Disarm() error {
	b.logger.Warnf("Sending disarm to flight stack")
	return b.send(TopicDisarm, disarmMessage{Stamp: b.now()})
}

func (b *Bridge) teardown() {
	if b.sub != nil {
		b.sub.Close()
	}
	if b.pub != nil {
		b.pub.Close()
	}
	b.zctx.Term()
}

// Close stops the receiver and releases the sockets.
func (b *Bridge) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.running.Store(false)
	b.wg.Wait()

	b.pubMu.Lock()
	b.teardown()
	b.pubMu.Unlock()
	b.logger.Infof("Bridge closed")
}
