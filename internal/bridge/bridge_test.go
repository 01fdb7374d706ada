package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uav-control-manager/internal/types"
)

type recordingHandler struct {
	states   []types.VehicleState
	statuses []types.FlightStackStatus
	rc       []types.RCChannels
}

func (h *recordingHandler) OnVehicleState(s types.VehicleState) { h.states = append(h.states, s) }
func (h *recordingHandler) OnFlightStackStatus(st types.FlightStackStatus) {
	h.statuses = append(h.statuses, st)
}
func (h *recordingHandler) OnRCChannels(rc types.RCChannels) { h.rc = append(h.rc, rc) }

func frames(topic, payload string) [][]byte {
	return [][]byte{[]byte(topic), []byte(payload)}
}

func TestDispatchState(t *testing.T) {
	h := &recordingHandler{}
	err := dispatch(frames(TopicState, `{"frame_id":"world","position":{"X":1,"Y":2,"Z":3},"orientation":{"Real":1},"estimator_epoch":4}`), h)
	require.NoError(t, err)

	require.Len(t, h.states, 1)
	s := h.states[0]
	assert.Equal(t, "world", s.FrameID)
	assert.Equal(t, 3.0, s.Position.Z)
	assert.Equal(t, 1.0, s.Orientation.Real)
	assert.Equal(t, uint64(4), s.EstimatorEpoch)
}

func TestDispatchFlightStatusAndRC(t *testing.T) {
	h := &recordingHandler{}
	require.NoError(t, dispatch(frames(TopicFlightStatus, `{"armed":true,"offboard":true,"have_odometry":true}`), h))
	require.NoError(t, dispatch(frames(TopicRC, `{"channels":[0.1,0.9]}`), h))

	require.Len(t, h.statuses, 1)
	assert.True(t, h.statuses[0].Offboard)
	require.Len(t, h.rc, 1)
	v, ok := h.rc[0].Channel(1)
	assert.True(t, ok)
	assert.Equal(t, 0.9, v)
}

func TestDispatchRejectsBadFrames(t *testing.T) {
	h := &recordingHandler{}

	assert.ErrorIs(t, dispatch([][]byte{[]byte(TopicState)}, h), ErrInvalidFrame)
	assert.ErrorIs(t, dispatch(frames(TopicState, `{`), h), ErrInvalidFrame)
	assert.ErrorIs(t, dispatch(frames("battery", `{}`), h), ErrUnknownTopic)
	assert.Empty(t, h.states)
}
