// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package recording

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/maneuver"
	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

func readAll(t *testing.T, r *Reader) []Entry {
	t.Helper()
	var out []Entry
	for e, err := range r.Entries() {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestWriterReader_Entries(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	w, err := NewWriter(&buf, "Serial: /dev/ttyUSB0", started)
	require.NoError(t, err)

	msg := wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 0x62, 0x7D)
	pose := rover.Pose{X: 1234.5, Y: 987.25, Orientation: -0.125}
	wall := rover.WallObservation{Front: rover.Point{X: 1700, Y: 10}, Rear: rover.Point{X: 1701, Y: 240}}
	cmd := rover.NewCommand(rover.ControlState{Gear: 4, Direction: rover.DirectionLeft})

	updates := []link.Update{
		{Kind: link.UpdateMessage, Time: started.Add(time.Second), Message: msg, Raw: wifly.Encode(msg)},
		{Kind: link.UpdatePose, Time: started.Add(2 * time.Second), Pose: pose},
		{Kind: link.UpdateWall, Time: started.Add(3 * time.Second), Wall: wall},
		{Kind: link.UpdateCommand, Time: started.Add(4 * time.Second), Command: cmd},
		{Kind: link.UpdateManeuver, Time: started.Add(5 * time.Second), Maneuver: maneuver.Phase3},
		{Kind: link.UpdateError, Time: started.Add(6 * time.Second), Err: errors.New("boom")},
	}
	for _, u := range updates {
		require.NoError(t, w.Record(u))
	}

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Serial: /dev/ttyUSB0", r.Header().Source)
	assert.Equal(t, started.UnixNano(), r.Header().Started)

	entries := readAll(t, r)
	require.Len(t, entries, len(updates))

	for i, e := range entries {
		assert.Equal(t, updates[i].Kind, e.Kind)
		assert.True(t, updates[i].Time.Equal(e.Timestamp()))
	}

	assert.Equal(t, msg, entries[0].WiflyMessage())
	assert.Equal(t, wifly.Encode(msg), entries[0].Raw)

	require.NotNil(t, entries[1].Pose)
	assert.Equal(t, pose, *entries[1].Pose)

	gotWall, ok := entries[2].WallObservation()
	require.True(t, ok)
	assert.Equal(t, wall, gotWall)

	control, ok := entries[3].ControlState()
	require.True(t, ok)
	assert.Equal(t, cmd.Control, control)

	require.NotNil(t, entries[4].Maneuver)
	assert.Equal(t, maneuver.Phase3, *entries[4].Maneuver)

	assert.Equal(t, "boom", entries[5].Error)
}

func TestNewReader_RejectsForeignData(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0x62, 0x09, 0x02}))
	assert.ErrorIs(t, err, ErrBadHeader)

	var buf bytes.Buffer
	_, err = NewReader(&buf)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestReader_TruncatedEntry(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, w.Record(link.Update{Kind: link.UpdatePose, Time: time.Now(), Pose: rover.Pose{X: 1}}))
	require.NoError(t, w.Record(link.Update{Kind: link.UpdatePose, Time: time.Now(), Pose: rover.Pose{X: 2}}))

	data := buf.Bytes()[:buf.Len()-3]
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	var got []Entry
	var lastErr error
	for e, err := range r.Entries() {
		if err != nil {
			lastErr = err
			break
		}
		got = append(got, e)
	}
	assert.Len(t, got, 1)
	assert.Error(t, lastErr)
}

func TestReplay_ReproducesEstimate(t *testing.T) {
	started := time.Now()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "test", started)
	require.NoError(t, err)

	live := rover.NewEstimator()
	record := func(m wifly.Message) {
		require.NoError(t, w.Record(link.Update{Kind: link.UpdateMessage, Time: started, Message: m}))
		_, err := live.Apply(m)
		require.NoError(t, err)
	}
	command := func(c rover.ControlState) {
		cmd := rover.NewCommand(c)
		require.NoError(t, w.Record(link.Update{Kind: link.UpdateCommand, Time: started, Command: cmd}))
		live.SetSigns(cmd.Signs)
	}

	record(wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 120, 130))
	command(rover.ControlState{Gear: 2, Direction: rover.DirectionForward})
	record(wifly.NewMessage(wifly.TagMotor, wifly.CmdMotorEncoderRead, 0x01, 0x00, 0x01, 0x10))
	command(rover.ControlState{Gear: 4, Direction: rover.DirectionRight})
	record(wifly.NewMessage(wifly.TagMotor, wifly.CmdMotorEncoderRead, 0x00, 0x80, 0x00, 0x80))
	record(wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 110, 118))

	r, err := NewReader(&buf)
	require.NoError(t, err)

	replayed := rover.NewEstimator()
	steps := 0
	require.NoError(t, Replay(r.Entries(), replayed, func(step ReplayStep) bool {
		require.NoError(t, step.Err)
		steps++
		return true
	}))

	assert.Equal(t, 4, steps)
	assert.Equal(t, live.Pose(), replayed.Pose())
	assert.Equal(t, live.Wall(), replayed.Wall())
	assert.Equal(t, live.Signs(), replayed.Signs())
}

func TestReplay_StopsEarly(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "", time.Now())
	require.NoError(t, err)
	m := wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 100, 105)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Record(link.Update{Kind: link.UpdateMessage, Time: time.Now(), Message: m}))
	}

	r, err := NewReader(&buf)
	require.NoError(t, err)
	steps := 0
	require.NoError(t, Replay(r.Entries(), rover.NewEstimator(), func(ReplayStep) bool {
		steps++
		return false
	}))
	assert.Equal(t, 1, steps)
}
