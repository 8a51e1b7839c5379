// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/maneuver"
	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

type intentRecorder struct {
	intents []link.Intent
}

func (r *intentRecorder) submit(intent link.Intent) tea.Cmd {
	r.intents = append(r.intents, intent)
	return func() tea.Msg { return nil }
}

func newTestDriveModel() (driveModel, *intentRecorder, chan link.Update) {
	rec := &intentRecorder{}
	updates := make(chan link.Update, 8)
	return initialDriveModel("Serial: test", updates, rec.submit), rec, updates
}

func press(m driveModel, msg tea.KeyMsg) (driveModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(driveModel), cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestDriveKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want link.Intent
	}{
		{"up", tea.KeyMsg{Type: tea.KeyUp}, link.SetDirection(rover.DirectionForward)},
		{"down", tea.KeyMsg{Type: tea.KeyDown}, link.SetDirection(rover.DirectionBackward)},
		{"left", tea.KeyMsg{Type: tea.KeyLeft}, link.SetDirection(rover.DirectionLeft)},
		{"right", tea.KeyMsg{Type: tea.KeyRight}, link.SetDirection(rover.DirectionRight)},
		{"stop", runeKey('.'), link.SetDirection(rover.DirectionStop)},
		{"gear 0", runeKey('0'), link.SetGear(0)},
		{"gear 4", runeKey('4'), link.SetGear(4)},
		{"brake", tea.KeyMsg{Type: tea.KeySpace}, link.Brake()},
		{"start", runeKey('s'), link.StartManeuver()},
		{"abort", runeKey('x'), link.StopManeuver()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec, _ := newTestDriveModel()
			_, cmd := press(m, tt.key)
			require.NotNil(t, cmd)
			require.Len(t, rec.intents, 1)
			assert.Equal(t, tt.want, rec.intents[0])
		})
	}
}

func TestDriveKeys_UnboundIgnored(t *testing.T) {
	m, rec, _ := newTestDriveModel()
	_, cmd := press(m, runeKey('z'))
	assert.Nil(t, cmd)
	assert.Empty(t, rec.intents)
}

func TestDriveQuit_StopsRover(t *testing.T) {
	m, rec, _ := newTestDriveModel()
	m, cmd := press(m, runeKey('q'))

	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	require.Len(t, rec.intents, 2)
	assert.Equal(t, link.StopManeuver(), rec.intents[0], "disarm the maneuver before stopping")
	assert.Equal(t, link.SetControl(rover.DirectionStop, 0), rec.intents[1])
}

func TestDriveLinkClosed(t *testing.T) {
	m, rec, updates := newTestDriveModel()
	close(updates)

	msg := waitForUpdate(updates)()
	require.IsType(t, linkClosedMsg{}, msg)

	next, _ := m.Update(msg)
	m = next.(driveModel)
	assert.True(t, m.linkDown)
	require.Len(t, m.eventLog, 1)
	assert.True(t, m.eventLog[0].isError)

	_, cmd := press(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Nil(t, cmd)

	// Nothing to stop once the link is gone
	_, cmd = press(m, runeKey('q'))
	require.NotNil(t, cmd)
	assert.Empty(t, rec.intents)
}

func TestDriveUpdates(t *testing.T) {
	m, _, updates := newTestDriveModel()

	updates <- link.Update{Kind: link.UpdateMessage, Message: wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 100, 105)}
	updates <- link.Update{Kind: link.UpdatePose, Pose: rover.Pose{X: 1500, Y: 300, Orientation: 0.1}}
	updates <- link.Update{Kind: link.UpdateWall, Wall: rover.WallObservation{
		Front: rover.Point{X: 1700, Y: 200},
		Rear:  rover.Point{X: 1700, Y: 450},
	}}
	updates <- link.Update{Kind: link.UpdateCommand, Command: rover.NewCommand(rover.ControlState{Direction: rover.DirectionForward, Gear: 2})}
	updates <- link.Update{Kind: link.UpdateManeuver, Maneuver: maneuver.Phase2}

	for range 5 {
		next, cmd := m.Update(waitForUpdate(m.updates)())
		require.NotNil(t, cmd, "each update re-arms the wait")
		m = next.(driveModel)
	}

	assert.Equal(t, uint64(1), m.stats.TotalFrames)
	assert.Equal(t, uint64(1), m.stats.CommandsSent)
	assert.True(t, m.hasPose)
	assert.Equal(t, 1500.0, m.pose.X)
	assert.Len(t, m.trail, 1)
	assert.True(t, m.hasWall)
	assert.Equal(t, 200.0, m.wall.Front.Y)
	assert.Equal(t, rover.ControlState{Direction: rover.DirectionForward, Gear: 2}, m.control)
	assert.Equal(t, maneuver.Phase2, m.maneuver)

	view := m.View()
	assert.Contains(t, view, "ROVERSTATION DRIVE")
	assert.Contains(t, view, "Serial: test")
}

func TestDriveUpdates_FramingError(t *testing.T) {
	m, _, _ := newTestDriveModel()
	m.applyUpdate(link.Update{Kind: link.UpdateError, Err: wifly.ErrTruncatedFrame})

	assert.Equal(t, uint64(1), m.stats.TotalFrames)
	assert.Equal(t, uint64(1), m.stats.FramingErrors)
	require.Len(t, m.eventLog, 1)
	assert.True(t, m.eventLog[0].isError)
}

func TestDriveSubmitFailed(t *testing.T) {
	m, _, _ := newTestDriveModel()
	next, _ := m.Update(submitFailedMsg{err: errors.New("station stopped")})
	m = next.(driveModel)

	require.Len(t, m.eventLog, 1)
	assert.Contains(t, m.eventLog[0].message, "station stopped")
}

func TestDriveEventLog_Bounded(t *testing.T) {
	m, _, _ := newTestDriveModel()
	for i := 0; i < maxLogEntries+25; i++ {
		m.addLogEntry("event", false)
	}
	assert.Len(t, m.eventLog, maxLogEntries)
}

func TestRenderMap(t *testing.T) {
	trail := []rover.Point{{X: 100, Y: 100}}
	pose := rover.Pose{X: 1000, Y: 1000}
	wall := rover.WallObservation{
		Front: rover.Point{X: 1700, Y: 0},
		Rear:  rover.Point{X: 1700, Y: 1700},
	}

	out := renderMap(trail, nil, pose, true, wall, true, 40, 20)
	rows := strings.Split(out, "\n")
	require.Len(t, rows, 20)
	for _, row := range rows {
		require.Len(t, []rune(row), 40)
	}

	// Wall column x=1700 maps to column 34
	assert.Equal(t, 'F', []rune(rows[0])[34])
	assert.Equal(t, 'R', []rune(rows[17])[34])
	assert.Equal(t, '|', []rune(rows[5])[34])
	assert.Equal(t, '.', []rune(rows[1])[2])
	assert.Equal(t, '^', []rune(rows[10])[20])
}

func TestRenderMap_KeepsWallContacts(t *testing.T) {
	m, _, _ := newTestDriveModel()
	m.applyUpdate(link.Update{Kind: link.UpdateWall, Wall: rover.WallObservation{
		Front: rover.Point{X: 1700, Y: 100},
		Rear:  rover.Point{X: 1700, Y: 300},
	}})
	m.applyUpdate(link.Update{Kind: link.UpdateWall, Wall: rover.WallObservation{
		Front: rover.Point{X: 1700, Y: 900},
		Rear:  rover.Point{X: 1700, Y: 1100},
	}})
	require.Len(t, m.wallTrail, 4)

	out := renderMap(m.trail, m.wallTrail, m.pose, m.hasPose, m.wall, m.hasWall, 40, 20)
	rows := strings.Split(out, "\n")
	require.Len(t, rows, 20)

	assert.Equal(t, '*', []rune(rows[1])[34])
	assert.Equal(t, '*', []rune(rows[3])[34])
	assert.Equal(t, 'F', []rune(rows[9])[34])
	assert.Equal(t, 'R', []rune(rows[11])[34])
	assert.Equal(t, 1, strings.Count(out, "F"))
	assert.Equal(t, 1, strings.Count(out, "R"))
}

func TestDriveWallTrail_Bounded(t *testing.T) {
	m, _, _ := newTestDriveModel()
	for i := 0; i < maxWallTrail; i++ {
		m.applyUpdate(link.Update{Kind: link.UpdateWall, Wall: rover.WallObservation{
			Front: rover.Point{X: 1700, Y: float64(i)},
			Rear:  rover.Point{X: 1700, Y: float64(i) + 250},
		}})
	}
	assert.Len(t, m.wallTrail, maxWallTrail)
	assert.Equal(t, float64(maxWallTrail-1)+250, m.wallTrail[len(m.wallTrail)-1].Y)
}

func TestRenderMap_OutOfWorld(t *testing.T) {
	pose := rover.Pose{X: -50, Y: 2500}
	out := renderMap(nil, nil, pose, true, rover.WallObservation{}, false, 10, 5)
	assert.NotContains(t, out, "^")

	nan := rover.Pose{X: math.NaN(), Y: 10}
	out = renderMap(nil, nil, nan, true, rover.WallObservation{}, false, 10, 5)
	assert.NotContains(t, out, "^")
}

func TestHeadingGlyph(t *testing.T) {
	tests := []struct {
		orientation float64
		want        rune
	}{
		{0, '^'},
		{math.Pi / 2, '<'},
		{math.Pi, 'v'},
		{3 * math.Pi / 2, '>'},
		{-math.Pi / 2, '>'},
		{2 * math.Pi, '^'},
		{0.3, '^'},
		{5 * math.Pi / 2, '<'},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, headingGlyph(tt.orientation), "orientation %v", tt.orientation)
	}
}
