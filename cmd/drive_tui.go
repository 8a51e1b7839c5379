// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/maneuver"
	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	mapColumns    = 40
	mapRows       = 20
	maxTrail      = 400
	maxWallTrail  = 800
	maxLogEntries = 100
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line of the console event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type driveKeyMap struct {
	Forward  key.Binding
	Backward key.Binding
	Left     key.Binding
	Right    key.Binding
	Stop     key.Binding
	Gear     key.Binding
	Brake    key.Binding
	Start    key.Binding
	Abort    key.Binding
	Quit     key.Binding
}

func (k driveKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Forward, k.Backward, k.Left, k.Right, k.Gear, k.Brake, k.Start, k.Abort, k.Quit}
}

func (k driveKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Forward, k.Backward, k.Left, k.Right, k.Stop},
		{k.Gear, k.Brake},
		{k.Start, k.Abort, k.Quit},
	}
}

func newDriveKeyMap() driveKeyMap {
	return driveKeyMap{
		Forward:  key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "forward")),
		Backward: key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "backward")),
		Left:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "left")),
		Right:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "right")),
		Stop:     key.NewBinding(key.WithKeys("."), key.WithHelp(".", "stop")),
		Gear:     key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5"), key.WithHelp("0-5", "gear")),
		Brake:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "brake")),
		Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "maneuver")),
		Abort:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "abort")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// driveModel is the Bubble Tea model for the drive console
type driveModel struct {
	connInfo string
	updates  <-chan link.Update
	submit   func(link.Intent) tea.Cmd

	keys driveKeyMap
	help help.Model

	// Rover state, as last reported by the station
	control   rover.ControlState
	pose      rover.Pose
	hasPose   bool
	wall      rover.WallObservation
	hasWall   bool
	trail     []rover.Point
	wallTrail []rover.Point // every wall contact so far, front and rear
	maneuver  maneuver.Phase

	stats    *wifly.Statistics
	eventLog []eventLogEntry

	// UI state
	width    int
	height   int
	linkDown bool
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type driveTickMsg time.Time

type stationUpdateMsg link.Update

type linkClosedMsg struct{}

type submitFailedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialDriveModel(connInfo string, updates <-chan link.Update, submit func(link.Intent) tea.Cmd) driveModel {
	return driveModel{
		connInfo: connInfo,
		updates:  updates,
		submit:   submit,
		keys:     newDriveKeyMap(),
		help:     help.New(),
		maneuver: maneuver.PhaseIdle,
		stats:    wifly.NewStatistics(),
		eventLog: make([]eventLogEntry, 0),
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m driveModel) Init() tea.Cmd {
	return tea.Batch(driveTickCmd(), waitForUpdate(m.updates))
}

func driveTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return driveTickMsg(t)
	})
}

func waitForUpdate(updates <-chan link.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return linkClosedMsg{}
		}
		return stationUpdateMsg(u)
	}
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case driveTickMsg:
		m.stats.CalculateRates()
		return m, driveTickCmd()

	case stationUpdateMsg:
		m.applyUpdate(link.Update(msg))
		return m, waitForUpdate(m.updates)

	case linkClosedMsg:
		if !m.linkDown {
			m.linkDown = true
			m.addLogEntry("Link closed", true)
		}

	case submitFailedMsg:
		m.addLogEntry(fmt.Sprintf("Command not sent: %v", msg.err), true)
	}

	return m, nil
}

func (m driveModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.linkDown {
			return m, tea.Quit
		}
		return m, tea.Sequence(
			m.submit(link.StopManeuver()),
			m.submit(link.SetControl(rover.DirectionStop, 0)),
			tea.Quit,
		)

	case m.linkDown:
		return m, nil

	case key.Matches(msg, m.keys.Forward):
		return m, m.submit(link.SetDirection(rover.DirectionForward))
	case key.Matches(msg, m.keys.Backward):
		return m, m.submit(link.SetDirection(rover.DirectionBackward))
	case key.Matches(msg, m.keys.Left):
		return m, m.submit(link.SetDirection(rover.DirectionLeft))
	case key.Matches(msg, m.keys.Right):
		return m, m.submit(link.SetDirection(rover.DirectionRight))
	case key.Matches(msg, m.keys.Stop):
		return m, m.submit(link.SetDirection(rover.DirectionStop))
	case key.Matches(msg, m.keys.Gear):
		gear := int(msg.String()[0] - '0')
		return m, m.submit(link.SetGear(gear))
	case key.Matches(msg, m.keys.Brake):
		return m, m.submit(link.Brake())
	case key.Matches(msg, m.keys.Start):
		return m, m.submit(link.StartManeuver())
	case key.Matches(msg, m.keys.Abort):
		return m, m.submit(link.StopManeuver())
	}
	return m, nil
}

func (m *driveModel) applyUpdate(u link.Update) {
	switch u.Kind {
	case link.UpdateMessage:
		msg := u.Message
		m.stats.Update(&msg, nil, u.Anomaly)
		for _, a := range u.Anomaly {
			m.addLogEntry(fmt.Sprintf("%s/%s: %s", wifly.FormatTag(msg.Tag), wifly.FormatCommand(msg.Command), a.Message), true)
		}

	case link.UpdateError:
		if wifly.IsFramingError(u.Err) {
			m.stats.Update(nil, u.Err, nil)
		}
		m.addLogEntry(u.Err.Error(), true)

	case link.UpdatePose:
		if !m.hasPose {
			m.addLogEntry(fmt.Sprintf("Initial fix %s", u.Pose), false)
		}
		m.pose = u.Pose
		m.hasPose = true
		m.trail = append(m.trail, u.Pose.Center())
		if len(m.trail) > maxTrail {
			m.trail = m.trail[len(m.trail)-maxTrail:]
		}

	case link.UpdateWall:
		m.wall = u.Wall
		m.hasWall = true
		m.wallTrail = append(m.wallTrail, u.Wall.Front, u.Wall.Rear)
		if len(m.wallTrail) > maxWallTrail {
			m.wallTrail = m.wallTrail[len(m.wallTrail)-maxWallTrail:]
		}

	case link.UpdateCommand:
		m.stats.RecordSent()
		if u.Command.Control != m.control {
			m.addLogEntry(fmt.Sprintf("Sent %s", u.Command.Control), false)
		}
		m.control = u.Command.Control

	case link.UpdateManeuver:
		m.maneuver = u.Maneuver
		m.addLogEntry(fmt.Sprintf("Maneuver %s", u.Maneuver), false)
	}
}

func (m driveModel) View() string {
	if m.quitting {
		return "Stopping rover...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("ROVERSTATION DRIVE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.linkDown {
		connStatus = warningStyle.Render("LINK DOWN")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s", connStatus)))
	s.WriteString("\n\n")

	// Left: state panel, right: map
	statePanel := boxStyle.Width(34).Render(m.renderState())
	mapPanel := boxStyle.Render(renderMap(m.trail, m.wallTrail, m.pose, m.hasPose, m.wall, m.hasWall, mapColumns, mapRows))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statePanel, " ", mapPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m driveModel) renderState() string {
	var s strings.Builder

	line := func(label, value string) {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render(label), statsValueStyle.Render(value)))
	}

	line("Direction:", m.control.Direction.String())
	line("Gear:     ", fmt.Sprintf("%d", m.control.Gear))
	line("Maneuver: ", m.maneuver.String())
	s.WriteString("\n")

	if m.hasPose {
		line("X:        ", fmt.Sprintf("%.1f mm", m.pose.X))
		line("Y:        ", fmt.Sprintf("%.1f mm", m.pose.Y))
		line("Heading:  ", fmt.Sprintf("%.1f°", m.pose.Degrees()))
	} else {
		s.WriteString(warningStyle.Render("Waiting for initial fix..."))
		s.WriteString("\n")
	}

	if m.hasWall {
		s.WriteString("\n")
		line("Wall F:   ", fmt.Sprintf("(%.0f, %.0f)", m.wall.Front.X, m.wall.Front.Y))
		line("Wall R:   ", fmt.Sprintf("(%.0f, %.0f)", m.wall.Rear.X, m.wall.Rear.Y))
	}

	return strings.TrimRight(s.String(), "\n")
}

func (m driveModel) renderStatisticsBar() string {
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidMessages) * 100.0 / float64(m.stats.TotalFrames)
	}
	errors := m.stats.FramingErrors + m.stats.UnknownMessages + m.stats.InvalidValues

	errorText := statsValueStyle.Render("0")
	if errors > 0 {
		errorText = errorStyle.Render(fmt.Sprintf("%d", errors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errorText,
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.CommandsSent)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f fr/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m driveModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 6
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}

// renderMap draws the field top-down: origin top-left, y down, the
// followed wall at x = XMax. Past wall contacts are '*', the latest pair
// F and R.
func renderMap(trail, wallTrail []rover.Point, pose rover.Pose, hasPose bool, wall rover.WallObservation, hasWall bool, cols, rows int) string {
	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", cols))
	}

	plot := func(p rover.Point, c rune) {
		col, row, ok := mapCell(p, cols, rows)
		if ok {
			grid[row][col] = c
		}
	}

	wallCol, _, _ := mapCell(rover.Point{X: rover.XMax, Y: 0}, cols, rows)
	for r := range grid {
		grid[r][wallCol] = '|'
	}

	for _, p := range trail {
		plot(p, '.')
	}
	for _, p := range wallTrail {
		plot(p, '*')
	}
	if hasWall {
		plot(wall.Front, 'F')
		plot(wall.Rear, 'R')
	}
	if hasPose {
		plot(pose.Center(), headingGlyph(pose.Orientation))
	}

	lines := make([]string, rows)
	for r, row := range grid {
		lines[r] = string(row)
	}
	return strings.Join(lines, "\n")
}

// mapCell maps a world point to a grid cell
func mapCell(p rover.Point, cols, rows int) (int, int, bool) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return 0, 0, false
	}
	col := int(math.Floor(p.X / rover.WorldX * float64(cols)))
	row := int(math.Floor(p.Y / rover.WorldY * float64(rows)))
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return 0, 0, false
	}
	return col, row, true
}

// headingGlyph picks an arrow for an orientation. Orientation 0 faces up
// and grows counter-clockwise.
func headingGlyph(orientation float64) rune {
	a := math.Mod(orientation, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	switch int(math.Round(a/(math.Pi/2))) % 4 {
	case 1:
		return '<'
	case 2:
		return 'v'
	case 3:
		return '>'
	default:
		return '^'
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *driveModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}
