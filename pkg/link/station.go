// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Thermoquad/roverstation/pkg/maneuver"
	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

// ErrStationStopped is returned when posting to a station that is not running
var ErrStationStopped = errors.New("station stopped")

// UpdateKind identifies what an Update carries
type UpdateKind int

// Update kinds
const (
	UpdateMessage UpdateKind = iota
	UpdatePose
	UpdateWall
	UpdateCommand
	UpdateManeuver
	UpdateError
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateMessage:
		return "MESSAGE"
	case UpdatePose:
		return "POSE"
	case UpdateWall:
		return "WALL"
	case UpdateCommand:
		return "COMMAND"
	case UpdateManeuver:
		return "MANEUVER"
	case UpdateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Update is a snapshot published by the station. Only the fields for Kind
// are set.
type Update struct {
	Kind     UpdateKind
	Time     time.Time
	Message  wifly.Message
	Raw      []byte
	Anomaly  []wifly.ValidationError
	Pose     rover.Pose
	Wall     rover.WallObservation
	Command  rover.Command
	Maneuver maneuver.Phase
	Err      error
}

// Recorder receives every update the station publishes
type Recorder interface {
	Record(Update) error
}

// CommandSink accepts outbound messages; *Sender implements it
type CommandSink interface {
	Send(ctx context.Context, m wifly.Message) error
}

// IntentKind is an operator action
type IntentKind int

// Intent kinds
const (
	IntentSetDirection IntentKind = iota
	IntentSetGear
	IntentSetControl
	IntentBrake
	IntentStartManeuver
	IntentStopManeuver
)

// Intent is an operator request delivered to the station
type Intent struct {
	Kind      IntentKind
	Direction rover.Direction
	Gear      int
}

// SetDirection changes the drive direction and keeps the gear
func SetDirection(d rover.Direction) Intent {
	return Intent{Kind: IntentSetDirection, Direction: d}
}

// SetGear changes the gear and keeps the direction
func SetGear(gear int) Intent {
	return Intent{Kind: IntentSetGear, Gear: gear}
}

// SetControl sets direction and gear in one command
func SetControl(d rover.Direction, gear int) Intent {
	return Intent{Kind: IntentSetControl, Direction: d, Gear: gear}
}

// Brake drops the gear to 0
func Brake() Intent { return Intent{Kind: IntentBrake} }

// StartManeuver begins the scripted self-test run
func StartManeuver() Intent { return Intent{Kind: IntentStartManeuver} }

// StopManeuver aborts the scripted run and stops the rover
func StopManeuver() Intent { return Intent{Kind: IntentStopManeuver} }

// State is a point-in-time copy of everything the station owns
type State struct {
	Phase    rover.Phase
	Pose     rover.Pose
	Wall     rover.WallObservation
	Control  rover.ControlState
	Signs    rover.WheelSigns
	Maneuver maneuver.Phase
	Stats    wifly.Statistics
}

// mailbox events
type (
	inboundEvent struct{ in Inbound }
	intentEvent  struct{ intent Intent }
	stepEvent    struct{ step maneuver.Step }
	stateQuery   struct{ reply chan State }
)

// StationOption configures a Station
type StationOption func(*Station)

// WithClock sets the clock driving maneuver timers
func WithClock(clk clock.Clock) StationOption {
	return func(s *Station) { s.clock = clk }
}

// WithRecorder attaches a session recorder
func WithRecorder(r Recorder) StationOption {
	return func(s *Station) { s.recorder = r }
}

// WithUpdateBuffer sets the updates channel capacity
func WithUpdateBuffer(n int) StationOption {
	return func(s *Station) { s.updateBuffer = n }
}

// Station owns the rover model. Inbound messages, operator intents and
// maneuver steps all go through one mailbox and are handled one at a time
// in arrival order; observers get copies on the Updates channel.
type Station struct {
	logger   *zap.Logger
	sink     CommandSink
	clock    clock.Clock
	recorder Recorder

	mailbox      chan any
	updates      chan Update
	updateBuffer int
	done         chan struct{}

	// owned by Run
	estimator *rover.Estimator
	control   rover.ControlState
	sequencer *maneuver.Sequencer
	stats     *wifly.Statistics
}

// NewStation creates a station sending commands to sink
func NewStation(sink CommandSink, logger *zap.Logger, opts ...StationOption) *Station {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Station{
		logger:       logger,
		sink:         sink,
		clock:        clock.New(),
		mailbox:      make(chan any, 64),
		updateBuffer: 256,
		done:         make(chan struct{}),
		estimator:    rover.NewEstimator(),
		stats:        wifly.NewStatistics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updates = make(chan Update, s.updateBuffer)
	s.sequencer = maneuver.New(s.clock, func(step maneuver.Step) {
		s.post(stepEvent{step: step})
	})
	return s
}

// Updates returns the snapshot stream. It is closed when Run returns.
func (s *Station) Updates() <-chan Update {
	return s.updates
}

// Deliver queues a receive result. It matches InboundHandler.
func (s *Station) Deliver(ctx context.Context, in Inbound) error {
	return s.postContext(ctx, inboundEvent{in: in})
}

// Submit queues an operator intent
func (s *Station) Submit(ctx context.Context, intent Intent) error {
	return s.postContext(ctx, intentEvent{intent: intent})
}

// State returns a copy of the owned state, read through the mailbox
func (s *Station) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := s.postContext(ctx, stateQuery{reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return State{}, ErrStationStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (s *Station) postContext(ctx context.Context, ev any) error {
	select {
	case <-s.done:
		return ErrStationStopped
	default:
	}

	select {
	case s.mailbox <- ev:
		return nil
	case <-s.done:
		return ErrStationStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used from timer goroutines, which have no context
func (s *Station) post(ev any) {
	select {
	case s.mailbox <- ev:
	case <-s.done:
	}
}

// Run processes the mailbox until ctx is cancelled or a command cannot be
// handed to the sink.
func (s *Station) Run(ctx context.Context) error {
	defer close(s.updates)
	defer close(s.done)
	defer s.sequencer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.mailbox:
			if err := s.handle(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Station) handle(ctx context.Context, ev any) error {
	switch ev := ev.(type) {
	case inboundEvent:
		return s.handleInbound(ctx, ev.in)
	case intentEvent:
		return s.handleIntent(ctx, ev.intent)
	case stepEvent:
		return s.handleStep(ctx, ev.step)
	case stateQuery:
		ev.reply <- State{
			Phase:    s.estimator.Phase(),
			Pose:     s.estimator.Pose(),
			Wall:     s.estimator.Wall(),
			Control:  s.control,
			Signs:    s.estimator.Signs(),
			Maneuver: s.sequencer.Phase(),
			Stats:    *s.stats,
		}
	}
	return nil
}

func (s *Station) handleInbound(ctx context.Context, in Inbound) error {
	if in.Err != nil {
		s.stats.Update(nil, in.Err, nil)
		return s.publish(ctx, Update{Kind: UpdateError, Time: in.Time, Err: in.Err})
	}

	anomalies := wifly.ValidateMessage(in.Message)
	s.stats.Update(&in.Message, nil, anomalies)
	if err := s.publish(ctx, Update{
		Kind:    UpdateMessage,
		Time:    in.Time,
		Message: in.Message,
		Raw:     in.Raw,
		Anomaly: anomalies,
	}); err != nil {
		return err
	}

	obs, err := s.estimator.Apply(in.Message)
	if err != nil {
		s.logger.Warn("estimate not updated", zap.Stringer("message", in.Message), zap.Error(err))
		return s.publish(ctx, Update{Kind: UpdateError, Time: in.Time, Err: err})
	}
	if obs.Pose != nil {
		if err := s.publish(ctx, Update{Kind: UpdatePose, Time: in.Time, Pose: *obs.Pose}); err != nil {
			return err
		}
	}
	if obs.Wall != nil {
		if err := s.publish(ctx, Update{Kind: UpdateWall, Time: in.Time, Wall: *obs.Wall}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Station) handleIntent(ctx context.Context, intent Intent) error {
	control := s.control
	switch intent.Kind {
	case IntentSetDirection:
		control.Direction = intent.Direction
	case IntentSetGear:
		control.Gear = rover.ClampGear(intent.Gear)
	case IntentSetControl:
		control = rover.ControlState{Gear: rover.ClampGear(intent.Gear), Direction: intent.Direction}
	case IntentBrake:
		control.Gear = 0
	case IntentStartManeuver:
		if err := s.sequencer.Start(); err != nil {
			s.logger.Warn("maneuver not started", zap.Error(err))
			return s.publish(ctx, Update{Kind: UpdateError, Time: s.clock.Now(), Err: err})
		}
		s.logger.Info("maneuver started")
		return s.publish(ctx, Update{Kind: UpdateManeuver, Time: s.clock.Now(), Maneuver: s.sequencer.Phase()})
	case IntentStopManeuver:
		if !s.sequencer.Stop() {
			return nil
		}
		s.logger.Info("maneuver stopped")
		if err := s.publish(ctx, Update{Kind: UpdateManeuver, Time: s.clock.Now(), Maneuver: maneuver.PhaseIdle}); err != nil {
			return err
		}
		control = rover.ControlState{Gear: 0, Direction: rover.DirectionStop}
	default:
		return nil
	}
	return s.issue(ctx, control)
}

func (s *Station) handleStep(ctx context.Context, step maneuver.Step) error {
	if !s.sequencer.Current(step) {
		s.logger.Debug("dropping stale maneuver step", zap.Stringer("phase", step.Phase))
		return nil
	}

	next := s.sequencer.Phase()
	if err := s.publish(ctx, Update{Kind: UpdateManeuver, Time: s.clock.Now(), Maneuver: next}); err != nil {
		return err
	}
	return s.issue(ctx, step.Command.Control)
}

// issue resolves control through the command table and sends it. The
// signs apply to encoder readings from here on.
func (s *Station) issue(ctx context.Context, control rover.ControlState) error {
	cmd := rover.NewCommand(control)
	s.control = cmd.Control
	s.estimator.SetSigns(cmd.Signs)

	if err := s.sink.Send(ctx, cmd.Message()); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Control, err)
	}
	s.stats.RecordSent()
	s.logger.Debug("command issued", zap.Stringer("control", cmd.Control))

	return s.publish(ctx, Update{Kind: UpdateCommand, Time: s.clock.Now(), Command: cmd})
}

func (s *Station) publish(ctx context.Context, u Update) error {
	if s.recorder != nil {
		if err := s.recorder.Record(u); err != nil {
			s.logger.Warn("record failed", zap.Error(err))
		}
	}
	select {
	case s.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
