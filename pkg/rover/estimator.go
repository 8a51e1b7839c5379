// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rover

import (
	"errors"
	"fmt"
	"math"

	"github.com/Thermoquad/roverstation/pkg/wifly"
)

// ErrGeometrySingularity is returned when a reading would put the estimate
// through cos(phi) == 0 or otherwise produce a non-finite value. The
// previous estimate is kept.
var ErrGeometrySingularity = errors.New("geometry singularity")

// cosEpsilon is the smallest |cos(phi)| accepted for the initial fix
const cosEpsilon = 1e-9

// Estimator integrates range and encoder readings into a pose and wall
// observation. It is not safe for concurrent use; a single owner feeds it
// readings in decode order.
type Estimator struct {
	phase Phase
	pose  Pose
	wall  WallObservation
	signs WheelSigns
}

// NewEstimator creates an estimator waiting for its initial fix
func NewEstimator() *Estimator {
	return &Estimator{
		phase: PhaseAwaitingInitialFix,
		wall:  initialWall(),
		signs: WheelSigns{1, 1},
	}
}

func initialWall() WallObservation {
	return WallObservation{
		Front: Point{X: XMax, Y: 0},
		Rear:  Point{X: XMax, Y: YMax},
	}
}

// Phase returns the estimator lifecycle phase
func (e *Estimator) Phase() Phase {
	return e.phase
}

// Pose returns a copy of the current pose
func (e *Estimator) Pose() Pose {
	return e.pose
}

// Wall returns a copy of the current wall observation
func (e *Estimator) Wall() WallObservation {
	return e.wall
}

// Signs returns the encoder signs applied to the next encoder reading
func (e *Estimator) Signs() WheelSigns {
	return e.signs
}

// SetSigns records the wheel signs of the last issued command
func (e *Estimator) SetSigns(signs WheelSigns) {
	e.signs = signs
}

// Observation is the result of applying one message. Nil fields were not
// updated by that message.
type Observation struct {
	Pose *Pose
	Wall *WallObservation
}

// Apply routes a decoded message to the matching update. Messages other
// than SENSOR/RAW_READ and MOTOR/ENCODER_READ are ignored.
func (e *Estimator) Apply(m wifly.Message) (Observation, error) {
	switch {
	case m.Is(wifly.TagSensor, wifly.CmdSensorRawRead):
		wall, pose, fixed, err := e.OnSensorMessage(int(m.Data[0]), int(m.Data[1])-RearSensorTrim)
		if err != nil {
			return Observation{}, err
		}
		obs := Observation{Wall: &wall}
		if fixed {
			obs.Pose = &pose
		}
		return obs, nil

	case m.Is(wifly.TagMotor, wifly.CmdMotorEncoderRead):
		pose, ok, err := e.OnEncoderMessage(int(m.Word(0)), int(m.Word(1)))
		if err != nil || !ok {
			return Observation{}, err
		}
		return Observation{Pose: &pose}, nil
	}

	return Observation{}, nil
}

// OnSensorMessage converts raw front/rear readings and applies them.
// The rear trim is the caller's responsibility.
func (e *Estimator) OnSensorMessage(raw1, raw2 int) (WallObservation, Pose, bool, error) {
	return e.OnSensorDistances(SensorDistance(float64(raw1)), SensorDistance(float64(raw2)))
}

// OnSensorDistances applies a pair of range distances. The first reading
// computes the initial fix and returns it with fixed=true; later readings
// only reproject the wall from the current pose.
func (e *Estimator) OnSensorDistances(s1, s2 float64) (WallObservation, Pose, bool, error) {
	switch e.phase {
	case PhaseAwaitingInitialFix:
		pose, frontY, err := InitialFix(s1, s2)
		if err != nil {
			return e.wall, e.pose, false, err
		}
		e.pose = pose
		e.wall.Front.Y = frontY
		e.phase = PhaseFollowingWall
		return e.wall, e.pose, true, nil

	default:
		w := ProjectWall(e.pose, s1, s2)
		if !w.finite() {
			return e.wall, e.pose, false, fmt.Errorf("%w: wall projection not finite", ErrGeometrySingularity)
		}
		e.wall = w
		return e.wall, e.pose, false, nil
	}
}

// OnEncoderMessage converts raw tick counts and applies them
func (e *Estimator) OnEncoderMessage(ticks1, ticks2 int) (Pose, bool, error) {
	return e.OnEncoderDistances(EncoderDistance(float64(ticks1)), EncoderDistance(float64(ticks2)))
}

// OnEncoderDistances dead-reckons the wheel travel since the last reading.
// Returns ok=false while awaiting the initial fix.
func (e *Estimator) OnEncoderDistances(d1, d2 float64) (Pose, bool, error) {
	if e.phase != PhaseFollowingWall {
		return e.pose, false, nil
	}

	next := Advance(e.pose, d1*float64(e.signs[0]), d2*float64(e.signs[1]))
	if !next.finite() {
		return e.pose, false, fmt.Errorf("%w: pose update not finite", ErrGeometrySingularity)
	}
	e.pose = next
	return e.pose, true, nil
}

// InitialFix solves the pose from the two range distances with the rover
// alongside the wall at x = XMax. Also returns the y of the front wall point.
func InitialFix(s1, s2 float64) (Pose, float64, error) {
	phi := math.Atan((s1 - s2) / Length)
	cosPhi := math.Cos(phi)
	if math.Abs(cosPhi) < cosEpsilon {
		return Pose{}, 0, fmt.Errorf("%w: cos(phi) is zero", ErrGeometrySingularity)
	}

	k := 2 * math.Cos(Beta)
	pose := Pose{
		X:           XMax - s1*cosPhi - Length*math.Sin(Beta-phi)/k,
		Y:           YMax + s1*math.Sin(phi) - Length*(1/cosPhi-math.Cos(Beta-phi)/k),
		Orientation: phi,
	}
	frontY := YMax - Length/cosPhi

	if !pose.finite() || !isFinite(frontY) {
		return Pose{}, 0, fmt.Errorf("%w: initial fix not finite", ErrGeometrySingularity)
	}
	return pose, frontY, nil
}

// ProjectWall places the front and rear wall contacts from a pose and the
// two range distances.
func ProjectWall(p Pose, s1, s2 float64) WallObservation {
	phi := p.Orientation
	k := 2 * math.Cos(Beta)
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)

	return WallObservation{
		Front: Point{
			X: p.X + s1*cosPhi + Length*math.Sin(Beta-phi)/k,
			Y: p.Y - s1*sinPhi - Length*math.Cos(Beta-phi)/k,
		},
		Rear: Point{
			X: p.X + s2*cosPhi + Length*(sinPhi+math.Sin(Beta-phi)/k),
			Y: p.Y - s2*sinPhi + Length*(cosPhi-math.Cos(Beta-phi)/k),
		},
	}
}

// Advance applies signed wheel distances e1 (left) and e2 (right) to a pose.
// Equal distances translate along the heading; otherwise the step is an arc
// about the instantaneous center, corrected for the offset between the
// rover center and the wheel axle.
func Advance(p Pose, e1, e2 float64) Pose {
	phi := p.Orientation

	if e1 == e2 {
		p.X -= e1 * math.Sin(phi)
		p.Y -= e2 * math.Cos(phi)
		return p
	}

	theta := (e2 - e1) / Wheelbase
	radius := (e1 + e2) / (e2 - e1) * Wheelbase / 2

	p.Orientation += theta
	p.X += CenterOffset * math.Sin(phi)
	p.X += radius * (math.Cos(phi+theta) - math.Cos(phi))
	p.X -= CenterOffset * math.Sin(phi+theta)
	p.Y += CenterOffset * math.Cos(phi)
	p.Y += radius * (math.Sin(phi) - math.Sin(phi+theta))
	p.Y -= CenterOffset * math.Cos(phi+theta)
	return p
}
