// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rover

import (
	"fmt"
	"math"
)

// Point is a world position in millimeters
type Point struct {
	X float64
	Y float64
}

// Pose is the rover's estimated position and heading
type Pose struct {
	X           float64
	Y           float64
	Orientation float64 // radians, unbounded
}

// Center returns the position part of the pose
func (p Pose) Center() Point {
	return Point{X: p.X, Y: p.Y}
}

// Degrees returns the orientation in degrees
func (p Pose) Degrees() float64 {
	return p.Orientation * 180 / math.Pi
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.1f, %.1f) %.1f°", p.X, p.Y, p.Degrees())
}

func (p Pose) finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Orientation)
}

// WallObservation is where the front and rear range sensors meet the wall
type WallObservation struct {
	Front Point
	Rear  Point
}

func (w WallObservation) finite() bool {
	return isFinite(w.Front.X) && isFinite(w.Front.Y) && isFinite(w.Rear.X) && isFinite(w.Rear.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Direction is the commanded drive direction
type Direction int

// Direction values
const (
	DirectionStop Direction = iota
	DirectionForward
	DirectionLeft
	DirectionBackward
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionStop:
		return "STOP"
	case DirectionForward:
		return "FORWARD"
	case DirectionLeft:
		return "LEFT"
	case DirectionBackward:
		return "BACKWARD"
	case DirectionRight:
		return "RIGHT"
	default:
		return fmt.Sprintf("DIRECTION(%d)", int(d))
	}
}

// Gear limits
const (
	MinGear = 0
	MaxGear = 5
)

// ClampGear limits a gear to MinGear..MaxGear
func ClampGear(gear int) int {
	if gear < MinGear {
		return MinGear
	}
	if gear > MaxGear {
		return MaxGear
	}
	return gear
}

// ControlState is the last commanded operator intent
type ControlState struct {
	Gear      int
	Direction Direction
}

func (c ControlState) String() string {
	return fmt.Sprintf("%s/g%d", c.Direction, c.Gear)
}

// WheelSigns is the sign applied to each wheel's encoder distance, left then right
type WheelSigns [2]int8

// Phase is the estimator lifecycle state
type Phase int

// Phase values
const (
	PhaseAwaitingInitialFix Phase = iota
	PhaseFollowingWall
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingInitialFix:
		return "AWAITING_INITIAL_FIX"
	case PhaseFollowingWall:
		return "FOLLOWING_WALL"
	default:
		return "UNKNOWN"
	}
}
