// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rover holds the rover model: the motor command table and the
// dead-reckoning estimator that turns sensor and encoder readings into a
// pose and wall-contact points.
//
// All distances are millimeters in world coordinates. The world origin is the
// top-left corner, y grows downward, and the followed wall runs along
// x = XMax. Orientation is in radians, 0 facing -y, and is not wrapped.
package rover

import "math"

// Rover body and drive geometry
const (
	Width        = 170.0
	Length       = 230.0
	CenterOffset = 10.5
	Wheelbase    = 86.635
)

// World extents
const (
	XMax   = 1700.0
	YMax   = 1700.0
	WorldX = 2000.0
	WorldY = 2000.0
)

// Sensor calibration
const (
	sensorNumerator   = 3678953.0
	sensorScale       = 400.0
	sensorDenomOffset = 2.0
	sensorBias        = 4.0

	// MaxSensorDistance saturates readings with invalid or near-zero denominators
	MaxSensorDistance = 65535.0

	// RearSensorTrim is subtracted from the rear sensor's raw value
	RearSensorTrim = 5
)

// Beta is the angle of the body diagonal, atan(width/length)
var Beta = math.Atan(Width / Length)

// EncoderTickToMM is the track distance per encoder tick (about 0.13 mm)
var EncoderTickToMM = (37.0 * math.Pi) * 4 / 298 / 12

// SensorDistance converts a raw ultrasonic reading to millimeters
func SensorDistance(raw float64) float64 {
	denom := sensorScale*raw + sensorDenomOffset
	if denom <= 0 {
		return MaxSensorDistance
	}
	distance := sensorNumerator/denom - sensorBias
	if math.IsNaN(distance) || distance > MaxSensorDistance {
		return MaxSensorDistance
	}
	return distance
}

// EncoderDistance converts encoder ticks to millimeters of track travel
func EncoderDistance(ticks float64) float64 {
	return ticks * EncoderTickToMM
}
