// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rover

import "github.com/Thermoquad/roverstation/pkg/wifly"

// Each PWM payload is [leftDir, leftDuty, rightDir, rightDuty]; a direction
// byte of 1 drives the wheel forward, 0 in reverse. The duty values are
// per-gear hardware trim, not derived from a formula.

// neutralPayload is sent for STOP and for gear 0 in any direction
var neutralPayload = [4]byte{0x01, 0x00, 0x01, 0x01}

type gearRow struct {
	payload [4]byte
	signs   WheelSigns
}

// commandTable holds gears 1..5 (index 0 is gear 1) per moving direction
var commandTable = map[Direction][MaxGear]gearRow{
	DirectionForward: {
		{[4]byte{0x01, 0x3c, 0x01, 0x4e}, WheelSigns{1, 1}},
		{[4]byte{0x01, 0x46, 0x01, 0x50}, WheelSigns{1, 1}},
		{[4]byte{0x01, 0x50, 0x01, 0x54}, WheelSigns{1, 1}},
		{[4]byte{0x01, 0x5a, 0x01, 0x5c}, WheelSigns{1, 1}},
		{[4]byte{0x01, 0x64, 0x01, 0x64}, WheelSigns{1, 1}},
	},
	DirectionBackward: {
		{[4]byte{0x00, 0x3c, 0x00, 0x4e}, WheelSigns{-1, -1}},
		{[4]byte{0x00, 0x46, 0x00, 0x53}, WheelSigns{-1, -1}}, // rear channel trimmed to 0x53
		{[4]byte{0x00, 0x50, 0x00, 0x54}, WheelSigns{-1, -1}},
		{[4]byte{0x00, 0x5a, 0x00, 0x5c}, WheelSigns{-1, -1}},
		{[4]byte{0x00, 0x64, 0x00, 0x64}, WheelSigns{-1, -1}},
	},
	// Gears 1 and 3 turn by driving both wheels forward at different duty,
	// so neither encoder reading is negated.
	DirectionLeft: {
		{[4]byte{0x01, 0x55, 0x01, 0x55}, WheelSigns{1, 1}},
		{[4]byte{0x00, 0x4b, 0x01, 0x4b}, WheelSigns{-1, 1}},
		{[4]byte{0x01, 0x00, 0x01, 0x64}, WheelSigns{1, 1}},
		{[4]byte{0x00, 0x3c, 0x01, 0x50}, WheelSigns{-1, 1}},
		{[4]byte{0x00, 0x64, 0x01, 0x64}, WheelSigns{-1, 1}},
	},
	DirectionRight: {
		{[4]byte{0x01, 0x55, 0x01, 0x55}, WheelSigns{1, 1}},
		{[4]byte{0x01, 0x4b, 0x00, 0x4b}, WheelSigns{1, -1}},
		{[4]byte{0x01, 0x64, 0x01, 0x00}, WheelSigns{1, 1}},
		{[4]byte{0x01, 0x50, 0x00, 0x3c}, WheelSigns{1, -1}},
		{[4]byte{0x01, 0x64, 0x00, 0x64}, WheelSigns{1, -1}},
	},
}

// CommandFor returns the PWM payload and encoder signs for a direction and
// gear. Gear is clamped to 0..5. STOP, gear 0 and unknown directions all
// yield the neutral payload.
func CommandFor(direction Direction, gear int) ([4]byte, WheelSigns) {
	gear = ClampGear(gear)
	rows, ok := commandTable[direction]
	if direction == DirectionStop || gear == 0 || !ok {
		return neutralPayload, WheelSigns{1, 1}
	}
	row := rows[gear-1]
	return row.payload, row.signs
}

// Command is a fully resolved motor command
type Command struct {
	Control ControlState
	Payload [4]byte
	Signs   WheelSigns
}

// NewCommand resolves a control state through the command table
func NewCommand(control ControlState) Command {
	control.Gear = ClampGear(control.Gear)
	payload, signs := CommandFor(control.Direction, control.Gear)
	return Command{Control: control, Payload: payload, Signs: signs}
}

// Message returns the MOTOR/PWM message for this command
func (c Command) Message() wifly.Message {
	return wifly.NewMotorPwm(c.Payload)
}
