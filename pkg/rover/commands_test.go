// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rover

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/roverstation/pkg/wifly"
)

func TestCommandFor_Table(t *testing.T) {
	neutral := [4]byte{0x01, 0x00, 0x01, 0x01}
	fwd, rev := WheelSigns{1, 1}, WheelSigns{-1, -1}
	left, right := WheelSigns{-1, 1}, WheelSigns{1, -1}

	type row struct {
		payload [4]byte
		signs   WheelSigns
	}
	expected := map[Direction][6]row{
		DirectionStop: {
			{neutral, fwd}, {neutral, fwd}, {neutral, fwd}, {neutral, fwd}, {neutral, fwd}, {neutral, fwd},
		},
		DirectionForward: {
			{neutral, fwd},
			{[4]byte{0x01, 0x3c, 0x01, 0x4e}, fwd},
			{[4]byte{0x01, 0x46, 0x01, 0x50}, fwd},
			{[4]byte{0x01, 0x50, 0x01, 0x54}, fwd},
			{[4]byte{0x01, 0x5a, 0x01, 0x5c}, fwd},
			{[4]byte{0x01, 0x64, 0x01, 0x64}, fwd},
		},
		DirectionBackward: {
			{neutral, fwd},
			{[4]byte{0x00, 0x3c, 0x00, 0x4e}, rev},
			{[4]byte{0x00, 0x46, 0x00, 0x53}, rev},
			{[4]byte{0x00, 0x50, 0x00, 0x54}, rev},
			{[4]byte{0x00, 0x5a, 0x00, 0x5c}, rev},
			{[4]byte{0x00, 0x64, 0x00, 0x64}, rev},
		},
		DirectionLeft: {
			{neutral, fwd},
			{[4]byte{0x01, 0x55, 0x01, 0x55}, fwd},
			{[4]byte{0x00, 0x4b, 0x01, 0x4b}, left},
			{[4]byte{0x01, 0x00, 0x01, 0x64}, fwd},
			{[4]byte{0x00, 0x3c, 0x01, 0x50}, left},
			{[4]byte{0x00, 0x64, 0x01, 0x64}, left},
		},
		DirectionRight: {
			{neutral, fwd},
			{[4]byte{0x01, 0x55, 0x01, 0x55}, fwd},
			{[4]byte{0x01, 0x4b, 0x00, 0x4b}, right},
			{[4]byte{0x01, 0x64, 0x01, 0x00}, fwd},
			{[4]byte{0x01, 0x50, 0x00, 0x3c}, right},
			{[4]byte{0x01, 0x64, 0x00, 0x64}, right},
		},
	}

	for dir, rows := range expected {
		for gear, want := range rows {
			t.Run(fmt.Sprintf("%s/g%d", dir, gear), func(t *testing.T) {
				payload, signs := CommandFor(dir, gear)
				assert.Equal(t, want.payload, payload, "payload")
				assert.Equal(t, want.signs, signs, "signs")
			})
		}
	}
}

func TestCommandFor_KnownValues(t *testing.T) {
	payload, signs := CommandFor(DirectionForward, 3)
	assert.Equal(t, [4]byte{0x01, 0x50, 0x01, 0x54}, payload)
	assert.Equal(t, WheelSigns{1, 1}, signs)

	payload, signs = CommandFor(DirectionStop, 5)
	assert.Equal(t, [4]byte{0x01, 0x00, 0x01, 0x01}, payload)
	assert.Equal(t, WheelSigns{1, 1}, signs)

	_, signs = CommandFor(DirectionLeft, 1)
	assert.Equal(t, WheelSigns{1, 1}, signs, "gear 1 turn keeps both wheels positive")
}

func TestCommandFor_GearClamped(t *testing.T) {
	high, highSigns := CommandFor(DirectionForward, 9)
	top, topSigns := CommandFor(DirectionForward, MaxGear)
	assert.Equal(t, top, high)
	assert.Equal(t, topSigns, highSigns)

	low, lowSigns := CommandFor(DirectionBackward, -3)
	assert.Equal(t, [4]byte{0x01, 0x00, 0x01, 0x01}, low)
	assert.Equal(t, WheelSigns{1, 1}, lowSigns)
}

func TestCommandFor_UnknownDirection(t *testing.T) {
	payload, signs := CommandFor(Direction(42), 3)
	assert.Equal(t, [4]byte{0x01, 0x00, 0x01, 0x01}, payload)
	assert.Equal(t, WheelSigns{1, 1}, signs)
}

func TestNewCommand_Message(t *testing.T) {
	cmd := NewCommand(ControlState{Gear: 7, Direction: DirectionRight})
	require.Equal(t, MaxGear, cmd.Control.Gear)
	assert.Equal(t, WheelSigns{1, -1}, cmd.Signs)

	msg := cmd.Message()
	assert.Equal(t, wifly.TagMotor, msg.Tag)
	assert.Equal(t, wifly.CmdMotorPwm, msg.Command)
	assert.Equal(t, [4]byte{0x01, 0x64, 0x00, 0x64}, msg.Data)
	assert.True(t, msg.Known())
	assert.Empty(t, wifly.ValidateMessage(msg))
}
