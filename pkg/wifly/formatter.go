// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a message into a human-readable line
func FormatMessage(m Message, timestamp time.Time) string {
	result := fmt.Sprintf("[%s] %s/%s (0x%02X/0x%02X)",
		timestamp.Format("15:04:05.000"), FormatTag(m.Tag), FormatCommand(m.Command), uint8(m.Tag), uint8(m.Command))

	if detail := formatData(m); detail != "" {
		result += " " + detail
	}

	return result + "\n"
}

// FormatTag returns the human-readable name for a tag
func FormatTag(t Tag) string {
	switch t {
	case TagWifly:
		return "WIFLY"
	case TagSensor:
		return "SENSOR"
	case TagMotor:
		return "MOTOR"
	case TagController:
		return "CONTROLLER"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand returns the human-readable name for a command
func FormatCommand(c Command) string {
	switch c {
	case CmdWiflySend:
		return "SEND"
	case CmdWiflyReceived:
		return "RECEIVED"
	case CmdSensorRawRead:
		return "RAW_READ"
	case CmdSensorChangeRate:
		return "CHANGE_RATE"
	case CmdSensorTurnOn:
		return "TURN_ON"
	case CmdSensorTurnOff:
		return "TURN_OFF"
	case CmdSensorAdcReady:
		return "ADC_READY"
	case CmdMotorPwm:
		return "PWM"
	case CmdMotorEncoderRead:
		return "ENCODER_READ"
	case CmdControllerNull:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer
func (m Message) String() string {
	return fmt.Sprintf("%s/%s %s", FormatTag(m.Tag), FormatCommand(m.Command), FormatHex(m.Data[:]))
}

func formatData(m Message) string {
	switch {
	case m.Is(TagSensor, CmdSensorRawRead):
		return fmt.Sprintf("front=%d rear=%d", m.Data[0], m.Data[1])

	case m.Is(TagMotor, CmdMotorEncoderRead):
		return fmt.Sprintf("left=%d right=%d ticks", m.Word(0), m.Word(1))

	case m.Is(TagMotor, CmdMotorPwm):
		return fmt.Sprintf("left=%s/0x%02X right=%s/0x%02X",
			formatWheelDir(m.Data[0]), m.Data[1], formatWheelDir(m.Data[2]), m.Data[3])

	case m.Is(TagSensor, CmdSensorChangeRate):
		return fmt.Sprintf("rate=%d", m.Word(0))
	}

	return "data=" + FormatHex(m.Data[:])
}

func formatWheelDir(b byte) string {
	if b == 0 {
		return "REV"
	}
	return "FWD"
}

// FormatHex renders bytes as space separated hex pairs
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
