// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wifly implements the framed byte protocol spoken over the rover's
// WiFly serial link.
//
// Every logical message is six bytes: [tag, command, d0, d1, d2, d3]. On the
// wire it is framed as START, LEN, escaped payload, END. LEN counts the
// escaped payload bytes plus the END byte. Payload bytes that collide with a
// framing byte are sent as ESC followed by the byte XOR 0x20.
package wifly

// Protocol framing bytes
const (
	StartByte = 0x62
	EndByte   = 0x63
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Message size limits
const (
	DataSize    = 4
	MessageSize = 2 + DataSize

	// Largest legal LEN: every payload byte escaped, plus END.
	MaxFrameLength = MessageSize*2 + 1

	// Cap on collected bytes when the peer sends no LEN byte.
	maxUnprefixedPayload = 32
)

// Tag is the message category carried in payload byte 0
type Tag uint8

// Tag values
const (
	TagWifly      Tag = 0x01
	TagSensor     Tag = 0x02
	TagMotor      Tag = 0x03
	TagController Tag = 0x04
)

// Command is the tag-scoped command code carried in payload byte 1
type Command uint8

// Command values - WiFly module 0x1X
const (
	CmdWiflySend     Command = 0x11
	CmdWiflyReceived Command = 0x12
)

// Command values - Sensor board 0x2X
const (
	CmdSensorRawRead    Command = 0x21
	CmdSensorChangeRate Command = 0x22
	CmdSensorTurnOn     Command = 0x23
	CmdSensorTurnOff    Command = 0x24
	CmdSensorAdcReady   Command = 0x25
)

// Command values - Motor board 0x3X
const (
	CmdMotorPwm         Command = 0x31
	CmdMotorEncoderRead Command = 0x32
)

// Command values - Controller 0x4X
const (
	CmdControllerNull Command = 0x40
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	statePayload
)
