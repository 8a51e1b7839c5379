// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

// Message is a decoded (or outbound) logical message.
// It is a value type; copies are independent.
type Message struct {
	Tag     Tag
	Command Command
	Data    [DataSize]byte
}

// NewMessage creates a message. Data beyond four bytes is dropped, missing
// bytes are zero.
func NewMessage(tag Tag, cmd Command, data ...byte) Message {
	m := Message{Tag: tag, Command: cmd}
	copy(m.Data[:], data)
	return m
}

// NewMotorPwm creates a MOTOR/PWM message carrying an actuator payload
func NewMotorPwm(payload [DataSize]byte) Message {
	return Message{Tag: TagMotor, Command: CmdMotorPwm, Data: payload}
}

// MessageFromBytes maps a collected payload onto a Message.
// Byte 0 is the tag, byte 1 the command, the remainder is data truncated or
// zero-extended to four bytes.
func MessageFromBytes(payload []byte) Message {
	var m Message
	if len(payload) > 0 {
		m.Tag = Tag(payload[0])
	}
	if len(payload) > 1 {
		m.Command = Command(payload[1])
	}
	if len(payload) > 2 {
		copy(m.Data[:], payload[2:])
	}
	return m
}

// Bytes returns the six logical payload bytes
func (m Message) Bytes() [MessageSize]byte {
	var b [MessageSize]byte
	b[0] = byte(m.Tag)
	b[1] = byte(m.Command)
	copy(b[2:], m.Data[:])
	return b
}

// Word returns big-endian 16-bit data word i (0 or 1)
func (m Message) Word(i int) uint16 {
	return uint16(m.Data[2*i])<<8 | uint16(m.Data[2*i+1])
}

// Is reports whether the message has the given tag and command
func (m Message) Is(tag Tag, cmd Command) bool {
	return m.Tag == tag && m.Command == cmd
}

// Known reports whether both tag and command are recognized protocol values
// and the command belongs to the tag.
func (m Message) Known() bool {
	return knownTag(m.Tag) && knownCommand(m.Command) && commandTag(m.Command) == m.Tag
}

func knownTag(t Tag) bool {
	return t >= TagWifly && t <= TagController
}

func knownCommand(c Command) bool {
	switch c {
	case CmdWiflySend, CmdWiflyReceived,
		CmdSensorRawRead, CmdSensorChangeRate, CmdSensorTurnOn, CmdSensorTurnOff, CmdSensorAdcReady,
		CmdMotorPwm, CmdMotorEncoderRead,
		CmdControllerNull:
		return true
	}
	return false
}

// commandTag returns the tag a command belongs to (high nibble)
func commandTag(c Command) Tag {
	return Tag(c >> 4)
}
