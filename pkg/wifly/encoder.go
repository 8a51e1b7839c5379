// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

import "fmt"

// maxEncodedLength is the largest value the one-byte LEN field can carry
const maxEncodedLength = 0xFF

// Encode encodes a message to wire format.
// The six logical bytes are always encodable so this never fails.
func Encode(m Message) []byte {
	b := m.Bytes()
	frame, _ := EncodePayload(b[:])
	return frame
}

// EncodePayload frames an arbitrary payload: START, LEN, escaped payload, END.
// LEN counts the escaped payload bytes plus END.
func EncodePayload(payload []byte) ([]byte, error) {
	stuffed := stuffBytes(payload)
	if len(stuffed)+1 > maxEncodedLength {
		return nil, fmt.Errorf("payload too large: %d escaped bytes (max %d)", len(stuffed), maxEncodedLength-1)
	}

	frame := make([]byte, 0, len(stuffed)+3)
	frame = append(frame, StartByte, byte(len(stuffed)+1))
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// ParseFrame decodes exactly one complete frame
func ParseFrame(frame []byte) (Message, error) {
	if len(frame) < 3 || frame[0] != StartByte || frame[len(frame)-1] != EndByte {
		return Message{}, fmt.Errorf("%w: not a complete frame", ErrFraming)
	}
	if int(frame[1]) != len(frame)-2 {
		return Message{}, fmt.Errorf("%w: length mismatch, declared %d, received %d", ErrFraming, frame[1], len(frame)-2)
	}
	payload, err := UnstuffBytes(frame[2 : len(frame)-1])
	if err != nil {
		return Message{}, err
	}
	return MessageFromBytes(payload), nil
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("%w: incomplete escape sequence at end of data", ErrFraming)
	}

	return result, nil
}
