// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

import (
	"errors"
	"fmt"
	"io"
	"iter"
)

// Decoder implements the WiFly frame decoder state machine
type Decoder struct {
	state        int
	lengthPrefix bool
	declared     int // LEN byte of the current frame
	received     int // raw bytes seen after LEN, END included
	buffer       []byte
	escapeNext   bool
	rawBuffer    []byte // Raw bytes of the current frame including framing
	lastFrame    []byte
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithoutLengthPrefix makes the decoder accept frames of the form
// START, payload, END with no LEN byte. Some rover firmware builds frame
// their uplink this way.
func WithoutLengthPrefix() DecoderOption {
	return func(d *Decoder) {
		d.lengthPrefix = false
	}
}

// NewDecoder creates a new frame decoder
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		state:        stateIdle,
		lengthPrefix: true,
		buffer:       make([]byte, 0, maxUnprefixedPayload),
		rawBuffer:    make([]byte, 0, MaxFrameLength+2),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reset drops any partial frame and returns to scanning for START
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.declared = 0
	d.received = 0
	d.escapeNext = false
	d.buffer = d.buffer[:0]
	d.rawBuffer = d.rawBuffer[:0]
}

// InFrame reports whether a frame has been started but not yet completed
func (d *Decoder) InFrame() bool {
	return d.state != stateIdle
}

// GetRawBytes returns the raw bytes of the frame currently being collected
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// LastFrame returns the raw bytes of the most recently completed frame,
// START through END. The slice is reused by the next completed frame.
func (d *Decoder) LastFrame() []byte {
	return d.lastFrame
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed message, or nil if the frame is incomplete.
// Returns an error wrapping ErrFraming when a partial frame is discarded;
// decoding may continue with the next byte.
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	if d.state == stateIdle {
		// Anything outside START..END is noise
		if b == StartByte {
			d.begin()
		}
		return nil, nil
	}

	d.rawBuffer = append(d.rawBuffer, b)

	switch d.state {
	case stateLength:
		switch {
		case b == StartByte:
			d.begin()
			return nil, fmt.Errorf("%w: START byte in place of length", ErrFraming)
		case b == EndByte:
			d.Reset()
			return nil, fmt.Errorf("%w: END byte in place of length", ErrFraming)
		case b == 0 || b > MaxFrameLength:
			d.Reset()
			return nil, fmt.Errorf("%w: invalid length %d (max %d)", ErrFraming, b, MaxFrameLength)
		}
		d.declared = int(b)
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.received++

		// An escaped byte is always data, even if it is a framing byte
		if d.escapeNext {
			d.escapeNext = false
			return d.collect(b ^ EscXor)
		}

		switch b {
		case EscByte:
			d.escapeNext = true
			return nil, d.checkOverrun()
		case StartByte:
			discarded := len(d.rawBuffer) - 1
			d.begin()
			return nil, fmt.Errorf("%w: START byte inside frame, %d bytes discarded", ErrFraming, discarded)
		case EndByte:
			return d.finish()
		}
		return d.collect(b)

	default:
		d.Reset()
		return nil, fmt.Errorf("%w: invalid state %d", ErrFraming, d.state)
	}
}

// begin starts a new frame after a START byte
func (d *Decoder) begin() {
	d.Reset()
	d.rawBuffer = append(d.rawBuffer, StartByte)
	if d.lengthPrefix {
		d.state = stateLength
	} else {
		d.state = statePayload
	}
}

func (d *Decoder) collect(b byte) (*Message, error) {
	if err := d.checkOverrun(); err != nil {
		return nil, err
	}
	if !d.lengthPrefix && len(d.buffer) >= maxUnprefixedPayload {
		d.Reset()
		return nil, fmt.Errorf("%w: buffer overflow, frame exceeds %d bytes", ErrFraming, maxUnprefixedPayload)
	}
	d.buffer = append(d.buffer, b)
	return nil, nil
}

// checkOverrun rejects a data byte in the position where END must be
func (d *Decoder) checkOverrun() error {
	if d.lengthPrefix && d.received >= d.declared {
		declared := d.declared
		d.Reset()
		return fmt.Errorf("%w: frame exceeds declared length %d", ErrFraming, declared)
	}
	return nil
}

func (d *Decoder) finish() (*Message, error) {
	if d.lengthPrefix && d.received != d.declared {
		received, declared := d.received, d.declared
		d.Reset()
		return nil, fmt.Errorf("%w: length mismatch, declared %d, received %d", ErrFraming, declared, received)
	}
	msg := MessageFromBytes(d.buffer)
	d.lastFrame = append(d.lastFrame[:0], d.rawBuffer...)
	d.Reset()
	return &msg, nil
}

// Decode returns a lazy sequence of messages read from r.
//
// Framing errors are yielded and decoding continues with the next frame.
// The sequence ends at io.EOF (yielding ErrTruncatedFrame if a frame was
// open) or after yielding a read failure wrapped in ErrDevice.
func Decode(r io.Reader, opts ...DecoderOption) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		d := NewDecoder(opts...)
		buf := make([]byte, 128)
		for {
			n, err := r.Read(buf)
			for i := 0; i < n; i++ {
				msg, decodeErr := d.DecodeByte(buf[i])
				if decodeErr != nil {
					if !yield(Message{}, decodeErr) {
						return
					}
					continue
				}
				if msg != nil && !yield(*msg, nil) {
					return
				}
			}
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				if d.InFrame() {
					yield(Message{}, fmt.Errorf("%w (%d bytes)", ErrTruncatedFrame, len(d.rawBuffer)))
				}
				return
			}
			yield(Message{}, fmt.Errorf("%w: %w", ErrDevice, err))
			return
		}
	}
}
