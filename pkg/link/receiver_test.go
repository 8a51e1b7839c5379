// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/roverstation/pkg/wifly"
)

func collect(results *[]Inbound) InboundHandler {
	return func(_ context.Context, in Inbound) error {
		*results = append(*results, in)
		return nil
	}
}

func TestReceiver_DecodesStream(t *testing.T) {
	sensor := wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 100, 105)
	encoder := wifly.NewMessage(wifly.TagMotor, wifly.CmdMotorEncoderRead, 0x00, 0x62, 0x00, 0x7D)

	var stream []byte
	stream = append(stream, 0x00, 0xFF)
	stream = append(stream, wifly.Encode(sensor)...)
	stream = append(stream, wifly.StartByte, 0x07, 0x02) // abandoned by the next START
	stream = append(stream, wifly.Encode(encoder)...)

	var got []Inbound
	r := NewReceiver(bytes.NewReader(stream), zaptest.NewLogger(t))
	require.NoError(t, r.Run(context.Background(), collect(&got)))

	require.Len(t, got, 3)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, sensor, got[0].Message)
	assert.Equal(t, wifly.Encode(sensor), got[0].Raw)

	assert.ErrorIs(t, got[1].Err, wifly.ErrFraming)

	assert.NoError(t, got[2].Err)
	assert.Equal(t, encoder, got[2].Message)
	assert.Equal(t, wifly.Encode(encoder), got[2].Raw)
}

func TestReceiver_TruncatedAtEOF(t *testing.T) {
	frame := wifly.Encode(wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 1, 2))

	var got []Inbound
	r := NewReceiver(bytes.NewReader(frame[:len(frame)-2]), zaptest.NewLogger(t))
	require.NoError(t, r.Run(context.Background(), collect(&got)))

	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, wifly.ErrTruncatedFrame)
	assert.True(t, wifly.IsFramingError(got[0].Err))
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReceiver_DeviceErrorIsFatal(t *testing.T) {
	m := wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 9, 9)
	ioErr := errors.New("usb unplugged")

	var got []Inbound
	r := NewReceiver(&failingReader{data: wifly.Encode(m), err: ioErr}, zaptest.NewLogger(t))
	err := r.Run(context.Background(), collect(&got))

	require.Error(t, err)
	assert.ErrorIs(t, err, wifly.ErrDevice)
	assert.ErrorIs(t, err, ioErr)

	require.Len(t, got, 2)
	assert.Equal(t, m, got[0].Message)
	assert.ErrorIs(t, got[1].Err, wifly.ErrDevice)
}

func TestReceiver_CloseIsShutdown(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan Inbound, 4)
	r := NewReceiver(pr, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(_ context.Context, in Inbound) error {
			received <- in
			return nil
		})
	}()

	m := wifly.NewMessage(wifly.TagMotor, wifly.CmdMotorEncoderRead, 0, 1, 0, 1)
	_, err := pw.Write(wifly.Encode(m))
	require.NoError(t, err)

	select {
	case in := <-received:
		assert.Equal(t, m, in.Message)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no message received")
	}

	cancel()
	require.NoError(t, pr.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "receiver did not stop after close")
	}
}

func TestReceiver_HandlerErrorStops(t *testing.T) {
	m := wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 1, 1)
	stream := append(wifly.Encode(m), wifly.Encode(m)...)
	stop := errors.New("stop")

	calls := 0
	r := NewReceiver(bytes.NewReader(stream), nil)
	err := r.Run(context.Background(), func(context.Context, Inbound) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReceiver_WithoutLengthPrefix(t *testing.T) {
	stream := []byte{wifly.StartByte, 0x02, 0x21, 0x40, 0x50, wifly.EndByte}

	var got []Inbound
	r := NewReceiver(bytes.NewReader(stream), nil, wifly.WithoutLengthPrefix())
	require.NoError(t, r.Run(context.Background(), collect(&got)))

	require.Len(t, got, 1)
	assert.Equal(t, wifly.NewMessage(wifly.TagSensor, wifly.CmdSensorRawRead, 0x40, 0x50), got[0].Message)
	assert.Equal(t, stream, got[0].Raw)
}
